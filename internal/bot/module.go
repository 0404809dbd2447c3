package bot

import "github.com/bwmarrin/discordgo"

// InteractionHandler responds to one slash command invocation. The
// Responder wraps the interaction so handlers never talk to the session
// for replies directly.
type InteractionHandler func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error

// EventHandler is a gateway event listener. It must match one of
// discordgo's AddHandler signatures, for example
// func(s *discordgo.Session, e *discordgo.VoiceStateUpdate); the music
// player uses these to track voice connections.
type EventHandler any

// ModuleDependencies is handed to Init once the gateway connection is
// open, so the session state (bot user, guild cache) is already populated.
type ModuleDependencies struct {
	Session *discordgo.Session
}

// Module is one self-contained feature of the bot. Modules register
// themselves from init() via Register and the shell wires them up in
// lifecycle order: LoadConfig (if configurable), Init, command and event
// registration, and Shutdown on the way out.
type Module interface {
	// Name identifies the module in logs and error messages.
	Name() string

	// Commands returns the slash commands the module contributes.
	Commands() []*discordgo.ApplicationCommand

	// CommandHandlers maps command names to their handlers. Names must be
	// unique across all loaded modules.
	CommandHandlers() map[string]InteractionHandler

	// EventHandlers returns gateway listeners to install on the session.
	EventHandlers() []EventHandler

	// Init builds the module's internals. It runs after the gateway is
	// open and before any command is served.
	Init(deps ModuleDependencies) error

	// Shutdown releases module resources. Called during bot stop, in
	// load order.
	Shutdown() error
}

// ConfigurableModule marks modules with their own environment
// configuration. LoadConfig runs before the Discord connection opens, so
// a missing variable fails startup instead of surfacing mid-session.
type ConfigurableModule interface {
	LoadConfig() error
}
