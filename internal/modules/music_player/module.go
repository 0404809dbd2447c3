package music_player

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"

	"github.com/cadenza-bot/cadenza/internal/bot"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/events"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/usecases"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/infrastructure"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/presentation"
)

func init() {
	bot.Register(&MusicPlayerModule{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*MusicPlayerModule)(nil)

// MusicPlayerModule provides music playback commands.
type MusicPlayerModule struct {
	config   *Config
	handlers *presentation.Handlers

	lavalinkAdapter *infrastructure.LavalinkAdapter
	eventBus        *events.Bus
	playbackHandler *events.PlaybackEventHandler
}

// Name returns the module name.
func (m *MusicPlayerModule) Name() string {
	return "music_player"
}

// Commands returns the slash commands for this module.
func (m *MusicPlayerModule) Commands() []*discordgo.ApplicationCommand {
	return presentation.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *MusicPlayerModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"join":       m.handlers.HandleJoin,
		"leave":      m.handlers.HandleLeave,
		"play":       m.handlers.HandlePlay,
		"stop":       m.handlers.HandleStop,
		"pause":      m.handlers.HandlePause,
		"resume":     m.handlers.HandleResume,
		"skip":       m.handlers.HandleSkip,
		"volume":     m.handlers.HandleVolume,
		"loop":       m.handlers.HandleLoop,
		"queue":      m.handlers.HandleQueue,
		"nowplaying": m.handlers.HandleNowPlaying,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *MusicPlayerModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(_ *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			if m.lavalinkAdapter != nil {
				m.lavalinkAdapter.OnVoiceServerUpdate(event)
			}
		},
		func(_ *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			if m.lavalinkAdapter != nil {
				m.lavalinkAdapter.OnVoiceStateUpdate(event)
			}
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicPlayerModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *MusicPlayerModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil {
		slog.Warn("music_player module initialized without session, playback disabled")
		return m.initWithoutLavalink()
	}

	return m.initWithLavalink(deps)
}

// initWithoutLavalink wires the read-only services so the module loads in
// environments with no Discord session. Playback commands fail at runtime.
func (m *MusicPlayerModule) initWithoutLavalink() error {
	store := infrastructure.NewSessionStore()

	queue := usecases.NewQueueService(store)

	m.handlers = presentation.NewHandlers(nil, nil, nil, queue)
	return nil
}

func (m *MusicPlayerModule) initWithLavalink(deps bot.ModuleDependencies) error {
	m.eventBus = events.NewBus(events.DefaultEventBufferSize)

	lavalinkAdapter, err := infrastructure.NewLavalinkAdapter(
		deps.Session,
		m.eventBus,
		infrastructure.LavalinkConfig{
			Address:  m.config.LavalinkAddress,
			Password: m.config.LavalinkPassword,
		},
	)
	if err != nil {
		return err
	}
	m.lavalinkAdapter = lavalinkAdapter

	store := infrastructure.NewSessionStore()
	voiceState := infrastructure.NewVoiceStateProvider(deps.Session)

	playback := usecases.NewPlaybackService(store, lavalinkAdapter)
	enqueue := usecases.NewEnqueueService(store, lavalinkAdapter, m.eventBus)
	queue := usecases.NewQueueService(store)
	voice := usecases.NewVoiceService(lavalinkAdapter, voiceState, playback)

	m.playbackHandler = events.NewPlaybackEventHandler(playback, m.eventBus)
	m.playbackHandler.Start()

	m.handlers = presentation.NewHandlers(voice, enqueue, playback, queue)

	slog.Info("music_player module initialized with Lavalink")

	return nil
}

// Shutdown cleans up module resources.
func (m *MusicPlayerModule) Shutdown() error {
	if m.playbackHandler != nil {
		m.playbackHandler.Stop()
	}

	if m.eventBus != nil {
		m.eventBus.Close()
	}

	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.Link().Close()
	}

	return nil
}
