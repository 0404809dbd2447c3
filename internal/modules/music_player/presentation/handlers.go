package presentation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/bot"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/usecases"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/domain"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

// Handlers holds all the command handlers.
type Handlers struct {
	voice    *usecases.VoiceService
	enqueue  *usecases.EnqueueService
	playback *usecases.PlaybackService
	queue    *usecases.QueueService
}

// NewHandlers creates new Handlers.
func NewHandlers(
	voice *usecases.VoiceService,
	enqueue *usecases.EnqueueService,
	playback *usecases.PlaybackService,
	queue *usecases.QueueService,
) *Handlers {
	return &Handlers{
		voice:    voice,
		enqueue:  enqueue,
		playback: playback,
		queue:    queue,
	}
}

// HandleJoin handles the /join command.
func (h *Handlers) HandleJoin(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return respondError(r, "Invalid user")
	}

	var channelID snowflake.ID
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "channel" {
			channelID, _ = snowflake.Parse(opt.ChannelValue(s).ID)
		}
	}

	output, err := h.voice.Join(context.Background(), usecases.JoinInput{
		GuildID:   guildID,
		UserID:    userID,
		ChannelID: channelID,
	})
	if err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondSuccess(r, fmt.Sprintf("Connected to <#%d>.", output.ChannelID))
}

// HandleLeave handles the /leave command.
func (h *Handlers) HandleLeave(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.voice.Leave(context.Background(), guildID); err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondSuccess(r, "Disconnected.")
}

// HandlePlay handles the /play command. The target is either a URL option or
// an attached file; exactly one must be present.
func (h *Handlers) HandlePlay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return respondError(r, "Invalid user")
	}

	data := i.ApplicationCommandData()

	var url string
	var shuffle bool
	for _, opt := range data.Options {
		switch opt.Name {
		case "url":
			url = opt.StringValue()
		case "shuffle":
			shuffle = opt.BoolValue()
		case "file":
			id, ok := opt.Value.(string)
			if !ok {
				continue
			}
			if att, ok := data.Resolved.Attachments[id]; ok {
				url = att.URL
			}
		}
	}
	if url == "" {
		return respondError(r, "Provide a URL or attach a file.")
	}

	// Join first so the track has somewhere to play; a no-op if the bot is
	// already in the user's channel.
	if _, err := h.voice.Join(ctx, usecases.JoinInput{GuildID: guildID, UserID: userID}); err != nil {
		return respondError(r, errorMessage(err))
	}

	output, err := h.enqueue.Enqueue(ctx, usecases.EnqueueInput{
		GuildID: guildID,
		URL:     url,
		Shuffle: shuffle,
	})
	if err != nil {
		return respondError(r, errorMessage(err))
	}

	if output.Added == 1 {
		return respondSuccess(r, "Added 1 track to the queue.")
	}
	return respondSuccess(r, fmt.Sprintf("Added %d tracks to the queue.", output.Added))
}

// HandleStop handles the /stop command.
func (h *Handlers) HandleStop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.playback.StopAll(context.Background(), guildID); err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondSuccess(r, "Stopped playback and cleared the queue.")
}

// HandlePause handles the /pause command.
func (h *Handlers) HandlePause(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.playback.Pause(context.Background(), guildID); err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondSuccess(r, "Paused playback.")
}

// HandleResume handles the /resume command.
func (h *Handlers) HandleResume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.playback.Resume(context.Background(), guildID); err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondSuccess(r, "Resumed playback.")
}

// HandleSkip handles the /skip command. With no options it skips the current
// track; with a position it removes that queue entry; with position and end
// it removes the inclusive range.
func (h *Handlers) HandleSkip(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var position, end int
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "position":
			position = int(opt.IntValue())
		case "end":
			end = int(opt.IntValue())
		}
	}
	if end != 0 && position == 0 {
		return respondError(r, "Specify a start position for the range.")
	}

	output, err := h.playback.Skip(context.Background(), usecases.SkipInput{
		GuildID: guildID,
		Start:   position,
		End:     end,
	})
	if err != nil {
		return respondError(r, errorMessage(err))
	}

	switch {
	case output.Stopped:
		return respondSuccess(r, "Skipped the current track.")
	case len(output.Removed) == 1:
		return respondSuccess(r, fmt.Sprintf("Removed **%s** from the queue.", output.Removed[0].Title))
	default:
		return respondSuccess(r, fmt.Sprintf("Removed %d tracks from the queue.", len(output.Removed)))
	}
}

// HandleVolume handles the /volume command. The user-facing scale is percent;
// the session stores fractional gain.
func (h *Handlers) HandleVolume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var level float64
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "level" {
			level = opt.FloatValue()
		}
	}

	err = h.playback.SetVolume(context.Background(), usecases.SetVolumeInput{
		GuildID: guildID,
		Volume:  level / 100,
	})
	if err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondSuccess(r, fmt.Sprintf("Volume set to %g%%.", level))
}

// HandleLoop handles the /loop command.
func (h *Handlers) HandleLoop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var mode string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "mode" {
			mode = opt.StringValue()
		}
	}
	enabled := mode == "on"

	if err := h.playback.SetLoop(context.Background(), guildID, enabled); err != nil {
		return respondError(r, errorMessage(err))
	}

	if enabled {
		return respondSuccess(r, "Now looping the current track.")
	}
	return respondSuccess(r, "Loop disabled.")
}

// HandleQueue handles the /queue command.
func (h *Handlers) HandleQueue(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	start := 1
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "start" {
			start = int(opt.IntValue())
		}
	}

	output, err := h.queue.List(context.Background(), usecases.QueueListInput{
		GuildID:    guildID,
		StartIndex: start - 1,
	})
	if err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondQueueList(r, start, output)
}

// HandleNowPlaying handles the /nowplaying command.
func (h *Handlers) HandleNowPlaying(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	output, err := h.queue.Current(context.Background(), guildID)
	if err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondNowPlaying(r, output)
}

// errorMessage maps use case errors to user-facing text.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, usecases.ErrResolutionTimeout):
		return "Timed out resolving that link."
	case errors.Is(err, usecases.ErrResolutionFailed):
		return "Could not find anything to play for that link."
	case errors.Is(err, usecases.ErrIndexOutOfRange):
		return "That queue position does not exist."
	case errors.Is(err, usecases.ErrInvalidRange):
		return "Invalid range."
	case errors.Is(err, usecases.ErrNotPlaying):
		return "Nothing is playing."
	case errors.Is(err, usecases.ErrQueueEmpty):
		return "The queue is empty."
	case errors.Is(err, usecases.ErrInvalidVolume):
		return "Volume must be between 0.1 and 100."
	case errors.Is(err, usecases.ErrSourceAcquisitionFailed):
		return "Could not start playback for that track."
	default:
		return err.Error()
	}
}

// Response helpers.

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
		},
	})
}

func respondSuccess(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondQueueList(r bot.Responder, start int, output *usecases.QueueListOutput) error {
	var sb strings.Builder
	for i, track := range output.Tracks {
		// Escape the period to prevent Discord markdown list formatting.
		fmt.Fprintf(&sb, "%d\\. %s `[%s]`\n",
			start+i,
			trackLabel(track),
			track.FormattedDuration(),
		)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: sb.String(),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d tracks | %s total",
				output.TotalTracks,
				domain.FormatDuration(output.TotalDuration),
			),
		},
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

func respondNowPlaying(r bot.Responder, output *usecases.CurrentTrackOutput) error {
	embed := &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: trackLabel(output.Track),
		Color:       colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Position",
				Value: fmt.Sprintf("%s / %s",
					domain.FormatDuration(output.Position),
					output.Track.FormattedDuration(),
				),
			},
		},
	}
	if output.Track.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: output.Track.Thumbnail}
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

// trackLabel renders a track as a markdown link when it has a real URL, bold
// text otherwise.
func trackLabel(track domain.Track) string {
	if track.LocalFile || track.SourceURL == "" {
		return fmt.Sprintf("**%s**", track.Title)
	}
	return fmt.Sprintf("[%s](%s)", track.Title, track.SourceURL)
}
