package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/ports"
)

// ErrUserNotInVoice is returned when a join is requested by a user who is
// not in a voice channel and no explicit channel was given.
var ErrUserNotInVoice = errors.New("you must be in a voice channel")

// JoinInput contains the input for the Join use case.
type JoinInput struct {
	GuildID snowflake.ID
	UserID  snowflake.ID
	// ChannelID optionally names the voice channel to join; when zero the
	// requesting user's current channel is used.
	ChannelID snowflake.ID
}

// JoinOutput contains the result of the Join use case.
type JoinOutput struct {
	ChannelID snowflake.ID
}

// VoiceService manages the bot's voice channel membership for a guild.
type VoiceService struct {
	voice      ports.VoiceConnection
	voiceState ports.VoiceStateProvider
	playback   *PlaybackService
}

// NewVoiceService creates a new VoiceService.
func NewVoiceService(
	voice ports.VoiceConnection,
	voiceState ports.VoiceStateProvider,
	playback *PlaybackService,
) *VoiceService {
	return &VoiceService{
		voice:      voice,
		voiceState: voiceState,
		playback:   playback,
	}
}

// Join connects the bot to a voice channel in the guild.
func (v *VoiceService) Join(ctx context.Context, input JoinInput) (*JoinOutput, error) {
	channelID := input.ChannelID
	if channelID == 0 {
		userChannel, err := v.voiceState.GetUserVoiceChannel(input.GuildID, input.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up voice state: %w", err)
		}
		if userChannel == 0 {
			return nil, ErrUserNotInVoice
		}
		channelID = userChannel
	}

	if err := v.voice.JoinChannel(ctx, input.GuildID, channelID); err != nil {
		return nil, err
	}
	return &JoinOutput{ChannelID: channelID}, nil
}

// Leave tears down the guild session and disconnects from voice. The
// session entry is evicted, so a later join starts from defaults.
func (v *VoiceService) Leave(ctx context.Context, guildID snowflake.ID) error {
	if err := v.playback.Disconnect(ctx, guildID); err != nil {
		return err
	}
	return v.voice.LeaveChannel(ctx, guildID)
}
