package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/domain"
)

// LiveSource is an opaque, engine-owned playable source. It is produced by
// AcquireSource and only meaningful to Play on the same engine.
type LiveSource any

// PlaybackEngine is the audio engine boundary. It turns queued tracks into
// live sources and live sources into playing handles. The engine owns the
// transport entirely; the coordinator never sees audio data.
type PlaybackEngine interface {
	// AcquireSource produces a playable source for a track. The acquisition
	// strategy follows how the track was enqueued: direct files load as-is,
	// everything else goes through streaming resolution.
	AcquireSource(ctx context.Context, track domain.Track) (LiveSource, error)

	// Play starts playback of source on the guild's live audio output at
	// the given fractional gain and returns the handle controlling it.
	// The handle's completion notification is delivered asynchronously,
	// exactly once, via the engine's event stream.
	Play(ctx context.Context, guildID snowflake.ID, source LiveSource, volume float64) (domain.LiveHandle, error)
}

// VoiceConnection manages the guild's live audio output channel.
type VoiceConnection interface {
	// JoinChannel connects the bot to the given voice channel.
	JoinChannel(ctx context.Context, guildID, channelID snowflake.ID) error

	// LeaveChannel disconnects the bot from the guild's voice channel.
	LeaveChannel(ctx context.Context, guildID snowflake.ID) error
}

// VoiceStateProvider reports which voice channel a user currently occupies.
type VoiceStateProvider interface {
	// GetUserVoiceChannel returns the user's current voice channel, or 0 if
	// the user is not in one.
	GetUserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, error)
}
