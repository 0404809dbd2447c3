package ports

import "github.com/disgoorg/snowflake/v2"

// TrackEndReason describes why the engine ended a track.
type TrackEndReason string

const (
	TrackEndFinished   TrackEndReason = "finished"
	TrackEndStopped    TrackEndReason = "stopped"
	TrackEndLoadFailed TrackEndReason = "loadFailed"
	// TrackEndReplaced means the engine swapped tracks on the same output;
	// the advance path must not fire for it.
	TrackEndReplaced TrackEndReason = "replaced"
)

// TrackEnqueuedEvent fires after an enqueue added tracks to a session.
type TrackEnqueuedEvent struct {
	GuildID snowflake.ID
	Added   int
}

// TrackStartedEvent fires when the engine begins playing a track. The
// coordinator uses it to re-apply the session's stored volume, because the
// engine does not remember per-guild gain across track boundaries.
type TrackStartedEvent struct {
	GuildID snowflake.ID
}

// TrackEndedEvent is the engine's completion notification: delivered once
// per live handle, whether the track finished naturally, was stopped, or
// failed to load.
type TrackEndedEvent struct {
	GuildID snowflake.ID
	Reason  TrackEndReason
}

// VoiceClosedEvent fires when the guild's voice connection is gone for good
// (bot kicked, or reconnect attempts exhausted). The session must end up
// with no current track.
type VoiceClosedEvent struct {
	GuildID snowflake.ID
}

// EventPublisher publishes playback events asynchronously. Publishing never
// blocks the caller; events may be dropped under sustained backpressure.
type EventPublisher interface {
	PublishTrackEnqueued(event TrackEnqueuedEvent)
	PublishTrackStarted(event TrackStartedEvent)
	PublishTrackEnded(event TrackEndedEvent)
	PublishVoiceClosed(event VoiceClosedEvent)
}
