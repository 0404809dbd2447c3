package domain

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// DefaultVolume is the fractional gain installed when a session is first
// created.
const DefaultVolume = 1.0

// LiveHandle is an opaque, engine-owned reference to an actively playing
// track. Every operation may fail once the underlying track has stopped;
// such failures are per-call, never fatal to the session.
type LiveHandle interface {
	// Stop ends playback. The engine delivers its track-end notification
	// afterwards, which drives the advance path.
	Stop() error

	// Pause suspends playback without releasing the handle.
	Pause() error

	// Resume continues paused playback.
	Resume() error

	// SetVolume applies a fractional gain in (0, 1] to the live track.
	SetVolume(volume float64) error

	// SetLoop enables or disables restarting this track when it finishes.
	SetLoop(enabled bool) error

	// Position returns the current playback position.
	Position() (time.Duration, error)
}

// Playing pairs a live handle with the track it is playing.
type Playing struct {
	Handle LiveHandle
	Track  Track
}

// SessionState is the mutable playback state of one guild session.
// At most one track is ever current, the queue never contains the current
// track, and the aggregate queue duration always matches the queue contents.
// State must only be touched while holding the session's lock via
// SessionStore.With.
type SessionState struct {
	GuildID snowflake.ID
	Current *Playing // nil while idle
	Volume  float64  // fractional gain in (0, 1]
	Queue   Queue
}

// Reset clears the queue and drops the current track reference. It does not
// stop the live handle; callers stop it before resetting.
func (s *SessionState) Reset() {
	s.Queue.Clear()
	s.Current = nil
}

// SessionStore is the authoritative mapping from guild id to SessionState.
// Implementations use two-level locking: map lookup/insert is guarded
// separately from the per-session lock, so sessions for different guilds
// never contend while operations on one guild fully serialize.
type SessionStore interface {
	// With runs fn with exclusive ownership of the session state for
	// guildID, creating the state (volume 1.0, empty queue) on first
	// access. The lock is released on every exit path, including panics
	// and errors returned by fn.
	With(guildID snowflake.ID, fn func(*SessionState) error) error

	// WithExisting is like With but never creates state: when no session
	// exists for guildID it returns false without calling fn. Engine
	// notifications go through this so an event trailing an eviction,
	// like the stop emitted while leaving, cannot resurrect the session
	// it refers to.
	WithExisting(guildID snowflake.ID, fn func(*SessionState) error) (bool, error)

	// Evict drops the session entry entirely. Called on leave/disconnect
	// so long-lived processes do not accumulate state for transient
	// guilds.
	Evict(guildID snowflake.ID)
}
