package usecases

import "errors"

// Errors surfaced by the playback coordinator. All of them are recoverable
// at this boundary: the presentation layer translates them into user-facing
// messages and nothing here takes down other sessions.
var (
	// ErrResolutionFailed is returned when the resolver produced an error
	// or nothing usable; the enqueue contributed zero tracks.
	ErrResolutionFailed = errors.New("could not resolve any playable tracks")

	// ErrResolutionTimeout is returned when resolution exceeded its bounded
	// wait. Treated like ErrResolutionFailed: zero tracks, no mutation.
	ErrResolutionTimeout = errors.New("track resolution timed out")

	// ErrSourceAcquisitionFailed is returned when a queued track could not
	// be turned into a live source. The track is dropped, not retried.
	ErrSourceAcquisitionFailed = errors.New("could not acquire a playable source")

	// ErrIndexOutOfRange is returned when a skip/remove target lies outside
	// the current queue bounds.
	ErrIndexOutOfRange = errors.New("queue position out of range")

	// ErrInvalidRange is returned when a removal range is malformed
	// (start < 1, end < 2, or start >= end).
	ErrInvalidRange = errors.New("invalid queue range")

	// ErrNotPlaying is returned by pass-through operations when the session
	// has no current track.
	ErrNotPlaying = errors.New("nothing is currently playing")

	// ErrInvalidVolume is returned when the requested gain is outside (0, 1].
	ErrInvalidVolume = errors.New("volume must be within (0, 1]")

	// ErrEngineCommandFailed wraps a live-handle operation that errored,
	// e.g. against a handle that already stopped.
	ErrEngineCommandFailed = errors.New("player command failed")

	// ErrQueueEmpty is returned by queue inspection when there is nothing
	// to show.
	ErrQueueEmpty = errors.New("the queue is empty")
)
