package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/ports"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/domain"
)

// SkipInput contains the input for the Skip use case. The three target
// shapes are mutually exclusive:
//
//   - Start == 0, End == 0: stop the current track; the queue is untouched.
//   - Start >= 1, End == 0: remove the queue entry at 1-based position Start.
//   - Start >= 1, End >= 2: remove the 1-based range [Start, End], inclusive
//     on both ends.
type SkipInput struct {
	GuildID snowflake.ID
	Start   int
	End     int
}

// SkipOutput contains the result of the Skip use case.
type SkipOutput struct {
	Stopped bool           // the current track was stopped
	Removed []domain.Track // queue entries removed, in their former order
}

// SetVolumeInput contains the input for the SetVolume use case.
type SetVolumeInput struct {
	GuildID snowflake.ID
	Volume  float64 // fractional gain in (0, 1]
}

// PlaybackService is the per-session queue engine: it advances the queue,
// handles engine completion notifications, and forwards transport commands
// to the live handle. Every state mutation runs inside SessionStore.With,
// so user commands and engine callbacks for one guild serialize through the
// same per-session lock.
type PlaybackService struct {
	store  domain.SessionStore
	engine ports.PlaybackEngine
}

// NewPlaybackService creates a new PlaybackService.
func NewPlaybackService(store domain.SessionStore, engine ports.PlaybackEngine) *PlaybackService {
	return &PlaybackService{
		store:  store,
		engine: engine,
	}
}

// PlayNext promotes the queue head into the current slot and starts it.
// It is a no-op when a track is already playing or the queue is empty.
// Returns the track that started, or nil if nothing did.
//
// The session lock is held across source acquisition and playback start, so
// a concurrent skip and a completion callback can never both install a
// track into the same vacated slot.
func (p *PlaybackService) PlayNext(ctx context.Context, guildID snowflake.ID) (*domain.Track, error) {
	var started *domain.Track
	err := p.store.With(guildID, func(state *domain.SessionState) error {
		if state.Current != nil || state.Queue.IsEmpty() {
			return nil
		}
		track, err := p.advanceLocked(ctx, state)
		started = track
		return err
	})
	return started, err
}

// HandleTrackEnd is the completion callback: the engine reported that the
// guild's live handle finished (naturally, via stop, or via skip-current).
// Under the session lock it clears the current slot and, if the queue is
// non-empty, promotes the head. A failed source acquisition drops the head
// and leaves the session idle; progression then relies on the next
// completion event or an explicit command rather than cascading here.
//
// End events for guilds without a session are ignored. Disconnect stops the
// track and then evicts, so its end notification always trails the evict;
// creating state here would undo it.
func (p *PlaybackService) HandleTrackEnd(ctx context.Context, guildID snowflake.ID) error {
	_, err := p.store.WithExisting(guildID, func(state *domain.SessionState) error {
		state.Current = nil
		if state.Queue.IsEmpty() {
			return nil
		}
		_, err := p.advanceLocked(ctx, state)
		return err
	})
	return err
}

// advanceLocked pops the queue head, acquires a live source for it, and
// installs it as current. Must be called with the session lock held and
// state.Current == nil. On acquisition failure the popped track is dropped,
// current stays nil, and the queue duration bookkeeping has already been
// settled by PopHead.
func (p *PlaybackService) advanceLocked(
	ctx context.Context,
	state *domain.SessionState,
) (*domain.Track, error) {
	track, ok := state.Queue.PopHead()
	if !ok {
		return nil, nil
	}

	source, err := p.engine.AcquireSource(ctx, track)
	if err != nil {
		slog.Warn("dropping track, source acquisition failed",
			"guild", state.GuildID,
			"url", track.SourceURL,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrSourceAcquisitionFailed, err)
	}

	handle, err := p.engine.Play(ctx, state.GuildID, source, state.Volume)
	if err != nil {
		slog.Warn("dropping track, playback start failed",
			"guild", state.GuildID,
			"url", track.SourceURL,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrSourceAcquisitionFailed, err)
	}

	state.Current = &domain.Playing{Handle: handle, Track: track}
	return &track, nil
}

// Skip stops the current track or removes pending queue entries, depending
// on the target shape (see SkipInput). Stopping the current track does not
// install a successor directly: the engine's completion notification fires
// and the advance path picks the next head, so skip and natural track end
// share one code path.
//
// Out-of-range targets surface ErrIndexOutOfRange rather than silently
// doing nothing.
func (p *PlaybackService) Skip(_ context.Context, input SkipInput) (*SkipOutput, error) {
	out := &SkipOutput{}
	err := p.store.With(input.GuildID, func(state *domain.SessionState) error {
		switch {
		case input.Start == 0 && input.End == 0:
			return p.stopCurrentLocked(state, out)

		case input.End == 0:
			// Single 1-based index into the pending queue.
			removed, ok := state.Queue.RemoveAt(input.Start - 1)
			if !ok {
				return ErrIndexOutOfRange
			}
			out.Removed = []domain.Track{removed}
			return nil

		default:
			// 1-based range, inclusive on both ends.
			if input.Start < 1 || input.End < 2 || input.Start >= input.End {
				return ErrInvalidRange
			}
			removed := state.Queue.RemoveRange(input.Start-1, input.End)
			if removed == nil {
				return ErrIndexOutOfRange
			}
			out.Removed = removed
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PlaybackService) stopCurrentLocked(state *domain.SessionState, out *SkipOutput) error {
	if state.Current == nil {
		return ErrNotPlaying
	}
	if err := state.Current.Handle.Stop(); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineCommandFailed, err)
	}
	out.Stopped = true
	return nil
}

// SetVolume stores the session gain and forwards it to the live handle if
// one exists. The stored value survives track boundaries; the track-start
// callback re-applies it to each new handle.
func (p *PlaybackService) SetVolume(_ context.Context, input SetVolumeInput) error {
	if input.Volume <= 0 || input.Volume > 1 {
		return ErrInvalidVolume
	}
	return p.store.With(input.GuildID, func(state *domain.SessionState) error {
		state.Volume = input.Volume
		if state.Current == nil {
			return nil
		}
		if err := state.Current.Handle.SetVolume(input.Volume); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineCommandFailed, err)
		}
		return nil
	})
}

// ReapplyVolume pushes the session's stored gain onto the current live
// handle. The engine does not remember per-guild volume across track
// boundaries, so the track-start callback must call this for every new
// handle. Like HandleTrackEnd it never creates state: a start event for an
// evicted guild has nothing to resync.
func (p *PlaybackService) ReapplyVolume(_ context.Context, guildID snowflake.ID) error {
	_, err := p.store.WithExisting(guildID, func(state *domain.SessionState) error {
		if state.Current == nil {
			return nil
		}
		if err := state.Current.Handle.SetVolume(state.Volume); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineCommandFailed, err)
		}
		return nil
	})
	return err
}

// SetLoop toggles looping of the current track.
func (p *PlaybackService) SetLoop(_ context.Context, guildID snowflake.ID, enabled bool) error {
	return p.store.With(guildID, func(state *domain.SessionState) error {
		if state.Current == nil {
			return ErrNotPlaying
		}
		if err := state.Current.Handle.SetLoop(enabled); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineCommandFailed, err)
		}
		return nil
	})
}

// Pause suspends the current track.
func (p *PlaybackService) Pause(_ context.Context, guildID snowflake.ID) error {
	return p.store.With(guildID, func(state *domain.SessionState) error {
		if state.Current == nil {
			return ErrNotPlaying
		}
		if err := state.Current.Handle.Pause(); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineCommandFailed, err)
		}
		return nil
	})
}

// Resume continues the paused current track.
func (p *PlaybackService) Resume(_ context.Context, guildID snowflake.ID) error {
	return p.store.With(guildID, func(state *domain.SessionState) error {
		if state.Current == nil {
			return ErrNotPlaying
		}
		if err := state.Current.Handle.Resume(); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineCommandFailed, err)
		}
		return nil
	})
}

// StopAll clears the queue and stops the current track. The stop triggers
// the engine's completion notification, which finds an empty queue and
// leaves the session idle.
func (p *PlaybackService) StopAll(_ context.Context, guildID snowflake.ID) error {
	return p.store.With(guildID, func(state *domain.SessionState) error {
		if state.Current != nil {
			if err := state.Current.Handle.Stop(); err != nil {
				slog.Warn("failed to stop current track",
					"guild", guildID,
					"error", err,
				)
			}
		}
		state.Reset()
		return nil
	})
}

// Disconnect ends the session entirely: stop everything, then drop the map
// entry so transient guilds do not accumulate state.
func (p *PlaybackService) Disconnect(ctx context.Context, guildID snowflake.ID) error {
	if err := p.StopAll(ctx, guildID); err != nil {
		return err
	}
	p.store.Evict(guildID)
	return nil
}
