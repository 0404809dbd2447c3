package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/ports"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/usecases"
)

// eventHandleTimeout bounds the work done for one event. The advance path
// makes REST calls to the engine, so a wedged node must not pin a handler
// goroutine forever.
const eventHandleTimeout = 15 * time.Second

// PlaybackEventHandler consumes bus events and drives the playback service.
// It is the second producer into each session's serialization point: the
// engine's asynchronous notifications (track start, track end, voice loss)
// re-enter the same per-session lock that user commands take, never an
// unsynchronized side path.
//
// Each event is handled on its own goroutine. Advancing a queue performs
// engine I/O while holding that guild's session lock, and a slow source
// acquisition for one guild must not delay completion handling for any
// other. Per-guild ordering comes from the session lock, not from the
// consume loop.
type PlaybackEventHandler struct {
	playback *usecases.PlaybackService
	bus      *Bus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPlaybackEventHandler creates a new PlaybackEventHandler.
func NewPlaybackEventHandler(playback *usecases.PlaybackService, bus *Bus) *PlaybackEventHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &PlaybackEventHandler{
		playback: playback,
		bus:      bus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the consumer goroutine.
func (h *PlaybackEventHandler) Start() {
	h.wg.Add(1)
	go h.run()

	slog.Debug("playback event handler started")
}

// Stop signals the consumer to exit and waits for it and every in-flight
// event goroutine. Cancelling the handler context unblocks dispatched work
// that is waiting on the engine.
func (h *PlaybackEventHandler) Stop() {
	h.cancel()
	h.wg.Wait()
}

func (h *PlaybackEventHandler) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case event, ok := <-h.bus.TrackEnqueued():
			if !ok {
				return
			}
			h.dispatch(func(ctx context.Context) { h.handleTrackEnqueued(ctx, event) })

		case event, ok := <-h.bus.TrackStarted():
			if !ok {
				return
			}
			h.dispatch(func(ctx context.Context) { h.handleTrackStarted(ctx, event) })

		case event, ok := <-h.bus.TrackEnded():
			if !ok {
				return
			}
			h.dispatch(func(ctx context.Context) { h.handleTrackEnded(ctx, event) })

		case event, ok := <-h.bus.VoiceClosed():
			if !ok {
				return
			}
			h.dispatch(func(ctx context.Context) { h.handleVoiceClosed(ctx, event) })
		}
	}
}

// dispatch runs fn on its own goroutine under a bounded context, so the
// consume loop goes straight back to the channels and sessions only ever
// wait on their own lock.
func (h *PlaybackEventHandler) dispatch(fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(h.ctx, eventHandleTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// handleTrackEnqueued starts playback if the session was idle. PlayNext
// itself checks the current slot under the lock, so a burst of enqueue
// events while something is playing collapses into no-ops.
func (h *PlaybackEventHandler) handleTrackEnqueued(ctx context.Context, event ports.TrackEnqueuedEvent) {
	started, err := h.playback.PlayNext(ctx, event.GuildID)
	if err != nil {
		slog.Warn("failed to start playback after enqueue",
			"guild", event.GuildID,
			"error", err,
		)
		return
	}
	if started != nil {
		slog.Debug("started playback after enqueue",
			"guild", event.GuildID,
			"track", started.Title,
		)
	}
}

// handleTrackStarted re-applies the session's stored volume to the freshly
// started handle. The engine forgets per-guild gain at every track
// boundary, so this resync is required, not cosmetic.
func (h *PlaybackEventHandler) handleTrackStarted(ctx context.Context, event ports.TrackStartedEvent) {
	if err := h.playback.ReapplyVolume(ctx, event.GuildID); err != nil {
		slog.Warn("failed to re-apply volume on track start",
			"guild", event.GuildID,
			"error", err,
		)
	}
}

// handleTrackEnded runs the completion path. Replaced means the engine
// swapped tracks on the same output without the old one finishing; advancing
// on it would double-start.
func (h *PlaybackEventHandler) handleTrackEnded(ctx context.Context, event ports.TrackEndedEvent) {
	if event.Reason == ports.TrackEndReplaced {
		return
	}

	err := h.playback.HandleTrackEnd(ctx, event.GuildID)
	if err != nil && !errors.Is(err, usecases.ErrSourceAcquisitionFailed) {
		slog.Error("completion callback failed",
			"guild", event.GuildID,
			"reason", event.Reason,
			"error", err,
		)
	}
}

// handleVoiceClosed tears the session down once the voice connection is
// gone for good, keeping the invariant that a session with no live audio
// output has no current track.
func (h *PlaybackEventHandler) handleVoiceClosed(ctx context.Context, event ports.VoiceClosedEvent) {
	if err := h.playback.Disconnect(ctx, event.GuildID); err != nil {
		slog.Warn("failed to tear down session after voice loss",
			"guild", event.GuildID,
			"error", err,
		)
	}
}
