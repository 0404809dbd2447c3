package events

import (
	"log/slog"
	"sync"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/ports"
)

// DefaultEventBufferSize is the default buffer size for event channels.
const DefaultEventBufferSize = 100

// Compile-time check that Bus implements ports.EventPublisher.
var _ ports.EventPublisher = (*Bus)(nil)

// Bus is a channel-based event bus carrying playback events from the engine
// adapter and the enqueue path to the playback event handler. Publishing is
// non-blocking: events are dropped with a warning if a buffer fills, which
// beats stalling an engine callback thread.
type Bus struct {
	trackEnqueued chan ports.TrackEnqueuedEvent
	trackStarted  chan ports.TrackStartedEvent
	trackEnded    chan ports.TrackEndedEvent
	voiceClosed   chan ports.VoiceClosedEvent

	closed bool
	mu     sync.RWMutex
}

// NewBus creates a new Bus with the given buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	return &Bus{
		trackEnqueued: make(chan ports.TrackEnqueuedEvent, bufferSize),
		trackStarted:  make(chan ports.TrackStartedEvent, bufferSize),
		trackEnded:    make(chan ports.TrackEndedEvent, bufferSize),
		voiceClosed:   make(chan ports.VoiceClosedEvent, bufferSize),
	}
}

// PublishTrackEnqueued publishes a TrackEnqueuedEvent.
func (b *Bus) PublishTrackEnqueued(event ports.TrackEnqueuedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "TrackEnqueued")
		return
	}

	select {
	case b.trackEnqueued <- event:
	default:
		slog.Warn("event buffer full, dropping event", "type", "TrackEnqueued")
	}
}

// PublishTrackStarted publishes a TrackStartedEvent.
func (b *Bus) PublishTrackStarted(event ports.TrackStartedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "TrackStarted")
		return
	}

	select {
	case b.trackStarted <- event:
	default:
		slog.Warn("event buffer full, dropping event", "type", "TrackStarted")
	}
}

// PublishTrackEnded publishes a TrackEndedEvent.
func (b *Bus) PublishTrackEnded(event ports.TrackEndedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "TrackEnded")
		return
	}

	select {
	case b.trackEnded <- event:
	default:
		slog.Warn("event buffer full, dropping event", "type", "TrackEnded")
	}
}

// PublishVoiceClosed publishes a VoiceClosedEvent.
func (b *Bus) PublishVoiceClosed(event ports.VoiceClosedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "VoiceClosed")
		return
	}

	select {
	case b.voiceClosed <- event:
	default:
		slog.Warn("event buffer full, dropping event", "type", "VoiceClosed")
	}
}

// TrackEnqueued returns the channel for TrackEnqueuedEvent.
func (b *Bus) TrackEnqueued() <-chan ports.TrackEnqueuedEvent {
	return b.trackEnqueued
}

// TrackStarted returns the channel for TrackStartedEvent.
func (b *Bus) TrackStarted() <-chan ports.TrackStartedEvent {
	return b.trackStarted
}

// TrackEnded returns the channel for TrackEndedEvent.
func (b *Bus) TrackEnded() <-chan ports.TrackEndedEvent {
	return b.trackEnded
}

// VoiceClosed returns the channel for VoiceClosedEvent.
func (b *Bus) VoiceClosed() <-chan ports.VoiceClosedEvent {
	return b.voiceClosed
}

// Close closes all event channels. After Close, publishing is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.trackEnqueued)
	close(b.trackStarted)
	close(b.trackEnded)
	close(b.voiceClosed)

	slog.Debug("event bus closed")
}
