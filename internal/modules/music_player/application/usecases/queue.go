package usecases

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/domain"
)

// DefaultPageSize is the number of queue entries shown per page.
const DefaultPageSize = 10

// QueueListInput contains the input for the List use case.
type QueueListInput struct {
	GuildID    snowflake.ID
	StartIndex int // 0-based offset into the pending queue
}

// QueueListOutput contains the result of the List use case.
type QueueListOutput struct {
	Tracks        []domain.Track // up to DefaultPageSize entries from StartIndex
	StartIndex    int
	TotalTracks   int
	TotalDuration time.Duration // aggregate duration of the whole pending queue
}

// CurrentTrackOutput contains the result of the Current use case.
type CurrentTrackOutput struct {
	Track    domain.Track
	Position time.Duration // playback position, zero if the handle can't report it
}

// QueueService provides read-only views of a session's queue and current
// track. Reads go through the same per-session lock as mutations, so a view
// is always a consistent snapshot.
type QueueService struct {
	store domain.SessionStore
}

// NewQueueService creates a new QueueService.
func NewQueueService(store domain.SessionStore) *QueueService {
	return &QueueService{store: store}
}

// List returns one page of the pending queue starting at input.StartIndex.
func (q *QueueService) List(_ context.Context, input QueueListInput) (*QueueListOutput, error) {
	out := &QueueListOutput{StartIndex: input.StartIndex}
	err := q.store.With(input.GuildID, func(state *domain.SessionState) error {
		if state.Queue.IsEmpty() {
			return ErrQueueEmpty
		}
		if input.StartIndex < 0 || input.StartIndex >= state.Queue.Len() {
			return ErrIndexOutOfRange
		}

		out.Tracks = state.Queue.Slice(input.StartIndex, DefaultPageSize)
		out.TotalTracks = state.Queue.Len()
		out.TotalDuration = state.Queue.Duration()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Current returns the currently playing track and its position.
func (q *QueueService) Current(_ context.Context, guildID snowflake.ID) (*CurrentTrackOutput, error) {
	out := &CurrentTrackOutput{}
	err := q.store.With(guildID, func(state *domain.SessionState) error {
		if state.Current == nil {
			return ErrNotPlaying
		}
		out.Track = state.Current.Track
		// Position is best-effort; a handle that already stopped reports zero.
		if pos, err := state.Current.Handle.Position(); err == nil {
			out.Position = pos
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
