package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/ports"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/domain"
)

// DefaultResolveTimeout bounds how long one enqueue may wait on the resolver.
const DefaultResolveTimeout = 3 * time.Second

// EnqueueInput contains the input for the Enqueue use case.
type EnqueueInput struct {
	GuildID snowflake.ID
	URL     string
	Shuffle bool // permute the newly added batch, not the existing queue
}

// EnqueueOutput contains the result of the Enqueue use case.
type EnqueueOutput struct {
	Added int // number of tracks appended to the queue
}

// EnqueueService resolves URLs into tracks and appends them to a session's
// queue.
//
// The resolver call runs outside the session lock so a slow resolve never
// stalls skip/stop for the same guild; the append plus the aggregate
// duration update then happen atomically under the lock. Concurrent
// enqueues may interleave their resolver calls, but each batch lands in one
// atomic step, so N concurrent enqueues are always equivalent to some
// serial ordering of them.
type EnqueueService struct {
	store     domain.SessionStore
	resolver  ports.MediaResolver
	publisher ports.EventPublisher
	timeout   time.Duration
}

// NewEnqueueService creates a new EnqueueService.
func NewEnqueueService(
	store domain.SessionStore,
	resolver ports.MediaResolver,
	publisher ports.EventPublisher,
) *EnqueueService {
	return &EnqueueService{
		store:     store,
		resolver:  resolver,
		publisher: publisher,
		timeout:   DefaultResolveTimeout,
	}
}

// Enqueue resolves input.URL and appends the resulting tracks to the guild's
// queue. Direct file references skip resolution entirely. On resolver
// failure or timeout nothing is appended and Added is zero.
func (s *EnqueueService) Enqueue(ctx context.Context, input EnqueueInput) (*EnqueueOutput, error) {
	if domain.IsFileURL(input.URL) {
		track := domain.NewFileTrack(input.URL)
		s.appendBatch(input.GuildID, []domain.Track{track})
		return &EnqueueOutput{Added: 1}, nil
	}

	batch, err := s.resolveBatch(ctx, input.URL, input.Shuffle)
	if err != nil {
		return &EnqueueOutput{}, err
	}

	s.appendBatch(input.GuildID, batch)
	return &EnqueueOutput{Added: len(batch)}, nil
}

// resolveBatch turns a URL into the ordered batch of tracks to append.
func (s *EnqueueService) resolveBatch(
	ctx context.Context,
	url string,
	shuffle bool,
) ([]domain.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.resolver.Resolve(ctx, url, true)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrResolutionTimeout, url)
		}
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	var batch []domain.Track
	for _, entry := range result.Entries {
		// Flat playlist listings can contain entries the resolver could
		// not attach a usable reference to; those contribute nothing.
		if entry.URL == "" {
			continue
		}
		batch = append(batch, domain.Track{
			SourceURL: entry.URL,
			Title:     entry.Title,
			Thumbnail: entry.Thumbnail,
			Duration:  entry.Duration,
		})
	}

	if len(batch) == 0 {
		return nil, ErrResolutionFailed
	}

	// Shuffle permutes only the fresh batch; tracks already queued keep
	// their relative order.
	if shuffle {
		rand.Shuffle(len(batch), func(i, j int) {
			batch[i], batch[j] = batch[j], batch[i]
		})
	}

	return batch, nil
}

// appendBatch installs the batch under the session lock and announces it.
func (s *EnqueueService) appendBatch(guildID snowflake.ID, batch []domain.Track) {
	_ = s.store.With(guildID, func(state *domain.SessionState) error {
		state.Queue.Append(batch...)
		return nil
	})

	slog.Debug("enqueued tracks", "guild", guildID, "count", len(batch))

	// The playback event handler starts playback if the session is idle.
	if s.publisher != nil {
		s.publisher.PublishTrackEnqueued(ports.TrackEnqueuedEvent{
			GuildID: guildID,
			Added:   len(batch),
		})
	}
}
