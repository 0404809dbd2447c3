package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/ports"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/usecases"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/domain"
)

const testGuild = snowflake.ID(100)

// testStore locks per session like the real store, so one guild blocked in
// an engine call does not hold up another guild's events.
type testStore struct {
	mu       sync.Mutex
	sessions map[snowflake.ID]*testSession
}

type testSession struct {
	mu    sync.Mutex
	state domain.SessionState
}

func newTestStore() *testStore {
	return &testStore{sessions: make(map[snowflake.ID]*testSession)}
}

func (s *testStore) session(guildID snowflake.ID, create bool) *testSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[guildID]
	if !ok && create {
		sess = &testSession{
			state: domain.SessionState{GuildID: guildID, Volume: domain.DefaultVolume},
		}
		s.sessions[guildID] = sess
	}
	return sess
}

func (s *testStore) With(guildID snowflake.ID, fn func(*domain.SessionState) error) error {
	sess := s.session(guildID, true)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(&sess.state)
}

func (s *testStore) WithExisting(guildID snowflake.ID, fn func(*domain.SessionState) error) (bool, error) {
	sess := s.session(guildID, false)
	if sess == nil {
		return false, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return true, fn(&sess.state)
}

func (s *testStore) Evict(guildID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, guildID)
}

// snapshot runs fn under the session lock for race-free assertions.
func (s *testStore) snapshot(guildID snowflake.ID, fn func(*domain.SessionState)) bool {
	sess := s.session(guildID, false)
	if sess == nil {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	fn(&sess.state)
	return true
}

type testHandle struct {
	mu     sync.Mutex
	volume float64
}

func (h *testHandle) Stop() error                      { return nil }
func (h *testHandle) Pause() error                     { return nil }
func (h *testHandle) Resume() error                    { return nil }
func (h *testHandle) SetLoop(_ bool) error             { return nil }
func (h *testHandle) Position() (time.Duration, error) { return 0, nil }

func (h *testHandle) SetVolume(volume float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = volume
	return nil
}

func (h *testHandle) getVolume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

type testEngine struct{}

type testSource struct{}

func (e *testEngine) AcquireSource(
	_ context.Context,
	_ domain.Track,
) (ports.LiveSource, error) {
	return testSource{}, nil
}

func (e *testEngine) Play(
	_ context.Context,
	_ snowflake.ID,
	_ ports.LiveSource,
	volume float64,
) (domain.LiveHandle, error) {
	return &testHandle{volume: volume}, nil
}

// gatedEngine blocks Play for guilds with a registered gate until the gate
// channel is closed, simulating a slow engine node.
type gatedEngine struct {
	mu    sync.Mutex
	gates map[snowflake.ID]chan struct{}
	plays map[snowflake.ID]int
}

func newGatedEngine() *gatedEngine {
	return &gatedEngine{
		gates: make(map[snowflake.ID]chan struct{}),
		plays: make(map[snowflake.ID]int),
	}
}

// gate makes Play for guildID block until the returned channel is closed.
func (e *gatedEngine) gate(guildID snowflake.ID) chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan struct{})
	e.gates[guildID] = ch
	return ch
}

func (e *gatedEngine) playCount(guildID snowflake.ID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays[guildID]
}

func (e *gatedEngine) AcquireSource(
	_ context.Context,
	_ domain.Track,
) (ports.LiveSource, error) {
	return testSource{}, nil
}

func (e *gatedEngine) Play(
	ctx context.Context,
	guildID snowflake.ID,
	_ ports.LiveSource,
	volume float64,
) (domain.LiveHandle, error) {
	e.mu.Lock()
	gate := e.gates[guildID]
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mu.Lock()
	e.plays[guildID]++
	e.mu.Unlock()
	return &testHandle{volume: volume}, nil
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func newHandlerFixture(t *testing.T) (*testStore, *Bus) {
	t.Helper()

	store := newTestStore()
	bus := NewBus(DefaultEventBufferSize)
	playback := usecases.NewPlaybackService(store, &testEngine{})

	handler := NewPlaybackEventHandler(playback, bus)
	handler.Start()
	t.Cleanup(func() {
		handler.Stop()
		bus.Close()
	})

	return store, bus
}

func TestHandler_StartsPlaybackOnEnqueue(t *testing.T) {
	store, bus := newHandlerFixture(t)

	_ = store.With(testGuild, func(state *domain.SessionState) error {
		state.Queue.Append(domain.Track{SourceURL: "https://example.com/a", Title: "a"})
		return nil
	})

	bus.PublishTrackEnqueued(ports.TrackEnqueuedEvent{GuildID: testGuild, Added: 1})

	waitFor(t, func() bool {
		var current string
		store.snapshot(testGuild, func(state *domain.SessionState) {
			if state.Current != nil {
				current = state.Current.Track.Title
			}
		})
		return current == "a"
	})
}

func TestHandler_AdvancesOnTrackEnd(t *testing.T) {
	store, bus := newHandlerFixture(t)

	_ = store.With(testGuild, func(state *domain.SessionState) error {
		state.Current = &domain.Playing{
			Handle: &testHandle{},
			Track:  domain.Track{Title: "a"},
		}
		state.Queue.Append(domain.Track{SourceURL: "https://example.com/b", Title: "b"})
		return nil
	})

	bus.PublishTrackEnded(ports.TrackEndedEvent{
		GuildID: testGuild,
		Reason:  ports.TrackEndFinished,
	})

	waitFor(t, func() bool {
		var current string
		store.snapshot(testGuild, func(state *domain.SessionState) {
			if state.Current != nil {
				current = state.Current.Track.Title
			}
		})
		return current == "b"
	})
}

func TestHandler_IgnoresReplacedReason(t *testing.T) {
	store, bus := newHandlerFixture(t)

	_ = store.With(testGuild, func(state *domain.SessionState) error {
		state.Current = &domain.Playing{
			Handle: &testHandle{},
			Track:  domain.Track{Title: "a"},
		}
		state.Queue.Append(domain.Track{SourceURL: "https://example.com/b", Title: "b"})
		return nil
	})

	bus.PublishTrackEnded(ports.TrackEndedEvent{
		GuildID: testGuild,
		Reason:  ports.TrackEndReplaced,
	})

	// Replaced must not advance; give the handler time to misbehave.
	time.Sleep(50 * time.Millisecond)

	var current string
	var pending int
	store.snapshot(testGuild, func(state *domain.SessionState) {
		if state.Current != nil {
			current = state.Current.Track.Title
		}
		pending = state.Queue.Len()
	})
	if current != "a" {
		t.Errorf("expected a still current, got %q", current)
	}
	if pending != 1 {
		t.Errorf("expected queue untouched, got %d pending", pending)
	}
}

func TestHandler_ReappliesVolumeOnTrackStart(t *testing.T) {
	store, bus := newHandlerFixture(t)

	handle := &testHandle{volume: 1.0}
	_ = store.With(testGuild, func(state *domain.SessionState) error {
		state.Volume = 0.4
		state.Current = &domain.Playing{Handle: handle, Track: domain.Track{Title: "a"}}
		return nil
	})

	bus.PublishTrackStarted(ports.TrackStartedEvent{GuildID: testGuild})

	waitFor(t, func() bool {
		return handle.getVolume() == 0.4
	})
}

func TestHandler_VoiceClosedTearsDownSession(t *testing.T) {
	store, bus := newHandlerFixture(t)

	_ = store.With(testGuild, func(state *domain.SessionState) error {
		state.Current = &domain.Playing{Handle: &testHandle{}, Track: domain.Track{Title: "a"}}
		state.Queue.Append(domain.Track{Title: "b"})
		return nil
	})

	bus.PublishVoiceClosed(ports.VoiceClosedEvent{GuildID: testGuild})

	waitFor(t, func() bool {
		return !store.snapshot(testGuild, func(*domain.SessionState) {})
	})

	// Stopping the track makes the engine report an end; arriving after the
	// eviction it must not re-create the session.
	bus.PublishTrackEnded(ports.TrackEndedEvent{
		GuildID: testGuild,
		Reason:  ports.TrackEndStopped,
	})
	time.Sleep(50 * time.Millisecond)

	if store.snapshot(testGuild, func(*domain.SessionState) {}) {
		t.Error("expected session to stay evicted after the trailing end event")
	}
}

// TestHandler_SlowEngineDoesNotStallOtherGuilds pins one guild's engine
// call and checks that another guild's enqueue-triggered advance still
// goes through. Events must only ever wait on their own session.
func TestHandler_SlowEngineDoesNotStallOtherGuilds(t *testing.T) {
	const guildA = snowflake.ID(100)
	const guildB = snowflake.ID(101)

	store := newTestStore()
	engine := newGatedEngine()
	bus := NewBus(DefaultEventBufferSize)
	playback := usecases.NewPlaybackService(store, engine)

	handler := NewPlaybackEventHandler(playback, bus)
	handler.Start()
	t.Cleanup(func() {
		handler.Stop()
		bus.Close()
	})

	release := engine.gate(guildA)

	for _, guildID := range []snowflake.ID{guildA, guildB} {
		_ = store.With(guildID, func(state *domain.SessionState) error {
			state.Queue.Append(domain.Track{SourceURL: "https://example.com/t", Title: "t"})
			return nil
		})
	}

	bus.PublishTrackEnqueued(ports.TrackEnqueuedEvent{GuildID: guildA, Added: 1})
	bus.PublishTrackEnqueued(ports.TrackEnqueuedEvent{GuildID: guildB, Added: 1})

	// Guild B advances while guild A's engine call is still held up.
	waitFor(t, func() bool {
		return engine.playCount(guildB) == 1
	})
	if engine.playCount(guildA) != 0 {
		t.Fatal("expected guild A to still be blocked in the engine")
	}

	close(release)
	waitFor(t, func() bool {
		return engine.playCount(guildA) == 1
	})
}

func TestBus_PublishAfterCloseIsNoOp(t *testing.T) {
	bus := NewBus(1)
	bus.Close()

	// Must not panic
	bus.PublishTrackEnqueued(ports.TrackEnqueuedEvent{GuildID: testGuild})
	bus.PublishTrackStarted(ports.TrackStartedEvent{GuildID: testGuild})
	bus.PublishTrackEnded(ports.TrackEndedEvent{GuildID: testGuild})
	bus.PublishVoiceClosed(ports.VoiceClosedEvent{GuildID: testGuild})
}

func TestBus_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.PublishTrackEnded(ports.TrackEndedEvent{GuildID: testGuild})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}
}
