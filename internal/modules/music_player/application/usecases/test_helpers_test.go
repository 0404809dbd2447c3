package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/ports"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/domain"
)

const testGuild = snowflake.ID(100)

func mockTrack(title string) domain.Track {
	return domain.Track{
		SourceURL: "https://example.com/" + title,
		Title:     title,
		Duration:  3 * time.Minute,
	}
}

// mockStore is an in-memory domain.SessionStore. A single mutex serializes
// all sessions, which is coarser than the real store but preserves the
// contract the services rely on: fn owns the state exclusively.
type mockStore struct {
	mu      sync.Mutex
	states  map[snowflake.ID]*domain.SessionState
	evicted []snowflake.ID
}

func newMockStore() *mockStore {
	return &mockStore{states: make(map[snowflake.ID]*domain.SessionState)}
}

func (m *mockStore) With(guildID snowflake.ID, fn func(*domain.SessionState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[guildID]
	if !ok {
		state = &domain.SessionState{GuildID: guildID, Volume: domain.DefaultVolume}
		m.states[guildID] = state
	}
	return fn(state)
}

func (m *mockStore) WithExisting(guildID snowflake.ID, fn func(*domain.SessionState) error) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[guildID]
	if !ok {
		return false, nil
	}
	return true, fn(state)
}

func (m *mockStore) Evict(guildID snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evicted = append(m.evicted, guildID)
	delete(m.states, guildID)
}

// state returns the session state for assertions, or nil if none exists.
func (m *mockStore) state(guildID snowflake.ID) *domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[guildID]
}

type mockResolver struct {
	result *ports.ResolveResult
	err    error
	block  bool // wait for ctx cancellation instead of answering
	calls  int
}

func (m *mockResolver) Resolve(
	ctx context.Context,
	_ string,
	_ bool,
) (*ports.ResolveResult, error) {
	m.calls++
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func resolveResultOf(entries ...ports.ResolvedEntry) *ports.ResolveResult {
	kind := ports.ResolveKindTrack
	if len(entries) > 1 {
		kind = ports.ResolveKindPlaylist
	}
	return &ports.ResolveResult{Kind: kind, Entries: entries}
}

func entry(title string) ports.ResolvedEntry {
	return ports.ResolvedEntry{
		URL:      "https://example.com/" + title,
		Title:    title,
		Duration: 3 * time.Minute,
	}
}

type mockHandle struct {
	stopped bool
	paused  bool
	resumed bool
	volume  float64
	loop    bool

	stopErr   error
	pauseErr  error
	resumeErr error
	volumeErr error
	loopErr   error
}

func (m *mockHandle) Stop() error {
	if m.stopErr != nil {
		return m.stopErr
	}
	m.stopped = true
	return nil
}

func (m *mockHandle) Pause() error {
	if m.pauseErr != nil {
		return m.pauseErr
	}
	m.paused = true
	return nil
}

func (m *mockHandle) Resume() error {
	if m.resumeErr != nil {
		return m.resumeErr
	}
	m.resumed = true
	return nil
}

func (m *mockHandle) SetVolume(volume float64) error {
	if m.volumeErr != nil {
		return m.volumeErr
	}
	m.volume = volume
	return nil
}

func (m *mockHandle) SetLoop(enabled bool) error {
	if m.loopErr != nil {
		return m.loopErr
	}
	m.loop = enabled
	return nil
}

func (m *mockHandle) Position() (time.Duration, error) {
	return 42 * time.Second, nil
}

type mockEngine struct {
	acquireErr error
	playErr    error

	played  []domain.Track // tracks passed through AcquireSource
	handles []*mockHandle  // handle returned per Play call, in order
}

type mockSource struct {
	track domain.Track
}

func (m *mockEngine) AcquireSource(
	_ context.Context,
	track domain.Track,
) (ports.LiveSource, error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	return &mockSource{track: track}, nil
}

func (m *mockEngine) Play(
	_ context.Context,
	_ snowflake.ID,
	source ports.LiveSource,
	volume float64,
) (domain.LiveHandle, error) {
	if m.playErr != nil {
		return nil, m.playErr
	}
	handle := &mockHandle{volume: volume}
	m.played = append(m.played, source.(*mockSource).track)
	m.handles = append(m.handles, handle)
	return handle, nil
}

type mockVoiceConnection struct {
	joinErr  error
	leaveErr error

	joined []snowflake.ID // channel IDs, in join order
	left   []snowflake.ID // guild IDs, in leave order
}

func (m *mockVoiceConnection) JoinChannel(_ context.Context, _, channelID snowflake.ID) error {
	if m.joinErr != nil {
		return m.joinErr
	}
	m.joined = append(m.joined, channelID)
	return nil
}

func (m *mockVoiceConnection) LeaveChannel(_ context.Context, guildID snowflake.ID) error {
	if m.leaveErr != nil {
		return m.leaveErr
	}
	m.left = append(m.left, guildID)
	return nil
}

type mockVoiceStateProvider struct {
	channels map[snowflake.ID]snowflake.ID // userID -> channelID
	err      error
}

func (m *mockVoiceStateProvider) GetUserVoiceChannel(
	_, userID snowflake.ID,
) (snowflake.ID, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.channels[userID], nil
}

type mockPublisher struct {
	mu            sync.Mutex
	trackEnqueued []ports.TrackEnqueuedEvent
	trackStarted  []ports.TrackStartedEvent
	trackEnded    []ports.TrackEndedEvent
	voiceClosed   []ports.VoiceClosedEvent
}

func (m *mockPublisher) PublishTrackEnqueued(event ports.TrackEnqueuedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackEnqueued = append(m.trackEnqueued, event)
}

func (m *mockPublisher) PublishTrackStarted(event ports.TrackStartedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackStarted = append(m.trackStarted, event)
}

func (m *mockPublisher) PublishTrackEnded(event ports.TrackEndedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackEnded = append(m.trackEnded, event)
}

func (m *mockPublisher) PublishVoiceClosed(event ports.VoiceClosedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voiceClosed = append(m.voiceClosed, event)
}

func (m *mockPublisher) enqueuedEvents() []ports.TrackEnqueuedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.TrackEnqueuedEvent(nil), m.trackEnqueued...)
}
