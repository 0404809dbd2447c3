package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/ports"
	"github.com/cadenza-bot/cadenza/internal/modules/music_player/domain"
)

// voiceConnectionTimeout is the maximum time to wait for a voice connection
// to be established.
const voiceConnectionTimeout = 10 * time.Second

// handleCommandTimeout bounds live-handle transport commands, which carry no
// caller context.
const handleCommandTimeout = 5 * time.Second

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
}

// LavalinkAdapter wraps DisGoLink behind the coordinator's ports: it is the
// media resolver (REST track loading), the playback engine (per-guild
// player), and the voice connection manager. Engine notifications are
// bridged onto the event bus.
type LavalinkAdapter struct {
	link      disgolink.Client
	session   *discordgo.Session
	botID     snowflake.ID
	publisher ports.EventPublisher

	pendingMu sync.Mutex
	pending   map[snowflake.ID]*pendingVoiceConnection

	// voiceBuffers holds buffered voice events per guild so that
	// VoiceStateUpdate and VoiceServerUpdate reach Lavalink together even
	// when Discord delivers them out of order.
	voiceBufferMu sync.Mutex
	voiceBuffers  map[snowflake.ID]*voiceEventBuffer

	// guildMu guards the per-guild playback bookkeeping below.
	guildMu       sync.Mutex
	voiceChannels map[snowflake.ID]snowflake.ID // where the bot currently sits
	looping       map[snowflake.ID]bool         // restart current track on finish
}

// NewLavalinkAdapter creates a new LavalinkAdapter and connects it to the
// configured node.
func NewLavalinkAdapter(
	session *discordgo.Session,
	publisher ports.EventPublisher,
	config LavalinkConfig,
) (*LavalinkAdapter, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := &LavalinkAdapter{
		session:       session,
		botID:         botID,
		publisher:     publisher,
		pending:       make(map[snowflake.ID]*pendingVoiceConnection),
		voiceBuffers:  make(map[snowflake.ID]*voiceEventBuffer),
		voiceChannels: make(map[snowflake.ID]snowflake.ID),
		looping:       make(map[snowflake.ID]bool),
	}

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
		disgolink.WithListenerFunc(adapter.onWebSocketClosed),
	)
	adapter.link = link

	node, err := link.AddNode(context.Background(), disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

// Link returns the underlying DisGoLink client for shutdown.
func (c *LavalinkAdapter) Link() disgolink.Client {
	return c.link
}

// Resolve implements ports.MediaResolver over the node's REST track
// loading. Lavalink's loader is flat by nature, so flatPlaylist needs no
// special handling here.
func (c *LavalinkAdapter) Resolve(
	ctx context.Context,
	url string,
	_ bool,
) (*ports.ResolveResult, error) {
	node := c.link.BestNode()
	if node == nil {
		return nil, fmt.Errorf("no available Lavalink node")
	}

	result, err := node.LoadTracks(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	return convertLoadResult(result), nil
}

// AcquireSource implements ports.PlaybackEngine. Queued tracks store only
// metadata; the encoded playable form is acquired lazily here, right before
// playback, so stale stream URLs resolve fresh.
func (c *LavalinkAdapter) AcquireSource(
	ctx context.Context,
	track domain.Track,
) (ports.LiveSource, error) {
	node := c.link.BestNode()
	if node == nil {
		return nil, fmt.Errorf("no available Lavalink node")
	}

	// Direct files load through Lavalink's http source with the same call;
	// the distinction matters only to resolvers that probe playlists.
	result, err := node.LoadTracks(ctx, track.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire source: %w", err)
	}

	switch data := result.Data.(type) {
	case lavalink.Track:
		return &lavalinkSource{encoded: data.Encoded}, nil
	case lavalink.Playlist:
		if len(data.Tracks) == 0 {
			return nil, fmt.Errorf("empty playlist for %s", track.SourceURL)
		}
		return &lavalinkSource{encoded: data.Tracks[0].Encoded}, nil
	case lavalink.Search:
		if len(data) == 0 {
			return nil, fmt.Errorf("no results for %s", track.SourceURL)
		}
		return &lavalinkSource{encoded: data[0].Encoded}, nil
	default:
		return nil, fmt.Errorf("no playable source for %s", track.SourceURL)
	}
}

// Play implements ports.PlaybackEngine. It starts the encoded source on the
// guild's player at the given fractional gain and returns the live handle.
func (c *LavalinkAdapter) Play(
	ctx context.Context,
	guildID snowflake.ID,
	source ports.LiveSource,
	volume float64,
) (domain.LiveHandle, error) {
	src, ok := source.(*lavalinkSource)
	if !ok {
		return nil, fmt.Errorf("source %T was not produced by this engine", source)
	}

	player := c.link.Player(guildID)
	err := player.Update(ctx,
		lavalink.WithEncodedTrack(src.encoded),
		lavalink.WithVolume(scaleVolume(volume)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start track: %w", err)
	}

	return &liveHandle{adapter: c, guildID: guildID, player: player}, nil
}

// lavalinkSource is the engine-private playable form of a track.
type lavalinkSource struct {
	encoded string
}

// liveHandle implements domain.LiveHandle over a disgolink player.
type liveHandle struct {
	adapter *LavalinkAdapter
	guildID snowflake.ID
	player  disgolink.Player
}

func (h *liveHandle) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), handleCommandTimeout)
	defer cancel()

	if err := h.player.Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}
	return nil
}

func (h *liveHandle) Pause() error {
	ctx, cancel := context.WithTimeout(context.Background(), handleCommandTimeout)
	defer cancel()

	if err := h.player.Update(ctx, lavalink.WithPaused(true)); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}
	return nil
}

func (h *liveHandle) Resume() error {
	ctx, cancel := context.WithTimeout(context.Background(), handleCommandTimeout)
	defer cancel()

	if err := h.player.Update(ctx, lavalink.WithPaused(false)); err != nil {
		return fmt.Errorf("failed to resume playback: %w", err)
	}
	return nil
}

func (h *liveHandle) SetVolume(volume float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), handleCommandTimeout)
	defer cancel()

	if err := h.player.Update(ctx, lavalink.WithVolume(scaleVolume(volume))); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	return nil
}

// SetLoop flags the guild for loop replay. Lavalink has no server-side
// repeat, so the adapter restarts the finished track itself in onTrackEnd.
func (h *liveHandle) SetLoop(enabled bool) error {
	h.adapter.guildMu.Lock()
	defer h.adapter.guildMu.Unlock()

	h.adapter.looping[h.guildID] = enabled
	return nil
}

func (h *liveHandle) Position() (time.Duration, error) {
	return time.Duration(h.player.Position()) * time.Millisecond, nil
}

// scaleVolume maps the coordinator's fractional gain in (0, 1] onto
// Lavalink's 0-1000 percent scale.
func scaleVolume(volume float64) int {
	return int(math.Round(volume * 100))
}

func convertLoadResult(result *lavalink.LoadResult) *ports.ResolveResult {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return &ports.ResolveResult{
			Kind:    ports.ResolveKindTrack,
			Entries: []ports.ResolvedEntry{convertTrack(data)},
		}

	case lavalink.Playlist:
		entries := make([]ports.ResolvedEntry, len(data.Tracks))
		for i, track := range data.Tracks {
			entries[i] = convertTrack(track)
		}
		return &ports.ResolveResult{
			Kind:    ports.ResolveKindPlaylist,
			Entries: entries,
		}

	case lavalink.Search:
		// Only the best match is meaningful for a play request.
		if len(data) == 0 {
			return &ports.ResolveResult{Kind: ports.ResolveKindEmpty}
		}
		return &ports.ResolveResult{
			Kind:    ports.ResolveKindTrack,
			Entries: []ports.ResolvedEntry{convertTrack(data[0])},
		}

	case lavalink.Exception:
		return &ports.ResolveResult{Kind: ports.ResolveKindError}

	default:
		return &ports.ResolveResult{Kind: ports.ResolveKindEmpty}
	}
}

func convertTrack(track lavalink.Track) ports.ResolvedEntry {
	info := track.Info

	entry := ports.ResolvedEntry{
		Title:    info.Title,
		Duration: time.Duration(info.Length) * time.Millisecond,
	}
	if info.URI != nil {
		entry.URL = *info.URI
	}
	if info.ArtworkURL != nil {
		entry.Thumbnail = *info.ArtworkURL
	}
	if info.IsStream {
		// Live streams have no finite length; zero keeps the queue
		// duration honest.
		entry.Duration = 0
	}
	return entry
}

// Engine event listeners. These run on DisGoLink's dispatch goroutine and
// only publish onto the bus; the playback event handler does the state work
// under the session lock.

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)

	c.publisher.PublishTrackStarted(ports.TrackStartedEvent{
		GuildID: player.GuildID(),
	})
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	guildID := player.GuildID()
	slog.Debug("track ended", "guild", guildID, "reason", event.Reason)

	// Loop replay: restart the same encoded track instead of advancing.
	if event.Reason == lavalink.TrackEndReasonFinished && c.isLooping(guildID) {
		ctx, cancel := context.WithTimeout(context.Background(), handleCommandTimeout)
		defer cancel()

		if err := player.Update(ctx, lavalink.WithEncodedTrack(event.Track.Encoded)); err == nil {
			return
		}
		slog.Warn("loop replay failed, advancing instead", "guild", guildID)
	}

	c.publisher.PublishTrackEnded(ports.TrackEndedEvent{
		GuildID: guildID,
		Reason:  convertEndReason(event.Reason),
	})
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)
}

func (c *LavalinkAdapter) isLooping(guildID snowflake.ID) bool {
	c.guildMu.Lock()
	defer c.guildMu.Unlock()
	return c.looping[guildID]
}

func convertEndReason(reason lavalink.TrackEndReason) ports.TrackEndReason {
	switch reason {
	case lavalink.TrackEndReasonFinished:
		return ports.TrackEndFinished
	case lavalink.TrackEndReasonLoadFailed:
		return ports.TrackEndLoadFailed
	case lavalink.TrackEndReasonReplaced:
		return ports.TrackEndReplaced
	default:
		return ports.TrackEndStopped
	}
}

// Ensure LavalinkAdapter implements the ports it claims.
var (
	_ ports.MediaResolver   = (*LavalinkAdapter)(nil)
	_ ports.PlaybackEngine  = (*LavalinkAdapter)(nil)
	_ ports.VoiceConnection = (*LavalinkAdapter)(nil)
)
