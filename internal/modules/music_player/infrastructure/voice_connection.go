package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/application/ports"
)

// voiceReconnectAttempts is how many times a dropped voice connection is
// re-established before the session is declared lost.
const voiceReconnectAttempts = 3

// voiceReconnectBaseDelay is the delay before the first reconnect attempt;
// it doubles on each subsequent one.
const voiceReconnectBaseDelay = time.Second

// pendingVoiceConnection tracks the state of a pending voice connection.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

// onEvent marks an event as received and signals ready if both events are present.
func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && p.hasVoiceServer {
		select {
		case <-p.ready:
			// Already closed
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer buffers voice events so that both VoiceStateUpdate and
// VoiceServerUpdate are received before forwarding to Lavalink. This prevents
// "Partial Lavalink voice state" errors when events arrive out of order.
type voiceEventBuffer struct {
	mu sync.Mutex

	// From VoiceStateUpdate
	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	// From VoiceServerUpdate
	hasVoiceServer bool
	token          string
	endpoint       string
}

// setVoiceState stores voice state data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceState(channelID *snowflake.ID, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceState = true
	b.channelID = channelID
	b.sessionID = sessionID

	return b.hasVoiceState && b.hasVoiceServer
}

// setVoiceServer stores voice server data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceServer(token, endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceServer = true
	b.token = token
	b.endpoint = endpoint

	return b.hasVoiceState && b.hasVoiceServer
}

// getData returns the buffered data and resets the buffer.
func (b *voiceEventBuffer) getData() (channelID *snowflake.ID, sessionID, token, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channelID = b.channelID
	sessionID = b.sessionID
	token = b.token
	endpoint = b.endpoint

	b.hasVoiceState = false
	b.hasVoiceServer = false
	b.channelID = nil
	b.sessionID = ""
	b.token = ""
	b.endpoint = ""

	return
}

// JoinChannel connects to a voice channel. It waits for both VoiceStateUpdate
// and VoiceServerUpdate events before returning.
func (c *LavalinkAdapter) JoinChannel(ctx context.Context, guildID, channelID snowflake.ID) error {
	pending := &pendingVoiceConnection{
		ready: make(chan struct{}),
	}

	c.pendingMu.Lock()
	c.pending[guildID] = pending
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, guildID)
		c.pendingMu.Unlock()
	}()

	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, false)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	// Wait for voice connection to be established (both events received)
	select {
	case <-pending.ready:
		c.setVoiceChannel(guildID, channelID)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-time.After(voiceConnectionTimeout):
		return fmt.Errorf("timeout waiting for voice connection")
	}
}

// LeaveChannel disconnects from the voice channel and destroys the guild's
// player.
func (c *LavalinkAdapter) LeaveChannel(ctx context.Context, guildID snowflake.ID) error {
	c.clearGuildState(guildID)

	player := c.link.ExistingPlayer(guildID)
	if player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}

	err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	buffer := c.getOrCreateVoiceBuffer(guildID)

	if buffer.setVoiceServer(event.Token, event.Endpoint) {
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	// Signal that we received the voice server update (for JoinChannel waiting)
	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(false)
	}
}

// OnVoiceStateUpdate handles Discord voice state updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	// Only handle updates for the bot itself
	if event.UserID != c.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	sessionID := event.SessionID

	// Parse the channel ID - if empty, the bot is disconnecting
	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	// Disconnect needs no VoiceServerUpdate counterpart. The session
	// teardown publication covers both user-initiated leaves and kicks;
	// the coordinator's teardown path is idempotent either way.
	if channelID == nil {
		c.link.OnVoiceStateUpdate(context.Background(), guildID, nil, sessionID)
		c.clearVoiceBuffer(guildID)
		c.clearGuildState(guildID)
		c.publisher.PublishVoiceClosed(ports.VoiceClosedEvent{GuildID: guildID})
		return
	}

	// Moves (by an admin, say) land here too; keep the tracked channel
	// current so reconnects target the right place.
	c.setVoiceChannel(guildID, *channelID)

	buffer := c.getOrCreateVoiceBuffer(guildID)

	if buffer.setVoiceState(channelID, sessionID) {
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	// Signal that we received the voice state update (for JoinChannel waiting)
	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(true)
	}
}

// onWebSocketClosed fires when Discord drops the guild's voice websocket.
// The adapter retries the join itself; only after the retries are exhausted
// does the session learn that its output is gone.
func (c *LavalinkAdapter) onWebSocketClosed(
	player disgolink.Player,
	event lavalink.WebSocketClosedEvent,
) {
	guildID := player.GuildID()
	slog.Warn("voice websocket closed",
		"guild", guildID,
		"code", event.Code,
		"byRemote", event.ByRemote,
	)

	channelID, ok := c.voiceChannel(guildID)
	if !ok {
		// Nothing to reconnect to; the disconnect path already ran.
		return
	}

	go c.retryVoiceConnect(guildID, channelID)
}

// retryVoiceConnect attempts to re-establish a dropped voice connection with
// doubling delays. On exhaustion it publishes voice loss so the session is
// torn down rather than left half-alive.
func (c *LavalinkAdapter) retryVoiceConnect(guildID, channelID snowflake.ID) {
	delay := voiceReconnectBaseDelay

	for attempt := 1; attempt <= voiceReconnectAttempts; attempt++ {
		time.Sleep(delay)
		delay *= 2

		// Abandoned by a leave or kick while we were waiting.
		if _, ok := c.voiceChannel(guildID); !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), voiceConnectionTimeout)
		err := c.JoinChannel(ctx, guildID, channelID)
		cancel()
		if err == nil {
			slog.Info("voice connection re-established",
				"guild", guildID,
				"attempt", attempt,
			)
			return
		}

		slog.Warn("voice reconnect attempt failed",
			"guild", guildID,
			"attempt", attempt,
			"error", err,
		)
	}

	slog.Error("voice reconnect attempts exhausted", "guild", guildID)
	c.clearGuildState(guildID)
	c.publisher.PublishVoiceClosed(ports.VoiceClosedEvent{GuildID: guildID})
}

func (c *LavalinkAdapter) setVoiceChannel(guildID, channelID snowflake.ID) {
	c.guildMu.Lock()
	defer c.guildMu.Unlock()
	c.voiceChannels[guildID] = channelID
}

func (c *LavalinkAdapter) voiceChannel(guildID snowflake.ID) (snowflake.ID, bool) {
	c.guildMu.Lock()
	defer c.guildMu.Unlock()
	channelID, ok := c.voiceChannels[guildID]
	return channelID, ok
}

// clearGuildState drops the tracked voice channel and the loop flag for a
// guild that is no longer connected.
func (c *LavalinkAdapter) clearGuildState(guildID snowflake.ID) {
	c.guildMu.Lock()
	defer c.guildMu.Unlock()
	delete(c.voiceChannels, guildID)
	delete(c.looping, guildID)
}

// getOrCreateVoiceBuffer returns the voice buffer for a guild, creating one if needed.
func (c *LavalinkAdapter) getOrCreateVoiceBuffer(guildID snowflake.ID) *voiceEventBuffer {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()

	buffer, exists := c.voiceBuffers[guildID]
	if !exists {
		buffer = &voiceEventBuffer{}
		c.voiceBuffers[guildID] = buffer
	}
	return buffer
}

// clearVoiceBuffer removes the voice buffer for a guild.
func (c *LavalinkAdapter) clearVoiceBuffer(guildID snowflake.ID) {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()
	delete(c.voiceBuffers, guildID)
}

// forwardBufferedVoiceEvents sends the buffered voice events to Lavalink.
func (c *LavalinkAdapter) forwardBufferedVoiceEvents(
	guildID snowflake.ID,
	buffer *voiceEventBuffer,
) {
	channelID, sessionID, token, endpoint := buffer.getData()

	slog.Debug("forwarding buffered voice events to Lavalink",
		"guild", guildID,
		"channel", channelID,
		"hasSessionID", sessionID != "",
	)

	// Forward to Lavalink in the correct order
	c.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
	c.link.OnVoiceServerUpdate(context.Background(), guildID, token, endpoint)
}
