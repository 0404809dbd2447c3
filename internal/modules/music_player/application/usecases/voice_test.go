package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/disgoorg/snowflake/v2"
)

const (
	testUser    = snowflake.ID(200)
	testChannel = snowflake.ID(300)
)

func newVoiceFixture() (*VoiceService, *mockVoiceConnection, *mockVoiceStateProvider, *mockStore) {
	store := newMockStore()
	conn := &mockVoiceConnection{}
	voiceState := &mockVoiceStateProvider{channels: make(map[snowflake.ID]snowflake.ID)}
	playback := NewPlaybackService(store, &mockEngine{})
	return NewVoiceService(conn, voiceState, playback), conn, voiceState, store
}

func TestJoin_ExplicitChannel(t *testing.T) {
	svc, conn, _, _ := newVoiceFixture()

	out, err := svc.Join(context.Background(), JoinInput{
		GuildID:   testGuild,
		UserID:    testUser,
		ChannelID: testChannel,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ChannelID != testChannel {
		t.Errorf("expected channel %d, got %d", testChannel, out.ChannelID)
	}
	if len(conn.joined) != 1 || conn.joined[0] != testChannel {
		t.Errorf("unexpected joins: %v", conn.joined)
	}
}

func TestJoin_UsesRequestersChannel(t *testing.T) {
	svc, conn, voiceState, _ := newVoiceFixture()
	voiceState.channels[testUser] = testChannel

	out, err := svc.Join(context.Background(), JoinInput{
		GuildID: testGuild,
		UserID:  testUser,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ChannelID != testChannel {
		t.Errorf("expected channel %d, got %d", testChannel, out.ChannelID)
	}
	if len(conn.joined) != 1 {
		t.Errorf("expected 1 join, got %d", len(conn.joined))
	}
}

func TestJoin_UserNotInVoice(t *testing.T) {
	svc, conn, _, _ := newVoiceFixture()

	_, err := svc.Join(context.Background(), JoinInput{
		GuildID: testGuild,
		UserID:  testUser,
	})
	if !errors.Is(err, ErrUserNotInVoice) {
		t.Errorf("expected ErrUserNotInVoice, got %v", err)
	}
	if len(conn.joined) != 0 {
		t.Errorf("expected no joins, got %v", conn.joined)
	}
}

func TestLeave_TearsDownSession(t *testing.T) {
	svc, conn, _, store := newVoiceFixture()
	queueTracks(store, "a")

	if err := svc.Leave(context.Background(), testGuild); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(conn.left) != 1 || conn.left[0] != testGuild {
		t.Errorf("unexpected leaves: %v", conn.left)
	}
	// The session entry is gone; a later join starts from defaults
	if store.state(testGuild) != nil {
		t.Error("expected session evicted on leave")
	}
}
