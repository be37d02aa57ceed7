package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// openTestStore connects to HUDDLE_TEST_POSTGRES_DSN or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("HUDDLE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HUDDLE_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	s := New(pool)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestStore_RoomRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := domain.RoomID(uuid.NewString())

	room := domain.NewRoom(id, "planning", "alice", time.Now().UTC().Truncate(time.Microsecond))
	room.AddParticipant("alice")
	require.NoError(t, s.SaveRoom(ctx, room))
	assert.EqualValues(t, 1, room.Version)

	got, err := s.FindRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "planning", got.Name)
	assert.Equal(t, domain.UserID("alice"), got.HostID)
	assert.True(t, got.Moderators.Has("alice"))
	assert.True(t, got.Participants.Has("alice"))
	assert.True(t, got.CreatedAt.Equal(room.CreatedAt))

	ok, err := s.ExistsRoom(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.FindRoom(ctx, domain.RoomID(uuid.NewString()))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_ConditionalWrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := domain.RoomID(uuid.NewString())

	require.NoError(t, s.SaveRoom(ctx, domain.NewRoom(id, "", "alice", time.Now())))
	assert.ErrorIs(t, s.SaveRoom(ctx, domain.NewRoom(id, "", "bob", time.Now())), core.ErrConflict)

	a, err := s.FindRoom(ctx, id)
	require.NoError(t, err)
	b, err := s.FindRoom(ctx, id)
	require.NoError(t, err)

	a.AddParticipant("alice")
	require.NoError(t, s.SaveRoom(ctx, a))
	b.AddParticipant("bob")
	assert.ErrorIs(t, s.SaveRoom(ctx, b), core.ErrConflict)

	a.Deactivate()
	require.NoError(t, s.SaveRoom(ctx, a))
	active, err := s.ListActiveRooms(ctx)
	require.NoError(t, err)
	for _, r := range active {
		assert.NotEqual(t, id, r.ID)
	}
}

func TestStore_ChatHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	room := domain.RoomID(uuid.NewString())

	for _, content := range []string{"one", "two", "three"} {
		msg, err := s.SaveChatMessage(ctx, room, "alice", "Alice", content)
		require.NoError(t, err)
		assert.NotZero(t, msg.ID)
		assert.Equal(t, domain.ChatKindText, msg.Kind)
	}

	recent, err := s.LoadRecentChat(ctx, room, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Content)
	assert.Equal(t, "three", recent[1].Content)
	assert.Equal(t, room, recent[0].RoomID)
}
