package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom_HostIsModerator(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRoom("r1", "", "alice", now)

	assert.Equal(t, "r1", r.Name, "empty name falls back to id")
	assert.Equal(t, UserID("alice"), r.HostID)
	assert.True(t, r.Moderators.Has("alice"))
	assert.Equal(t, 0, r.Participants.Len())
	assert.True(t, r.Active)
	assert.Equal(t, now, r.CreatedAt)
	assert.Zero(t, r.Version)
}

func TestRoom_RemoveModeratorKeepsHost(t *testing.T) {
	r := NewRoom("r1", "standup", "alice", time.Now())
	r.AddModerator("bob")

	for range 3 {
		assert.False(t, r.RemoveModerator("alice"))
	}
	assert.True(t, r.Moderators.Has("alice"))

	assert.True(t, r.RemoveModerator("bob"))
	assert.False(t, r.RemoveModerator("bob"))
	assert.Equal(t, []UserID{"alice"}, r.Moderators.Sorted())
}

func TestRoom_ParticipantsIdempotent(t *testing.T) {
	r := NewRoom("r1", "", "alice", time.Now())

	assert.True(t, r.AddParticipant("bob"))
	assert.False(t, r.AddParticipant("bob"))
	assert.True(t, r.RemoveParticipant("bob"))
	assert.False(t, r.RemoveParticipant("bob"))
	assert.True(t, r.Active, "empty room stays active")
}

func TestRoom_Deactivate(t *testing.T) {
	r := NewRoom("r1", "", "alice", time.Now())
	assert.True(t, r.Deactivate())
	assert.False(t, r.Deactivate())
	assert.False(t, r.Active)
}

func TestRoom_CloneIsDeep(t *testing.T) {
	r := NewRoom("r1", "", "alice", time.Now())
	r.AddParticipant("alice")

	c := r.Clone()
	c.AddParticipant("bob")
	c.AddModerator("bob")

	assert.False(t, r.Participants.Has("bob"))
	assert.False(t, r.Moderators.Has("bob"))
	assert.Nil(t, (*Room)(nil).Clone())
}

func TestRoom_EnsureHostModerator(t *testing.T) {
	r := &Room{ID: "r1", HostID: "alice"}
	r.EnsureHostModerator()

	require.NotNil(t, r.Participants)
	assert.True(t, r.Moderators.Has("alice"))
}

func TestUserSet_JSONSorted(t *testing.T) {
	s := NewUserSet("carol", "alice", "bob")

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["alice","bob","carol"]`, string(b))

	var back UserSet
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, s, back)
}

func TestRoomChannel(t *testing.T) {
	assert.Equal(t, "/topic/room/r1", RoomChannel("r1"))
}

func TestUserID_Validate(t *testing.T) {
	assert.ErrorIs(t, UserID("").Validate(), ErrUserIDEmpty)
	long := make([]byte, MaxUserIDLen+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, UserID(long).Validate(), ErrUserIDTooLong)
	assert.NoError(t, NewUserID().Validate())
}
