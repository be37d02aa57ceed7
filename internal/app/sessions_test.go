package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/huddle/internal/domain"
)

func TestSessionRegistry_Lifecycle(t *testing.T) {
	reg := NewSessionRegistry()

	reg.Bind("s1", "alice")
	assert.Equal(t, 1, reg.Count())
	assert.True(t, reg.HasUser("alice"))

	assert.True(t, reg.MarkJoined("s1", "r2"))
	assert.True(t, reg.MarkJoined("s1", "r1"))
	assert.False(t, reg.MarkJoined("missing", "r1"))
	assert.True(t, reg.InRoom("s1", "r1"))
	assert.Equal(t, []domain.RoomID{"r1", "r2"}, reg.RoomsOf("s1"))

	reg.MarkLeft("s1", "r2")
	assert.False(t, reg.InRoom("s1", "r2"))

	assert.Equal(t, []domain.RoomID{"r1"}, reg.Unbind("s1"))
	assert.Nil(t, reg.Unbind("s1"))
	assert.Equal(t, 0, reg.Count())
	assert.False(t, reg.HasUser("alice"))
}

func TestSessionRegistry_SameUserTwoSessions(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Bind("tab1", "alice")
	reg.Bind("tab2", "alice")
	reg.Bind("other", "bob")
	reg.MarkJoined("tab1", "r1")
	reg.MarkJoined("tab2", "r1")
	reg.MarkJoined("other", "r2")

	assert.True(t, reg.OtherSessionInRoom("alice", "r1", "tab1"))
	assert.False(t, reg.OtherSessionInRoom("alice", "r2", "tab1"))
	assert.False(t, reg.OtherSessionInRoom("bob", "r2", "other"))

	reg.Unbind("tab2")
	assert.False(t, reg.OtherSessionInRoom("alice", "r1", "tab1"))
	assert.True(t, reg.HasUser("alice"))
}
