package core

//go:generate mockgen -destination=mocks/mock_core.go -package=mocks github.com/dkeye/huddle/internal/core ChatStore,Publisher

import (
	"context"
	"errors"

	"github.com/dkeye/huddle/internal/domain"
)

var (
	// ErrNotFound is returned by stores when a room record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by RoomStore.SaveRoom when the stored version
	// moved on since the room was loaded (or a room with that id already exists).
	ErrConflict = errors.New("version conflict")
)

// RoomStore is the durable home of room records.
// SaveRoom writes conditionally on room.Version and bumps it on success.
type RoomStore interface {
	FindRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	ExistsRoom(ctx context.Context, id domain.RoomID) (bool, error)
	SaveRoom(ctx context.Context, room *domain.Room) error
	ListActiveRooms(ctx context.Context) ([]*domain.Room, error)
}

// ChatStore persists chat lines. LoadRecentChat returns at most limit
// messages, oldest first.
type ChatStore interface {
	SaveChatMessage(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, content string) (domain.ChatMessage, error)
	LoadRecentChat(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.ChatMessage, error)
}

// Store bundles both collaborators behind one lifecycle.
type Store interface {
	RoomStore
	ChatStore
	Close()
}

// Publisher hands one message to the transport for every subscriber of
// channel. It is fire-and-forget.
type Publisher interface {
	Publish(channel string, msg domain.SignalingMessage)
}
