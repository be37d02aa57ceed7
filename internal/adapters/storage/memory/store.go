// Package memory keeps rooms and chat in process memory. It honours the
// same conditional-write contract as the postgres driver.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*domain.Room
	chat   map[domain.RoomID][]domain.ChatMessage
	nextID int64
	now    func() time.Time
}

var _ core.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		rooms: make(map[domain.RoomID]*domain.Room),
		chat:  make(map[domain.RoomID][]domain.ChatMessage),
		now:   time.Now,
	}
}

// WithClock replaces the timestamp source; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) FindRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, core.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *Store) ExistsRoom(_ context.Context, id domain.RoomID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[id]
	return ok, nil
}

func (s *Store) SaveRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rooms[room.ID]
	switch {
	case !ok && room.Version != 0:
		return fmt.Errorf("room %s vanished: %w", room.ID, core.ErrConflict)
	case ok && cur.Version != room.Version:
		return fmt.Errorf("room %s at v%d, have v%d: %w", room.ID, cur.Version, room.Version, core.ErrConflict)
	}
	room.Version++
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *Store) ListActiveRooms(_ context.Context) ([]*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		if r.Active {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) SaveChatMessage(_ context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, content string) (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := domain.ChatMessage{
		ID:         s.nextID,
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Kind:       domain.ChatKindText,
		Timestamp:  s.now(),
	}
	s.chat[roomID] = append(s.chat[roomID], msg)
	return msg, nil
}

func (s *Store) LoadRecentChat(_ context.Context, roomID domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.chat[roomID]
	start := max(len(all)-limit, 0)
	return slices.Clone(all[start:]), nil
}

func (s *Store) Close() {}
