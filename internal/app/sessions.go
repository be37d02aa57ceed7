package app

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

type sessionEntry struct {
	User  domain.UserID
	Rooms map[domain.RoomID]struct{}
}

// SessionRegistry tracks live signaling connections and the rooms each
// one has joined, so a dropped socket can be walked out of its rooms.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

func (r *SessionRegistry) Bind(sid core.SessionID, user domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		User:  user,
		Rooms: make(map[domain.RoomID]struct{}),
	}
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("user", string(user)).Msg("bound session")
}

func (r *SessionRegistry) MarkJoined(sid core.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Rooms[room] = struct{}{}
	return true
}

func (r *SessionRegistry) MarkLeft(sid core.SessionID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(e.Rooms, room)
	}
}

func (r *SessionRegistry) InRoom(sid core.SessionID, room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	_, in := e.Rooms[room]
	return in
}

// OtherSessionInRoom reports whether user is in room through a session
// other than except.
func (r *SessionRegistry) OtherSessionInRoom(user domain.UserID, room domain.RoomID, except core.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sid, e := range r.sessions {
		if sid == except || e.User != user {
			continue
		}
		if _, in := e.Rooms[room]; in {
			return true
		}
	}
	return false
}

// HasUser reports whether any live session belongs to user.
func (r *SessionRegistry) HasUser(user domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sessions {
		if e.User == user {
			return true
		}
	}
	return false
}

func (r *SessionRegistry) RoomsOf(sid core.SessionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	out := make([]domain.RoomID, 0, len(e.Rooms))
	for id := range e.Rooms {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Unbind forgets the session and returns the rooms it still had joined.
func (r *SessionRegistry) Unbind(sid core.SessionID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	delete(r.sessions, sid)
	rooms := make([]domain.RoomID, 0, len(e.Rooms))
	for id := range e.Rooms {
		rooms = append(rooms, id)
	}
	slices.Sort(rooms)
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("unbind session")
	return rooms
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
