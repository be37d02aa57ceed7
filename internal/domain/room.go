package domain

import "time"

type RoomID string

const channelPrefix = "/topic/room/"

// RoomChannel is the broadcast channel key every subscriber of a room listens on.
func RoomChannel(id RoomID) string {
	return channelPrefix + string(id)
}

// Room is a conferencing session. HostID is always a member of Moderators.
type Room struct {
	ID                 RoomID    `json:"roomId"`
	Name               string    `json:"name"`
	HostID             UserID    `json:"hostId"`
	Participants       UserSet   `json:"participants"`
	Moderators         UserSet   `json:"moderators"`
	Active             bool      `json:"active"`
	WaitingRoomEnabled bool      `json:"waitingRoomEnabled"`
	RecordingEnabled   bool      `json:"recordingEnabled"`
	CreatedAt          time.Time `json:"createdAt"`

	// Version is the storage revision the room was loaded at; 0 means never stored.
	Version int64 `json:"-"`
}

// NewRoom builds an active room whose host is its first moderator.
func NewRoom(id RoomID, name string, host UserID, now time.Time) *Room {
	if name == "" {
		name = string(id)
	}
	return &Room{
		ID:           id,
		Name:         name,
		HostID:       host,
		Participants: NewUserSet(),
		Moderators:   NewUserSet(host),
		Active:       true,
		CreatedAt:    now,
	}
}

func (r *Room) AddParticipant(id UserID) bool    { return r.Participants.Add(id) }
func (r *Room) RemoveParticipant(id UserID) bool { return r.Participants.Remove(id) }
func (r *Room) AddModerator(id UserID) bool      { return r.Moderators.Add(id) }

// RemoveModerator never demotes the host.
func (r *Room) RemoveModerator(id UserID) bool {
	if id == r.HostID {
		return false
	}
	return r.Moderators.Remove(id)
}

// Deactivate reports whether the room was active before the call.
func (r *Room) Deactivate() bool {
	if !r.Active {
		return false
	}
	r.Active = false
	return true
}

// EnsureHostModerator restores HostID ∈ Moderators on records loaded from storage.
func (r *Room) EnsureHostModerator() {
	if r.Moderators == nil {
		r.Moderators = NewUserSet()
	}
	if r.Participants == nil {
		r.Participants = NewUserSet()
	}
	r.Moderators.Add(r.HostID)
}

func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Participants = r.Participants.Clone()
	c.Moderators = r.Moderators.Clone()
	return &c
}
