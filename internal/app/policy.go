package app

import (
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// IsHost reports whether user created (or first joined) the room.
func IsHost(room *domain.Room, user domain.UserID) bool {
	return room != nil && user != "" && room.HostID == user
}

// IsModerator reports whether user may issue host actions in the room.
func IsModerator(room *domain.Room, user domain.UserID) bool {
	return room != nil && room.Moderators.Has(user)
}

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a subscriber whose send buffer is full.
type Policy interface {
	OnBackPressure(channel string, sid core.SessionID) BackpressureAction
}

// SimplePolicy disconnects slow subscribers.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(string, core.SessionID) BackpressureAction {
	return KickMember
}

// LenientPolicy only drops the frame.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(string, core.SessionID) BackpressureAction {
	return DropFrame
}
