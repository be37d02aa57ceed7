// Package orch is the signaling router: it interprets inbound control
// messages, mutates the room registry and decides what to broadcast.
package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrNotModerator   = errors.New("sender is not a moderator")
	ErrReservedType   = errors.New("message type is server-only")
)

// ChatPolicy decides what happens to a chat message whose persistence failed.
type ChatPolicy int

const (
	// BlockRelay drops the broadcast and returns the storage error.
	BlockRelay ChatPolicy = iota
	// BestEffortRelay logs the storage error and relays anyway.
	BestEffortRelay
)

type Orchestrator struct {
	Rooms      *app.RoomRegistry
	Chat       core.ChatStore
	Publisher  core.Publisher
	ChatPolicy ChatPolicy
}

// Dispatch handles one inbound message. Every message is an independent
// unit of work; callers may dispatch concurrently.
func (o *Orchestrator) Dispatch(ctx context.Context, msg domain.SignalingMessage) error {
	if msg.RoomID == "" || msg.UserID == "" {
		return ErrInvalidMessage
	}
	switch msg.Type {
	case domain.TypeJoinRoom:
		_, err := o.Join(ctx, msg.RoomID, msg.UserID)
		return err
	case domain.TypeLeaveRoom:
		return o.Leave(ctx, msg.RoomID, msg.UserID)
	case domain.TypeChatMessage:
		return o.ChatMessage(ctx, msg)
	case domain.TypeHostAction:
		return o.HostAction(ctx, msg)
	case domain.TypeUserJoined, domain.TypeUserLeft:
		return ErrReservedType
	case domain.TypeUnknown:
		return domain.ErrUnknownMessageType
	default:
		o.relay(msg)
		return nil
	}
}

// relay forwards msg to its room untouched.
func (o *Orchestrator) relay(msg domain.SignalingMessage) {
	o.Publisher.Publish(domain.RoomChannel(msg.RoomID), msg)
	log.Debug().Str("module", "orch").
		Str("type", msg.Type.String()).
		Str("room", string(msg.RoomID)).
		Str("user", string(msg.UserID)).
		Msg("relayed")
}
