package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/domain"
)

// ChatMessage persists the chat line and relays the message unchanged.
// Malformed payloads are neither stored nor relayed.
func (o *Orchestrator) ChatMessage(ctx context.Context, msg domain.SignalingMessage) error {
	p, err := msg.ChatPayload()
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(msg.RoomID)).Str("user", string(msg.UserID)).Msg("chat rejected")
		return err
	}
	if _, err := o.Chat.SaveChatMessage(ctx, msg.RoomID, msg.UserID, p.SenderName, p.Content); err != nil {
		if o.ChatPolicy == BlockRelay {
			return fmt.Errorf("persist chat: %w", err)
		}
		log.Error().Err(err).Str("module", "orch").Str("room", string(msg.RoomID)).Msg("persist chat failed, relaying anyway")
	}
	o.relay(msg)
	return nil
}

// HostAction relays msg only when the sender moderates an existing room.
// Rejections publish nothing and return ErrNotModerator.
func (o *Orchestrator) HostAction(ctx context.Context, msg domain.SignalingMessage) error {
	room, err := o.Rooms.Lookup(ctx, msg.RoomID)
	if errors.Is(err, app.ErrRoomNotFound) {
		room = nil
	} else if err != nil {
		return err
	}
	if !app.IsModerator(room, msg.UserID) {
		log.Warn().Str("module", "orch").Str("room", string(msg.RoomID)).Str("user", string(msg.UserID)).Msg("host action rejected")
		return ErrNotModerator
	}
	if p, err := msg.Payload(); err == nil {
		if ha, ok := p.(domain.HostActionPayload); ok {
			log.Info().Str("module", "orch").Str("room", string(msg.RoomID)).Str("action", ha.Action).Str("target", string(ha.TargetUserID)).Msg("host action")
		}
	}
	o.relay(msg)
	return nil
}
