package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/domain"
)

// Join adds user to the room, creating it with user as host on first
// join, and announces USER_JOINED.
func (o *Orchestrator) Join(ctx context.Context, roomID domain.RoomID, user domain.UserID) (*domain.Room, error) {
	room, err := o.Rooms.Join(ctx, roomID, user)
	if err != nil {
		return nil, err
	}
	isHost := app.IsHost(room, user)
	o.Publisher.Publish(domain.RoomChannel(roomID), domain.NewUserJoined(roomID, user, isHost))
	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("user", string(user)).Bool("host", isHost).Msg("joined")
	return room, nil
}

// Leave removes user from the room and announces USER_LEFT, also for
// rooms the registry does not know.
func (o *Orchestrator) Leave(ctx context.Context, roomID domain.RoomID, user domain.UserID) error {
	_, err := o.Rooms.RemoveParticipant(ctx, roomID, user)
	switch {
	case errors.Is(err, app.ErrRoomNotFound):
		log.Debug().Str("module", "orch").Str("room", string(roomID)).Str("user", string(user)).Msg("leave from unknown room")
	case err != nil:
		return err
	}
	o.Publisher.Publish(domain.RoomChannel(roomID), domain.NewUserLeft(roomID, user))
	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("user", string(user)).Msg("left")
	return nil
}

// Disconnect walks a closed connection out of every room it had joined.
func (o *Orchestrator) Disconnect(ctx context.Context, user domain.UserID, rooms []domain.RoomID) {
	for _, roomID := range rooms {
		if err := o.Leave(ctx, roomID, user); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Str("user", string(user)).Msg("leave on disconnect")
		}
	}
}
