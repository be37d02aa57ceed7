package signal

import (
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, user domain.UserID, conn core.SignalConnection) {
	resp := struct {
		Type   string          `json:"type"`
		UserID domain.UserID   `json:"userId"`
		Rooms  []domain.RoomID `json:"rooms"`
	}{
		Type:   "whoami",
		UserID: user,
		Rooms:  ctl.Sessions.RoomsOf(sid),
	}
	if resp.Rooms == nil {
		resp.Rooms = []domain.RoomID{}
	}
	ctl.sendJSON(conn, resp)
}
