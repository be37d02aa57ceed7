package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

type roomStateFrame struct {
	Type string       `json:"type"`
	Room *domain.Room `json:"room"`
}

type chatHistoryFrame struct {
	Type     string               `json:"type"`
	RoomID   domain.RoomID        `json:"roomId"`
	Messages []domain.ChatMessage `json:"messages"`
}

// handleJoin subscribes the connection before dispatching, so the joiner
// receives its own USER_JOINED, then sends it the room state and recent chat.
func (ctl *SignalWSController) handleJoin(ctx context.Context, sid core.SessionID, conn *WsSignalConn, msg domain.SignalingMessage) {
	channel := domain.RoomChannel(msg.RoomID)
	wasIn := ctl.Sessions.InRoom(sid, msg.RoomID)
	ctl.PubSub.Subscribe(channel, sid, conn)

	room, err := ctl.Orch.Join(ctx, msg.RoomID, msg.UserID)
	if err != nil {
		if !wasIn {
			ctl.PubSub.Unsubscribe(channel, sid)
		}
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", string(msg.RoomID)).Msg("join failed")
		ctl.sendError(conn, msg.Type.String(), errorCode(err))
		return
	}
	ctl.Sessions.MarkJoined(sid, msg.RoomID)
	ctl.sendJSON(conn, roomStateFrame{Type: "room_state", Room: room})
	ctl.sendChatHistory(ctx, conn, msg.RoomID)
}

func (ctl *SignalWSController) handleLeave(ctx context.Context, sid core.SessionID, conn *WsSignalConn, msg domain.SignalingMessage) {
	err := ctl.Orch.Leave(ctx, msg.RoomID, msg.UserID)
	ctl.PubSub.Unsubscribe(domain.RoomChannel(msg.RoomID), sid)
	ctl.Sessions.MarkLeft(sid, msg.RoomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", string(msg.RoomID)).Msg("leave failed")
		ctl.sendError(conn, msg.Type.String(), errorCode(err))
	}
}

func (ctl *SignalWSController) sendChatHistory(ctx context.Context, conn core.SignalConnection, roomID domain.RoomID) {
	if ctl.Opts.HistoryLimit <= 0 || ctl.Chat == nil {
		return
	}
	msgs, err := ctl.Chat.LoadRecentChat(ctx, roomID, ctl.Opts.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("load chat history")
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	ctl.sendJSON(conn, chatHistoryFrame{Type: "chat_history", RoomID: roomID, Messages: msgs})
}
