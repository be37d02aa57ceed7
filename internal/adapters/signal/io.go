package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case <-ticker.C:
			deadline := time.Now().Add(ctl.Opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, user domain.UserID, c *WsSignalConn) {
	pongWait := ctl.Opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		ctl.handleSignal(ctx, sid, user, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, user domain.UserID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "", codeBadPayload)
		return
	}

	switch env.Type {
	case "ping":
		ctl.handlePing(c)
		return
	case "whoami":
		ctl.handleWhoAmI(sid, user, c)
		return
	}

	msg, err := domain.DecodeSignalingMessage(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("bad signaling message")
		ctl.sendError(c, env.Type, errorCode(err))
		return
	}
	// The connection identity is authoritative, whatever the client claims.
	msg.UserID = user

	switch msg.Type {
	case domain.TypeJoinRoom:
		ctl.handleJoin(ctx, sid, c, msg)
	case domain.TypeLeaveRoom:
		ctl.handleLeave(ctx, sid, c, msg)
	case domain.TypeChatMessage:
		if ctl.Limiter != nil && !ctl.Limiter.Allow(user) {
			ctl.sendError(c, msg.Type.String(), codeRateLimited)
			return
		}
		ctl.dispatch(ctx, c, msg)
	default:
		ctl.dispatch(ctx, c, msg)
	}
}

func (ctl *SignalWSController) dispatch(ctx context.Context, c *WsSignalConn, msg domain.SignalingMessage) {
	err := ctl.Orch.Dispatch(ctx, msg)
	if err == nil {
		return
	}
	if errors.Is(err, orch.ErrNotModerator) && !ctl.Opts.ReportRejections {
		return
	}
	ctl.sendError(c, msg.Type.String(), errorCode(err))
}

const (
	codeBadPayload     = "bad_payload"
	codeUnknownType    = "unknown_type"
	codeInvalidMessage = "invalid_message"
	codeNotModerator   = "not_moderator"
	codeReservedType   = "reserved_type"
	codeRoomInactive   = "room_inactive"
	codeRateLimited    = "rate_limited"
	codeInternal       = "internal"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownMessageType):
		return codeUnknownType
	case errors.Is(err, domain.ErrMalformedPayload):
		return codeBadPayload
	case errors.Is(err, orch.ErrInvalidMessage), errors.Is(err, app.ErrRoomIDEmpty):
		return codeInvalidMessage
	case errors.Is(err, orch.ErrNotModerator):
		return codeNotModerator
	case errors.Is(err, orch.ErrReservedType):
		return codeReservedType
	case errors.Is(err, app.ErrRoomInactive):
		return codeRoomInactive
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return codeBadPayload
	}
	return codeInternal
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Ref   string `json:"ref,omitempty"`
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, ref, code string) {
	ctl.sendJSON(c, errorFrame{Type: "error", Error: code, Ref: ref})
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(bytes.TrimRight(buf.Bytes(), "\n"))
}
