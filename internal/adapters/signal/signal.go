package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// ContextUserKey is the gin context key the identity middleware stores
// the authenticated user id under.
const ContextUserKey = "user_id"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	ReadLimit        int64
	PingPeriod       time.Duration
	WriteTimeout     time.Duration
	SendBuffer       int
	HistoryLimit     int
	ReportRejections bool
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Sessions *app.SessionRegistry
	PubSub   *app.PubSub
	Chat     core.ChatStore
	Limiter  *ChatRateLimiter
	Opts     Options
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades a gin request whose identity middleware already ran.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	user := domain.UserID(c.GetString(ContextUserKey))
	if err := user.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	ctl.ServeWS(ctx, c.Writer, c.Request, user)
}

// ServeWS runs one signaling connection for an authenticated user. It
// returns once the pumps are started.
func (ctl *SignalWSController) ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request, user domain.UserID) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Opts.ReadLimit)

	sid := core.SessionID(uuid.NewString())
	conn := newWsSignalConn(ws, ctl.Opts.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Sessions.Bind(sid, user)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(user)).Msg("new WS connection")

	var wg conc.WaitGroup
	wg.Go(func() { ctl.writePump(ctx, sid, conn) })
	wg.Go(func() {
		defer cancel()
		ctl.readPump(ctx, sid, user, conn)
	})
	go func() {
		if p := wg.WaitAndRecover(); p != nil {
			log.Error().Str("module", "signal").Str("sid", string(sid)).Str("panic", p.String()).Msg("signal pump panicked")
		}
		cancel()
		ctl.cleanup(sid, user, conn)
	}()
}

// cleanup walks a closed connection out of its rooms.
func (ctl *SignalWSController) cleanup(sid core.SessionID, user domain.UserID, conn *WsSignalConn) {
	conn.Close()
	ctl.PubSub.UnsubscribeAll(sid)
	joined := ctl.Sessions.Unbind(sid)

	rooms := make([]domain.RoomID, 0, len(joined))
	for _, room := range joined {
		if !ctl.Sessions.OtherSessionInRoom(user, room, sid) {
			rooms = append(rooms, room)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), ctl.Opts.WriteTimeout)
	defer cancel()
	ctl.Orch.Disconnect(ctx, user, rooms)

	if ctl.Limiter != nil && !ctl.Sessions.HasUser(user) {
		ctl.Limiter.Forget(user)
	}
	log.Info().Str("module", "signal").
		Str("sid", string(sid)).
		Int("rooms_left", len(rooms)).
		Int("live_sessions", ctl.Sessions.Count()).
		Msg("connection closed")
}
