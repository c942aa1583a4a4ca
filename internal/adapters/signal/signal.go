package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Options tunes every signaling connection.
type Options struct {
	ReadLimit        int64
	PingPeriod       time.Duration
	SendBuffer       int
	MessagesPerSec   float64
	Burst            int
	AnnounceLimit    int
	AnnounceInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:        64 << 10,
		PingPeriod:       54 * time.Second,
		SendBuffer:       64,
		MessagesPerSec:   50,
		Burst:            100,
		AnnounceLimit:    5,
		AnnounceInterval: 10 * time.Second,
	}
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	opts Options

	announces *RoomRateLimiter
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:      o,
		opts:      opts,
		announces: NewRoomRateLimiter(opts.AnnounceLimit, opts.AnnounceInterval),
	}
}

type WsSignalConn struct {
	id      core.ConnID
	conn    *websocket.Conn
	send    chan core.Frame
	limiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
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
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	id := core.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("client", c.GetString("client_token")).Str("remote", c.ClientIP()).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsSignalConn{
		id:      id,
		conn:    ws,
		send:    make(chan core.Frame, ctl.opts.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(ctl.opts.MessagesPerSec), ctl.opts.Burst),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(id, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
}

// RunJanitor periodically drops stale announce history until ctx ends.
func (ctl *SignalWSController) RunJanitor(ctx context.Context) {
	interval := ctl.opts.AnnounceInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ctl.announces.Forget(); n > 0 {
				log.Debug().Str("module", "signal").Int("forgotten", n).Msg("announce history trimmed")
			}
		}
	}
}
