package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/qing-wang/WebRTC-SS/internal/app"
	"github.com/qing-wang/WebRTC-SS/internal/config"
	"github.com/qing-wang/WebRTC-SS/internal/core"
)

// pongWait bounds how long a silent peer stays considered alive. Pings go
// out on cfg.PingPeriod, which must be shorter.
const (
	writeWait = 5 * time.Second
	pongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller upgrades HTTP requests to signaling connections and feeds
// the engine through its lifecycle hooks.
type Controller struct {
	Engine *app.Engine
	Cfg    *config.Config
}

func NewController(engine *app.Engine, cfg *config.Config) *Controller {
	return &Controller{Engine: engine, Cfg: cfg}
}

// Handle upgrades the request and starts the connection's pumps. The
// session id is unique per socket; the client token only tags logs.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "ws").Str("sid", string(sid)).Str("client_token", c.GetString("client_token")).Msg("new WS connection")

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}

	conn := newWSConn(sid, socket)
	ctl.Engine.OnConnectionOpened(conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, conn)
}

func (ctl *Controller) writePump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		// Dropping the socket here unblocks the read pump, which then
		// reports the close to the engine.
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "ws").Str("sid", string(c.id)).Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "ws").Str("sid", string(c.id)).Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "ws").Str("sid", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer func() {
		cancel()
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "ws").Str("sid", string(c.id)).Msg("readPump ctx done")
			ctl.Engine.OnConnectionClosed(c, ctx.Err())
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "ws").Str("sid", string(c.id)).Msg("readPump read error")
				ctl.Engine.OnConnectionClosed(c, err)
				return
			}
			ctl.Engine.OnTextFrame(c, data)
		}
	}
}
