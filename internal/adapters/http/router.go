// Package http serves the room pages and the JSON room API consumed by
// them, and mounts the websocket signaling endpoint.
package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qing-wang/WebRTC-SS/internal/adapters/ws"
	"github.com/qing-wang/WebRTC-SS/internal/app"
	"github.com/qing-wang/WebRTC-SS/internal/config"
)

// ClientTokenMiddleware tags every visitor with a stable token so page
// requests and the websocket upgrade can be correlated in logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, engine *app.Engine) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SignalSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	rooms := NewRoomAPI(engine.Registry(), cfg)
	wsCtl := ws.NewController(engine, cfg)

	api := r.Group("/api")

	api.POST("/rooms", rooms.CreateRoom)
	api.GET("/rooms", rooms.ListRooms)
	api.GET("/rooms/random", rooms.RandomRoomID)
	api.GET("/rooms/:sid", rooms.FindRoom)
	api.GET("/webrtc/config", rooms.WebRTCConfig)

	api.GET("/ws/signal", func(c *gin.Context) {
		wsCtl.Handle(ctx, c)
	})

	return r
}
