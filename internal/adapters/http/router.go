package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/config"
)

type Deps struct {
	Rooms  *app.RoomRegistry
	Signal *signal.SignalWSController
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(IdentityMiddleware(cfg.Auth))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/me", handleMe)

	rooms := &roomHandlers{rooms: deps.Rooms}
	api.GET("/rooms", rooms.list)
	api.POST("/rooms", rooms.create)
	api.GET("/rooms/:id", rooms.get)
	api.DELETE("/rooms/:id", rooms.deactivate)
	api.POST("/rooms/:id/moderators", rooms.addModerator)
	api.DELETE("/rooms/:id/moderators/:userId", rooms.removeModerator)

	api.GET("/rtc/config", rtcConfigHandler(cfg.RTC))

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("user", c.GetString(signal.ContextUserKey)).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	return r
}
