package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/signage-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/signage-scheduler/internal/transport/http/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type RouterConfig struct {
	// JWTKey enables Bearer auth on mutating routes when non-empty.
	JWTKey []byte
	// AllowAllOrigins mirrors the legacy "Access-Control-Allow-Origin: *" behaviour.
	AllowAllOrigins bool
}

func NewRouter(logger *slog.Logger, cfg RouterConfig, scheduleHandler *handler.ScheduleHandler, playbackHandler *handler.PlaybackHandler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	if cfg.AllowAllOrigins {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodPatch,
				http.MethodDelete,
				http.MethodOptions,
			},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Request-ID"},
			ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		}))
	}
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.NoRoute(handler.MethodNotAllowed)
	r.NoMethod(handler.MethodNotAllowed)

	write := []gin.HandlerFunc{}
	if len(cfg.JWTKey) > 0 {
		write = append(write, middleware.Auth(cfg.JWTKey))
	}

	schedules := r.Group("/schedules")
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/:id", scheduleHandler.GetByID)

	mutating := schedules.Group("", write...)
	mutating.POST("", scheduleHandler.Create)
	mutating.PUT("/:id", scheduleHandler.Update)
	mutating.PATCH("/:id/toggle", scheduleHandler.Toggle)
	mutating.DELETE("/:id", scheduleHandler.Delete)
	mutating.POST("/:id/activations", scheduleHandler.RecordActivation)

	r.GET("/playback/active", playbackHandler.Active)

	return r
}
