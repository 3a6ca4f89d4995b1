package httpapi

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emirg23/multi-BotChat/internal/app"
	"github.com/emirg23/multi-BotChat/internal/common"
	"github.com/emirg23/multi-BotChat/internal/httpapi/handlers"
	"github.com/emirg23/multi-BotChat/internal/httpapi/middleware"
)

func NewRouter(a *app.App, queue handlers.SyncQueue) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(corsMiddleware(a.Cfg.CORSOrigins))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(a, queue)

	r.GET("/ping", h.Ping)

	// users register
	r.POST("/users", h.CreateUser)

	// auth
	r.POST("/login", h.Login)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(a.Cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Bots (JWT required)
	authGroup.GET("/bots", h.ListBots)
	authGroup.POST("/bots/prompts", h.CreatePrompt)
	authGroup.DELETE("/bots/:family", h.DeleteVariant)

	// Chats
	authGroup.GET("/chats", h.ListChats)
	authGroup.GET("/chats/:id", h.GetChat)
	authGroup.POST("/chats/:id/regenerate", h.RegenerateChat)
	authGroup.DELETE("/chats/:id", h.DeleteChat)
	authGroup.POST("/chat/messages", h.SendChatMessage)

	// Remote mirror
	authGroup.POST("/sync", h.SyncNow)
	authGroup.POST("/sync/async", h.SyncAsync)
	authGroup.GET("/sync/jobs/:job_id", h.GetSyncJob)
	authGroup.POST("/sync/pull", h.SyncPull)
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
