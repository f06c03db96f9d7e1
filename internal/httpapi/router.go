package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/orionai/orion/internal/common"
	"github.com/orionai/orion/internal/config"
	"github.com/orionai/orion/internal/httpapi/handlers"
	"github.com/orionai/orion/internal/httpapi/middleware"
	"github.com/orionai/orion/internal/store/rabbitmq"
	"github.com/orionai/orion/internal/store/redisstore"
)

// NewRouter maps each tool panel of the client to an endpoint group.
// The groups share nothing beyond auth; panel selection is purely a
// matter of which path the client calls.
func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.Default())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, common.CodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, common.CodeNotFound, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, rds, rabbit)

	r.GET("/ping", h.Ping)
	r.GET("/about", h.About)
	r.POST("/contact", h.Contact)

	// auth gate
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret, rds))
	authGroup.POST("/auth/logout", h.Logout)
	authGroup.GET("/me", h.Me)

	// chat sessions and dispatch
	authGroup.GET("/chat/sessions", h.ListChatSessions)
	authGroup.POST("/chat/sessions", h.CreateChatSession)
	authGroup.DELETE("/chat/sessions/:session_id", h.DeleteChatSession)
	authGroup.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	authGroup.POST("/chat/sessions/:session_id/revert", h.RevertLastMessage)
	authGroup.POST("/chat/messages", h.SendChatMessage)
	authGroup.POST("/chat/messages/async", h.SendChatMessageAsync)
	authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)

	// media tool panels
	authGroup.POST("/media/images/generations", h.GenerateImage)
	authGroup.POST("/media/images/edits", h.EditImage)
	authGroup.POST("/media/images/analyses", h.AnalyzeImage)
	authGroup.POST("/media/videos/analyses", h.AnalyzeVideo)
	authGroup.POST("/media/speech", h.GenerateSpeech)
	authGroup.POST("/media/transcriptions", h.TranscribeAudio)

	return r
}
