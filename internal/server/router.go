package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/coders-clan/cv-rag-agent/internal/handlers"
)

type RouterConfig struct {
	AllowOrigins  []string
	ResumeHandler *handlers.ResumeHandler
	SearchHandler *handlers.SearchHandler
	ChatHandler   *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Resumes
		api.POST("/resumes/upload", cfg.ResumeHandler.Upload)
		api.GET("/resumes", cfg.ResumeHandler.List)
		api.DELETE("/resumes/:id", cfg.ResumeHandler.Delete)
		// Retrieval debugging
		api.POST("/search", cfg.SearchHandler.Search)
		// Chat
		api.POST("/chat", cfg.ChatHandler.Stream)
		api.POST("/chat/complete", cfg.ChatHandler.Complete)
		api.GET("/chat/sessions", cfg.ChatHandler.ListSessions)
		api.DELETE("/chat/sessions/:id", cfg.ChatHandler.DeleteSession)
	}

	return router
}
