package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookkeeper/internal/covers"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	if cfg.AccessLog {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())
	router.MaxMultipartMemory = covers.MaxCoverBytes

	checks := []HealthCheck{{Name: "database", Pinger: cfg.Database}}
	if cfg.TaskQueue != nil {
		checks = append(checks, HealthCheck{Name: "task_queue", Pinger: cfg.TaskQueue})
	}
	health := NewHealthController(cfg.Version, checks...)
	router.GET("/health", health.Status)

	api := router.Group("/api")

	account := NewAccountController(cfg.Session, cfg.Throttle)
	api.GET("/session", account.GetSession)
	api.POST("/session/login", account.Login)
	api.POST("/session/register", account.Register)
	api.POST("/session/logout", account.Logout)
	api.PUT("/profile", account.UpdateProfile)
	api.DELETE("/profile", account.DeleteAccount)
	api.PUT("/theme", account.SetTheme)

	books := NewBooksController(cfg.Session, cfg.StreamHeartbeat)
	api.GET("/books", books.ListBooks)
	api.GET("/books/stream", books.Stream)
	api.GET("/books/stats", books.Stats)
	api.POST("/books", books.CreateBook)
	api.POST("/books/isbn", books.AddByISBN)
	api.GET("/books/:id", books.GetBook)
	api.PUT("/books/:id", books.UpdateBook)
	api.DELETE("/books/:id", books.DeleteBook)
	api.PUT("/books/:id/progress", books.UpdateProgress)
	api.PUT("/books/:id/notes", books.UpdateNotes)
	api.PUT("/books/:id/status", books.SetStatus)
	api.GET("/lookup/:isbn", books.Lookup)

	if cfg.Covers != nil {
		coversController := NewCoversController(cfg.Session, cfg.Covers)
		api.POST("/books/:id/cover", coversController.UploadCover)
		api.GET("/books/:id/cover", coversController.GetCover)
	}

	if cfg.Notices != nil {
		notices := NewNoticesController(cfg.Notices)
		api.GET("/notices", notices.List)
	}

	return router
}
