package api

import (
	"docshare/internal/server/config"
	"docshare/internal/server/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, auth *service.AuthService, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.Use(RequestLogger())

	// Rate limiter shared by the endpoints worth throttling: login to
	// slow credential stuffing, upload to bound storage churn.
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	e.Server.RegisterOnShutdown(limiter.Stop)
	sessionRequired := SessionAuth(auth)

	// Health
	e.GET("/health", handler.HandleHealth)

	// Accounts & sessions
	e.POST("/signup", handler.HandleSignup)
	e.POST("/login", handler.HandleLogin, limiter.Middleware())

	// Documents
	e.POST("/upload", handler.HandleUpload, sessionRequired, limiter.Middleware())
	e.GET("/files", handler.HandleListFiles)
	e.POST("/files/:docId/rename", handler.HandleRename, sessionRequired)
	e.DELETE("/files/:docId", handler.HandleDelete, sessionRequired)

	// Access gate & retrieval
	e.POST("/verify-password", handler.HandleVerifyPassword)
	e.GET("/d/:docId", handler.HandleDownload)

	// Public shared view
	e.GET("/shared", handler.HandleShared)

	// Contact form
	e.POST("/contact", handler.HandleContact)

	return e
}
