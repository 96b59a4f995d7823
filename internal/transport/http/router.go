package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/nurdaulet-ab/account-service/internal/transport/http/handler"
	"github.com/nurdaulet-ab/account-service/internal/transport/http/middleware"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, userHandler *handler.UserHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(jwtKey)

	// Public auth routes
	auth := r.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/code", authHandler.RequestCode)
	auth.POST("/verify", authHandler.Verify)

	// Protected routes
	me := r.Group("/me", authMW)
	me.GET("", userHandler.Me)
	me.GET("/purchases", userHandler.Purchases)

	admin := r.Group("/users", authMW, middleware.RequireAdmin())
	admin.PUT("/:id/role", userHandler.SetRole)

	return r
}
