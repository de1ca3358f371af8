package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"akimat/internal/authz"
	"akimat/internal/handlers"
	"akimat/internal/middleware"
	"akimat/internal/models"
)

func SetupRoutes(
	r *gin.Engine,
	tokens middleware.TokenValidator,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {

	// ---- system
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	// ---- public auth
	auth := api.Group("/auth")
	{
		auth.POST("/eds/login", authHandler.EDSLogin)
		auth.POST("/email/register", authHandler.EmailRegister)
		auth.POST("/email/login", authHandler.EmailLogin)
		auth.POST("/email/oauth/token", authHandler.OAuthToken)
	}

	// ---- protected auth (токен проверяется на каждом запросе)
	me := api.Group("/auth", middleware.AuthMiddleware(tokens), middleware.RequireRoles(authz.Staff...))
	{
		me.PUT("/registration/complete", authHandler.CompleteRegistration)
		me.GET("/me", middleware.RequireStatus(models.StatusPending, models.StatusActive), userHandler.Me)
		me.PUT("/me", middleware.RequireStatus(models.StatusActive), userHandler.UpdateMe)
	}

	// USERS (supervisors read, admins moderate)
	users := api.Group("/users",
		middleware.AuthMiddleware(tokens),
		middleware.RequireStatus(models.StatusActive),
		middleware.RequireRoles(authz.Management...),
	)
	{
		users.GET("", userHandler.List)
		users.POST("", middleware.RequireRoles(authz.Admins...), userHandler.Create)
		users.GET("/:id", userHandler.GetByID)
		users.PUT("/:id/status", middleware.RequireRoles(authz.Admins...), userHandler.UpdateStatus)
		users.PUT("/:id/role", middleware.RequireRoles(authz.Admins...), userHandler.UpdateRole)
	}

	return r
}
