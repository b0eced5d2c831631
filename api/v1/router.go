package v1

import (
	"github.com/accessdeploy/middleware"
	"github.com/accessdeploy/services"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all v1 API routes
func RegisterRoutes(router *gin.RouterGroup, deploymentService *services.DeploymentService) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// Auth endpoints
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", Register)
		authGroup.POST("/login", Login)
		// Use auth middleware here only for the /me endpoint
		authGroup.GET("/me", middleware.AuthMiddleware(), GetCurrentUser)
	}

	// Everything below drives the engine and requires authentication
	authRouter := router.Group("")
	authRouter.Use(middleware.AuthMiddleware())

	deploymentController := NewDeploymentController(deploymentService)
	deploymentController.RegisterRoutes(authRouter)

	connectionController := NewConnectionController()
	connectionController.RegisterRoutes(authRouter)

	patchController := NewPatchController()
	patchController.RegisterRoutes(authRouter)
}
