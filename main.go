package main

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	v1 "github.com/accessdeploy/api/v1"
	"github.com/accessdeploy/config"
	"github.com/accessdeploy/database"
	"github.com/accessdeploy/lib/transport"
	"github.com/accessdeploy/repositories"
	"github.com/accessdeploy/services"
)

func main() {
	// Load environment variables
	config.LoadEnv()
	engineCfg := config.Engine()

	// Initialize database
	database.Initialize()

	// Wire the engine
	deploymentRepo := repositories.NewDeploymentRepository()
	backupRepo := repositories.NewBackupRepository()
	rollbackRepo := repositories.NewRollbackRepository()
	connectionRepo := repositories.NewConnectionRepository()
	patchRepo := repositories.NewPatchRepository()
	healthRepo := repositories.NewHealthRepository()

	adapters := transport.DefaultRegistry(engineCfg.RetryAttempts)
	healthService := services.NewHealthService(engineCfg, healthRepo)
	validatorService := services.NewValidatorService(engineCfg, deploymentRepo, healthService, adapters)
	backupService := services.NewBackupService(adapters, connectionRepo, backupRepo)
	rollbackService := services.NewRollbackService(adapters, connectionRepo, backupRepo, rollbackRepo)
	statusHub := services.NewStatusHub()

	deploymentService := services.NewDeploymentService(
		engineCfg,
		deploymentRepo,
		patchRepo,
		connectionRepo,
		validatorService,
		backupService,
		adapters,
		healthService,
		rollbackService,
		statusHub,
	)

	// Background retention sweep for expired backups and samples
	go services.NewRetentionService(engineCfg).Run(context.Background())

	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Initialize router
	router := gin.Default()

	// CORS configuration
	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	}))

	// Register API routes
	apiV1 := router.Group("/api/v1")
	v1.RegisterRoutes(apiV1, deploymentService)

	// Get port from environment or use default
	port := config.GetEnv("PORT", "8080")

	// Start server
	log.Printf("🚀 AccessDeploy engine starting on port %s", port)
	log.Printf("💡 Admission ceiling: %d concurrent deployments", engineCfg.MaxActiveDeployments)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
