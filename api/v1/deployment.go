package v1

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/accessdeploy/dto"
	"github.com/accessdeploy/models"
	"github.com/accessdeploy/repositories"
	"github.com/accessdeploy/services"
	"github.com/accessdeploy/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DeploymentController handles deployment-related API endpoints
type DeploymentController struct {
	deploymentService *services.DeploymentService
	healthRepo        *repositories.HealthRepository
}

// NewDeploymentController creates a new deployment controller
func NewDeploymentController(deploymentService *services.DeploymentService) *DeploymentController {
	return &DeploymentController{
		deploymentService: deploymentService,
		healthRepo:        repositories.NewHealthRepository(),
	}
}

// RegisterRoutes registers deployment routes
func (c *DeploymentController) RegisterRoutes(router *gin.RouterGroup) {
	deployments := router.Group("/deployments")
	{
		deployments.POST("", c.CreateDeployment)
		deployments.GET("", c.ListActive)
		deployments.GET("/history", c.GetHistory)
		deployments.GET("/:id", c.GetDeployment)
		deployments.POST("/:id/cancel", c.CancelDeployment)
		deployments.POST("/:id/rollback", c.RollbackDeployment)
		deployments.GET("/:id/events", c.StreamEvents)
		deployments.GET("/:id/health", c.GetHealthSamples)
	}
}

// CreateDeployment starts a new deployment
func (c *DeploymentController) CreateDeployment(ctx *gin.Context) {
	var req dto.DeployRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return
	}

	userIDValue, _ := ctx.Get("userId")
	userID, _ := userIDValue.(string)

	response, err := c.deploymentService.Deploy(userID, req)
	if err != nil {
		log.Println("Error starting deployment:", err)
		status := http.StatusInternalServerError
		if errors.Is(err, gorm.ErrRecordNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{
			"status":  "error",
			"message": "Failed to start deployment",
			"error":   err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"status": "success",
		"data":   response,
	})
}

// GetDeployment returns one deployment snapshot
func (c *DeploymentController) GetDeployment(ctx *gin.Context) {
	snapshot, err := c.deploymentService.Snapshot(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "Deployment not found",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   snapshot,
	})
}

// ListActive returns all non-terminal deployments
func (c *DeploymentController) ListActive(ctx *gin.Context) {
	deployments, err := c.deploymentService.ListActive()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to list deployments",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   deployments,
	})
}

// GetHistory returns the caller's deployment history
func (c *DeploymentController) GetHistory(ctx *gin.Context) {
	userIDValue, _ := ctx.Get("userId")
	userID, _ := userIDValue.(string)

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	deployments, err := c.deploymentService.GetHistory(userID, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to fetch history",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   deployments,
	})
}

// CancelDeployment requests cooperative cancellation
func (c *DeploymentController) CancelDeployment(ctx *gin.Context) {
	err := c.deploymentService.Cancel(ctx.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrDeploymentNotActive) {
			status = http.StatusConflict
		}
		ctx.JSON(status, gin.H{
			"status":  "error",
			"message": "Failed to cancel deployment",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{
		"status":  "success",
		"message": "Cancellation requested",
	})
}

// RollbackDeployment triggers a manual rollback
func (c *DeploymentController) RollbackDeployment(ctx *gin.Context) {
	var req dto.RollbackRequest
	_ = ctx.ShouldBindJSON(&req)

	record, err := c.deploymentService.TriggerRollback(ctx.Param("id"), req.Reason)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrRollbackUnavailable), errors.Is(err, services.ErrDeploymentNotActive):
			status = http.StatusConflict
		case errors.Is(err, gorm.ErrRecordNotFound):
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{
			"status":  "error",
			"message": "Failed to trigger rollback",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{
		"status": "success",
		"data":   record,
	})
}

// GetHealthSamples returns the most recent health samples for a deployment
func (c *DeploymentController) GetHealthSamples(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	samples, err := c.healthRepo.FindRecent(ctx.Param("id"), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to fetch health samples",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   samples,
	})
}

// StreamEvents streams incremental status and log updates over SSE until the
// deployment reaches a terminal state.
func (c *DeploymentController) StreamEvents(ctx *gin.Context) {
	deploymentID := ctx.Param("id")

	// The snapshot doubles as an existence check and gives the client the
	// current state before incremental events start.
	snapshot, err := c.deploymentService.Snapshot(deploymentID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "Deployment not found",
		})
		return
	}

	flusher, ok := ctx.Writer.(http.Flusher)
	if !ok {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Streaming not supported",
		})
		return
	}

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")

	utils.WriteSSEJSON(ctx.Writer, snapshot)
	flusher.Flush()

	// A finished deployment has no further events; the snapshot is the stream
	if models.DeploymentStatus(snapshot.Status).IsTerminal() {
		return
	}

	events, cancel := c.deploymentService.Subscribe(deploymentID)
	defer cancel()

	for {
		select {
		case <-ctx.Request.Context().Done():
			return
		case event, open := <-events:
			if !open {
				// Terminal state reached, stream is complete
				return
			}
			utils.WriteSSEJSON(ctx.Writer, event)
			flusher.Flush()
		}
	}
}
