package v1

import (
	"net/http"

	"github.com/accessdeploy/dto"
	"github.com/accessdeploy/services"
	"github.com/gin-gonic/gin"
)

// ConnectionController handles site connection endpoints
type ConnectionController struct {
	connectionService *services.ConnectionService
}

// NewConnectionController creates a new connection controller
func NewConnectionController() *ConnectionController {
	return &ConnectionController{connectionService: services.NewConnectionService()}
}

// RegisterRoutes registers connection routes
func (c *ConnectionController) RegisterRoutes(router *gin.RouterGroup) {
	connections := router.Group("/connections")
	{
		connections.POST("", c.CreateConnection)
		connections.GET("/:id", c.GetConnection)
	}
}

// CreateConnection registers a new site connection
func (c *ConnectionController) CreateConnection(ctx *gin.Context) {
	var req dto.ConnectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return
	}

	connection, err := c.connectionService.Create(req)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Failed to create connection",
			"error":   err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   connection,
	})
}

// GetConnection returns a connection by ID. Credential material is never
// included, only the opaque reference.
func (c *ConnectionController) GetConnection(ctx *gin.Context) {
	connection, err := c.connectionService.Get(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "Connection not found",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   connection,
	})
}
