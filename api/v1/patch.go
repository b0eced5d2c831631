package v1

import (
	"net/http"

	"github.com/accessdeploy/dto"
	"github.com/accessdeploy/services"
	"github.com/gin-gonic/gin"
)

// PatchController handles patch package intake endpoints
type PatchController struct {
	patchService *services.PatchService
}

// NewPatchController creates a new patch controller
func NewPatchController() *PatchController {
	return &PatchController{patchService: services.NewPatchService()}
}

// RegisterRoutes registers patch routes
func (c *PatchController) RegisterRoutes(router *gin.RouterGroup) {
	patches := router.Group("/patches")
	{
		patches.POST("", c.CreatePatch)
		patches.GET("/:id", c.GetPatch)
	}
}

// CreatePatch accepts a patch package from the analysis step
func (c *PatchController) CreatePatch(ctx *gin.Context) {
	var req dto.PatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return
	}

	patch, err := c.patchService.Create(req)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to store patch package",
			"error":   err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   patch,
	})
}

// GetPatch returns a patch package by ID
func (c *PatchController) GetPatch(ctx *gin.Context) {
	patch, err := c.patchService.Get(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "Patch package not found",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   patch,
	})
}
