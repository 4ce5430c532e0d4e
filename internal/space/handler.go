package space

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/space-queue-system/internal/engine"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	spaces := r.Group("/spaces")
	{
		spaces.POST("/", h.createSpace)
		spaces.GET("/code/:code", h.getSpaceByCode)
		spaces.GET("/:id", h.getSpace)
		spaces.GET("/:id/sync", h.sync)
	}
}

type CreateSpaceRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) createSpace(c *gin.Context) {
	var req CreateSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("user_id") // Set by auth middleware
	space, err := h.service.CreateSpace(c.Request.Context(), userID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, space)
}

func (h *Handler) getSpace(c *gin.Context) {
	spaceID := c.Param("id")
	space, err := h.service.GetSpace(c.Request.Context(), spaceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, space)
}

func (h *Handler) getSpaceByCode(c *gin.Context) {
	code := c.Param("code")
	space, err := h.service.GetSpaceByCode(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, space)
}

func (h *Handler) sync(c *gin.Context) {
	spaceID := c.Param("id")
	state, err := h.service.Sync(c.Request.Context(), spaceID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrSpaceNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, state)
}
