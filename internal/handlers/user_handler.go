package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cacheflow/cacheflow/internal/engine"
	"github.com/cacheflow/cacheflow/internal/models"
)

// ErrorResponse represents an error response body
type ErrorResponse struct {
	Error string `json:"error"`
}

// UserRequest represents a create/update request body
type UserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Age   int    `json:"age" binding:"required,gte=0"`
}

// UserHandler exposes the cache engine over HTTP. The default /users routes
// use write-behind semantics; /sync/users uses write-through.
type UserHandler struct {
	engine *engine.Engine
	log    *logrus.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(e *engine.Engine, log *logrus.Logger) *UserHandler {
	return &UserHandler{engine: e, log: log}
}

// GetUser handles GET /users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.engine.Read(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Read failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, user)
}

// CreateUser handles POST /users (write-behind)
func (h *UserHandler) CreateUser(c *gin.Context) {
	user, ok := bindUser(c)
	if !ok {
		return
	}

	created, err := h.engine.CreateBehind(c.Request.Context(), user)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// UpdateUser handles PUT /users/:id (write-behind)
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, ok := bindUser(c)
	if !ok {
		return
	}

	updated, err := h.engine.UpdateBehind(c.Request.Context(), id, user)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteUser handles DELETE /users/:id (write-behind)
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.engine.DeleteBehind(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateUserSync handles POST /sync/users (write-through)
func (h *UserHandler) CreateUserSync(c *gin.Context) {
	user, ok := bindUser(c)
	if !ok {
		return
	}

	created, err := h.engine.CreateThrough(c.Request.Context(), user)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// UpdateUserSync handles PUT /sync/users/:id (write-through)
func (h *UserHandler) UpdateUserSync(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, ok := bindUser(c)
	if !ok {
		return
	}

	updated, err := h.engine.UpdateThrough(c.Request.Context(), id, user)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteUserSync handles DELETE /sync/users/:id (write-through)
func (h *UserHandler) DeleteUserSync(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := h.engine.DeleteThrough(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Flush handles POST /flush: drain the entire write queue now.
func (h *UserHandler) Flush(c *gin.Context) {
	if err := h.engine.ForceFlush(c.Request.Context()); err != nil {
		h.log.WithError(err).Error("Forced flush failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "flush triggered"})
}

// Stats handles GET /stats
func (h *UserHandler) Stats(c *gin.Context) {
	snap, err := h.engine.Snapshot(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Stats snapshot failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, snap)
}

// HotKeys handles GET /hot-keys
func (h *UserHandler) HotKeys(c *gin.Context) {
	keys, counts, err := h.engine.HotKeys(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Hot key listing failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hot_keys":      keys,
		"access_counts": counts,
	})
}

// Health handles GET /health
func (h *UserHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *UserHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrShuttingDown) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "shutting down"})
		return
	}
	h.log.WithError(err).Error("Write failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return 0, false
	}
	return id, true
}

func bindUser(c *gin.Context) (*models.User, bool) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return nil, false
	}
	return &models.User{Name: req.Name, Email: req.Email, Age: req.Age}, true
}
