package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cacheflow/cacheflow/internal/engine"
	"github.com/cacheflow/cacheflow/internal/handlers"
)

// Setup assembles the gin router over the cache engine.
func Setup(e *engine.Engine, log *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	h := handlers.NewUserHandler(e, log)

	// Write-behind path (default).
	r.GET("/users/:id", h.GetUser)
	r.POST("/users", h.CreateUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)

	// Write-through path.
	sync := r.Group("/sync")
	{
		sync.POST("/users", h.CreateUserSync)
		sync.PUT("/users/:id", h.UpdateUserSync)
		sync.DELETE("/users/:id", h.DeleteUserSync)
	}

	r.POST("/flush", h.Flush)
	r.GET("/stats", h.Stats)
	r.GET("/hot-keys", h.HotKeys)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
