package api

import (
	"context"
	"net/http"

	"outreach-engine/internal/runner"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, base context.Context, manager *runner.Manager) {
	runnerHandler := NewRunnerHandler(base, manager)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		runners := api.Group("/runners")
		{
			runners.GET("", runnerHandler.List)
			runners.POST("/:name/start", runnerHandler.Start)
			runners.POST("/:name/stop", runnerHandler.Stop)
		}
	}
}
