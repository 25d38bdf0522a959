package api

import (
	"context"
	"net/http"

	"outreach-engine/internal/runner"

	"github.com/gin-gonic/gin"
)

// RunnerHandler exposes the runner control plane: inspect loop state, pause
// and resume the scheduler or listener without restarting the process.
type RunnerHandler struct {
	manager *runner.Manager
	// base outlives individual requests; a runner started over HTTP must
	// not die when the request context is canceled.
	base context.Context
}

func NewRunnerHandler(base context.Context, manager *runner.Manager) *RunnerHandler {
	return &RunnerHandler{manager: manager, base: base}
}

func (h *RunnerHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runners": h.manager.Status()})
}

func (h *RunnerHandler) Start(c *gin.Context) {
	r, err := h.manager.Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	r.Start(h.base)
	c.JSON(http.StatusOK, gin.H{"name": r.Name(), "running": r.IsRunning()})
}

func (h *RunnerHandler) Stop(c *gin.Context) {
	r, err := h.manager.Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	r.Stop()
	c.JSON(http.StatusOK, gin.H{"name": r.Name(), "running": r.IsRunning()})
}
