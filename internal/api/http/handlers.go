package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/controller"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// LevelController changes the log level at runtime
type LevelController interface {
	Level() string
	SetLevel(level string) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	loop     *controller.Loop
	registry *registry.Manager
	metrics  *monitoring.Metrics
	levels   LevelController
	breakers []*resilience.Breaker
	logger   *zap.Logger
}

// NewHandlers creates a new handler set. metrics and levels may be nil.
func NewHandlers(
	loop *controller.Loop,
	registry *registry.Manager,
	metrics *monitoring.Metrics,
	levels LevelController,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		loop:     loop,
		registry: registry,
		metrics:  metrics,
		levels:   levels,
		logger:   logger,
	}
}

// Guard adds breakers whose state is reported by Health. An open breaker
// marks the host degraded, not unhealthy.
func (h *Handlers) Guard(breakers ...*resilience.Breaker) {
	h.breakers = append(h.breakers, breakers...)
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "lifecycle host",
		"version": "0.1.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	var caps []string
	stats, err := controller.Call(c.Request.Context(), h.loop,
		func(_ context.Context, ctrl *controller.Controller) (types.Stats, error) {
			caps = ctrl.Capabilities()
			return ctrl.Stats(), nil
		})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	status := "healthy"
	breakers := make([]resilience.Snapshot, 0, len(h.breakers))
	for _, b := range h.breakers {
		snap := b.Snapshot()
		if snap.State != resilience.StateClosed {
			status = "degraded"
		}
		breakers = append(breakers, snap)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"controller":   stats,
		"definitions":  h.registry.Len(),
		"capabilities": caps,
		"breakers":     breakers,
	})
}

// Stats returns controller statistics and, when enabled, metric counters
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := controller.Call(c.Request.Context(), h.loop,
		func(_ context.Context, ctrl *controller.Controller) (types.Stats, error) {
			return ctrl.Stats(), nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	out := gin.H{"controller": stats}
	if h.metrics != nil {
		out["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, out)
}

// fail writes the status an error maps to
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}

// componentParam reads the :id path parameter as a component id
func componentParam(c *gin.Context) (id.ComponentID, bool) {
	cid, err := id.ParseComponentID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return cid, true
}

// taskParam reads the :id path parameter as a task id
func taskParam(c *gin.Context) (id.TaskID, bool) {
	tid, err := id.ParseTaskID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return tid, true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, controller.ErrComponentNotFound),
		errors.Is(err, controller.ErrTaskNotFound),
		errors.Is(err, controller.ErrUnknownComponent):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrResultPending),
		errors.Is(err, controller.ErrNotKillable):
		return http.StatusConflict
	case errors.Is(err, controller.ErrLoopStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
