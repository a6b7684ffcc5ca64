package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/controller"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// MaxLogBatch bounds the entries accepted in one request
const MaxLogBatch = 500

// ComponentLogEntry is a log line emitted by a hosted component
type ComponentLogEntry struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message" binding:"required"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
	At      time.Time              `json:"at"`
}

// LogBatch is a batch of log lines from one component
type LogBatch struct {
	Entries []ComponentLogEntry `json:"entries" binding:"required,min=1,dive"`
}

// ComponentLogs forwards a live component's log lines into the host log,
// tagged with its identity and task
func (h *Handlers) ComponentLogs(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	var batch LogBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		badRequest(c, "Invalid log batch: "+err.Error())
		return
	}
	if len(batch.Entries) > MaxLogBatch {
		badRequest(c, fmt.Sprintf("At most %d entries per batch", MaxLogBatch))
		return
	}

	comp, err := controller.Call(c.Request.Context(), h.loop,
		func(_ context.Context, ctrl *controller.Controller) (types.Component, error) {
			comp, ok := ctrl.Get(cid)
			if !ok {
				return comp, controller.ErrComponentNotFound
			}
			return comp, nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	logger := h.logger.Named("components").With(
		zap.String("component", cid.String()),
		zap.String("identity", string(comp.Identity)),
		zap.String("task", comp.TaskID.String()),
	)
	for _, entry := range batch.Entries {
		forward(logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"received": len(batch.Entries),
	})
}

func forward(logger *zap.Logger, entry ComponentLogEntry) {
	level, err := zapcore.ParseLevel(entry.Level)
	if err != nil || level > zapcore.ErrorLevel {
		// components cannot panic or exit the host
		level = zapcore.InfoLevel
	}

	fields := make([]zap.Field, 0, len(entry.Fields)+1)
	if !entry.At.IsZero() {
		fields = append(fields, zap.Time("emitted_at", entry.At))
	}
	for key, value := range entry.Fields {
		fields = append(fields, zap.Any(key, value))
	}

	if ce := logger.Check(level, entry.Message); ce != nil {
		ce.Write(fields...)
	}
}

// GetLogLevel returns the host log level
func (h *Handlers) GetLogLevel(c *gin.Context) {
	if h.levels == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "log level is fixed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"level": h.levels.Level()})
}

// SetLogLevel changes the host log level
func (h *Handlers) SetLogLevel(c *gin.Context) {
	if h.levels == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "log level is fixed"})
		return
	}

	var req struct {
		Level string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if err := h.levels.SetLevel(req.Level); err != nil {
		badRequest(c, err.Error())
		return
	}

	h.logger.Info("Log level changed", zap.String("level", req.Level))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"level":   h.levels.Level(),
	})
}
