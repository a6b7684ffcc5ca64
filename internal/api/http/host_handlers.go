package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/controller"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/priority"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// ConfigurationChanged applies a device configuration change to every record
func (h *Handlers) ConfigurationChanged(c *gin.Context) {
	var change types.ConfigChange
	if err := c.ShouldBindJSON(&change); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	recreated, err := controller.Call(c.Request.Context(), h.loop,
		func(ctx context.Context, ctrl *controller.Controller) (int, error) {
			return ctrl.ConfigurationChanged(ctx, change), nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"recreated": recreated,
	})
}

// Priority reports the host's reclaim rank. It does not go through the loop.
func (h *Handlers) Priority(c *gin.Context) {
	rank := h.loop.Controller().QueryForegroundPriority()
	c.JSON(http.StatusOK, gin.H{
		"rank":  rank,
		"value": int(rank),
	})
}

// ListServices lists running hosted services
func (h *Handlers) ListServices(c *gin.Context) {
	services, err := controller.Call(c.Request.Context(), h.loop,
		func(_ context.Context, ctrl *controller.Controller) ([]priority.Service, error) {
			return ctrl.Services(), nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"services": services})
}

// StartService registers a hosted service
func (h *Handlers) StartService(c *gin.Context) {
	var svc priority.Service
	if err := c.ShouldBindJSON(&svc); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if svc.Name == "" {
		badRequest(c, "service name is required")
		return
	}

	err := h.loop.Do(c.Request.Context(), func(_ context.Context, ctrl *controller.Controller) error {
		return ctrl.StartService(svc.Name, svc.Foreground)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"service": svc,
	})
}

// StopService removes a hosted service
func (h *Handlers) StopService(c *gin.Context) {
	name := c.Param("name")

	stopped, err := controller.Call(c.Request.Context(), h.loop,
		func(_ context.Context, ctrl *controller.Controller) (bool, error) {
			return ctrl.StopService(name), nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}
	if !stopped {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "service not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListDefinitions lists registered component definitions, optionally
// filtered by ?affinity=
func (h *Handlers) ListDefinitions(c *gin.Context) {
	var filter *string
	if a, ok := c.GetQuery("affinity"); ok {
		filter = &a
	}

	defs := h.registry.List(filter)
	c.JSON(http.StatusOK, gin.H{
		"definitions": defs,
		"count":       len(defs),
	})
}

// GetDefinition returns one definition
func (h *Handlers) GetDefinition(c *gin.Context) {
	def, err := h.registry.MustGet(types.Identity(c.Param("identity")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// RegisterDefinition adds or replaces a definition without callbacks
func (h *Handlers) RegisterDefinition(c *gin.Context) {
	var def registry.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	def.Source = "api"

	if err := h.registry.Register(&def); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.logger.Info("Definition registered",
		zap.String("identity", string(def.Identity)),
		zap.String("launch_mode", string(def.LaunchMode)),
	)
	if h.metrics != nil {
		h.metrics.SetDefinitions(h.registry.Len())
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"definition": def,
	})
}

// DeleteDefinition removes a definition. Live records keep running.
func (h *Handlers) DeleteDefinition(c *gin.Context) {
	identity := types.Identity(c.Param("identity"))
	if !h.registry.Delete(identity) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "definition not found",
		})
		return
	}
	if h.metrics != nil {
		h.metrics.SetDefinitions(h.registry.Len())
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
