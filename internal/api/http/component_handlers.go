package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/controller"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// LaunchRequest is the body of POST /components
type LaunchRequest struct {
	types.Request
	Flags        []string `json:"flags,omitempty"`
	CallerTaskID string   `json:"caller_task_id,omitempty"`
	CallerID     string   `json:"caller_id,omitempty"`
	RequestCode  *int     `json:"request_code,omitempty"`
}

// options converts the caller context into LaunchOptions
func (r LaunchRequest) options() (types.LaunchOptions, error) {
	flags, unknown := types.ParseLaunchFlags(r.Flags)
	if len(unknown) > 0 {
		return types.LaunchOptions{}, &flagError{unknown}
	}
	return types.LaunchOptions{
		Flags:        flags,
		CallerTaskID: id.TaskID(r.CallerTaskID),
		CallerID:     id.ComponentID(r.CallerID),
		RequestCode:  r.RequestCode,
	}, nil
}

type flagError struct {
	unknown []string
}

func (e *flagError) Error() string {
	return "unknown launch flags: " + strings.Join(e.unknown, ", ")
}

// ResultRequest is the body of the result endpoints
type ResultRequest struct {
	Code int          `json:"code"`
	Data types.Bundle `json:"data,omitempty"`
}

// ListComponents lists every live record
func (h *Handlers) ListComponents(c *gin.Context) {
	comps, err := controller.Call(c.Request.Context(), h.loop,
		func(_ context.Context, ctrl *controller.Controller) ([]types.Component, error) {
			return ctrl.Components(), nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"components": comps,
		"count":      len(comps),
	})
}

// GetComponent returns one record
func (h *Handlers) GetComponent(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	var postponed bool
	comp, err := controller.Call(c.Request.Context(), h.loop,
		func(_ context.Context, ctrl *controller.Controller) (types.Component, error) {
			comp, ok := ctrl.Get(cid)
			if !ok {
				return comp, controller.ErrComponentNotFound
			}
			postponed = ctrl.Postponed(cid)
			return comp, nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"component": comp,
		"postponed": postponed,
	})
}

// Launch starts a component
func (h *Handlers) Launch(c *gin.Context) {
	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	opts, err := req.options()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	cid, err := controller.Call(c.Request.Context(), h.loop,
		func(ctx context.Context, ctrl *controller.Controller) (id.ComponentID, error) {
			return ctrl.Launch(ctx, req.Request, opts)
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      cid,
	})
}

// LaunchStack starts several components in one new task, bottom first
func (h *Handlers) LaunchStack(c *gin.Context) {
	var body struct {
		Requests []types.Request `json:"requests" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	ids, err := controller.Call(c.Request.Context(), h.loop,
		func(ctx context.Context, ctrl *controller.Controller) ([]id.ComponentID, error) {
			return ctrl.LaunchStack(ctx, body.Requests)
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"ids":     ids,
	})
}

// Finish finishes a component, routing its result if a caller waits for it
func (h *Handlers) Finish(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	err := h.loop.Do(c.Request.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
		return ctrl.Finish(ctx, cid)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// FinishAffinity finishes a component and the same-affinity records below it
func (h *Handlers) FinishAffinity(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	err := h.loop.Do(c.Request.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
		return ctrl.FinishAffinity(ctx, cid)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetResult stores the result a component returns when it finishes
func (h *Handlers) SetResult(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	var req ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	err := h.loop.Do(c.Request.Context(), func(_ context.Context, ctrl *controller.Controller) error {
		return ctrl.SetResult(cid, req.Code, req.Data)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeliverResult routes a result to the caller immediately
func (h *Handlers) DeliverResult(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	var req ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	err := h.loop.Do(c.Request.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
		return ctrl.DeliverResult(ctx, cid, req.Code, req.Data)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeliverNewIntent hands a new request to an existing record
func (h *Handlers) DeliverNewIntent(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	var req types.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	err := h.loop.Do(c.Request.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
		return ctrl.DeliverNewIntent(ctx, cid, &req)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// StartPostponed releases a record that postponed its next transition
func (h *Handlers) StartPostponed(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	err := h.loop.Do(c.Request.Context(), func(_ context.Context, ctrl *controller.Controller) error {
		return ctrl.StartPostponed(cid)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Recreate destroys and rebuilds a record in place
func (h *Handlers) Recreate(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	err := h.loop.Do(c.Request.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
		return ctrl.Recreate(ctx, cid)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Reclaim destroys a killable record, keeping its slot for later recreation
func (h *Handlers) Reclaim(c *gin.Context) {
	cid, ok := componentParam(c)
	if !ok {
		return
	}

	err := h.loop.Do(c.Request.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
		return ctrl.Reclaim(ctx, cid)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TrimMemory reclaims up to ?count= records, least important first
func (h *Handlers) TrimMemory(c *gin.Context) {
	n := 1
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			badRequest(c, "count must be a positive integer")
			return
		}
		n = parsed
	}

	reclaimed, err := controller.Call(c.Request.Context(), h.loop,
		func(ctx context.Context, ctrl *controller.Controller) ([]id.ComponentID, error) {
			return ctrl.TrimMemory(ctx, n), nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"reclaimed": reclaimed,
	})
}
