package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/controller"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// ListTasks lists every task, most recent first
func (h *Handlers) ListTasks(c *gin.Context) {
	tasks, err := controller.Call(c.Request.Context(), h.loop,
		func(_ context.Context, ctrl *controller.Controller) ([]types.Task, error) {
			return ctrl.Tasks(), nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// GetTask returns one task with copies of its live records
func (h *Handlers) GetTask(c *gin.Context) {
	tid, ok := taskParam(c)
	if !ok {
		return
	}

	var comps []types.Component
	task, err := controller.Call(c.Request.Context(), h.loop,
		func(_ context.Context, ctrl *controller.Controller) (types.Task, error) {
			task, ok := ctrl.Task(tid)
			if !ok {
				return task, controller.ErrTaskNotFound
			}
			for _, cid := range task.Stack {
				if comp, ok := ctrl.Get(cid); ok {
					comps = append(comps, comp)
				}
			}
			return task, nil
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":       task,
		"components": comps,
	})
}

// MoveTaskToBack sends a task behind every other task
func (h *Handlers) MoveTaskToBack(c *gin.Context) {
	tid, ok := taskParam(c)
	if !ok {
		return
	}

	moved, err := controller.Call(c.Request.Context(), h.loop,
		func(ctx context.Context, ctrl *controller.Controller) (bool, error) {
			return ctrl.MoveTaskToBack(ctx, tid)
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"moved":   moved,
	})
}

// MoveTaskToFront brings a task to the foreground
func (h *Handlers) MoveTaskToFront(c *gin.Context) {
	tid, ok := taskParam(c)
	if !ok {
		return
	}

	err := h.loop.Do(c.Request.Context(), func(ctx context.Context, ctrl *controller.Controller) error {
		return ctrl.MoveTaskToFront(ctx, tid)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// NavigateUp pops a task back to the nearest record of an identity
func (h *Handlers) NavigateUp(c *gin.Context) {
	tid, ok := taskParam(c)
	if !ok {
		return
	}

	var body struct {
		Identity types.Identity `json:"identity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	res, err := controller.Call(c.Request.Context(), h.loop,
		func(ctx context.Context, ctrl *controller.Controller) (controller.NavigateResult, error) {
			return ctrl.NavigateUpTo(ctx, body.Identity, tid)
		})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  res,
	})
}
