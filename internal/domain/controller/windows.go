package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// HeadlessWindows is a WindowManager that only tracks handles and focus.
// It is used when no compositor is attached and in tests.
type HeadlessWindows struct {
	mu      sync.RWMutex
	windows map[id.WindowID]id.ComponentID
	focused map[id.WindowID]bool
}

// NewHeadlessWindows creates an empty headless window manager
func NewHeadlessWindows() *HeadlessWindows {
	return &HeadlessWindows{
		windows: make(map[id.WindowID]id.ComponentID),
		focused: make(map[id.WindowID]bool),
	}
}

// CreateWindow allocates a window handle for cid
func (h *HeadlessWindows) CreateWindow(ctx context.Context, cid id.ComponentID) (id.WindowID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := id.NewWindowID()
	h.windows[w] = cid
	return w, nil
}

// DestroyWindow releases a handle
func (h *HeadlessWindows) DestroyWindow(ctx context.Context, w id.WindowID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.windows[w]; !ok {
		return fmt.Errorf("unknown window %s", w)
	}
	delete(h.windows, w)
	delete(h.focused, w)
	return nil
}

// SetFocus records focus eligibility
func (h *HeadlessWindows) SetFocus(ctx context.Context, w id.WindowID, focused bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.windows[w]; !ok {
		return fmt.Errorf("unknown window %s", w)
	}
	if focused {
		h.focused[w] = true
	} else {
		delete(h.focused, w)
	}
	return nil
}

// Open returns the number of live windows
func (h *HeadlessWindows) Open() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.windows)
}

// Focused reports whether w currently has focus
func (h *HeadlessWindows) Focused(w id.WindowID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.focused[w]
}

// handleWindow is the window capability: it creates and inflates the window
// on first start, moves focus on resume and pause, and releases the window on
// destroy.
func (c *Controller) handleWindow(ctx context.Context, t *lifecycle.Transition) error {
	comp := t.Component
	switch {
	case t.From == types.StateCreated && t.To == types.StateStarted:
		w, err := c.windows.CreateWindow(ctx, comp.ID)
		if err != nil {
			return fmt.Errorf("failed to create window: %w", err)
		}
		comp.Window = w

		if c.inflater == nil {
			return nil
		}
		r := c.records[comp.ID]
		if r == nil {
			return nil
		}
		view, err := c.inflater.Inflate(ctx, r.def.Layout, r.def.Theme)
		if err != nil {
			return fmt.Errorf("failed to inflate %q: %w", r.def.Layout, err)
		}
		r.view = view

	case t.To == types.StateResumed && comp.Window != "":
		return c.windows.SetFocus(ctx, comp.Window, true)

	case t.From == types.StateResumed && t.To == types.StatePaused && comp.Window != "":
		return c.windows.SetFocus(ctx, comp.Window, false)

	case t.To == types.StateDestroyed && comp.Window != "":
		w := comp.Window
		comp.Window = ""
		return c.windows.DestroyWindow(ctx, w)
	}
	return nil
}

// releaseWindow drops the window of a record that failed outside the
// destroy transition
func (c *Controller) releaseWindow(ctx context.Context, comp *types.Component) {
	if comp.Window == "" {
		return
	}
	w := comp.Window
	comp.Window = ""
	_ = c.windows.DestroyWindow(ctx, w)
}
