package controller

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/priority"
)

// StartService records hosted non-component work that keeps the process
// important. Starting a running service updates its foreground flag.
func (c *Controller) StartService(name string, foreground bool) error {
	if name == "" {
		return fmt.Errorf("service name is required")
	}
	c.services[name] = priority.Service{Name: name, Foreground: foreground}
	c.logger.Debug("Service started",
		zap.String("service", name),
		zap.Bool("foreground", foreground),
	)
	c.refreshRank()
	return nil
}

// StopService drops a hosted service. It reports whether it was running.
func (c *Controller) StopService(name string) bool {
	if _, ok := c.services[name]; !ok {
		return false
	}
	delete(c.services, name)
	c.logger.Debug("Service stopped", zap.String("service", name))
	c.refreshRank()
	return true
}

// Services lists the hosted services by name
func (c *Controller) Services() []priority.Service {
	out := make([]priority.Service, 0, len(c.services))
	for _, s := range c.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
