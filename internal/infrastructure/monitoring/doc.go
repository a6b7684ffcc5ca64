/*
Package monitoring provides Prometheus metrics for the lifecycle host.

# Overview

Metrics implements the controller's telemetry sink: it observes every
committed transition, counts processed queue events by kind and outcome,
tracks the queue depth and the host's reclaim rank, and records reclaims,
component failures and saved-state blob traffic. HTTP and WebSocket traffic
of the admin API is counted as well.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	ctrl := controller.New(controller.Options{Metrics: metrics})
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", monitoring.Handler(reg))

Snapshot returns the tracked values for the JSON stats endpoint.
*/
package monitoring
