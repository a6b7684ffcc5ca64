package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/controller"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

var _ controller.Metrics = (*Metrics)(nil)

func TestLifecycleMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	c := &types.Component{Identity: "com.example/.Main"}

	m.StateChanged(c, types.StateCreated, types.StateStarted)
	m.StateChanged(c, types.StateStarted, types.StateResumed)
	m.EventProcessed(types.EventStart, controller.OutcomeApplied)
	m.EventProcessed(types.EventDeliverResult, controller.OutcomeDropped)
	m.EventProcessed(types.EventResume, controller.OutcomeInvalid)
	m.QueueDepth(3)
	m.RankChanged(types.RankForeground)
	m.Reclaimed(c.Identity)
	m.ComponentFailed(c.Identity, lifecycle.KindTransitionHandlerFailure)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("created", "started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("deliver_result", "dropped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueDepthGauge))
	assert.Equal(t, float64(types.RankForeground), testutil.ToFloat64(m.Priority))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReclaimsTotal.WithLabelValues("com.example/.Main")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.Failures.WithLabelValues("com.example/.Main", "transition_handler_failure")))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Transitions)
	assert.Equal(t, int64(1), snap.ByState["resumed"])
	assert.Equal(t, int64(1), snap.EventsDropped)
	assert.Equal(t, int64(1), snap.EventsInvalid)
	assert.Equal(t, int64(3), snap.QueueDepth)
	assert.Equal(t, types.RankForeground, snap.Priority)
	assert.Equal(t, int64(1), snap.Reclaims)
	assert.Equal(t, int64(1), snap.Failures)
}

func TestBlobMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.BlobCaptured("com.example/.Main", 512)
	m.BlobRestored("com.example/.Main", "restored")
	m.BlobRestored("com.example/.Main", "corrupt")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlobsCaptured.WithLabelValues("com.example/.Main")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlobsRestored.WithLabelValues("com.example/.Main", "corrupt")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BlobSize))

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.BlobsCaptured)
	assert.Equal(t, int64(2), snap.BlobsRestored)
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.StateChanged(&types.Component{}, types.StateCreated, types.StateStarted)

	snap := m.Snapshot()
	snap.ByState["started"] = 100

	assert.Equal(t, int64(1), m.Snapshot().ByState["started"])
}

func TestSeparateRegistries(t *testing.T) {
	// two hosts in one process must not collide
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})

	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/tasks/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", Handler(reg))

	for _, path := range []string{"/tasks/1", "/tasks/2", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/tasks/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "lifecycle_http_requests_total"))
	assert.True(t, strings.Contains(body, "lifecycle_uptime_seconds"))
}

func TestWebSocketGauges(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncWSConnections()
	m.IncWSConnections()
	m.DecWSConnections()
	m.RecordWSMessage("out", "transition")
	m.SetDefinitions(4)
	m.SetBreakerState("state-store", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSMessages.WithLabelValues("out", "transition")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Definitions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Breakers.WithLabelValues("state-store")))
	assert.Equal(t, int64(1), m.Snapshot().ActiveConnections)
	assert.Greater(t, m.Snapshot().UptimeSeconds, -1.0)
}
