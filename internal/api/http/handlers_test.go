package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/controller"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

const (
	mainID   = "com.example/.Main"
	detailID = "com.example/.Detail"
)

type fakeLevels struct {
	level string
}

func (f *fakeLevels) Level() string { return f.level }

func (f *fakeLevels) SetLevel(level string) error {
	if level != "debug" && level != "info" {
		return errors.New("unknown level")
	}
	f.level = level
	return nil
}

type testServer struct {
	router  *gin.Engine
	loop    *controller.Loop
	reg     *registry.Manager
	logs    *observer.ObservedLogs
	results []types.ResultPayload
	breaker *resilience.Breaker
	cancel  context.CancelFunc
	stopped chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{reg: registry.NewManager(), stopped: make(chan struct{})}
	require.NoError(t, s.reg.Register(&registry.Definition{
		Identity: mainID,
		Callbacks: registry.Callbacks{
			OnResult: func(_ context.Context, _ *types.Component, res types.ResultPayload) error {
				s.results = append(s.results, res)
				return nil
			},
		},
	}))
	require.NoError(t, s.reg.Register(&registry.Definition{Identity: detailID}))

	core, logs := observer.New(zap.DebugLevel)
	s.logs = logs
	logger := zap.New(core)

	ctrl := controller.New(controller.Options{
		Registry: s.reg,
		Logger:   logger.Named("controller"),
	})
	s.loop = controller.NewLoop(ctrl, 8)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.stopped)
		_ = s.loop.Run(ctx)
	}()
	t.Cleanup(s.stop)

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	h := NewHandlers(s.loop, s.reg, metrics, &fakeLevels{level: "info"}, logger)
	s.breaker = resilience.New("state-store", resilience.Settings{
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	h.Guard(s.breaker)

	s.router = gin.New()
	s.router.UseRawPath = true
	Register(s.router, h)
	return s
}

func (s *testServer) stop() {
	s.cancel()
	<-s.stopped
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) launch(t *testing.T, body gin.H) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/components", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		ID string `json:"id"`
	}](t, w).ID
}

func (s *testServer) component(t *testing.T, cid string) types.Component {
	t.Helper()
	w := s.do(t, http.MethodGet, "/components/"+cid, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[struct {
		Component types.Component `json:"component"`
	}](t, w).Component
}

func TestLaunchAndGet(t *testing.T) {
	s := newTestServer(t)

	cid := s.launch(t, gin.H{"identity": mainID})
	comp := s.component(t, cid)
	assert.Equal(t, types.StateResumed, comp.State)
	assert.Equal(t, types.Identity(mainID), comp.Identity)

	w := s.do(t, http.MethodGet, "/components", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[struct {
		Count int `json:"count"`
	}](t, w).Count)

	w = s.do(t, http.MethodGet, "/priority", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "foreground", decode[map[string]interface{}](t, w)["rank"])
}

func TestLaunchValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing identity", gin.H{"action": "view"}, http.StatusBadRequest},
		{"unknown flag", gin.H{"identity": mainID, "flags": []string{"sideways"}}, http.StatusBadRequest},
		{"dead caller", gin.H{"identity": mainID, "caller_id": "cmp_gone"}, http.StatusNotFound},
		{"not json", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/components", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestResultRoundTrip(t *testing.T) {
	s := newTestServer(t)

	caller := s.launch(t, gin.H{"identity": mainID})
	callee := s.launch(t, gin.H{"identity": detailID, "caller_id": caller, "request_code": 7})

	assert.Equal(t, types.StateStopped, s.component(t, caller).State)

	w := s.do(t, http.MethodPut, "/components/"+callee+"/result", gin.H{"code": types.ResultOK, "data": gin.H{"picked": "x"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/components/"+callee+"/finish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, types.StateResumed, s.component(t, caller).State)
	require.Len(t, s.results, 1)
	assert.Equal(t, 7, s.results[0].RequestCode)
	assert.Equal(t, types.ResultOK, s.results[0].ResultCode)
	assert.Equal(t, "x", s.results[0].Data["picked"])

	w = s.do(t, http.MethodGet, "/components/"+callee, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)

	caller := s.launch(t, gin.H{"identity": mainID})
	callee := s.launch(t, gin.H{"identity": detailID, "caller_id": caller, "request_code": 1})

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"finish unknown", http.MethodPost, "/components/" + string(id.NewComponentID()) + "/finish", http.StatusNotFound},
		{"unknown task", http.MethodPost, "/tasks/" + string(id.NewTaskID()) + "/front", http.StatusNotFound},
		{"malformed component id", http.MethodPost, "/components/cmp_missing/finish", http.StatusBadRequest},
		{"task id used as component id", http.MethodGet, "/components/" + string(id.NewTaskID()), http.StatusBadRequest},
		{"malformed task id", http.MethodGet, "/tasks/main", http.StatusBadRequest},
		{"result pending", http.MethodPost, "/components/" + callee + "/finish-affinity", http.StatusConflict},
		{"resumed not killable", http.MethodPost, "/components/" + callee + "/reclaim", http.StatusConflict},
		{"bad trim count", http.MethodPost, "/host/trim?count=zero", http.StatusBadRequest},
		{"stop unknown service", http.MethodDelete, "/host/services/sync", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestTasksAndNavigation(t *testing.T) {
	s := newTestServer(t)

	first := s.launch(t, gin.H{"identity": mainID})
	second := s.launch(t, gin.H{"identity": "com.other/.Viewer", "flags": []string{"new_task"}})
	tid := s.component(t, first).TaskID

	w := s.do(t, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode[struct {
		Tasks []types.Task `json:"tasks"`
	}](t, w).Tasks
	require.Len(t, tasks, 2)
	assert.Equal(t, s.component(t, second).TaskID, tasks[0].ID)

	w = s.do(t, http.MethodPost, "/tasks/"+string(tid)+"/front", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.StateResumed, s.component(t, first).State)
	assert.Equal(t, types.StateStopped, s.component(t, second).State)

	s.launch(t, gin.H{"identity": detailID, "caller_id": first})
	w = s.do(t, http.MethodPost, "/tasks/"+string(tid)+"/navigate-up", gin.H{"identity": mainID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		Result controller.NavigateResult `json:"result"`
	}](t, w).Result
	assert.Equal(t, first, string(res.Target))
	assert.False(t, res.RootReached)

	w = s.do(t, http.MethodGet, "/tasks/"+string(tid), nil)
	require.Equal(t, http.StatusOK, w.Code)
	task := decode[struct {
		Task types.Task `json:"task"`
	}](t, w).Task
	assert.Len(t, task.Stack, 1)
}

func TestConfigurationChange(t *testing.T) {
	s := newTestServer(t)
	s.launch(t, gin.H{"identity": mainID})

	w := s.do(t, http.MethodPost, "/host/configuration", gin.H{"keys": []string{"orientation"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, w)["recreated"])
}

func TestServices(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/host/services", gin.H{"name": "sync", "foreground": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/priority", nil)
	assert.Equal(t, "foreground_service", decode[map[string]interface{}](t, w)["rank"])

	w = s.do(t, http.MethodPost, "/host/services", gin.H{"foreground": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/host/services/sync", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/priority", nil)
	assert.Equal(t, "empty", decode[map[string]interface{}](t, w)["rank"])
}

func TestDefinitions(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/definitions", gin.H{
		"identity":    "com.example/.Picker",
		"launch_mode": "single_top",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/definitions", gin.H{
		"identity":    "com.example/.Broken",
		"launch_mode": "sometimes",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/definitions/com.example%2F.Picker", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	def := decode[registry.Definition](t, w)
	assert.Equal(t, registry.LaunchSingleTop, def.LaunchMode)
	assert.Equal(t, "api", def.Source)

	w = s.do(t, http.MethodGet, "/definitions?affinity=com.example", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode[map[string]interface{}](t, w)["count"])

	w = s.do(t, http.MethodDelete, "/definitions/com.example%2F.Picker", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/definitions/com.example%2F.Picker", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrimMemory(t *testing.T) {
	s := newTestServer(t)

	bottom := s.launch(t, gin.H{"identity": mainID})
	s.launch(t, gin.H{"identity": detailID, "caller_id": bottom})

	w := s.do(t, http.MethodPost, "/host/trim?count=5", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reclaimed := decode[struct {
		Reclaimed []string `json:"reclaimed"`
	}](t, w).Reclaimed
	assert.Equal(t, []string{bottom}, reclaimed)

	w = s.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[struct {
		Controller types.Stats `json:"controller"`
	}](t, w).Controller
	assert.Equal(t, 1, stats.ByState["reclaimed"])
}

func TestLogs(t *testing.T) {
	s := newTestServer(t)
	cid := s.launch(t, gin.H{"identity": mainID})

	w := s.do(t, http.MethodPost, "/components/"+cid+"/logs", LogBatch{
		Entries: []ComponentLogEntry{
			{Level: "warn", Message: "slow frame", Fields: map[string]interface{}{"ms": 40.0}},
			{Level: "fatal", Message: "cannot exit the host"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	entries := s.logs.FilterMessage("slow frame").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, cid, fields["component"])
	assert.Equal(t, mainID, fields["identity"])
	assert.Equal(t, 40.0, fields["ms"])
	assert.Equal(t, zap.WarnLevel, entries[0].Level)

	downgraded := s.logs.FilterMessage("cannot exit the host").All()
	require.Len(t, downgraded, 1)
	assert.Equal(t, zap.InfoLevel, downgraded[0].Level)

	w = s.do(t, http.MethodPost, "/components/"+cid+"/logs", LogBatch{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/components/"+string(id.NewComponentID())+"/logs", LogBatch{
		Entries: []ComponentLogEntry{{Message: "orphan"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/logs/level", gin.H{"level": "debug"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/logs/level", nil)
	assert.Equal(t, "debug", decode[map[string]interface{}](t, w)["level"])

	w = s.do(t, http.MethodPut, "/logs/level", gin.H{"level": "shouty"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAfterLoopStops(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]interface{}](t, w)["status"])

	s.stop()

	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = s.do(t, http.MethodPost, "/components", gin.H{"identity": mainID})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthReportsOpenBreaker(t *testing.T) {
	s := newTestServer(t)

	_ = s.breaker.Do(context.Background(), func(context.Context) error {
		return errors.New("disk full")
	})

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Status   string                `json:"status"`
		Breakers []resilience.Snapshot `json:"breakers"`
	}](t, w)
	assert.Equal(t, "degraded", body.Status)
	require.Len(t, body.Breakers, 1)
	assert.Equal(t, "state-store", body.Breakers[0].Name)
	assert.Equal(t, uint32(0), body.Breakers[0].Counts.Requests)
}

func TestConcurrentLaunches(t *testing.T) {
	s := newTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := s.do(t, http.MethodPost, "/components", gin.H{"identity": detailID})
			assert.Equal(t, http.StatusCreated, w.Code)
		}()
	}
	wg.Wait()

	w := s.do(t, http.MethodGet, "/stats", nil)
	stats := decode[struct {
		Controller types.Stats `json:"controller"`
	}](t, w).Controller
	assert.Equal(t, 8, stats.TotalComponents)
	assert.Equal(t, 1, stats.ByState["resumed"])
}
