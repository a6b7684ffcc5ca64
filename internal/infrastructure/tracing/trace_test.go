package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(t *testing.T, opts ...Option) (*Tracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return New("lifecycle", zap.New(core), opts...), logs
}

func TestStartSpanPropagatesTrace(t *testing.T) {
	tracer, _ := newObserved(t)
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "parent")
	child, childCtx := tracer.StartSpan(ctx, "child")

	assert.NotEmpty(t, parent.TraceID)
	assert.Empty(t, parent.ParentID)
	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
	assert.Equal(t, child.SpanID, SpanIDFrom(childCtx))
	assert.Equal(t, parent.TraceID, TraceIDFrom(childCtx))

	h := http.Header{}
	Inject(childCtx, h)
	traceID, spanID := Extract(h)
	assert.Equal(t, child.TraceID, traceID)
	assert.Equal(t, child.SpanID, spanID)
}

func TestWithTraceSkipsEmptyIDs(t *testing.T) {
	ctx := WithTrace(context.Background(), "", "")
	assert.Empty(t, TraceIDFrom(ctx))
	assert.Empty(t, SpanIDFrom(ctx))

	h := http.Header{}
	Inject(ctx, h)
	assert.Empty(t, h)
}

func TestCloseFlushesSpans(t *testing.T) {
	tracer, logs := newObserved(t)

	ok, _ := tracer.StartSpan(context.Background(), "controller.drain")
	ok.SetTag("events", "3")
	ok.Annotate("resume cmp_1")
	ok.Finish()
	tracer.Submit(ok)

	failed, _ := tracer.StartSpan(context.Background(), "store.put")
	failed.SetError(errors.New("disk full"))
	failed.Finish()
	tracer.Submit(failed)

	tracer.Close()
	tracer.Close()

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "span completed", entries[0].Message)
	assert.Equal(t, "3", entries[0].ContextMap()["events"])
	require.Len(t, ok.Annotations, 1)
	assert.Equal(t, "resume cmp_1", ok.Annotations[0].Message)
	assert.Equal(t, "span completed with error", entries[1].Message)
	assert.Equal(t, http.StatusInternalServerError, failed.StatusCode)

	// submitting after close is a no-op
	late, _ := tracer.StartSpan(context.Background(), "late")
	assert.NotPanics(t, func() { tracer.Submit(late) })
	assert.Zero(t, tracer.Dropped())
}

func TestSlowSpansLoggedAtInfo(t *testing.T) {
	tracer, logs := newObserved(t, WithSlowThreshold(time.Millisecond))

	span, _ := tracer.StartSpan(context.Background(), "controller.drain")
	span.Duration = 5 * time.Millisecond
	tracer.Submit(span)
	tracer.Close()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "slow span", logs.All()[0].Message)
	assert.Equal(t, zap.InfoLevel, logs.All()[0].Level)
}

func TestFullBufferDropsSpans(t *testing.T) {
	tracer := &Tracer{
		service: "lifecycle",
		logger:  zap.NewNop(),
		spans:   make(chan *Span, 1),
		done:    make(chan struct{}),
	}

	for i := 0; i < 3; i++ {
		span, _ := tracer.StartSpan(context.Background(), "drain")
		tracer.Submit(span)
	}
	assert.Equal(t, int64(2), tracer.Dropped())
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObserved(t)

	var seen TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/tasks", func(c *gin.Context) {
		seen = TraceIDFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set(HeaderTraceID, "trace-from-caller")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, TraceID("trace-from-caller"), seen)
	assert.Equal(t, "trace-from-caller", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))

	tracer.Close()
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/tasks", fields["operation"])
	assert.Equal(t, "204", fields["http.status"])
}
