package tracing

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
)

// Propagation headers
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// TraceID represents a unique trace identifier
type TraceID string

// SpanID represents a unique span identifier
type SpanID string

// Span is one timed operation: an HTTP request or a controller drain.
// A span is owned by the goroutine that started it until Submit.
type Span struct {
	TraceID     TraceID
	SpanID      SpanID
	ParentID    SpanID
	Name        string
	Service     string
	StartTime   time.Time
	Duration    time.Duration
	Tags        map[string]string
	Annotations []Annotation
	Error       error
	StatusCode  int
}

// Annotation is a timestamped note inside a span, such as one processed
// lifecycle event
type Annotation struct {
	Offset  time.Duration
	Message string
}

// Option configures a Tracer
type Option func(*Tracer)

// WithBuffer sets how many finished spans may wait for the collector
func WithBuffer(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.buffer = n
		}
	}
}

// WithSlowThreshold logs spans at least this long at info level instead of
// debug
func WithSlowThreshold(d time.Duration) Option {
	return func(t *Tracer) { t.slow = d }
}

// Tracer collects finished spans on its own goroutine and logs them
type Tracer struct {
	service string
	logger  *zap.Logger
	buffer  int
	slow    time.Duration
	spans   chan *Span
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// New creates a tracer and starts its collector
func New(service string, logger *zap.Logger, opts ...Option) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		buffer:  1000,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.spans = make(chan *Span, t.buffer)

	go t.collect()
	return t
}

// Close stops accepting spans and waits until the buffered ones are logged
func (t *Tracer) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.spans)
	}
	t.mu.Unlock()
	<-t.done
}

// Dropped returns the number of spans lost to a full buffer
func (t *Tracer) Dropped() int64 {
	return t.dropped.Load()
}

// StartSpan creates a span that continues the trace in ctx, or starts a new
// trace
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.NewRequestID()),
		ParentID:  SpanIDFrom(ctx),
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}
	return span, WithTrace(ctx, traceID, span.SpanID)
}

// Submit hands a finished span to the collector. It never blocks; after
// Close it does nothing.
func (t *Tracer) Submit(span *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.spans <- span:
	default:
		t.dropped.Add(1)
	}
}

// Finish records the span's duration
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.Error = err
	if s.StatusCode < http.StatusInternalServerError {
		s.StatusCode = http.StatusInternalServerError
	}
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Annotate appends a note at the current offset into the span
func (s *Span) Annotate(message string) {
	s.Annotations = append(s.Annotations, Annotation{
		Offset:  time.Since(s.StartTime),
		Message: message,
	})
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.log(span)
	}
}

func (t *Tracer) log(span *Span) {
	fields := make([]zap.Field, 0, 8+len(span.Tags))
	fields = append(fields,
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
	)
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}
	if len(span.Annotations) > 0 {
		notes := make([]string, len(span.Annotations))
		for i, a := range span.Annotations {
			notes[i] = a.Offset.String() + " " + a.Message
		}
		fields = append(fields, zap.Strings("annotations", notes))
	}

	switch {
	case span.Error != nil:
		t.logger.Error("span completed with error", append(fields, zap.Error(span.Error))...)
	case t.slow > 0 && span.Duration >= t.slow:
		t.logger.Info("slow span", fields...)
	default:
		t.logger.Debug("span completed", fields...)
	}
}

type contextKey int

const (
	traceIDKey contextKey = iota
	spanIDKey
)

// WithTrace returns ctx carrying the trace and span ids. Empty ids are not
// stored.
func WithTrace(ctx context.Context, traceID TraceID, spanID SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, spanID)
	}
	return ctx
}

// TraceIDFrom retrieves the trace ID from context
func TraceIDFrom(ctx context.Context) TraceID {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	return traceID
}

// SpanIDFrom retrieves the current span ID from context
func SpanIDFrom(ctx context.Context) SpanID {
	spanID, _ := ctx.Value(spanIDKey).(SpanID)
	return spanID
}

// Extract reads the propagation headers
func Extract(h http.Header) (TraceID, SpanID) {
	return TraceID(h.Get(HeaderTraceID)), SpanID(h.Get(HeaderSpanID))
}

// Inject writes the trace context in ctx into h
func Inject(ctx context.Context, h http.Header) {
	if traceID := TraceIDFrom(ctx); traceID != "" {
		h.Set(HeaderTraceID, string(traceID))
	}
	if spanID := SpanIDFrom(ctx); spanID != "" {
		h.Set(HeaderSpanID, string(spanID))
	}
}
