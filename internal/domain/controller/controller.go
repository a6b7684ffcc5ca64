package controller

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/persistence"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/priority"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// Policy holds the host policy switches
type Policy struct {
	// MultiResume lets the top records of the MaxResumed most recent tasks
	// be resumed at once
	MultiResume bool
	MaxResumed  int

	KillPolicy lifecycle.KillPolicy

	// CaptureDeferred captures state just after Stopped commits
	CaptureDeferred bool

	// RequireDefinition refuses launches of identities with no definition
	RequireDefinition bool
}

func (p Policy) resumeSlots() int {
	if !p.MultiResume || p.MaxResumed < 1 {
		return 1
	}
	return p.MaxResumed
}

// Options wires a Controller to its collaborators. Only Policy is required;
// everything else has an in-process default.
type Options struct {
	Policy     Policy
	Registry   *registry.Manager
	Store      persistence.Store
	Windows    WindowManager
	Inflater   Inflater
	Supervisor Supervisor
	Metrics    Metrics
	Tracer     *tracing.Tracer
	Logger     *zap.Logger
}

// record is one arena entry
type record struct {
	c   *types.Component
	def *registry.Definition

	// scheduled is the state the record reaches once every queued event for
	// it has been processed
	scheduled types.State

	// recreate turns the slot into a ghost once the record is destroyed
	recreate bool

	view ViewTree
}

// Controller owns every component record, task and queued lifecycle event.
// It is not safe for concurrent use: drive it from one goroutine, normally
// through a Loop. QueryForegroundPriority is the only method that may be
// called from elsewhere.
type Controller struct {
	machine    *lifecycle.Machine
	registry   *registry.Manager
	dispatch   *registry.Dispatcher
	bridge     *persistence.Bridge
	windows    WindowManager
	inflater   Inflater
	supervisor Supervisor
	metrics    Metrics
	tracer     *tracing.Tracer
	policy     Policy
	logger     *zap.Logger

	records map[id.ComponentID]*record
	ghosts  map[id.ComponentID]*types.Component
	tasks   map[id.TaskID]*types.Task
	// recency is most recent first
	recency []id.TaskID

	queue    []*types.Event
	seq      uint64
	plan     batch
	held     map[id.ComponentID]bool
	teardown map[id.TaskID]int

	services map[string]priority.Service
	rank     atomic.Int32
}

// New creates a controller
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.NewManager()
	}
	store := opts.Store
	if store == nil {
		store = persistence.NewMemoryStore()
	}
	windows := opts.Windows
	if windows == nil {
		windows = NewHeadlessWindows()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	c := &Controller{
		registry:   reg,
		dispatch:   registry.NewDispatcher(reg),
		windows:    windows,
		inflater:   opts.Inflater,
		supervisor: opts.Supervisor,
		metrics:    metrics,
		tracer:     opts.Tracer,
		policy:     opts.Policy,
		logger:     logger,
		records:    make(map[id.ComponentID]*record),
		ghosts:     make(map[id.ComponentID]*types.Component),
		tasks:      make(map[id.TaskID]*types.Task),
		held:       make(map[id.ComponentID]bool),
		teardown:   make(map[id.TaskID]int),
		services:   make(map[string]priority.Service),
	}

	c.bridge = persistence.NewBridge(store, c.dispatch, logger.Named("persistence"), persistence.Options{
		Deferred: opts.Policy.CaptureDeferred,
		Recorder: metrics,
	})

	c.machine = lifecycle.NewMachine(logger.Named("machine"))
	c.machine.Register("window", c.handleWindow)
	c.machine.Register("persistence", c.bridge.Handle)
	c.machine.Register("component", c.dispatch.Handle)
	c.machine.Observe(c.bridge)
	c.machine.Observe(metrics)

	c.rank.Store(int32(types.RankEmpty))
	return c
}

// Observe registers a committed-transition observer
func (c *Controller) Observe(o lifecycle.Observer) {
	c.machine.Observe(o)
}

// Capabilities lists the transition handlers in invocation order
func (c *Controller) Capabilities() []string {
	return c.machine.Capabilities()
}

// Policy returns the active host policy
func (c *Controller) Policy() Policy {
	return c.policy
}

// Drain processes queued events until none is deliverable. Events for
// postponed targets stay queued. It returns the number processed.
func (c *Controller) Drain(ctx context.Context) int {
	var span *tracing.Span
	if c.tracer != nil && len(c.queue) > 0 {
		span, ctx = c.tracer.StartSpan(ctx, "controller.drain")
	}

	n := 0
	for {
		ev, ok := c.next()
		if !ok {
			break
		}
		if span != nil {
			span.Annotate(ev.Kind.String() + " " + ev.Target.String())
		}
		c.process(ctx, ev)
		c.refreshRank()
		n++
	}
	c.metrics.QueueDepth(len(c.queue))

	if span != nil {
		span.SetTag("events", strconv.Itoa(n))
		span.SetTag("held", strconv.Itoa(len(c.held)))
		span.Finish()
		c.tracer.Submit(span)
	}
	return n
}

func (c *Controller) process(ctx context.Context, ev *types.Event) {
	if ev.Kind == types.EventLaunch {
		c.processLaunch(ctx, ev)
		return
	}

	r := c.live(ev.Target)
	if r == nil {
		c.dropEvent(ev)
		return
	}

	if ev.Kind.IsTransition() {
		c.applyTransition(ctx, r, ev.Kind)
		return
	}

	err := guard(func() error {
		switch ev.Kind {
		case types.EventDeliverResult:
			return c.dispatch.DeliverResult(ctx, r.c, ev.Payload.(types.ResultPayload))
		case types.EventDeliverNewIntent:
			return c.dispatch.DeliverNewIntent(ctx, r.c, ev.Payload.(*types.Request))
		case types.EventConfigChange:
			return c.dispatch.ConfigChanged(ctx, r.c, ev.Payload.(types.ConfigChange))
		}
		return nil
	})
	if err != nil {
		failure := &lifecycle.HandlerFailure{
			Component:  r.c.ID,
			Identity:   r.c.Identity,
			Capability: ev.Kind.String(),
			From:       r.c.State,
			To:         types.StateDestroyed,
			Err:        err,
		}
		c.machine.ForceDestroy(r.c)
		c.componentFailed(ctx, r, failure)
		c.metrics.EventProcessed(ev.Kind, OutcomeFailed)
		return
	}
	c.metrics.EventProcessed(ev.Kind, OutcomeDelivered)
}

// applyTransition runs one lifecycle edge through the state machine and
// handles what follows the commit
func (c *Controller) applyTransition(ctx context.Context, r *record, kind types.EventKind) {
	t, err := c.machine.Apply(ctx, r.c, kind)
	if err != nil {
		var failure *lifecycle.HandlerFailure
		if errors.As(err, &failure) {
			c.componentFailed(ctx, r, failure)
			c.metrics.EventProcessed(kind, OutcomeFailed)
			return
		}
		c.logger.Warn("Dropping invalid transition",
			zap.String("kind", string(lifecycle.KindOf(err))),
			zap.String("component", r.c.ID.String()),
			zap.Error(err),
		)
		c.metrics.EventProcessed(kind, OutcomeInvalid)
		c.reproject(r)
		return
	}
	c.metrics.EventProcessed(kind, OutcomeApplied)

	if t.Postponed() && r.c.State.Live() {
		c.held[r.c.ID] = true
	}

	switch r.c.State {
	case types.StateDestroyed:
		c.retire(ctx, r)
	case types.StateStopped:
		if r.c.NoHistory && !r.c.Finishing && r.scheduled == types.StateStopped {
			c.finishRecord(ctx, r, false)
			c.reconcile(ctx)
		}
	}
}

// retire removes a destroyed record from the arena
func (c *Controller) retire(ctx context.Context, r *record) {
	cid := r.c.ID
	delete(c.records, cid)
	delete(c.held, cid)
	c.dropQueued(cid)

	switch {
	case r.c.Finishing:
		c.teardownDone(r.c.TaskID)
	case r.recreate:
		c.ghostify(r)
		c.reconcile(ctx)
	}
}

// componentFailed cleans up after a callback failure and reports it upward
func (c *Controller) componentFailed(ctx context.Context, r *record, failure *lifecycle.HandlerFailure) {
	c.logger.Error("Component failed in its own callback",
		zap.String("kind", string(lifecycle.KindTransitionHandlerFailure)),
		zap.String("component", r.c.ID.String()),
		zap.String("identity", string(r.c.Identity)),
		zap.String("capability", failure.Capability),
		zap.Error(failure.Err),
	)
	c.metrics.ComponentFailed(r.c.Identity, lifecycle.KindTransitionHandlerFailure)

	c.releaseWindow(ctx, r.c)
	wasFinishing := r.c.Finishing
	if !wasFinishing {
		c.bridge.Discard(ctx, r.c)
		c.removeFromTask(ctx, r.c, false)
	}

	cid := r.c.ID
	delete(c.records, cid)
	delete(c.held, cid)
	c.dropQueued(cid)

	if wasFinishing {
		c.teardownDone(r.c.TaskID)
	} else if r.c.ResultTarget != nil {
		c.routeResult(r.c, types.Result{Code: types.ResultCanceled})
	}

	if c.supervisor != nil {
		c.supervisor.ComponentFailed(r.c.Snapshot(), failure)
	}
	c.reconcile(ctx)
}

// live returns the arena entry for cid if it is not destroyed
func (c *Controller) live(cid id.ComponentID) *record {
	r, ok := c.records[cid]
	if !ok || !r.c.State.Live() {
		return nil
	}
	return r
}

// definition resolves the definition for identity, or an empty one
func (c *Controller) definition(identity types.Identity) (*registry.Definition, error) {
	if def, ok := c.registry.Get(identity); ok {
		return def, nil
	}
	if c.policy.RequireDefinition {
		return nil, registry.ErrUnknownComponent
	}
	return &registry.Definition{Identity: identity, LaunchMode: registry.LaunchStandard}, nil
}

// snapshot is the evaluator's view of the controller
func (c *Controller) snapshot() priority.Snapshot {
	records := make(map[id.ComponentID]*types.Component, len(c.records))
	for cid, r := range c.records {
		records[cid] = r.c
	}
	tasks := make([]*types.Task, 0, len(c.recency))
	for _, tid := range c.recency {
		tasks = append(tasks, c.tasks[tid])
	}
	services := make([]priority.Service, 0, len(c.services))
	for _, s := range c.services {
		services = append(services, s)
	}
	return priority.Snapshot{Records: records, Tasks: tasks, Services: services}
}

func (c *Controller) refreshRank() {
	next := priority.Rank(c.snapshot())
	if prev := types.Rank(c.rank.Swap(int32(next))); prev != next {
		c.metrics.RankChanged(next)
	}
}

// QueryForegroundPriority returns the host's reclaim rank as of the last
// committed transition. Safe from any goroutine.
func (c *Controller) QueryForegroundPriority() types.Rank {
	return types.Rank(c.rank.Load())
}

// Get returns a copy of a live record
func (c *Controller) Get(cid id.ComponentID) (types.Component, bool) {
	r, ok := c.records[cid]
	if !ok {
		return types.Component{}, false
	}
	return r.c.Snapshot(), true
}

// View returns the inflated view tree of a record
func (c *Controller) View(cid id.ComponentID) (ViewTree, bool) {
	r, ok := c.records[cid]
	if !ok || r.view == nil {
		return nil, false
	}
	return r.view, true
}

// Components returns copies of every record, task by task in recency order,
// bottom of each stack first, followed by detached finishing records
func (c *Controller) Components() []types.Component {
	out := make([]types.Component, 0, len(c.records))
	seen := make(map[id.ComponentID]bool, len(c.records))
	for _, tid := range c.recency {
		for _, cid := range c.tasks[tid].Stack {
			if r, ok := c.records[cid]; ok {
				out = append(out, r.c.Snapshot())
				seen[cid] = true
			}
		}
	}
	for cid, r := range c.records {
		if !seen[cid] {
			out = append(out, r.c.Snapshot())
		}
	}
	return out
}

// Task returns a copy of a task
func (c *Controller) Task(tid id.TaskID) (types.Task, bool) {
	t, ok := c.tasks[tid]
	if !ok {
		return types.Task{}, false
	}
	return t.Snapshot(), true
}

// Tasks returns copies of every task, most recent first
func (c *Controller) Tasks() []types.Task {
	out := make([]types.Task, 0, len(c.recency))
	for _, tid := range c.recency {
		out = append(out, c.tasks[tid].Snapshot())
	}
	return out
}

// ForegroundTask is the most recently active task, if any
func (c *Controller) ForegroundTask() (id.TaskID, bool) {
	if len(c.recency) == 0 {
		return "", false
	}
	return c.recency[0], true
}

// Resumed lists the currently resumed records
func (c *Controller) Resumed() []id.ComponentID {
	var out []id.ComponentID
	for _, tid := range c.recency {
		for _, cid := range c.tasks[tid].Stack {
			if r, ok := c.records[cid]; ok && r.c.State == types.StateResumed {
				out = append(out, cid)
			}
		}
	}
	return out
}

// Stats returns controller statistics
func (c *Controller) Stats() types.Stats {
	byState := make(map[string]int)
	for _, r := range c.records {
		byState[r.c.State.String()]++
	}
	if len(c.ghosts) > 0 {
		byState["reclaimed"] = len(c.ghosts)
	}

	stats := types.Stats{
		TotalComponents: len(c.records),
		ByState:         byState,
		Tasks:           len(c.tasks),
		QueueDepth:      len(c.queue),
		Postponed:       len(c.held),
		Priority:        c.QueryForegroundPriority(),
	}
	if tid, ok := c.ForegroundTask(); ok {
		stats.ForegroundTask = &tid
	}
	return stats
}

// now is the controller's clock
func now() time.Time {
	return time.Now()
}
