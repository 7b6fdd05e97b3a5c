package flowengine

import (
	"context"
	"log/slog"

	"github.com/flowrun/flowengine/internal/executor"
	"github.com/flowrun/flowengine/internal/queue"
	"github.com/flowrun/flowengine/internal/registry"
	"github.com/flowrun/flowengine/internal/store"
	"github.com/flowrun/flowengine/pkg/flow"
)

// Re-export the public flow types so callers don't need to import pkg/flow.
type (
	Flow              = flow.Flow
	Emission          = flow.Emission
	RunContext        = flow.RunContext
	Run               = flow.Run
	Element           = flow.Element
	Status            = flow.Status
	Observer          = flow.Observer
	NoopObserver      = flow.NoopObserver
	LoggingObserver   = flow.LoggingObserver
	CompositeObserver = flow.CompositeObserver
)

const (
	StatusPending   = flow.StatusPending
	StatusRunning   = flow.StatusRunning
	StatusCompleted = flow.StatusCompleted
	StatusFailed    = flow.StatusFailed
	StatusCanceled  = flow.StatusCanceled
)

var (
	NewLoggingObserver   = flow.NewLoggingObserver
	NewCompositeObserver = flow.NewCompositeObserver
)

// Option configures an Engine's underlying executor.
type Option = executor.Option

var (
	WithMaxConcurrent          = executor.WithMaxConcurrent
	WithVisibilityTimeout      = executor.WithVisibilityTimeout
	WithDispatcherIdleInterval = executor.WithDispatcherIdleInterval
	WithDispatcherErrorBackoff = executor.WithDispatcherErrorBackoff
	WithObserver               = executor.WithObserver
	WithLogger                 = executor.WithLogger
)

// Engine is the queued execution engine: the public facade over the flow
// registry, flow store, flow queue, and queued executor.
type Engine struct {
	reg *registry.Registry
	ex  *executor.Executor
}

// FlowStore and FlowQueue are the pluggable backend interfaces a caller may
// swap in via NewEngine. The in-memory defaults live in NewInMemoryEngine.
type (
	FlowStore = store.FlowStore
	FlowQueue = queue.FlowQueue
)

// NewEngine builds an Engine over caller-supplied store and queue
// implementations, e.g. the sqlitestore/redisstore/postgresstore/mongostore
// backends.
func NewEngine(st FlowStore, q FlowQueue, opts ...Option) *Engine {
	reg := registry.New()
	return &Engine{
		reg: reg,
		ex:  executor.New(reg, st, q, opts...),
	}
}

// NewInMemoryEngine builds an Engine backed entirely by in-memory store and
// queue implementations. This is the reference configuration: convenient
// for tests and local development, but not durable across restarts.
func NewInMemoryEngine(opts ...Option) *Engine {
	return NewEngine(store.NewInMemoryStore(), queue.NewInMemoryQueue(), opts...)
}

// RegisterFlow registers f for later Submit calls by f.Name().
func (e *Engine) RegisterFlow(f Flow) {
	e.reg.Register(f)
}

// Start launches the engine's background dispatcher. It must be called
// before any submitted run will actually be dispatched to a worker.
func (e *Engine) Start(ctx context.Context) error {
	return e.ex.Start(ctx)
}

// Stop initiates graceful shutdown: see executor.Executor.Stop.
func (e *Engine) Stop(ctx context.Context) error {
	return e.ex.Stop(ctx)
}

// Submit creates a run, persists it in Pending status, and enqueues it for
// dispatch. It fails with registry.ErrUnknownFlow if name is not registered.
func (e *Engine) Submit(ctx context.Context, name string, input any, userID string) (string, error) {
	return e.ex.Submit(ctx, name, input, userID)
}

// GetStatus returns the run's status, or StatusPending if unknown.
func (e *Engine) GetStatus(ctx context.Context, runID string) (Status, error) {
	return e.ex.GetStatus(ctx, runID)
}

// GetRun returns the full run record.
func (e *Engine) GetRun(ctx context.Context, runID string) (*Run, error) {
	return e.ex.GetRun(ctx, runID)
}

// GetElements returns a run's ordered elements.
func (e *Engine) GetElements(ctx context.Context, runID string) ([]*Element, error) {
	return e.ex.GetElements(ctx, runID)
}

// GetResult returns a run's terminal result, or store.ErrResultNotFound.
func (e *Engine) GetResult(ctx context.Context, runID string) (any, error) {
	return e.ex.GetResult(ctx, runID)
}

// ListRunsForUser returns up to limit runs for userID, most recent first.
func (e *Engine) ListRunsForUser(ctx context.Context, userID string, limit int) ([]*Run, error) {
	return e.ex.ListRunsForUser(ctx, userID, limit)
}

// Cancel signals cancellation for a running run. It returns false if the
// run is not currently executing (pending, terminal, or unknown).
func (e *Engine) Cancel(ctx context.Context, runID string) bool {
	return e.ex.Cancel(ctx, runID)
}

// DefaultLogger is used by engine components when no *slog.Logger is
// configured via WithLogger.
func DefaultLogger() *slog.Logger { return slog.Default() }
