package flow

import (
	"context"
	"log/slog"
)

// Observer receives callbacks from the executor for logging and metrics.
// Implementations should be fast and non-blocking; heavy work should be
// done asynchronously so as not to delay a run.
type Observer interface {
	OnSubmit(ctx context.Context, run *Run)
	OnDispatch(ctx context.Context, run *Run)
	OnElement(ctx context.Context, run *Run, element *Element)
	OnComplete(ctx context.Context, run *Run)
	OnFail(ctx context.Context, run *Run, err error)
	OnCancel(ctx context.Context, run *Run)
}

// NoopObserver discards every callback. It is the default when no
// Observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnSubmit(ctx context.Context, run *Run)                  {}
func (NoopObserver) OnDispatch(ctx context.Context, run *Run)                {}
func (NoopObserver) OnElement(ctx context.Context, run *Run, el *Element)    {}
func (NoopObserver) OnComplete(ctx context.Context, run *Run)                {}
func (NoopObserver) OnFail(ctx context.Context, run *Run, err error)         {}
func (NoopObserver) OnCancel(ctx context.Context, run *Run)                  {}

// CompositeObserver fans out callbacks to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver builds an Observer that forwards to each non-nil
// observer in obs, in order. A single non-nil observer is returned as-is;
// zero observers yield a NoopObserver.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopObserver{}
	case 1:
		return filtered[0]
	default:
		return &CompositeObserver{observers: filtered}
	}
}

func (c *CompositeObserver) OnSubmit(ctx context.Context, run *Run) {
	for _, o := range c.observers {
		o.OnSubmit(ctx, run)
	}
}

func (c *CompositeObserver) OnDispatch(ctx context.Context, run *Run) {
	for _, o := range c.observers {
		o.OnDispatch(ctx, run)
	}
}

func (c *CompositeObserver) OnElement(ctx context.Context, run *Run, el *Element) {
	for _, o := range c.observers {
		o.OnElement(ctx, run, el)
	}
}

func (c *CompositeObserver) OnComplete(ctx context.Context, run *Run) {
	for _, o := range c.observers {
		o.OnComplete(ctx, run)
	}
}

func (c *CompositeObserver) OnFail(ctx context.Context, run *Run, err error) {
	for _, o := range c.observers {
		o.OnFail(ctx, run, err)
	}
}

func (c *CompositeObserver) OnCancel(ctx context.Context, run *Run) {
	for _, o := range c.observers {
		o.OnCancel(ctx, run)
	}
}

// LoggingObserver logs every callback through a *slog.Logger at a level
// appropriate to the event.
type LoggingObserver struct {
	log *slog.Logger
}

// NewLoggingObserver wraps logger (or slog.Default() if nil) as an Observer.
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{log: logger}
}

func (l *LoggingObserver) OnSubmit(ctx context.Context, run *Run) {
	l.log.InfoContext(ctx, "flow run submitted", "run_id", run.ID, "flow", run.FlowName)
}

func (l *LoggingObserver) OnDispatch(ctx context.Context, run *Run) {
	l.log.InfoContext(ctx, "flow run dispatched", "run_id", run.ID, "flow", run.FlowName)
}

func (l *LoggingObserver) OnElement(ctx context.Context, run *Run, el *Element) {
	l.log.DebugContext(ctx, "flow run emitted element", "run_id", run.ID, "element_id", el.ID)
}

func (l *LoggingObserver) OnComplete(ctx context.Context, run *Run) {
	l.log.InfoContext(ctx, "flow run completed", "run_id", run.ID, "flow", run.FlowName)
}

func (l *LoggingObserver) OnFail(ctx context.Context, run *Run, err error) {
	l.log.ErrorContext(ctx, "flow run failed", "run_id", run.ID, "flow", run.FlowName, "error", err)
}

func (l *LoggingObserver) OnCancel(ctx context.Context, run *Run) {
	l.log.WarnContext(ctx, "flow run canceled", "run_id", run.ID, "flow", run.FlowName)
}
