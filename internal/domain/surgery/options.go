package surgery

import (
	"context"
	"time"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/felixgeelhaar/theatre/internal/ports"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Catalog is the read-only definition lookup the engine consumes.
type Catalog interface {
	FindOperation(id string) (procedure.Operation, bool)
	FindStep(id procedure.StepID) (procedure.Step, bool)
}

// Body exposes the target state the engine needs for necessity predicates
// and terminal effects. Implementations own the anatomy; the engine only asks.
type Body interface {
	// HasFeature reports whether the target currently has the feature.
	HasFeature(target EntityID, feature string) bool
	// BodyOf returns the body a part belongs to, if any.
	BodyOf(part EntityID) (EntityID, bool)
	// Detach removes a part from its body.
	Detach(part EntityID) bool
	// HasOrgan reports whether organ is inside part.
	HasOrgan(part, organ EntityID) bool
	// RemoveOrgan takes organ out of part.
	RemoveOrgan(part, organ EntityID) bool
}

// Metrics records engine activity.
type Metrics interface {
	OperationStarted(operation string)
	OperationEnded(operation string, completed bool)
	StepResolved(behavior BehaviorKind, outcome StepOutcome)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l ports.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithBody sets the body collaborator.
func WithBody(b Body) Option {
	return func(e *Engine) {
		if b != nil {
			e.body = b
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer used for engine spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithDelayScale multiplies every tool delay. Zero makes every step immediate.
func WithDelayScale(scale float64) Option {
	return func(e *Engine) {
		if scale >= 0 {
			e.delayScale = scale
		}
	}
}

func defaultTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("theatre/surgery")
}

type nopBody struct{}

func (nopBody) HasFeature(EntityID, string) bool    { return false }
func (nopBody) BodyOf(EntityID) (EntityID, bool)    { return "", false }
func (nopBody) Detach(EntityID) bool                { return false }
func (nopBody) HasOrgan(EntityID, EntityID) bool    { return false }
func (nopBody) RemoveOrgan(EntityID, EntityID) bool { return false }

type nopMetrics struct{}

func (nopMetrics) OperationStarted(string)                {}
func (nopMetrics) OperationEnded(string, bool)            {}
func (nopMetrics) StepResolved(BehaviorKind, StepOutcome) {}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...ports.Field) {}
func (nopLogger) Info(context.Context, string, ...ports.Field)  {}
func (nopLogger) Warn(context.Context, string, ...ports.Field)  {}
func (nopLogger) Error(context.Context, string, ...ports.Field) {}
func (l nopLogger) With(...ports.Field) ports.Logger            { return l }
func (nopLogger) Level() ports.Level                            { return ports.LevelError }
func (nopLogger) SetLevel(ports.Level)                          {}

func scaleDelay(d time.Duration, scale float64) time.Duration {
	if d <= 0 || scale == 0 {
		return 0
	}
	return time.Duration(float64(d) * scale)
}
