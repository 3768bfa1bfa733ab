// Package action runs every write through the same sequence: authorize,
// mutate, record an audit entry, notify the owner. Only the first two can
// fail a request; audit and notification failures are logged and dropped.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/marketbook/internal/guard"
	"github.com/erazemk/marketbook/internal/model"
)

// Phase is a pipeline state.
type Phase string

const (
	PhaseAuthorizing Phase = "authorizing"
	PhaseMutating    Phase = "mutating"
	PhaseRecording   Phase = "recording"
	PhaseNotifying   Phase = "notifying"
	PhaseDone        Phase = "done"
	PhaseAborted     Phase = "aborted"
	PhaseFailed      Phase = "failed"
)

// AuditRecorder appends audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry model.AuditEntry) error
}

// Notifier delivers a notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Pipeline holds the side channels and instrumentation shared by all actions.
type Pipeline struct {
	audit    AuditRecorder
	notifier Notifier
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// NewPipeline creates a Pipeline. metrics may be nil.
func NewPipeline(audit AuditRecorder, notifier Notifier, logger *slog.Logger, metrics *Metrics) *Pipeline {
	return &Pipeline{
		audit:    audit,
		notifier: notifier,
		logger:   logger.With("component", "action"),
		metrics:  metrics,
		tracer:   otel.Tracer("github.com/erazemk/marketbook/internal/action"),
	}
}

// Step describes one orchestrated operation.
type Step[T any] struct {
	// Operation names the action in logs, metrics and spans, e.g. "item.update".
	Operation string
	Actor     *model.User
	Client    model.ClientInfo

	// Authorize resolves the target and returns it for the guard. It must
	// return an error wrapping model.ErrNotFound when the target is missing.
	// Nil skips the guard (create, register, login).
	Authorize func(ctx context.Context) (guard.Resource, error)

	// Validate checks the input once the guard has allowed the actor. A
	// rejection aborts the action without touching the store.
	Validate func() error

	// Mutate performs the operation of record.
	Mutate func(ctx context.Context) (T, error)

	// Audit and Notify build the side-channel records from the result.
	// Either may be nil or return nil to skip its phase.
	Audit  func(result T) *model.AuditEntry
	Notify func(result T) *model.Notification
}

// Run executes step. The returned error is always from authorization or the
// mutation; side channels cannot change the outcome.
func Run[T any](ctx context.Context, p *Pipeline, step Step[T]) (T, error) {
	var zero T
	ctx, span := p.tracer.Start(ctx, step.Operation)
	defer span.End()

	log := p.logger.With("operation", step.Operation)
	if step.Actor != nil {
		log = log.With("actor_id", step.Actor.ID)
		span.SetAttributes(attribute.Int64("actor.id", step.Actor.ID))
	}

	if step.Authorize != nil || step.Validate != nil {
		if err := p.authorize(ctx, step.Actor, step.Authorize, step.Validate); err != nil {
			state := PhaseAborted
			if !rejected(err) {
				state = PhaseFailed
			}
			p.finish(span, step.Operation, state, err)
			log.Debug("action stopped before mutation", "state", state, "error", err)
			return zero, err
		}
	}

	var result T
	err := p.phase(ctx, PhaseMutating, func(ctx context.Context) error {
		var err error
		result, err = step.Mutate(ctx)
		return err
	})
	if err != nil {
		p.finish(span, step.Operation, PhaseFailed, err)
		log.Debug("action failed", "error", err)
		return zero, err
	}

	// Side channels outlive a cancelled request.
	sideCtx := context.WithoutCancel(ctx)

	if step.Audit != nil {
		p.sideChannel(sideCtx, log, step.Operation, PhaseRecording, func(ctx context.Context) error {
			entry := step.Audit(result)
			if entry == nil {
				return nil
			}
			if step.Actor != nil && entry.ActorUserID == 0 {
				entry.ActorUserID = step.Actor.ID
			}
			entry.IPAddress = step.Client.IPAddress
			entry.UserAgent = step.Client.UserAgent
			return p.audit.Record(ctx, *entry)
		})
	}

	if step.Notify != nil {
		p.sideChannel(sideCtx, log, step.Operation, PhaseNotifying, func(ctx context.Context) error {
			n := step.Notify(result)
			if n == nil {
				return nil
			}
			return p.notifier.Notify(ctx, *n)
		})
	}

	p.finish(span, step.Operation, PhaseDone, nil)
	return result, nil
}

// authorize resolves the target, asks the guard, then validates the input.
// Existence is always checked first and input is only judged for an actor
// allowed to act.
func (p *Pipeline) authorize(ctx context.Context, actor *model.User, resolve func(context.Context) (guard.Resource, error), validate func() error) error {
	return p.phase(ctx, PhaseAuthorizing, func(ctx context.Context) error {
		if resolve != nil {
			res, err := resolve(ctx)
			if err != nil {
				return err
			}
			if guard.Decide(actor, res) == guard.Deny {
				return fmt.Errorf("%w: not authorized to modify this resource", model.ErrForbidden)
			}
		}
		if validate != nil {
			return validate()
		}
		return nil
	})
}

// rejected reports whether err stops an action as aborted rather than failed.
func rejected(err error) bool {
	return errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrForbidden) ||
		errors.Is(err, model.ErrValidation)
}

// sideChannel runs fn and swallows any error or panic.
func (p *Pipeline) sideChannel(ctx context.Context, log *slog.Logger, operation string, phase Phase, fn func(context.Context) error) {
	err := p.phase(ctx, phase, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx)
	})
	if err != nil {
		channel := "audit"
		if phase == PhaseNotifying {
			channel = "notification"
		}
		p.metrics.sideFailure(operation, channel)
		log.Warn("side channel failed", "phase", phase, "error", err)
	}
}

// phase runs fn inside a child span named after the phase.
func (p *Pipeline) phase(ctx context.Context, phase Phase, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, string(phase))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) finish(span trace.Span, operation string, state Phase, err error) {
	span.SetAttributes(attribute.String("action.state", string(state)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	p.metrics.outcome(operation, state)
}
