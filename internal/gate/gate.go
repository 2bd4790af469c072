// Package gate wraps every metered operation with the evaluate -> execute ->
// record sequence. The record step runs unconditionally once a call has been
// admitted, whatever the operation's outcome.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vanban_gateway/internal/models"
	"vanban_gateway/internal/quota"
)

// Ledger is the append side of the usage ledger.
type Ledger interface {
	Append(ctx context.Context, event *models.UsageEvent) error
}

// Evaluator decides admission for one call.
type Evaluator interface {
	Evaluate(ctx context.Context, sub *models.Subscriber, now time.Time) (quota.Decision, error)
}

// Result carries the measurable outcome of a successful metered operation.
// The operation's own payload stays in the caller's closure.
type Result struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCost    float64
}

// Operation is the wrapped metered call, typically an outbound provider
// request. It may block for the duration of that request and must honor ctx.
type Operation func(ctx context.Context) (*Result, error)

// DenialError is returned when the evaluator refuses the call. It is an
// expected outcome carrying the denial reason; no usage event is written.
type DenialError struct {
	Decision quota.Decision
}

func (e *DenialError) Error() string {
	return e.Decision.Message
}

// AsDenial extracts a denial from an error chain.
func AsDenial(err error) (*DenialError, bool) {
	var denial *DenialError
	if errors.As(err, &denial) {
		return denial, true
	}
	return nil, false
}

// RecordError is returned when the ledger append fails after the operation
// already ran. It is kept distinct from the operation's own outcome: "your
// call succeeded but we could not record usage" must never look like "your
// call failed", because it silently threatens billing accuracy.
type RecordError struct {
	AppendErr error
	// OpErr is the wrapped operation's own error, if it also failed.
	OpErr error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("failed to record usage: %v", e.AppendErr)
}

func (e *RecordError) Unwrap() error {
	return e.AppendErr
}

// AsRecordError extracts a record failure from an error chain.
func AsRecordError(err error) (*RecordError, bool) {
	var recErr *RecordError
	if errors.As(err, &recErr) {
		return recErr, true
	}
	return nil, false
}

// Params identifies the metered operation for the ledger.
type Params struct {
	Endpoint string
	Kind     models.OperationKind
	ClientIP string
}

// Gate is the request-time integration point of the metering core.
type Gate struct {
	evaluator Evaluator
	ledger    Ledger
	now       func() time.Time
}

// New creates a new admission gate
func New(evaluator Evaluator, ledger Ledger) *Gate {
	return &Gate{evaluator: evaluator, ledger: ledger, now: time.Now}
}

// Run evaluates the subscriber, executes op if admitted, and appends exactly
// one usage event for the attempt. Denied calls return a *DenialError and
// write nothing. The operation's error is returned unchanged after the event
// is recorded; a failed append is reported as a *RecordError instead, with
// the operation's error attached.
//
// The evaluation and the eventual append are not one transaction: two calls
// admitted concurrently on the last remaining slot may both proceed. That
// overshoot is bounded by the number of in-flight calls and is accepted for
// a single-node deployment rather than paying for a global lock.
func (g *Gate) Run(ctx context.Context, sub *models.Subscriber, params Params, op Operation) (*Result, error) {
	decision, err := g.evaluator.Evaluate(ctx, sub, g.now())
	if err != nil {
		return nil, fmt.Errorf("quota evaluation failed: %w", err)
	}
	if !decision.Allowed {
		return nil, &DenialError{Decision: decision}
	}

	start := g.now()
	result, opErr := op(ctx)
	elapsed := g.now().Sub(start)

	event := models.NewUsageEvent(sub.ID, params.Endpoint, params.Kind)
	event.ClientIP = params.ClientIP
	event.ResponseTimeMS = int(elapsed.Milliseconds())
	if opErr != nil {
		event.IsSuccess = false
		event.ErrorMessage = opErr.Error()
	} else {
		event.IsSuccess = true
		event.PromptTokens = result.PromptTokens
		event.CompletionTokens = result.CompletionTokens
		event.TotalTokens = result.TotalTokens
		event.EstimatedCost = result.EstimatedCost
	}

	if appendErr := g.ledger.Append(ctx, event); appendErr != nil {
		return result, &RecordError{AppendErr: appendErr, OpErr: opErr}
	}

	return result, opErr
}
