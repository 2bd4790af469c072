package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanban_gateway/internal/models"
	"vanban_gateway/internal/quota"
)

type stubEvaluator struct {
	decision quota.Decision
	err      error
}

func (s *stubEvaluator) Evaluate(ctx context.Context, sub *models.Subscriber, now time.Time) (quota.Decision, error) {
	return s.decision, s.err
}

type memLedger struct {
	mu     sync.Mutex
	events []*models.UsageEvent
	err    error
}

func (l *memLedger) Append(ctx context.Context, event *models.UsageEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.events = append(l.events, event)
	return nil
}

func (l *memLedger) all() []*models.UsageEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*models.UsageEvent(nil), l.events...)
}

func allowAll() *stubEvaluator {
	return &stubEvaluator{decision: quota.Decision{Allowed: true}}
}

func testSubscriber() *models.Subscriber {
	return &models.Subscriber{ID: "sub-1", PlanID: "free", IsActive: true}
}

func testParams() Params {
	return Params{Endpoint: "/api/ai/generate", Kind: models.OpGenerate, ClientIP: "10.0.0.1"}
}

func TestRun_SuccessRecordsOneEvent(t *testing.T) {
	ledger := &memLedger{}
	g := New(allowAll(), ledger)

	result, err := g.Run(context.Background(), testSubscriber(), testParams(), func(ctx context.Context) (*Result, error) {
		return &Result{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, EstimatedCost: 4.2}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	events := ledger.all()
	require.Len(t, events, 1)
	ev := events[0]
	assert.True(t, ev.IsSuccess)
	assert.Equal(t, "sub-1", ev.SubscriberID)
	assert.Equal(t, models.OpGenerate, ev.Kind)
	assert.Equal(t, 100, ev.PromptTokens)
	assert.Equal(t, 50, ev.CompletionTokens)
	assert.Equal(t, 150, ev.TotalTokens)
	assert.Equal(t, 4.2, ev.EstimatedCost)
	assert.Empty(t, ev.ErrorMessage)
}

func TestRun_DeniedWritesNothing(t *testing.T) {
	ledger := &memLedger{}
	evaluator := &stubEvaluator{decision: quota.Decision{
		Allowed: false,
		Reason:  quota.ReasonRequestsExhausted,
		Message: "Đã hết quota request tháng này (50/50). Vui lòng nâng cấp gói.",
	}}
	g := New(evaluator, ledger)

	called := false
	_, err := g.Run(context.Background(), testSubscriber(), testParams(), func(ctx context.Context) (*Result, error) {
		called = true
		return &Result{}, nil
	})

	require.Error(t, err)
	denial, ok := AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, quota.ReasonRequestsExhausted, denial.Decision.Reason)
	assert.Contains(t, err.Error(), "50/50")
	assert.False(t, called, "denied call must never execute")
	assert.Empty(t, ledger.all())
}

func TestRun_OperationFailureStillRecorded(t *testing.T) {
	ledger := &memLedger{}
	g := New(allowAll(), ledger)

	opErr := errors.New("gemini returned status 503: overloaded")
	_, err := g.Run(context.Background(), testSubscriber(), testParams(), func(ctx context.Context) (*Result, error) {
		return nil, opErr
	})

	// The operation's own error comes back unchanged.
	require.ErrorIs(t, err, opErr)
	_, isDenial := AsDenial(err)
	assert.False(t, isDenial)

	events := ledger.all()
	require.Len(t, events, 1)
	ev := events[0]
	assert.False(t, ev.IsSuccess)
	assert.Equal(t, 0, ev.PromptTokens)
	assert.Equal(t, 0, ev.CompletionTokens)
	assert.Equal(t, 0, ev.TotalTokens)
	assert.Equal(t, opErr.Error(), ev.ErrorMessage)
}

func TestRun_TimeoutRecordedAsFailure(t *testing.T) {
	ledger := &memLedger{}
	g := New(allowAll(), ledger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Run(ctx, testSubscriber(), testParams(), func(ctx context.Context) (*Result, error) {
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)

	events := ledger.all()
	require.Len(t, events, 1)
	assert.False(t, events[0].IsSuccess)
	assert.Equal(t, context.Canceled.Error(), events[0].ErrorMessage)
}

func TestRun_RecordFailureIsDistinct(t *testing.T) {
	t.Run("operation succeeded", func(t *testing.T) {
		ledger := &memLedger{err: errors.New("disk full")}
		g := New(allowAll(), ledger)

		result, err := g.Run(context.Background(), testSubscriber(), testParams(), func(ctx context.Context) (*Result, error) {
			return &Result{TotalTokens: 10}, nil
		})

		require.Error(t, err)
		recErr, ok := AsRecordError(err)
		require.True(t, ok)
		assert.NoError(t, recErr.OpErr)
		assert.Contains(t, recErr.Error(), "failed to record usage")
		// The operation's result is still available to the caller.
		require.NotNil(t, result)
		assert.Equal(t, 10, result.TotalTokens)
	})

	t.Run("operation also failed", func(t *testing.T) {
		ledger := &memLedger{err: errors.New("disk full")}
		g := New(allowAll(), ledger)

		opErr := errors.New("provider timeout")
		_, err := g.Run(context.Background(), testSubscriber(), testParams(), func(ctx context.Context) (*Result, error) {
			return nil, opErr
		})

		recErr, ok := AsRecordError(err)
		require.True(t, ok)
		assert.ErrorIs(t, recErr.OpErr, opErr)
	})
}

func TestRun_EvaluatorFailure(t *testing.T) {
	ledger := &memLedger{}
	g := New(&stubEvaluator{err: errors.New("db closed")}, ledger)

	called := false
	_, err := g.Run(context.Background(), testSubscriber(), testParams(), func(ctx context.Context) (*Result, error) {
		called = true
		return &Result{}, nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Empty(t, ledger.all())
}

func TestRun_MeasuresElapsedTime(t *testing.T) {
	ledger := &memLedger{}
	g := New(allowAll(), ledger)

	// Deterministic clock: evaluate, start, end.
	times := []time.Time{
		time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 28, 10, 0, 1, 0, time.UTC),
		time.Date(2026, 8, 28, 10, 0, 1, 250_000_000, time.UTC),
	}
	g.now = func() time.Time {
		next := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return next
	}

	_, err := g.Run(context.Background(), testSubscriber(), testParams(), func(ctx context.Context) (*Result, error) {
		return &Result{}, nil
	})
	require.NoError(t, err)

	events := ledger.all()
	require.Len(t, events, 1)
	assert.Equal(t, 250, events[0].ResponseTimeMS)
}
