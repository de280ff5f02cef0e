package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/eventbus"
	"github.com/intentflow/intentflow/pkg/events"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence/memory"
	"github.com/intentflow/intentflow/pkg/retry"
)

type capturePublisher struct {
	mu       sync.Mutex
	events   []eventbus.Event
	failWith error
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failWith != nil {
		return p.failWith
	}

	p.events = append(p.events, event)

	return nil
}

func (p *capturePublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

func fastRetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newTestBoundary(store *memory.Persistence, publisher eventbus.EventPublisher) *Boundary {
	logger := slog.New(slog.DiscardHandler)
	auditLogger := audit.NewLogger(store.AuditRepository(), logger)
	fsm := NewFSM(DefaultGraph(), store.WorkflowRepository(), auditLogger, logger)

	return NewBoundary(fsm, publisher, auditLogger, fastRetryPolicy(), logger)
}

func TestBoundaryTransitionAndTrigger(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{}
	boundary := newTestBoundary(store, publisher)
	workflow := seedWorkflow(t, store, models.StatusKeywords)

	result, err := boundary.TransitionAndTrigger(ctx, workflow.ID, models.StatusKeywords, testActor())
	require.NoError(t, err)
	assert.Equal(t, models.StatusLongtails, result.To)

	published := publisher.published()
	require.Len(t, published, 1)

	trigger, ok := published[0].(events.StepTrigger)
	require.True(t, ok)
	assert.Equal(t, events.StepLongtailsGenerate, trigger.GetType())
	assert.Equal(t, models.StatusKeywords, trigger.FromStatus)
	assert.Equal(t, models.StatusLongtails, trigger.ToStatus)
	assert.Equal(t, workflow.ID, trigger.WorkflowID)
	assert.False(t, trigger.Reemission)
}

func TestBoundaryCompletionEmitsWorkflowCompleted(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{}
	boundary := newTestBoundary(store, publisher)
	workflow := seedWorkflow(t, store, models.StatusArticles)

	result, err := boundary.TransitionAndTrigger(ctx, workflow.ID, models.StatusArticles, testActor())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.To)

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.WorkflowCompletedEvent, published[0].GetType())
}

func TestBoundaryConcurrentTransitionsOneWinner(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{}
	boundary := newTestBoundary(store, publisher)
	workflow := seedWorkflow(t, store, models.StatusFiltering)

	const racers = 8

	errs := make(chan error, racers)

	var wg sync.WaitGroup
	for range racers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := boundary.TransitionAndTrigger(ctx, workflow.ID, models.StatusFiltering, testActor())
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	wins, conflicts := 0, 0

	for err := range errs {
		switch {
		case err == nil:
			wins++
		case IsStateConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, wins, "exactly one racer wins")
	assert.Equal(t, racers-1, conflicts)
	assert.Len(t, publisher.published(), 1, "exactly one trigger emitted")

	stored, err := store.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClustering, stored.Status)
}

func TestBoundaryEmissionFailureIsLoudAndAudited(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{failWith: errors.New("broker unreachable")}
	boundary := newTestBoundary(store, publisher)
	workflow := seedWorkflow(t, store, models.StatusICP)

	result, err := boundary.TransitionAndTrigger(ctx, workflow.ID, models.StatusICP, testActor())
	require.ErrorIs(t, err, ErrTriggerEmission)
	require.NotNil(t, result, "transition itself was applied")
	assert.Equal(t, models.StatusCompetitors, result.To)

	stored, err := store.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompetitors, stored.Status, "transition is not rolled back")

	entries, err := store.AuditRepository().ListByWorkflow(ctx, workflow.ID, 10)
	require.NoError(t, err)

	var found bool

	for _, entry := range entries {
		if entry.Action == models.AuditTriggerEmissionFailed {
			found = true

			assert.Equal(t, "intent.competitors.analyze", entry.Details["event_type"])
		}
	}

	assert.True(t, found, "emission failure must be audited")
}

func TestBoundaryEmitEntryTrigger(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{}
	boundary := newTestBoundary(store, publisher)
	workflow := seedWorkflow(t, store, models.StatusICP)

	require.NoError(t, boundary.EmitEntryTrigger(ctx, workflow.ID, testActor()))

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.StepICPGenerate, published[0].GetType())
}

func TestBoundaryCancelAndNotify(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{}
	boundary := newTestBoundary(store, publisher)
	workflow := seedWorkflow(t, store, models.StatusCompetitors)

	result, err := boundary.CancelAndNotify(ctx, workflow.ID, models.StatusCompetitors, "budget cut", testActor())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, result.To)

	published := publisher.published()
	require.Len(t, published, 1)

	cancelled, ok := published[0].(events.WorkflowCancelled)
	require.True(t, ok)
	assert.Equal(t, "user-1", cancelled.CancelledBy)
	assert.Equal(t, "budget cut", cancelled.Reason)
}
