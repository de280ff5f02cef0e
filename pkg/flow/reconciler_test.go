package flow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/events"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence/memory"
)

func newTestReconciler(store *memory.Persistence, publisher *capturePublisher, staleAfter time.Duration) *Reconciler {
	logger := slog.New(slog.DiscardHandler)
	auditLogger := audit.NewLogger(store.AuditRepository(), logger)

	return NewReconciler(DefaultGraph(), store.WorkflowRepository(), publisher, auditLogger, staleAfter, logger)
}

func TestReconcilerSweepReemitsStaleWorkflows(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{}
	reconciler := newTestReconciler(store, publisher, time.Nanosecond)

	stuck := seedWorkflow(t, store, models.StatusSubtopics)
	seedWorkflow(t, store, models.StatusCompleted)

	time.Sleep(5 * time.Millisecond)

	reemitted, err := reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reemitted)

	published := publisher.published()
	require.Len(t, published, 1)

	trigger, ok := published[0].(events.StepTrigger)
	require.True(t, ok)
	assert.Equal(t, events.StepSubtopicsGenerate, trigger.GetType())
	assert.Equal(t, stuck.ID, trigger.WorkflowID)
	assert.Equal(t, models.StatusSubtopics, trigger.ToStatus)
	assert.True(t, trigger.Reemission)
	assert.Equal(t, ReconcilerActorID, trigger.ActorID)

	entries, err := store.AuditRepository().ListByWorkflow(ctx, stuck.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditReconciliationReemit, entries[0].Action)
}

func TestReconcilerSweepSkipsFreshWorkflows(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{}
	reconciler := newTestReconciler(store, publisher, time.Hour)

	seedWorkflow(t, store, models.StatusICP)

	reemitted, err := reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reemitted)
	assert.Empty(t, publisher.published())
}

func TestReconcilerSweepSkipsWorkflowsAwaitingApproval(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{}
	reconciler := newTestReconciler(store, publisher, time.Nanosecond)

	// Automation for the keywords step already merged its output; the
	// workflow is waiting on a human decision, not on a lost trigger.
	parked := seedWorkflow(t, store, models.StatusKeywords)
	require.NoError(t, store.WorkflowRepository().MergeData(ctx, parked.ID, map[string]any{
		"seed_keywords": []any{"content automation"},
	}))

	stuck := seedWorkflow(t, store, models.StatusKeywords)

	time.Sleep(5 * time.Millisecond)

	reemitted, err := reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reemitted)

	published := publisher.published()
	require.Len(t, published, 1)

	trigger, ok := published[0].(events.StepTrigger)
	require.True(t, ok)
	assert.Equal(t, stuck.ID, trigger.WorkflowID)

	entries, err := store.AuditRepository().ListByWorkflow(ctx, parked.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReconcilerEntryStateUsesEntryTrigger(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	publisher := &capturePublisher{}
	reconciler := newTestReconciler(store, publisher, time.Nanosecond)

	seedWorkflow(t, store, models.StatusICP)

	time.Sleep(5 * time.Millisecond)

	reemitted, err := reconciler.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, reemitted)

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.StepICPGenerate, published[0].GetType())
}
