package flow

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence/memory"
)

func testActor() models.Actor {
	return models.Actor{ID: "user-1", OrganizationID: "org-1", Role: models.RoleOwner}
}

func seedWorkflow(t *testing.T, store *memory.Persistence, status models.WorkflowStatus) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		OrganizationID: "org-1",
		Name:           "intent pipeline",
		Status:         status,
		CreatedBy:      "user-1",
	}

	require.NoError(t, store.WorkflowRepository().Save(context.Background(), workflow))

	return workflow
}

func newTestFSM(store *memory.Persistence) *FSM {
	logger := slog.New(slog.DiscardHandler)
	auditLogger := audit.NewLogger(store.AuditRepository(), logger)

	return NewFSM(DefaultGraph(), store.WorkflowRepository(), auditLogger, logger)
}

func TestFSMTransition(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	fsm := newTestFSM(store)
	workflow := seedWorkflow(t, store, models.StatusICP)

	result, err := fsm.Transition(ctx, workflow.ID, models.StatusICP, testActor())
	require.NoError(t, err)

	assert.Equal(t, models.StatusICP, result.From)
	assert.Equal(t, models.StatusCompetitors, result.To)
	assert.Equal(t, "intent.competitors.analyze", result.Trigger)

	stored, err := store.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompetitors, stored.Status)

	entries, err := store.AuditRepository().ListByWorkflow(ctx, workflow.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditStatusTransitioned, entries[0].Action)
	assert.Equal(t, "step_1_icp", entries[0].Details["from"])
	assert.Equal(t, "step_2_competitors", entries[0].Details["to"])
}

func TestFSMTransitionStateConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	fsm := newTestFSM(store)
	workflow := seedWorkflow(t, store, models.StatusKeywords)

	_, err := fsm.Transition(ctx, workflow.ID, models.StatusICP, testActor())
	require.Error(t, err)
	assert.True(t, IsStateConflict(err))

	stored, err := store.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusKeywords, stored.Status, "losing transition must not mutate")
}

func TestFSMTransitionTerminalState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	fsm := newTestFSM(store)
	workflow := seedWorkflow(t, store, models.StatusCompleted)

	_, err := fsm.Transition(ctx, workflow.ID, models.StatusCompleted, testActor())
	require.ErrorIs(t, err, ErrTerminalState)
}

func TestFSMTransitionFullPipeline(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	fsm := newTestFSM(store)
	workflow := seedWorkflow(t, store, models.StatusICP)

	for _, status := range models.StepOrder {
		result, err := fsm.Transition(ctx, workflow.ID, status, testActor())
		require.NoError(t, err, "transition from %s", status)
		assert.Equal(t, status, result.From)
	}

	stored, err := store.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestFSMFail(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	fsm := newTestFSM(store)
	workflow := seedWorkflow(t, store, models.StatusClustering)

	result, err := fsm.Fail(ctx, workflow.ID, models.StatusClustering, "automation exhausted retries", testActor())
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, result.To)

	stored, err := store.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
}

func TestFSMCancel(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	fsm := newTestFSM(store)
	workflow := seedWorkflow(t, store, models.StatusLongtails)

	result, err := fsm.Cancel(ctx, workflow.ID, models.StatusLongtails, "customer request", testActor())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, result.To)

	_, err = fsm.Cancel(ctx, workflow.ID, models.StatusCancelled, "again", testActor())
	require.ErrorIs(t, err, ErrTerminalState)
}

func TestGraphStepTrigger(t *testing.T) {
	graph := DefaultGraph()

	trigger, ok := graph.StepTrigger(models.StatusICP)
	require.True(t, ok)
	assert.Equal(t, EntryTrigger, trigger)

	trigger, ok = graph.StepTrigger(models.StatusSubtopics)
	require.True(t, ok)
	assert.Equal(t, "intent.subtopics.generate", string(trigger))

	_, ok = graph.StepTrigger(models.StatusCancelled)
	assert.False(t, ok)
}
