package approvals

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/eventbus"
	"github.com/intentflow/intentflow/pkg/flow"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence/memory"
	"github.com/intentflow/intentflow/pkg/retry"
)

type stubPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *stubPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.events)
}

func newTestProcessor(store *memory.Persistence) (*Processor, *stubPublisher) {
	logger := slog.New(slog.DiscardHandler)
	auditLogger := audit.NewLogger(store.AuditRepository(), logger)
	fsm := flow.NewFSM(flow.DefaultGraph(), store.WorkflowRepository(), auditLogger, logger)
	publisher := &stubPublisher{}
	policy := retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	boundary := flow.NewBoundary(fsm, publisher, auditLogger, policy, logger)

	return NewProcessor(store, boundary, auditLogger, logger), publisher
}

func admin() models.Actor {
	return models.Actor{ID: "user-1", OrganizationID: "org-1", Role: models.RoleAdmin}
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

func seedKeyword(t *testing.T, store *memory.Persistence, workflowID string, subtopics models.SubtopicsStatus) *models.Keyword {
	t.Helper()

	keyword := &models.Keyword{
		OrganizationID:  "org-1",
		WorkflowID:      workflowID,
		Keyword:         "observability platform",
		Kind:            models.KeywordSeed,
		SubtopicsStatus: subtopics,
		ArticleStatus:   models.ArticleNotStarted,
	}

	require.NoError(t, store.KeywordRepository().Save(context.Background(), keyword))

	return keyword
}

func TestProcessWorkflowApprovalAdvances(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, publisher := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusKeywords)

	response, err := processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalSeedKeywords, Request{Decision: models.DecisionApproved}, admin())
	require.NoError(t, err)

	assert.True(t, response.WorkflowAdvanced)
	assert.Equal(t, workflow.ID, response.WorkflowID)
	assert.Equal(t, models.StatusLongtails, response.WorkflowStatus)

	stored, err := store.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLongtails, stored.Status)

	approval, err := store.ApprovalRepository().Get(ctx, workflow.ID, models.EntityWorkflow, models.ApprovalSeedKeywords)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApproved, approval.Decision)

	assert.Equal(t, 1, publisher.count())
}

func TestProcessWorkflowApprovalRejectedStays(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, publisher := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusICP)

	response, err := processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalICP, Request{Decision: models.DecisionRejected, Feedback: "wrong persona"}, admin())
	require.NoError(t, err)

	assert.False(t, response.WorkflowAdvanced)
	assert.Equal(t, models.StatusICP, response.WorkflowStatus)
	assert.Equal(t, 0, publisher.count())

	// Re-submitting the same decision is a state no-op.
	_, err = processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalICP, Request{Decision: models.DecisionRejected}, admin())
	require.NoError(t, err)

	stored, err := store.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusICP, stored.Status)
}

func TestProcessWorkflowApprovalOverwritesDecision(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, _ := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusCompetitors)

	_, err := processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalCompetitors, Request{Decision: models.DecisionRejected}, admin())
	require.NoError(t, err)

	response, err := processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalCompetitors, Request{Decision: models.DecisionApproved}, admin())
	require.NoError(t, err)
	assert.True(t, response.WorkflowAdvanced)

	approval, err := store.ApprovalRepository().Get(ctx, workflow.ID, models.EntityWorkflow, models.ApprovalCompetitors)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApproved, approval.Decision)
}

func TestProcessWorkflowApprovalAuthorization(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, _ := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusKeywords)

	member := models.Actor{ID: "user-2", OrganizationID: "org-1", Role: models.RoleMember}
	_, err := processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalSeedKeywords, Request{Decision: models.DecisionApproved}, member)
	assert.True(t, IsForbidden(err))

	foreignAdmin := models.Actor{ID: "user-3", OrganizationID: "org-2", Role: models.RoleAdmin}
	_, err = processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalSeedKeywords, Request{Decision: models.DecisionApproved}, foreignAdmin)
	assert.True(t, IsForbidden(err))
}

func TestProcessWorkflowApprovalWrongStep(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, _ := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusClustering)

	_, err := processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalSeedKeywords, Request{Decision: models.DecisionApproved}, admin())
	assert.True(t, IsWrongState(err))
}

func TestProcessWorkflowApprovalRejectsSubtopicsType(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, _ := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusSubtopics)

	_, err := processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalSubtopics, Request{Decision: models.DecisionApproved}, admin())
	assert.ErrorIs(t, err, ErrUnknownApprovalType)
}

func TestProcessKeywordSubtopicsMarksReady(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, publisher := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusSubtopics)
	approved := seedKeyword(t, store, workflow.ID, models.SubtopicsComplete)
	seedKeyword(t, store, workflow.ID, models.SubtopicsComplete)

	response, err := processor.ProcessKeywordSubtopics(ctx, approved.ID, Request{Decision: models.DecisionApproved}, admin())
	require.NoError(t, err)

	assert.False(t, response.WorkflowAdvanced, "one keyword still outstanding")

	stored, err := store.KeywordRepository().GetByID(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ArticleReady, stored.ArticleStatus)
	assert.Equal(t, 0, publisher.count())
}

func TestProcessKeywordSubtopicsLastApprovalCascades(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, publisher := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusSubtopics)
	first := seedKeyword(t, store, workflow.ID, models.SubtopicsComplete)
	second := seedKeyword(t, store, workflow.ID, models.SubtopicsComplete)

	_, err := processor.ProcessKeywordSubtopics(ctx, first.ID, Request{Decision: models.DecisionApproved}, admin())
	require.NoError(t, err)

	response, err := processor.ProcessKeywordSubtopics(ctx, second.ID, Request{Decision: models.DecisionApproved}, admin())
	require.NoError(t, err)

	assert.True(t, response.WorkflowAdvanced)
	assert.Equal(t, models.StatusArticles, response.WorkflowStatus)

	workflowApproval, err := store.ApprovalRepository().Get(ctx, workflow.ID, models.EntityWorkflow, models.ApprovalSubtopics)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApproved, workflowApproval.Decision)

	assert.Equal(t, 1, publisher.count())
}

func TestProcessKeywordSubtopicsConcurrentCascade(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, publisher := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusSubtopics)
	first := seedKeyword(t, store, workflow.ID, models.SubtopicsComplete)
	second := seedKeyword(t, store, workflow.ID, models.SubtopicsComplete)

	var wg sync.WaitGroup

	advanced := make(chan bool, 2)

	for _, id := range []string{first.ID, second.ID} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			response, err := processor.ProcessKeywordSubtopics(ctx, id, Request{Decision: models.DecisionApproved}, admin())
			if !assert.NoError(t, err) {
				advanced <- false

				return
			}

			advanced <- response.WorkflowAdvanced
		}()
	}

	wg.Wait()
	close(advanced)

	wins := 0

	for won := range advanced {
		if won {
			wins++
		}
	}

	assert.Equal(t, 1, wins, "exactly one cascade advances the workflow")
	assert.Equal(t, 1, publisher.count())

	stored, err := store.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArticles, stored.Status)
}

func TestProcessKeywordSubtopicsRejectedResets(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, _ := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusSubtopics)
	keyword := seedKeyword(t, store, workflow.ID, models.SubtopicsComplete)

	_, err := processor.ProcessKeywordSubtopics(ctx, keyword.ID, Request{Decision: models.DecisionApproved}, admin())
	require.NoError(t, err)

	_, err = processor.ProcessKeywordSubtopics(ctx, keyword.ID, Request{Decision: models.DecisionRejected, Feedback: "too shallow"}, admin())
	require.NoError(t, err)

	stored, err := store.KeywordRepository().GetByID(ctx, keyword.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ArticleNotStarted, stored.ArticleStatus)
}

func TestProcessKeywordSubtopicsRequiresGeneratedSubtopics(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, _ := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusSubtopics)
	keyword := seedKeyword(t, store, workflow.ID, models.SubtopicsGenerating)

	_, err := processor.ProcessKeywordSubtopics(ctx, keyword.ID, Request{Decision: models.DecisionApproved}, admin())
	assert.True(t, IsWrongState(err))
}

func TestProcessKeywordSubtopicsTerminalWorkflow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, _ := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusCancelled)
	keyword := seedKeyword(t, store, workflow.ID, models.SubtopicsComplete)

	_, err := processor.ProcessKeywordSubtopics(ctx, keyword.ID, Request{Decision: models.DecisionApproved}, admin())
	assert.True(t, IsWrongState(err))
}

func TestProcessWorkflowApprovalInvalidDecision(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	processor, _ := newTestProcessor(store)
	workflow := seedWorkflow(t, store, models.StatusICP)

	_, err := processor.ProcessWorkflowApproval(ctx, workflow.ID, models.ApprovalICP, Request{Decision: "maybe"}, admin())
	assert.Error(t, err)
}
