package services

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
	"github.com/intentflow/intentflow/pkg/events"
	"github.com/intentflow/intentflow/pkg/flow"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence/memory"
	"github.com/intentflow/intentflow/pkg/retry"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

func newTestService(store *memory.Persistence) (*Workflow, *recordingPublisher) {
	logger := slog.New(slog.DiscardHandler)
	auditLogger := audit.NewLogger(store.AuditRepository(), logger)
	fsm := flow.NewFSM(flow.DefaultGraph(), store.WorkflowRepository(), auditLogger, logger)
	publisher := &recordingPublisher{}
	policy := retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	boundary := flow.NewBoundary(fsm, publisher, auditLogger, policy, logger)

	return NewWorkflow(store, boundary, auditLogger, logger), publisher
}

func owner() models.Actor {
	return models.Actor{ID: "user-1", OrganizationID: "org-1", Role: models.RoleOwner}
}

func TestCreateStartsAtFirstStep(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	service, publisher := newTestService(store)

	workflow, err := service.Create(ctx, CreateWorkflowRequest{Name: "Q3 content push"}, owner())
	require.NoError(t, err)

	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, models.StatusICP, workflow.Status)
	assert.Equal(t, "org-1", workflow.OrganizationID)

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.StepICPGenerate, published[0].GetType())

	entries, err := store.AuditRepository().ListByWorkflow(ctx, workflow.ID, 10)
	require.NoError(t, err)

	actions := make([]models.AuditAction, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}

	assert.Contains(t, actions, models.AuditWorkflowCreated)
	assert.Contains(t, actions, models.AuditTriggerEmitted)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(memory.NewPersistence())

	_, err := service.Create(ctx, CreateWorkflowRequest{Name: "   "}, owner())
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = service.Create(ctx, CreateWorkflowRequest{Name: "ok"}, models.Actor{ID: "user-1", Role: models.RoleOwner})
	assert.ErrorIs(t, err, ErrOrganizationMissing)
}

func TestFetchByIDScopesByOrganization(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	service, _ := newTestService(store)

	workflow, err := service.Create(ctx, CreateWorkflowRequest{Name: "pipeline"}, owner())
	require.NoError(t, err)

	fetched, err := service.FetchByID(ctx, workflow.ID, owner())
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, fetched.ID)

	outsider := models.Actor{ID: "user-9", OrganizationID: "org-2", Role: models.RoleOwner}
	_, err = service.FetchByID(ctx, workflow.ID, outsider)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestListWorkflowsDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	service, _ := newTestService(store)

	for range 3 {
		_, err := service.Create(ctx, CreateWorkflowRequest{Name: "pipeline"}, owner())
		require.NoError(t, err)
	}

	response, err := service.ListWorkflows(ctx, ListWorkflowsRequest{}, owner())
	require.NoError(t, err)
	assert.Equal(t, int64(3), response.TotalCount)
	assert.Len(t, response.Workflows, 3)
	assert.False(t, response.HasNextPage)

	_, err = service.ListWorkflows(ctx, ListWorkflowsRequest{SortBy: "password"}, owner())
	assert.ErrorIs(t, err, ErrInvalidSortField)

	_, err = service.ListWorkflows(ctx, ListWorkflowsRequest{SortOrder: "sideways"}, owner())
	assert.ErrorIs(t, err, ErrInvalidSortOrder)

	bogus := models.WorkflowStatus("bogus")
	_, err = service.ListWorkflows(ctx, ListWorkflowsRequest{Status: &bogus}, owner())
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestListWorkflowsStatusFilter(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	service, _ := newTestService(store)

	_, err := service.Create(ctx, CreateWorkflowRequest{Name: "one"}, owner())
	require.NoError(t, err)

	advanced, err := service.Create(ctx, CreateWorkflowRequest{Name: "two"}, owner())
	require.NoError(t, err)

	applied, err := store.WorkflowRepository().UpdateStatus(ctx, advanced.ID, models.StatusICP, models.StatusCompetitors)
	require.NoError(t, err)
	require.True(t, applied)

	status := models.StatusCompetitors
	response, err := service.ListWorkflows(ctx, ListWorkflowsRequest{Status: &status}, owner())
	require.NoError(t, err)
	require.Len(t, response.Workflows, 1)
	assert.Equal(t, advanced.ID, response.Workflows[0].ID)
}

func TestCancelWorkflow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	service, publisher := newTestService(store)

	workflow, err := service.Create(ctx, CreateWorkflowRequest{Name: "pipeline"}, owner())
	require.NoError(t, err)

	cancelled, err := service.Cancel(ctx, workflow.ID, "budget cut", owner())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	var sawCancelEvent bool

	for _, event := range publisher.published() {
		if event.GetType() == events.WorkflowCancelledEvent {
			sawCancelEvent = true
		}
	}

	assert.True(t, sawCancelEvent)

	_, err = service.Cancel(ctx, workflow.ID, "again", owner())
	assert.ErrorIs(t, err, ErrWorkflowTerminal)
}

func TestCancelRequiresElevatedRole(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	service, _ := newTestService(store)

	workflow, err := service.Create(ctx, CreateWorkflowRequest{Name: "pipeline"}, owner())
	require.NoError(t, err)

	member := models.Actor{ID: "user-2", OrganizationID: "org-1", Role: models.RoleMember}
	_, err = service.Cancel(ctx, workflow.ID, "nope", member)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestProgressView(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	service, _ := newTestService(store)

	workflow, err := service.Create(ctx, CreateWorkflowRequest{Name: "pipeline"}, owner())
	require.NoError(t, err)

	applied, err := store.WorkflowRepository().UpdateStatus(ctx, workflow.ID, models.StatusICP, models.StatusSubtopics)
	require.NoError(t, err)
	require.True(t, applied)

	keyword := &models.Keyword{
		OrganizationID:  "org-1",
		WorkflowID:      workflow.ID,
		Keyword:         "observability platform",
		SubtopicsStatus: models.SubtopicsComplete,
		ArticleStatus:   models.ArticleNotStarted,
	}
	require.NoError(t, store.KeywordRepository().Save(ctx, keyword))

	response, err := service.Progress(ctx, workflow.ID, owner())
	require.NoError(t, err)

	assert.Equal(t, 7, response.Progress.StepNumber)
	assert.InDelta(t, 75, response.Progress.PercentComplete, 1e-9)
	assert.Equal(t, 1, response.Keywords.Total)
	assert.Equal(t, 1, response.Keywords.AwaitingApproval)
}
