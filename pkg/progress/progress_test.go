package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentflow/intentflow/pkg/models"
)

func TestComputePercent(t *testing.T) {
	tests := []struct {
		status  models.WorkflowStatus
		percent float64
	}{
		{models.StatusICP, 0},
		{models.StatusKeywords, 25},
		{models.StatusFiltering, 50},
		{models.StatusArticles, 87.5},
		{models.StatusCompleted, 100},
		{models.StatusFailed, 0},
		{models.StatusCancelled, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			view := Compute(&models.Workflow{ID: "wf-1", Status: tt.status})
			assert.InDelta(t, tt.percent, view.PercentComplete, 1e-9)
		})
	}
}

func TestComputeStepStates(t *testing.T) {
	view := Compute(&models.Workflow{ID: "wf-1", Status: models.StatusLongtails})

	require.Len(t, view.Steps, models.StepCount)

	assert.Equal(t, StepDone, view.Steps[0].State)
	assert.Equal(t, StepDone, view.Steps[2].State)
	assert.Equal(t, StepCurrent, view.Steps[3].State)
	assert.Equal(t, StepPending, view.Steps[4].State)
	assert.Equal(t, StepPending, view.Steps[7].State)

	assert.Equal(t, 4, view.StepNumber)
	assert.Equal(t, "Longtail generation", view.StatusLabel)
	assert.False(t, view.Terminal)
}

func TestComputeCompletedMarksAllDone(t *testing.T) {
	view := Compute(&models.Workflow{ID: "wf-1", Status: models.StatusCompleted})

	for _, step := range view.Steps {
		assert.Equal(t, StepDone, step.State)
	}

	assert.True(t, view.Terminal)
}

func TestStepLabelFallsBackToRawStatus(t *testing.T) {
	assert.Equal(t, "Topic clustering", StepLabel(models.StatusClustering))
	assert.Equal(t, "bogus", StepLabel(models.WorkflowStatus("bogus")))
}

func TestAverageStepDuration(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	entries := []*models.AuditLogEntry{
		{Action: models.AuditStatusTransitioned, CreatedAt: base},
		{Action: models.AuditGateChecked, CreatedAt: base.Add(time.Minute)},
		{Action: models.AuditStatusTransitioned, CreatedAt: base.Add(10 * time.Minute)},
		{Action: models.AuditStatusTransitioned, CreatedAt: base.Add(30 * time.Minute)},
	}

	avg, ok := AverageStepDuration(entries)
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, avg)
}

func TestAverageStepDurationNeedsTwoTransitions(t *testing.T) {
	_, ok := AverageStepDuration([]*models.AuditLogEntry{
		{Action: models.AuditStatusTransitioned, CreatedAt: time.Now()},
	})
	assert.False(t, ok)

	_, ok = AverageStepDuration(nil)
	assert.False(t, ok)
}

func TestEstimateRemaining(t *testing.T) {
	assert.Equal(t, 6*time.Hour, EstimateRemaining(models.StatusKeywords, time.Hour))
	assert.Equal(t, time.Hour, EstimateRemaining(models.StatusArticles, time.Hour))
	assert.Equal(t, time.Duration(0), EstimateRemaining(models.StatusCompleted, time.Hour))
	assert.Equal(t, time.Duration(0), EstimateRemaining(models.StatusICP, 0))
}

func TestCountKeywords(t *testing.T) {
	keywords := []*models.Keyword{
		{SubtopicsStatus: models.SubtopicsComplete, ArticleStatus: models.ArticleNotStarted},
		{SubtopicsStatus: models.SubtopicsComplete, ArticleStatus: models.ArticleReady},
		{SubtopicsStatus: models.SubtopicsComplete, ArticleStatus: models.ArticleQueued},
		{SubtopicsStatus: models.SubtopicsGenerating, ArticleStatus: models.ArticleNotStarted},
		{SubtopicsStatus: models.SubtopicsComplete, ArticleStatus: models.ArticlePublished},
	}

	counts := CountKeywords(keywords)

	assert.Equal(t, 5, counts.Total)
	assert.Equal(t, 4, counts.SubtopicsComplete)
	assert.Equal(t, 1, counts.AwaitingApproval)
	assert.Equal(t, 1, counts.ArticlesReady)
	assert.Equal(t, 1, counts.ArticlesQueued)
	assert.Equal(t, 1, counts.ArticlesPublished)
}
