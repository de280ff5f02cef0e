// Package progress computes dashboard read-models from persisted state.
// Everything here is a pure function over models; no storage, no side
// effects.
package progress

import (
	"time"

	"github.com/intentflow/intentflow/pkg/models"
)

// stepLabels are the human-readable names shown per pipeline step.
var stepLabels = map[models.WorkflowStatus]string{
	models.StatusICP:         "ICP generation",
	models.StatusCompetitors: "Competitor analysis",
	models.StatusKeywords:    "Keyword expansion",
	models.StatusLongtails:   "Longtail generation",
	models.StatusFiltering:   "Keyword filtering",
	models.StatusClustering:  "Topic clustering",
	models.StatusSubtopics:   "Subtopic generation",
	models.StatusArticles:    "Article queueing",
	models.StatusCompleted:   "Completed",
	models.StatusFailed:      "Failed",
	models.StatusCancelled:   "Cancelled",
}

// StepLabel returns the display name for a status, or the raw status string
// when no label is known.
func StepLabel(status models.WorkflowStatus) string {
	if label, ok := stepLabels[status]; ok {
		return label
	}

	return string(status)
}

// Step is one row of the dashboard step list.
type Step struct {
	Number int                   `json:"number"`
	Status models.WorkflowStatus `json:"status"`
	Label  string                `json:"label"`
	State  string                `json:"state"`
}

// Step list states.
const (
	StepDone    = "done"
	StepCurrent = "current"
	StepPending = "pending"
)

// WorkflowProgress is the aggregate progress view for one workflow.
type WorkflowProgress struct {
	WorkflowID      string                `json:"workflow_id"`
	Status          models.WorkflowStatus `json:"status"`
	StatusLabel     string                `json:"status_label"`
	StepNumber      int                   `json:"step_number"`
	PercentComplete float64               `json:"percent_complete"`
	Terminal        bool                  `json:"terminal"`
	Steps           []Step                `json:"steps"`
}

// Compute builds the progress view. Percent is the share of fully completed
// steps; a workflow at step n has completed n-1 of the 8 steps. Failed and
// cancelled workflows report zero percent since their position is no longer
// meaningful.
func Compute(workflow *models.Workflow) *WorkflowProgress {
	current := models.StepNumber(workflow.Status)

	percent := 0.0

	switch {
	case workflow.Status == models.StatusCompleted:
		percent = 100
	case workflow.Status.IsStep():
		percent = float64(current-1) / float64(models.StepCount) * 100
	}

	steps := make([]Step, 0, models.StepCount)

	for _, status := range models.StepOrder {
		n := models.StepNumber(status)

		state := StepPending

		switch {
		case workflow.Status == models.StatusCompleted || n < current:
			state = StepDone
		case n == current:
			state = StepCurrent
		}

		steps = append(steps, Step{
			Number: n,
			Status: status,
			Label:  StepLabel(status),
			State:  state,
		})
	}

	return &WorkflowProgress{
		WorkflowID:      workflow.ID,
		Status:          workflow.Status,
		StatusLabel:     StepLabel(workflow.Status),
		StepNumber:      current,
		PercentComplete: percent,
		Terminal:        workflow.Status.IsTerminal(),
		Steps:           steps,
	}
}

// AverageStepDuration derives the mean time between consecutive status
// transitions from a workflow's audit trail. Returns false when fewer than
// two transitions exist.
func AverageStepDuration(entries []*models.AuditLogEntry) (time.Duration, bool) {
	var transitions []time.Time

	for _, entry := range entries {
		if entry.Action == models.AuditStatusTransitioned {
			transitions = append(transitions, entry.CreatedAt)
		}
	}

	if len(transitions) < 2 {
		return 0, false
	}

	first, last := transitions[0], transitions[0]

	for _, t := range transitions[1:] {
		if t.Before(first) {
			first = t
		}

		if t.After(last) {
			last = t
		}
	}

	span := last.Sub(first)
	if span <= 0 {
		return 0, false
	}

	return span / time.Duration(len(transitions)-1), true
}

// EstimateRemaining projects the time to completion from the average step
// duration. Terminal and unknown statuses estimate zero.
func EstimateRemaining(status models.WorkflowStatus, avgStep time.Duration) time.Duration {
	if !status.IsStep() || avgStep <= 0 {
		return 0
	}

	remaining := models.StepCount - models.StepNumber(status) + 1

	return time.Duration(remaining) * avgStep
}

// KeywordCounts summarizes keyword approval state for a workflow.
type KeywordCounts struct {
	Total             int `json:"total"`
	SubtopicsComplete int `json:"subtopics_complete"`
	AwaitingApproval  int `json:"awaiting_approval"`
	ArticlesReady     int `json:"articles_ready"`
	ArticlesQueued    int `json:"articles_queued"`
	ArticlesPublished int `json:"articles_published"`
}

// CountKeywords aggregates keyword statuses. A keyword awaits approval when
// its subtopics are complete but no article decision has landed.
func CountKeywords(keywords []*models.Keyword) KeywordCounts {
	counts := KeywordCounts{Total: len(keywords)}

	for _, keyword := range keywords {
		if keyword.SubtopicsStatus == models.SubtopicsComplete {
			counts.SubtopicsComplete++

			if keyword.ArticleStatus == models.ArticleNotStarted {
				counts.AwaitingApproval++
			}
		}

		switch keyword.ArticleStatus {
		case models.ArticleReady:
			counts.ArticlesReady++
		case models.ArticleQueued:
			counts.ArticlesQueued++
		case models.ArticlePublished:
			counts.ArticlesPublished++
		}
	}

	return counts
}
