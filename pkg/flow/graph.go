// Package flow implements the workflow finite-state machine: the automation
// graph, the compare-and-set transition, the transition-and-trigger boundary
// wrapper, and the reconciliation sweep for stuck workflows.
package flow

import (
	"github.com/intentflow/intentflow/pkg/events"
	"github.com/intentflow/intentflow/pkg/models"
)

// Edge describes how a workflow leaves a state: the state it moves to and
// the queue event that wakes the worker for the new state.
type Edge struct {
	To      models.WorkflowStatus
	Trigger events.EventType
}

// Graph maps each non-terminal state to its single outgoing edge. The
// pipeline is linear; branching to failed/cancelled goes through Fail and
// Cancel rather than graph edges.
type Graph map[models.WorkflowStatus]Edge

// DefaultGraph returns the standard intent pipeline graph.
func DefaultGraph() Graph {
	return Graph{
		models.StatusICP:         {To: models.StatusCompetitors, Trigger: events.StepCompetitorsAnalyze},
		models.StatusCompetitors: {To: models.StatusKeywords, Trigger: events.StepKeywordsExpand},
		models.StatusKeywords:    {To: models.StatusLongtails, Trigger: events.StepLongtailsGenerate},
		models.StatusLongtails:   {To: models.StatusFiltering, Trigger: events.StepKeywordsFilter},
		models.StatusFiltering:   {To: models.StatusClustering, Trigger: events.StepClustersBuild},
		models.StatusClustering:  {To: models.StatusSubtopics, Trigger: events.StepSubtopicsGenerate},
		models.StatusSubtopics:   {To: models.StatusArticles, Trigger: events.StepArticlesQueue},
		models.StatusArticles:    {To: models.StatusCompleted, Trigger: events.WorkflowCompletedEvent},
	}
}

// EntryTrigger is the event that starts automation for a freshly created
// workflow sitting in the first step.
const EntryTrigger = events.StepICPGenerate

// StepTrigger returns the event that wakes the worker for a given step
// state, used by the reconciler to re-emit a stuck workflow's pending
// trigger.
func (g Graph) StepTrigger(status models.WorkflowStatus) (events.EventType, bool) {
	if status == models.StatusICP {
		return EntryTrigger, true
	}

	for _, edge := range g {
		if edge.To == status {
			return edge.Trigger, true
		}
	}

	return "", false
}
