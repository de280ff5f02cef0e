package models

// WorkflowStatus identifies the pipeline step a workflow is currently in, or
// one of the terminal states. Statuses are a typed enum with an explicit step
// table; nothing in the codebase parses step numbers out of the string.
type WorkflowStatus string

const (
	StatusICP         WorkflowStatus = "step_1_icp"
	StatusCompetitors WorkflowStatus = "step_2_competitors"
	StatusKeywords    WorkflowStatus = "step_3_keywords"
	StatusLongtails   WorkflowStatus = "step_4_longtails"
	StatusFiltering   WorkflowStatus = "step_5_filtering"
	StatusClustering  WorkflowStatus = "step_6_clustering"
	StatusSubtopics   WorkflowStatus = "step_7_subtopics"
	StatusArticles    WorkflowStatus = "step_8_articles"

	StatusCompleted WorkflowStatus = "completed"
	StatusFailed    WorkflowStatus = "failed"
	StatusCancelled WorkflowStatus = "cancelled"
)

// StepCount is the number of non-terminal pipeline steps.
const StepCount = 8

// UnknownStep is returned by StepNumber for cancelled, failed, and
// unrecognized statuses.
const UnknownStep = -1

// stepNumbers is the single source of truth for status ordering. Every
// consumer (gates, progress read-models, the automation graph) goes through
// StepNumber; the table is never duplicated.
var stepNumbers = map[WorkflowStatus]int{
	StatusICP:         1,
	StatusCompetitors: 2,
	StatusKeywords:    3,
	StatusLongtails:   4,
	StatusFiltering:   5,
	StatusClustering:  6,
	StatusSubtopics:   7,
	StatusArticles:    8,
	StatusCompleted:   StepCount + 1,
	StatusFailed:      UnknownStep,
	StatusCancelled:   UnknownStep,
}

// StepOrder lists the non-terminal step statuses in pipeline order.
var StepOrder = []WorkflowStatus{
	StatusICP,
	StatusCompetitors,
	StatusKeywords,
	StatusLongtails,
	StatusFiltering,
	StatusClustering,
	StatusSubtopics,
	StatusArticles,
}

// StepNumber returns the 1-based step number for a status. Completed maps to
// one past the last step, cancelled/failed/unknown map to UnknownStep.
func StepNumber(status WorkflowStatus) int {
	if n, ok := stepNumbers[status]; ok {
		return n
	}

	return UnknownStep
}

// IsTerminal reports whether a workflow in this status accepts no further
// transitions.
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsStep reports whether the status is one of the ordered pipeline steps.
func (s WorkflowStatus) IsStep() bool {
	n := StepNumber(s)

	return n >= 1 && n <= StepCount
}
