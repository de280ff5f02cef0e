package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepNumberOrdering(t *testing.T) {
	for i, status := range StepOrder {
		assert.Equal(t, i+1, StepNumber(status))
	}
}

func TestStepNumberTerminals(t *testing.T) {
	assert.Equal(t, StepCount+1, StepNumber(StatusCompleted))
	assert.Equal(t, UnknownStep, StepNumber(StatusFailed))
	assert.Equal(t, UnknownStep, StepNumber(StatusCancelled))
	assert.Equal(t, UnknownStep, StepNumber(WorkflowStatus("bogus")))
}

func TestIsTerminal(t *testing.T) {
	for _, status := range StepOrder {
		assert.False(t, status.IsTerminal(), string(status))
	}

	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestIsStep(t *testing.T) {
	for _, status := range StepOrder {
		assert.True(t, status.IsStep(), string(status))
	}

	assert.False(t, StatusCompleted.IsStep())
	assert.False(t, StatusCancelled.IsStep())
}

func TestStepApprovalType(t *testing.T) {
	gated := map[WorkflowStatus]ApprovalType{
		StatusICP:         ApprovalICP,
		StatusCompetitors: ApprovalCompetitors,
		StatusKeywords:    ApprovalSeedKeywords,
		StatusLongtails:   ApprovalLongtails,
		StatusSubtopics:   ApprovalSubtopics,
	}

	for status, want := range gated {
		got, ok := StepApprovalType(status)
		assert.True(t, ok, string(status))
		assert.Equal(t, want, got)
	}

	for _, status := range []WorkflowStatus{StatusFiltering, StatusClustering, StatusArticles, StatusCompleted, StatusCancelled} {
		_, ok := StepApprovalType(status)
		assert.False(t, ok, string(status))
	}
}
