// Package events defines the trigger and lifecycle events exchanged over the
// task queue between the API, the workers, and the reconciler.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/intentflow/intentflow/pkg/models"
)

type EventType string

// Topic is the queue topic all intent events flow through.
const Topic = "intentflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Step automation triggers. Each one wakes the worker responsible for
	// the step the workflow just entered.
	StepICPGenerate         EventType = "intent.icp.generate"
	StepCompetitorsAnalyze  EventType = "intent.competitors.analyze"
	StepKeywordsExpand      EventType = "intent.keywords.expand"
	StepLongtailsGenerate   EventType = "intent.longtails.generate"
	StepKeywordsFilter      EventType = "intent.keywords.filter"
	StepClustersBuild       EventType = "intent.clusters.build"
	StepSubtopicsGenerate   EventType = "intent.subtopics.generate"
	StepArticlesQueue       EventType = "intent.articles.queue"
	WorkflowCompletedEvent  EventType = "intent.workflow.completed"
	WorkflowFailedEvent     EventType = "intent.workflow.failed"
	WorkflowCancelledEvent  EventType = "intent.workflow.cancelled"
	WorkflowStuckReemission EventType = "intent.workflow.reemitted"
)

// StepTriggerTypes lists every event type that carries a StepTrigger payload.
var StepTriggerTypes = []EventType{
	StepICPGenerate,
	StepCompetitorsAnalyze,
	StepKeywordsExpand,
	StepLongtailsGenerate,
	StepKeywordsFilter,
	StepClustersBuild,
	StepSubtopicsGenerate,
	StepArticlesQueue,
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// StepTrigger asks a worker to run the automation for the step the workflow
// is now in. The reconciler reemits triggers for stuck workflows, so handlers
// must tolerate duplicates.
type StepTrigger struct {
	BaseEvent

	FromStatus models.WorkflowStatus `json:"from_status"`
	ToStatus   models.WorkflowStatus `json:"to_status"`
	ActorID    string                `json:"actor_id,omitempty"`
	Reemission bool                  `json:"reemission,omitempty"`
}

func (e StepTrigger) GetType() EventType {
	return e.Type
}

// WorkflowCompleted announces a workflow reaching its terminal completed
// state.
type WorkflowCompleted struct {
	BaseEvent

	DurationMs int64 `json:"duration_ms"`
}

func (e WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

// WorkflowFailed announces a workflow moved to the failed state.
type WorkflowFailed struct {
	BaseEvent

	Error string `json:"error"`
}

func (e WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

// WorkflowCancelled announces an administrative cancellation.
type WorkflowCancelled struct {
	BaseEvent

	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

func (e WorkflowCancelled) GetType() EventType {
	return WorkflowCancelledEvent
}
