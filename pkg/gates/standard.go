package gates

import (
	"log/slog"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

// Deps bundles the collaborators every standard gate shares.
type Deps struct {
	Workflows persistence.WorkflowRepository
	Approvals persistence.ApprovalRepository
	Audit     *audit.Logger
	Logger    *slog.Logger
}

func standard(deps Deps, approvalType models.ApprovalType, protects models.WorkflowStatus) *Gate {
	return New(Config{
		ApprovalType:   approvalType,
		Protects:       protects,
		RequiredAction: "POST /workflows/{id}/approvals/" + string(approvalType),
	}, deps.Workflows, deps.Approvals, deps.Audit, deps.Logger)
}

// NewICPGate guards leaving the ICP generation step.
func NewICPGate(deps Deps) *Gate {
	return standard(deps, models.ApprovalICP, models.StatusICP)
}

// NewCompetitorsGate guards leaving the competitor analysis step.
func NewCompetitorsGate(deps Deps) *Gate {
	return standard(deps, models.ApprovalCompetitors, models.StatusCompetitors)
}

// NewSeedKeywordsGate guards leaving the keyword expansion step.
func NewSeedKeywordsGate(deps Deps) *Gate {
	return standard(deps, models.ApprovalSeedKeywords, models.StatusKeywords)
}

// NewLongtailsGate guards leaving the longtail generation step.
func NewLongtailsGate(deps Deps) *Gate {
	return standard(deps, models.ApprovalLongtails, models.StatusLongtails)
}

// NewSubtopicsGate guards leaving the subtopic generation step. The
// workflow-level subtopics approval is written by the approval processor
// once every keyword's subtopics are approved.
func NewSubtopicsGate(deps Deps) *Gate {
	return standard(deps, models.ApprovalSubtopics, models.StatusSubtopics)
}

// StandardGates returns every built-in gate keyed by approval type.
func StandardGates(deps Deps) map[models.ApprovalType]*Gate {
	gates := []*Gate{
		NewICPGate(deps),
		NewCompetitorsGate(deps),
		NewSeedKeywordsGate(deps),
		NewLongtailsGate(deps),
		NewSubtopicsGate(deps),
	}

	byType := make(map[models.ApprovalType]*Gate, len(gates))
	for _, gate := range gates {
		byType[gate.Type()] = gate
	}

	return byType
}
