// Package memory provides an in-memory persistence implementation for tests
// and local development. The compare-and-set status update is taken under the
// store lock, giving the same one-winner guarantee as the SQL conditional
// update.
package memory

import (
	"context"
	"sync"

	"github.com/intentflow/intentflow/pkg/persistence"
)

// Persistence implements persistence.Persistence backed by process memory.
type Persistence struct {
	mu sync.RWMutex

	workflowRepo *WorkflowRepository
	keywordRepo  *KeywordRepository
	clusterRepo  *ClusterRepository
	approvalRepo *ApprovalRepository
	auditRepo    *AuditRepository
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	p := &Persistence{}
	p.workflowRepo = &WorkflowRepository{store: p, workflows: make(map[string]*workflowRecord)}
	p.keywordRepo = &KeywordRepository{store: p, keywords: make(map[string]*keywordRecord)}
	p.clusterRepo = &ClusterRepository{store: p}
	p.approvalRepo = &ApprovalRepository{store: p, approvals: make(map[approvalKey]*approvalRecord)}
	p.auditRepo = &AuditRepository{store: p}

	return p
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) KeywordRepository() persistence.KeywordRepository {
	return p.keywordRepo
}

func (p *Persistence) ClusterRepository() persistence.ClusterRepository {
	return p.clusterRepo
}

func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvalRepo
}

func (p *Persistence) AuditRepository() persistence.AuditRepository {
	return p.auditRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
