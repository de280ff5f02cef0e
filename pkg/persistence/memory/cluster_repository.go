package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

// ClusterRepository stores topic clusters in a slice guarded by the shared
// lock. Clusters are append-mostly; only the validation annotation mutates.
type ClusterRepository struct {
	store    *Persistence
	clusters []*models.TopicCluster
}

func cloneCluster(c *models.TopicCluster) *models.TopicCluster {
	out := *c

	if c.SimilarityScore != nil {
		score := *c.SimilarityScore
		out.SimilarityScore = &score
	}

	if c.Valid != nil {
		valid := *c.Valid
		out.Valid = &valid
	}

	return &out
}

func (r *ClusterRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.TopicCluster, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var clusters []*models.TopicCluster

	for _, c := range r.clusters {
		if c.WorkflowID == workflowID {
			clusters = append(clusters, cloneCluster(c))
		}
	}

	return clusters, nil
}

func (r *ClusterRepository) ListByHub(_ context.Context, workflowID, hubKeywordID string) ([]*models.TopicCluster, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var clusters []*models.TopicCluster

	for _, c := range r.clusters {
		if c.WorkflowID == workflowID && c.HubKeywordID == hubKeywordID {
			clusters = append(clusters, cloneCluster(c))
		}
	}

	if len(clusters) == 0 {
		return nil, persistence.ErrClusterNotFound
	}

	return clusters, nil
}

func (r *ClusterRepository) SaveBatch(_ context.Context, clusters []*models.TopicCluster) error {
	now := time.Now().UTC()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, c := range clusters {
		if c.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}

			c.ID = id.String()
		}

		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}

		r.clusters = append(r.clusters, cloneCluster(c))
	}

	return nil
}

func (r *ClusterRepository) AnnotateValidation(_ context.Context, workflowID, hubKeywordID string, valid bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	found := false

	for _, c := range r.clusters {
		if c.WorkflowID == workflowID && c.HubKeywordID == hubKeywordID {
			v := valid
			c.Valid = &v
			found = true
		}
	}

	if !found {
		return persistence.ErrClusterNotFound
	}

	return nil
}
