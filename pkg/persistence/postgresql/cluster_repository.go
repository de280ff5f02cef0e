package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

// ClusterRepository handles topic-cluster database operations.
type ClusterRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewClusterRepository creates a new cluster repository.
func NewClusterRepository(db *sql.DB, logger *slog.Logger) *ClusterRepository {
	return &ClusterRepository{db: db, logger: logger}
}

const clusterColumns = `
	id
  , workflow_id
  , hub_keyword_id
  , spoke_keyword_id
  , similarity_score
  , valid
  , created_at
`

func (r *ClusterRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.TopicCluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM topic_clusters WHERE workflow_id = $1 ORDER BY created_at`

	return r.queryClusters(ctx, query, workflowID)
}

func (r *ClusterRepository) ListByHub(ctx context.Context, workflowID, hubKeywordID string) ([]*models.TopicCluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM topic_clusters WHERE workflow_id = $1 AND hub_keyword_id = $2 ORDER BY created_at`

	clusters, err := r.queryClusters(ctx, query, workflowID, hubKeywordID)
	if err != nil {
		return nil, err
	}

	if len(clusters) == 0 {
		return nil, persistence.ErrClusterNotFound
	}

	return clusters, nil
}

func (r *ClusterRepository) queryClusters(ctx context.Context, query string, args ...any) ([]*models.TopicCluster, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var clusters []*models.TopicCluster

	for rows.Next() {
		var cluster models.TopicCluster

		err := rows.Scan(
			&cluster.ID,
			&cluster.WorkflowID,
			&cluster.HubKeywordID,
			&cluster.SpokeKeywordID,
			&cluster.SimilarityScore,
			&cluster.Valid,
			&cluster.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}

		clusters = append(clusters, &cluster)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating clusters: %w", err)
	}

	return clusters, nil
}

func (r *ClusterRepository) SaveBatch(ctx context.Context, clusters []*models.TopicCluster) error {
	if len(clusters) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	query := `
		INSERT INTO topic_clusters (id, workflow_id, hub_keyword_id, spoke_keyword_id, similarity_score, valid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, cluster := range clusters {
		if cluster.ID == "" {
			var id uuid.UUID

			id, err = uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate cluster ID: %w", err)
			}

			cluster.ID = id.String()
		}

		if cluster.CreatedAt.IsZero() {
			cluster.CreatedAt = now
		}

		_, err = tx.ExecContext(ctx, query,
			cluster.ID,
			cluster.WorkflowID,
			cluster.HubKeywordID,
			cluster.SpokeKeywordID,
			cluster.SimilarityScore,
			cluster.Valid,
			cluster.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save cluster: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *ClusterRepository) AnnotateValidation(ctx context.Context, workflowID, hubKeywordID string, valid bool) error {
	query := `UPDATE topic_clusters SET valid = $1 WHERE workflow_id = $2 AND hub_keyword_id = $3`

	result, err := r.db.ExecContext(ctx, query, valid, workflowID, hubKeywordID)
	if err != nil {
		return fmt.Errorf("failed to annotate cluster validation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrClusterNotFound
	}

	return nil
}
