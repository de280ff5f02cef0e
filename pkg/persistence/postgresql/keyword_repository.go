package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

// KeywordRepository handles keyword-related database operations.
type KeywordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewKeywordRepository creates a new keyword repository.
func NewKeywordRepository(db *sql.DB, logger *slog.Logger) *KeywordRepository {
	return &KeywordRepository{db: db, logger: logger}
}

const keywordColumns = `
	id
  , organization_id
  , workflow_id
  , keyword
  , kind
  , search_volume
  , difficulty
  , competition
  , subtopics
  , subtopics_status
  , article_status
  , created_at
  , updated_at
`

func (r *KeywordRepository) GetByID(ctx context.Context, id string) (*models.Keyword, error) {
	query := `SELECT ` + keywordColumns + ` FROM keywords WHERE id = $1`

	keyword, err := scanKeyword(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.KeywordError{Op: "GetByID", KeywordID: id, Err: persistence.ErrKeywordNotFound}
		}

		return nil, fmt.Errorf("failed to scan keyword: %w", err)
	}

	return keyword, nil
}

func (r *KeywordRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Keyword, error) {
	query := `SELECT ` + keywordColumns + ` FROM keywords WHERE workflow_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var keywords []*models.Keyword

	for rows.Next() {
		keyword, err := scanKeyword(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}

		keywords = append(keywords, keyword)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating keywords: %w", err)
	}

	return keywords, nil
}

func (r *KeywordRepository) Save(ctx context.Context, keyword *models.Keyword) error {
	now := time.Now().UTC()

	if keyword.CreatedAt.IsZero() {
		keyword.CreatedAt = now
	}

	keyword.UpdatedAt = now

	if keyword.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate keyword ID: %w", err)
		}

		keyword.ID = id.String()
	}

	if keyword.SubtopicsStatus == "" {
		keyword.SubtopicsStatus = models.SubtopicsNotStarted
	}

	if keyword.ArticleStatus == "" {
		keyword.ArticleStatus = models.ArticleNotStarted
	}

	subtopicsJSON, err := json.Marshal(keyword.Subtopics)
	if err != nil {
		return fmt.Errorf("failed to marshal subtopics: %w", err)
	}

	query := `
		INSERT INTO keywords (id, organization_id, workflow_id, keyword, kind, search_volume,
			difficulty, competition, subtopics, subtopics_status, article_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			keyword = EXCLUDED.keyword,
			search_volume = EXCLUDED.search_volume,
			difficulty = EXCLUDED.difficulty,
			competition = EXCLUDED.competition,
			subtopics = EXCLUDED.subtopics,
			subtopics_status = EXCLUDED.subtopics_status,
			article_status = EXCLUDED.article_status,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		keyword.ID,
		keyword.OrganizationID,
		keyword.WorkflowID,
		keyword.Keyword,
		keyword.Kind,
		keyword.SearchVolume,
		keyword.Difficulty,
		keyword.Competition,
		subtopicsJSON,
		keyword.SubtopicsStatus,
		keyword.ArticleStatus,
		keyword.CreatedAt,
		keyword.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save keyword: %w", err)
	}

	return nil
}

func (r *KeywordRepository) UpdateArticleStatus(ctx context.Context, id string, status models.ArticleStatus) error {
	query := `UPDATE keywords SET article_status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return &persistence.KeywordError{Op: "UpdateArticleStatus", KeywordID: id, Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &persistence.KeywordError{Op: "UpdateArticleStatus", KeywordID: id, Err: err}
	}

	if rowsAffected == 0 {
		return &persistence.KeywordError{Op: "UpdateArticleStatus", KeywordID: id, Err: persistence.ErrKeywordNotFound}
	}

	return nil
}

func (r *KeywordRepository) UpdateSubtopics(ctx context.Context, id string, subtopics []string, status models.SubtopicsStatus) error {
	subtopicsJSON, err := json.Marshal(subtopics)
	if err != nil {
		return fmt.Errorf("failed to marshal subtopics: %w", err)
	}

	query := `UPDATE keywords SET subtopics = $1, subtopics_status = $2, updated_at = NOW() WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, subtopicsJSON, status, id)
	if err != nil {
		return &persistence.KeywordError{Op: "UpdateSubtopics", KeywordID: id, Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &persistence.KeywordError{Op: "UpdateSubtopics", KeywordID: id, Err: err}
	}

	if rowsAffected == 0 {
		return &persistence.KeywordError{Op: "UpdateSubtopics", KeywordID: id, Err: persistence.ErrKeywordNotFound}
	}

	return nil
}

func (r *KeywordRepository) CountNotReady(ctx context.Context, workflowID string) (int, error) {
	query := `SELECT COUNT(*) FROM keywords WHERE workflow_id = $1 AND article_status = $2`

	var count int

	err := r.db.QueryRowContext(ctx, query, workflowID, models.ArticleNotStarted).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending keywords: %w", err)
	}

	return count, nil
}

func scanKeyword(scanner interface {
	Scan(dest ...any) error
}) (*models.Keyword, error) {
	var (
		keyword       models.Keyword
		subtopicsJSON []byte
	)

	err := scanner.Scan(
		&keyword.ID,
		&keyword.OrganizationID,
		&keyword.WorkflowID,
		&keyword.Keyword,
		&keyword.Kind,
		&keyword.SearchVolume,
		&keyword.Difficulty,
		&keyword.Competition,
		&subtopicsJSON,
		&keyword.SubtopicsStatus,
		&keyword.ArticleStatus,
		&keyword.CreatedAt,
		&keyword.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if subtopicsJSON != nil {
		err := json.Unmarshal(subtopicsJSON, &keyword.Subtopics)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal subtopics: %w", err)
		}
	}

	return &keyword, nil
}
