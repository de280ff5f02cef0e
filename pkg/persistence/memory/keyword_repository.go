package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

type keywordRecord struct {
	keyword models.Keyword
}

// KeywordRepository stores keywords in a map guarded by the shared lock.
type KeywordRepository struct {
	store    *Persistence
	keywords map[string]*keywordRecord
}

func cloneKeyword(rec *keywordRecord) *models.Keyword {
	k := rec.keyword
	k.Subtopics = slices.Clone(rec.keyword.Subtopics)

	return &k
}

func (r *KeywordRepository) GetByID(_ context.Context, id string) (*models.Keyword, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.keywords[id]
	if !ok {
		return nil, &persistence.KeywordError{Op: "GetByID", KeywordID: id, Err: persistence.ErrKeywordNotFound}
	}

	return cloneKeyword(rec), nil
}

func (r *KeywordRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Keyword, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var keywords []*models.Keyword

	for _, rec := range r.keywords {
		if rec.keyword.WorkflowID == workflowID {
			keywords = append(keywords, cloneKeyword(rec))
		}
	}

	slices.SortFunc(keywords, func(a, b *models.Keyword) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return keywords, nil
}

func (r *KeywordRepository) Save(_ context.Context, keyword *models.Keyword) error {
	now := time.Now().UTC()

	if keyword.CreatedAt.IsZero() {
		keyword.CreatedAt = now
	}

	keyword.UpdatedAt = now

	if keyword.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return &persistence.KeywordError{Op: "Save", Err: err}
		}

		keyword.ID = id.String()
	}

	if keyword.SubtopicsStatus == "" {
		keyword.SubtopicsStatus = models.SubtopicsNotStarted
	}

	if keyword.ArticleStatus == "" {
		keyword.ArticleStatus = models.ArticleNotStarted
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.keywords[keyword.ID] = &keywordRecord{keyword: *keyword}

	return nil
}

func (r *KeywordRepository) UpdateArticleStatus(_ context.Context, id string, status models.ArticleStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.keywords[id]
	if !ok {
		return &persistence.KeywordError{Op: "UpdateArticleStatus", KeywordID: id, Err: persistence.ErrKeywordNotFound}
	}

	rec.keyword.ArticleStatus = status
	rec.keyword.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *KeywordRepository) UpdateSubtopics(_ context.Context, id string, subtopics []string, status models.SubtopicsStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.keywords[id]
	if !ok {
		return &persistence.KeywordError{Op: "UpdateSubtopics", KeywordID: id, Err: persistence.ErrKeywordNotFound}
	}

	rec.keyword.Subtopics = slices.Clone(subtopics)
	rec.keyword.SubtopicsStatus = status
	rec.keyword.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *KeywordRepository) CountNotReady(_ context.Context, workflowID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0

	for _, rec := range r.keywords {
		if rec.keyword.WorkflowID == workflowID && rec.keyword.ArticleStatus == models.ArticleNotStarted {
			count++
		}
	}

	return count, nil
}
