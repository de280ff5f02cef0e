package models

import "time"

// TopicCluster records a hub/spoke relationship between two keywords with a
// similarity score in [0, 1]. Clusters are read-only after the clustering
// step, except for the validation annotation.
type TopicCluster struct {
	ID              string    `json:"id"`
	WorkflowID      string    `json:"workflow_id"     validate:"required"`
	HubKeywordID    string    `json:"hub_keyword_id"  validate:"required"`
	SpokeKeywordID  string    `json:"spoke_keyword_id" validate:"required"`
	SimilarityScore *float64  `json:"similarity_score,omitempty"`
	Valid           *bool     `json:"valid,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Similarity returns the similarity score, treating a missing score as 0.
func (c *TopicCluster) Similarity() float64 {
	if c.SimilarityScore == nil {
		return 0
	}

	return *c.SimilarityScore
}
