package models

import "time"

// SubtopicsStatus tracks subtopic generation for a keyword.
type SubtopicsStatus string

const (
	SubtopicsNotStarted SubtopicsStatus = "not_started"
	SubtopicsGenerating SubtopicsStatus = "generating"
	SubtopicsComplete   SubtopicsStatus = "complete"
)

// ArticleStatus tracks whether a keyword is cleared for article writing.
// A keyword becomes ready only after its subtopics are complete and a human
// approved them.
type ArticleStatus string

const (
	ArticleNotStarted ArticleStatus = "not_started"
	ArticleReady      ArticleStatus = "ready"
	ArticleQueued     ArticleStatus = "queued"
	ArticlePublished  ArticleStatus = "published"
)

// KeywordKind distinguishes how a keyword entered the pipeline.
type KeywordKind string

const (
	KeywordSeed     KeywordKind = "seed"
	KeywordLongtail KeywordKind = "longtail"
	KeywordDerived  KeywordKind = "derived"
)

// Keyword is a unit of work nested under a workflow.
type Keyword struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organization_id" validate:"required"`
	WorkflowID      string          `json:"workflow_id"     validate:"required"`
	Keyword         string          `json:"keyword"         validate:"required"`
	Kind            KeywordKind     `json:"kind"`
	SearchVolume    int             `json:"search_volume"`
	Difficulty      float64         `json:"difficulty"`
	Competition     float64         `json:"competition"`
	Subtopics       []string        `json:"subtopics,omitempty"`
	SubtopicsStatus SubtopicsStatus `json:"subtopics_status"`
	ArticleStatus   ArticleStatus   `json:"article_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
