// Package clusters validates topic clusters: every hub keyword must hold a
// sane number of spokes with sufficient average similarity before the
// pipeline builds subtopics on top of them.
package clusters

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

var (
	// ErrEmptyWorkflowID is a precondition violation, not a validation
	// verdict.
	ErrEmptyWorkflowID = errors.New("workflow id is empty")

	// ErrNoClusters is returned when there is nothing to validate. An empty
	// input is a caller bug, distinct from a workflow whose clusters all
	// fail validation.
	ErrNoClusters = errors.New("no clusters to validate")
)

// Config bounds a valid hub. The zero value is unusable; use DefaultConfig
// and override fields as needed.
type Config struct {
	MinSpokes           int
	MaxSpokes           int
	SimilarityThreshold float64
}

// DefaultConfig returns the standard bounds: 2 to 8 spokes per hub with an
// average similarity of at least 0.6.
func DefaultConfig() Config {
	return Config{
		MinSpokes:           2,
		MaxSpokes:           8,
		SimilarityThreshold: 0.6,
	}
}

// HubResult is the verdict for one hub keyword and its spokes.
type HubResult struct {
	HubKeywordID  string  `json:"hub_keyword_id"`
	SpokeCount    int     `json:"spoke_count"`
	AvgSimilarity float64 `json:"avg_similarity"`
	Valid         bool    `json:"valid"`
}

// Report aggregates per-hub verdicts for a workflow.
type Report struct {
	WorkflowID string      `json:"workflow_id"`
	Total      int         `json:"total"`
	Valid      int         `json:"valid"`
	Invalid    int         `json:"invalid"`
	Results    []HubResult `json:"results"`
}

// Validator checks cluster quality against configurable bounds.
type Validator struct {
	config   Config
	clusters persistence.ClusterRepository
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewValidator creates a validator. Zero config fields fall back to the
// defaults.
func NewValidator(config Config, clusters persistence.ClusterRepository, auditLogger *audit.Logger, logger *slog.Logger) *Validator {
	defaults := DefaultConfig()

	if config.MinSpokes <= 0 {
		config.MinSpokes = defaults.MinSpokes
	}

	if config.MaxSpokes <= 0 {
		config.MaxSpokes = defaults.MaxSpokes
	}

	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = defaults.SimilarityThreshold
	}

	return &Validator{
		config:   config,
		clusters: clusters,
		audit:    auditLogger,
		logger:   logger.With("module", "clusters"),
	}
}

// Validate groups clusters by hub keyword and applies the bounds to each
// group. Pure over its inputs; storage is not consulted.
func (v *Validator) Validate(workflowID string, clusters []*models.TopicCluster) (*Report, error) {
	if workflowID == "" {
		return nil, ErrEmptyWorkflowID
	}

	if len(clusters) == 0 {
		return nil, ErrNoClusters
	}

	groups := make(map[string][]*models.TopicCluster)
	for _, cluster := range clusters {
		groups[cluster.HubKeywordID] = append(groups[cluster.HubKeywordID], cluster)
	}

	hubs := make([]string, 0, len(groups))
	for hub := range groups {
		hubs = append(hubs, hub)
	}

	sort.Strings(hubs)

	report := &Report{
		WorkflowID: workflowID,
		Total:      len(groups),
		Results:    make([]HubResult, 0, len(groups)),
	}

	for _, hub := range hubs {
		result := v.validateHub(hub, groups[hub])
		if result.Valid {
			report.Valid++
		} else {
			report.Invalid++
		}

		report.Results = append(report.Results, result)
	}

	return report, nil
}

// ValidateWorkflowClusters loads a workflow's clusters, validates them, and
// writes the per-hub verdicts back to storage.
func (v *Validator) ValidateWorkflowClusters(ctx context.Context, workflowID string, actor models.Actor) (*Report, error) {
	if workflowID == "" {
		return nil, ErrEmptyWorkflowID
	}

	clusters, err := v.clusters.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	report, err := v.Validate(workflowID, clusters)
	if err != nil {
		return nil, err
	}

	for _, result := range report.Results {
		if err := v.clusters.AnnotateValidation(ctx, workflowID, result.HubKeywordID, result.Valid); err != nil {
			return nil, err
		}
	}

	v.audit.Log(ctx, audit.Entry(actor, models.AuditClusterValidationRun, models.EntityCluster, workflowID, workflowID, map[string]any{
		"total":   report.Total,
		"valid":   report.Valid,
		"invalid": report.Invalid,
	}))

	v.logger.InfoContext(ctx, "Cluster validation finished",
		"workflow_id", workflowID,
		"total", report.Total,
		"valid", report.Valid,
		"invalid", report.Invalid)

	return report, nil
}

// ValidateSingleCluster validates one hub's group in isolation. For the
// same hub and spokes it produces the same verdict as the batch form.
func (v *Validator) ValidateSingleCluster(ctx context.Context, workflowID, hubKeywordID string) (*HubResult, error) {
	if workflowID == "" {
		return nil, ErrEmptyWorkflowID
	}

	clusters, err := v.clusters.ListByHub(ctx, workflowID, hubKeywordID)
	if err != nil {
		return nil, err
	}

	result := v.validateHub(hubKeywordID, clusters)

	return &result, nil
}

func (v *Validator) validateHub(hubKeywordID string, spokes []*models.TopicCluster) HubResult {
	var total float64
	for _, spoke := range spokes {
		total += spoke.Similarity()
	}

	avg := 0.0
	if len(spokes) > 0 {
		avg = total / float64(len(spokes))
	}

	return HubResult{
		HubKeywordID:  hubKeywordID,
		SpokeCount:    len(spokes),
		AvgSimilarity: avg,
		Valid: len(spokes) >= v.config.MinSpokes &&
			len(spokes) <= v.config.MaxSpokes &&
			avg >= v.config.SimilarityThreshold,
	}
}
