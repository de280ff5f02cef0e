// Package schema validates the workflow_data fragments each automation step
// writes, before they are merged into the workflow document.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/intentflow/intentflow/pkg/models"
)

// ErrNoSchema is returned when a step has no registered fragment schema.
var ErrNoSchema = errors.New("no schema registered for status")

// stepSchemas describes, per step, the shape of the fragment its automation
// produces. JSON schema as Go maps, loaded with gojsonschema's Go loader.
var stepSchemas = map[models.WorkflowStatus]map[string]any{
	models.StatusICP: {
		"type":     "object",
		"required": []string{"icp"},
		"properties": map[string]any{
			"icp": map[string]any{
				"type":     "object",
				"required": []string{"persona", "pain_points"},
				"properties": map[string]any{
					"persona":     map[string]any{"type": "string", "minLength": 1},
					"pain_points": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1},
				},
			},
		},
	},
	models.StatusCompetitors: {
		"type":     "object",
		"required": []string{"competitors"},
		"properties": map[string]any{
			"competitors": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []string{"domain"},
					"properties": map[string]any{
						"domain": map[string]any{"type": "string", "minLength": 1},
					},
				},
			},
		},
	},
	models.StatusKeywords: {
		"type":     "object",
		"required": []string{"seed_keywords"},
		"properties": map[string]any{
			"seed_keywords": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string", "minLength": 1},
			},
		},
	},
	models.StatusLongtails: {
		"type":     "object",
		"required": []string{"longtail_count"},
		"properties": map[string]any{
			"longtail_count": map[string]any{"type": "integer", "minimum": 0},
		},
	},
	models.StatusFiltering: {
		"type":     "object",
		"required": []string{"kept_count", "dropped_count"},
		"properties": map[string]any{
			"kept_count":    map[string]any{"type": "integer", "minimum": 0},
			"dropped_count": map[string]any{"type": "integer", "minimum": 0},
		},
	},
	models.StatusClustering: {
		"type":     "object",
		"required": []string{"cluster_count"},
		"properties": map[string]any{
			"cluster_count": map[string]any{"type": "integer", "minimum": 0},
		},
	},
	models.StatusSubtopics: {
		"type":     "object",
		"required": []string{"subtopics_generated"},
		"properties": map[string]any{
			"subtopics_generated": map[string]any{"type": "integer", "minimum": 0},
		},
	},
	models.StatusArticles: {
		"type":     "object",
		"required": []string{"queued_articles"},
		"properties": map[string]any{
			"queued_articles": map[string]any{"type": "integer", "minimum": 0},
		},
	},
}

// HasSchema reports whether a fragment schema exists for the status.
func HasSchema(status models.WorkflowStatus) bool {
	_, ok := stepSchemas[status]

	return ok
}

// FragmentPresent reports whether workflow_data already carries every
// required key of the step's fragment, meaning the step's automation has
// run and merged its output.
func FragmentPresent(status models.WorkflowStatus, data map[string]any) bool {
	stepSchema, ok := stepSchemas[status]
	if !ok {
		return false
	}

	required, ok := stepSchema["required"].([]string)
	if !ok {
		return false
	}

	for _, key := range required {
		if _, ok := data[key]; !ok {
			return false
		}
	}

	return true
}

// ValidateFragment checks a step's output fragment against its schema
// before it is merged into workflow_data.
func ValidateFragment(status models.WorkflowStatus, fragment map[string]any) error {
	stepSchema, ok := stepSchemas[status]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSchema, status)
	}

	schemaLoader := gojsonschema.NewGoLoader(stepSchema)
	dataLoader := gojsonschema.NewGoLoader(fragment)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var failures []string
		for _, failure := range result.Errors() {
			failures = append(failures, failure.String())
		}

		return fmt.Errorf("fragment for %s failed validation: %s", status, strings.Join(failures, "; "))
	}

	return nil
}
