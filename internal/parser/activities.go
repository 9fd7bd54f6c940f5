// Package parser reads and writes activity files: the seed data and persisted
// state of the local fake backend. Files are YAML; JSON arrays are accepted too.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mph-llm-experiments/acalls/internal/model"
)

// ParseActivityFile reads a list of activities. Every activity needs a unique id.
func ParseActivityFile(path string) ([]model.Activity, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return ParseActivities(content)
}

// ParseActivities decodes a YAML or JSON list of activities.
func ParseActivities(content []byte) ([]model.Activity, error) {
	var activities []model.Activity
	if len(bytes.TrimSpace(content)) == 0 {
		return []model.Activity{}, nil
	}
	if err := yaml.Unmarshal(content, &activities); err != nil {
		return nil, fmt.Errorf("error parsing activities: %w", err)
	}

	seen := make(map[model.ActivityID]bool, len(activities))
	for i, a := range activities {
		if a.ID == "" {
			return nil, fmt.Errorf("activity #%d has no id", i+1)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate activity id %s", a.ID)
		}
		seen[a.ID] = true
		if a.Duration < 0 {
			return nil, fmt.Errorf("activity %s has negative duration %d", a.ID, a.Duration)
		}
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	return activities, nil
}

// SaveActivityFile writes activities atomically via a temp file and rename.
func SaveActivityFile(path string, activities []model.Activity) error {
	data, err := yaml.Marshal(activities)
	if err != nil {
		return fmt.Errorf("failed to marshal activities: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename activity file: %w", err)
	}

	return nil
}
