package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/lorraine/cropcast/internal/contracts"
)

// Artifact JSON layout: a single blob mapping item id to its inference
// bundle. Produced offline by the training pipeline; this process only
// reads it, once, at startup.
type artifactFile struct {
	Version int                     `json:"version"`
	Items   map[string]artifactItem `json:"items"`
}

type artifactItem struct {
	FeatureNames []string         `json:"feature_names"`
	BaseScore    float64          `json:"base_score"`
	Trees        [][]artifactNode `json:"trees"`
}

type artifactNode struct {
	Feature     string   `json:"feature,omitempty"`
	Threshold   float64  `json:"threshold,omitempty"`
	Left        int      `json:"left,omitempty"`
	Right       int      `json:"right,omitempty"`
	DefaultLeft bool     `json:"default_left,omitempty"`
	Leaf        *float64 `json:"leaf,omitempty"`
}

// Registry is the static, read-only model registry: one regressor per item,
// resolved by typed item id. Shared freely across workers.
type Registry struct {
	models map[contracts.ItemID]*contracts.Model
}

// Load reads the model artifact from path and builds the registry. Any
// malformed entry fails the whole load; a partially usable artifact is not
// worth forecasting against.
func Load(path string, log zerolog.Logger) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var af artifactFile
	if err := json.Unmarshal(raw, &af); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if len(af.Items) == 0 {
		return nil, fmt.Errorf("model artifact %s contains no items", path)
	}

	reg := &Registry{models: make(map[contracts.ItemID]*contracts.Model, len(af.Items))}
	for key, item := range af.Items {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("model artifact: bad item id %q: %w", key, err)
		}
		if len(item.FeatureNames) == 0 {
			return nil, fmt.Errorf("model artifact: item %d has no feature names", id)
		}
		ens, err := buildEnsemble(item.Trees, item.BaseScore, item.FeatureNames)
		if err != nil {
			return nil, fmt.Errorf("model artifact: item %d: %w", id, err)
		}
		reg.models[contracts.ItemID(id)] = &contracts.Model{
			ItemID:       contracts.ItemID(id),
			FeatureNames: item.FeatureNames,
			Regressor:    ens,
		}
	}

	log.Info().
		Str("path", path).
		Int("models", len(reg.models)).
		Msg("model artifact loaded")

	return reg, nil
}

// Resolve implements contracts.ModelRegistry.
func (r *Registry) Resolve(item contracts.ItemID) (*contracts.Model, bool) {
	m, ok := r.models[item]
	return m, ok
}

// Items implements contracts.ModelRegistry.
func (r *Registry) Items() []contracts.ItemID {
	ids := make([]contracts.ItemID, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered models.
func (r *Registry) Len() int { return len(r.models) }

// NewStatic builds a registry from prepared models. Used by tests and by
// callers that assemble models without an artifact file.
func NewStatic(models ...*contracts.Model) *Registry {
	reg := &Registry{models: make(map[contracts.ItemID]*contracts.Model, len(models))}
	for _, m := range models {
		reg.models[m.ItemID] = m
	}
	return reg
}
