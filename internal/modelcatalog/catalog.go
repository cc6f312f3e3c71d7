// Package modelcatalog resolves model IDs to catalog entries and picks the
// effective model for a generation run.
package modelcatalog

import (
	"strings"
	"time"

	"github.com/storyforge/storyforge/internal/modelcatalog/domain"
)

// Catalog is an in-process registry of invocable models.
type Catalog struct {
	models        map[string]domain.Model
	platformModel string
}

// NewCatalog builds the default registry. The platform default must exist in
// the registry or resolution falls back to the first free-tier entry.
func NewCatalog(platformDefault string) *Catalog {
	c := &Catalog{
		models:        make(map[string]domain.Model),
		platformModel: strings.TrimSpace(platformDefault),
	}
	for _, m := range defaultModels() {
		c.models[m.ID] = m
	}
	return c
}

func defaultModels() []domain.Model {
	return []domain.Model{
		{
			ID:              "sf-core-1",
			DisplayName:     "StoryForge Core",
			Provider:        "openai",
			FreeTier:        true,
			MaxOutputTokens: 2048,
			Temperature:     0.8,
			RequestTimeout:  45 * time.Second,
		},
		{
			ID:              "sf-pro-1",
			DisplayName:     "StoryForge Pro",
			Provider:        "openai",
			InputRatePerK:   1.0,
			OutputRatePerK:  3.0,
			MaxOutputTokens: 4096,
			Temperature:     0.8,
			RequestTimeout:  90 * time.Second,
		},
		{
			ID:              "sf-longform-1",
			DisplayName:     "StoryForge Longform",
			Provider:        "anthropic",
			InputRatePerK:   2.0,
			OutputRatePerK:  6.0,
			MaxOutputTokens: 8192,
			Temperature:     0.7,
			RequestTimeout:  180 * time.Second,
		},
	}
}

// Get returns the catalog entry for id.
func (c *Catalog) Get(id string) (domain.Model, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Model{}, domain.ErrInvalidModel
	}
	model, ok := c.models[id]
	if !ok {
		return domain.Model{}, domain.ErrModelNotFound
	}
	return model, nil
}

// Resolve picks the effective model: explicit override, else the org default,
// else the platform default.
func (c *Catalog) Resolve(override, orgDefault string) (domain.Model, error) {
	for _, candidate := range []string{override, orgDefault, c.platformModel} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if model, ok := c.models[candidate]; ok {
			return model, nil
		}
	}

	for _, model := range c.models {
		if model.FreeTier {
			return model, nil
		}
	}
	return domain.Model{}, domain.ErrModelNotFound
}
