// Package models defines the fixed catalog of generative models the
// dashboard may select, with their backend identifiers and per-million
// token pricing. The catalog is process-wide read-only state: it is
// built once at init and never mutated, so lookups need no locking.
package models

import "sort"

// Config describes one selectable model tier.
type Config struct {
	// Key is the short name clients send (e.g. "haiku-4.5").
	Key string `json:"key"`
	// ID is the backend model identifier sent to the Messages API.
	ID string `json:"id"`
	// InputPerMillion is the USD price per million input tokens.
	InputPerMillion float64 `json:"input_per_1m"`
	// OutputPerMillion is the USD price per million output tokens.
	OutputPerMillion float64 `json:"output_per_1m"`
}

// DefaultKey is the tier used when a request omits the model or names
// an unknown one. Unknown keys are normalized silently, never rejected.
const DefaultKey = "haiku-4.5"

var catalog = map[string]Config{
	"haiku-4.5": {
		Key:              "haiku-4.5",
		ID:               "claude-haiku-4-5-20251001",
		InputPerMillion:  1,
		OutputPerMillion: 5,
	},
	"sonnet-4": {
		Key:              "sonnet-4",
		ID:               "claude-sonnet-4-20250514",
		InputPerMillion:  3,
		OutputPerMillion: 15,
	},
	"sonnet-4.5": {
		Key:              "sonnet-4.5",
		ID:               "claude-sonnet-4-5-20250929",
		InputPerMillion:  3,
		OutputPerMillion: 15,
	},
	"opus-4.6": {
		Key:              "opus-4.6",
		ID:               "claude-opus-4-6",
		InputPerMillion:  15,
		OutputPerMillion: 75,
	},
}

// Resolve returns the catalog entry for key, falling back to the
// default tier for empty or unknown keys. It is total and
// side-effect-free: every input maps to a valid Config.
func Resolve(key string) Config {
	if cfg, ok := catalog[key]; ok {
		return cfg
	}
	return catalog[DefaultKey]
}

// Cost returns the USD cost of an interaction under this model's
// pricing. Zero tokens cost zero.
func (c Config) Cost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)*c.InputPerMillion/1_000_000 +
		float64(tokensOut)*c.OutputPerMillion/1_000_000
}

// Keys returns all catalog keys in sorted order, for the models endpoint.
func Keys() []string {
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
