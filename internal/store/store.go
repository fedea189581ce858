// Package store persists extracted recipes (the durable cache tier) and the
// run ledger, on SQLite or Postgres.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/SquizAI/recipies01/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	SourceURL string          `json:"source_url,omitempty"`
	Limit     int             `json:"limit,omitempty"`
}

// DefaultRunLimit caps ListRuns when no limit is given.
const DefaultRunLimit = 50

func (f RunFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 500 {
		return DefaultRunLimit
	}
	return f.Limit
}

// Store is the persistence interface for recipes and runs.
type Store interface {
	// GetRecipe returns the recipe stored under key, or nil when absent.
	GetRecipe(ctx context.Context, key string) (*model.Recipe, error)
	// PutRecipe stores r under key unless a record already exists. It reports
	// whether this call wrote the record.
	PutRecipe(ctx context.Context, key string, r *model.Recipe) (bool, error)

	CreateRun(ctx context.Context, sourceURL, cacheKey string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, out model.RunOutcome) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func encodeRecipe(r *model.Recipe) ([]byte, error) {
	if r == nil {
		return nil, eris.New("store: nil recipe")
	}
	data, err := json.Marshal(r)
	return data, eris.Wrap(err, "store: marshal recipe")
}

func decodeRecipe(data []byte) (*model.Recipe, error) {
	var r model.Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal recipe")
	}
	return &r, nil
}
