package driven

import (
	"context"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

// StatsStore defines the driven port for per-scope aggregate statistics.
type StatsStore interface {
	Upsert(ctx context.Context, stats model.ScopeStats) error
	// Get returns nil, nil when no stats exist for the scope yet.
	Get(ctx context.Context, scopeKey string) (*model.ScopeStats, error)
	ListAll(ctx context.Context) ([]model.ScopeStats, error)
}
