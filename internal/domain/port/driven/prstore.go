package driven

import (
	"context"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

// PRStore defines the driven port for pull request persistence. Records are
// keyed by (repository, number); upserts replace the row wholesale.
type PRStore interface {
	UpsertBatch(ctx context.Context, prs []model.PullRequest) error
	GetByRepository(ctx context.Context, repoFullName string) ([]model.PullRequest, error)
	GetByNumber(ctx context.Context, repoFullName string, number int) (*model.PullRequest, error)
	// GetByScope resolves a repository scope key directly and a team scope
	// key through the association table.
	GetByScope(ctx context.Context, scopeKey string) ([]model.PullRequest, error)
	Delete(ctx context.Context, repoFullName string, number int) error
}
