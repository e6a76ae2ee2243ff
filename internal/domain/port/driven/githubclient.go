package driven

import (
	"context"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

// Identity is the authenticated viewer the monitor resolves pull requests
// against.
type Identity struct {
	Login     string
	TeamSlugs []string
}

// GitHubClient defines the driven port for fetching pull request state from
// GitHub. Both fetch variants return the same normalized raw shape; the core
// does not care which API path produced it. Errors are FetchErrors so the
// reconciliation loop can distinguish a revoked credential from a rate limit.
type GitHubClient interface {
	// FetchRepositoryPRs returns the open pull requests of one repository
	// (REST list + per-PR reviews).
	FetchRepositoryPRs(ctx context.Context, repoFullName string) ([]model.RawPullRequest, error)

	// FetchTeamPRs returns the recently active pull requests authored by the
	// members of one organization team (GraphQL member + search batches).
	FetchTeamPRs(ctx context.Context, org, teamSlug string) ([]model.RawPullRequest, error)

	// ValidateToken checks the held credential against the GitHub user
	// endpoint and returns the authenticated identity.
	ValidateToken(ctx context.Context) (Identity, error)
}
