package driven

import (
	"context"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

// SubscriptionStore defines the driven port for the durable subscription
// mirror. The in-memory registry is authoritative for the running loop; this
// store exists so subscriptions survive restarts.
type SubscriptionStore interface {
	UpsertRepo(ctx context.Context, sub model.RepoSubscription) error
	ListRepos(ctx context.Context) ([]model.RepoSubscription, error)
	DeleteRepo(ctx context.Context, repoFullName string) error

	UpsertTeam(ctx context.Context, sub model.TeamSubscription) error
	ListTeams(ctx context.Context) ([]model.TeamSubscription, error)
	DeleteTeam(ctx context.Context, org, teamSlug string) error
	SetTeamEnabled(ctx context.Context, org, teamSlug string, enabled bool) error
}
