package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SubscriptionStore = (*SubscriptionRepo)(nil)

// SubscriptionRepo is the SQLite implementation of the SubscriptionStore
// port interface. It is a mirror of the in-memory registry, written through
// on every mutation and read back only at startup.
type SubscriptionRepo struct {
	db *DB
}

// NewSubscriptionRepo creates a new SubscriptionRepo backed by the given DB.
func NewSubscriptionRepo(db *DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// UpsertRepo inserts or replaces a repository subscription.
func (r *SubscriptionRepo) UpsertRepo(ctx context.Context, sub model.RepoSubscription) error {
	const query = `
		INSERT INTO repo_subscriptions (repo_full_name, watch_all, watch_assigned, watch_review_requested)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repo_full_name) DO UPDATE SET
			watch_all = excluded.watch_all,
			watch_assigned = excluded.watch_assigned,
			watch_review_requested = excluded.watch_review_requested
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		sub.RepoFullName, boolToInt(sub.WatchAll), boolToInt(sub.WatchAssigned), boolToInt(sub.WatchReviewRequested),
	)
	if err != nil {
		return fmt.Errorf("upsert repo subscription %s: %w", sub.RepoFullName, err)
	}

	return nil
}

// ListRepos returns all repository subscriptions ordered by name.
func (r *SubscriptionRepo) ListRepos(ctx context.Context) ([]model.RepoSubscription, error) {
	const query = `
		SELECT repo_full_name, watch_all, watch_assigned, watch_review_requested
		FROM repo_subscriptions
		ORDER BY repo_full_name
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list repo subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.RepoSubscription
	for rows.Next() {
		var sub model.RepoSubscription
		var all, assigned, requested int
		if err := rows.Scan(&sub.RepoFullName, &all, &assigned, &requested); err != nil {
			return nil, fmt.Errorf("scan repo subscription: %w", err)
		}
		sub.WatchAll = all != 0
		sub.WatchAssigned = assigned != 0
		sub.WatchReviewRequested = requested != 0
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repo subscriptions: %w", err)
	}

	return subs, nil
}

// DeleteRepo removes a repository subscription.
func (r *SubscriptionRepo) DeleteRepo(ctx context.Context, repoFullName string) error {
	const query = `DELETE FROM repo_subscriptions WHERE repo_full_name = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, repoFullName); err != nil {
		return fmt.Errorf("delete repo subscription %s: %w", repoFullName, err)
	}

	return nil
}

// UpsertTeam inserts or replaces a team subscription.
func (r *SubscriptionRepo) UpsertTeam(ctx context.Context, sub model.TeamSubscription) error {
	const query = `
		INSERT INTO team_subscriptions (organization, team_slug, watch_all, watch_assigned, watch_review_requested, enabled)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization, team_slug) DO UPDATE SET
			watch_all = excluded.watch_all,
			watch_assigned = excluded.watch_assigned,
			watch_review_requested = excluded.watch_review_requested,
			enabled = excluded.enabled
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		sub.Organization, sub.TeamSlug,
		boolToInt(sub.WatchAll), boolToInt(sub.WatchAssigned), boolToInt(sub.WatchReviewRequested),
		boolToInt(sub.Enabled),
	)
	if err != nil {
		return fmt.Errorf("upsert team subscription %s: %w", sub.ScopeKey(), err)
	}

	return nil
}

// ListTeams returns all team subscriptions, including disabled ones, ordered
// by organization and slug.
func (r *SubscriptionRepo) ListTeams(ctx context.Context) ([]model.TeamSubscription, error) {
	const query = `
		SELECT organization, team_slug, watch_all, watch_assigned, watch_review_requested, enabled
		FROM team_subscriptions
		ORDER BY organization, team_slug
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list team subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.TeamSubscription
	for rows.Next() {
		var sub model.TeamSubscription
		var all, assigned, requested, enabled int
		if err := rows.Scan(&sub.Organization, &sub.TeamSlug, &all, &assigned, &requested, &enabled); err != nil {
			return nil, fmt.Errorf("scan team subscription: %w", err)
		}
		sub.WatchAll = all != 0
		sub.WatchAssigned = assigned != 0
		sub.WatchReviewRequested = requested != 0
		sub.Enabled = enabled != 0
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team subscriptions: %w", err)
	}

	return subs, nil
}

// DeleteTeam removes a team subscription.
func (r *SubscriptionRepo) DeleteTeam(ctx context.Context, org, teamSlug string) error {
	const query = `DELETE FROM team_subscriptions WHERE organization = ? AND team_slug = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, org, teamSlug); err != nil {
		return fmt.Errorf("delete team subscription %s/%s: %w", org, teamSlug, err)
	}

	return nil
}

// SetTeamEnabled flips the enabled flag without touching the watch flags.
func (r *SubscriptionRepo) SetTeamEnabled(ctx context.Context, org, teamSlug string, enabled bool) error {
	const query = `UPDATE team_subscriptions SET enabled = ? WHERE organization = ? AND team_slug = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, boolToInt(enabled), org, teamSlug); err != nil {
		return fmt.Errorf("set team subscription %s/%s enabled: %w", org, teamSlug, err)
	}

	return nil
}
