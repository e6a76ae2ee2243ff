package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// SubscriptionRegistry is the process-lifetime set of active subscriptions.
// It is mutated by API calls and read by the reconciliation loop, and is
// authoritative for what the loop polls next; the persistence store is a
// best-effort mirror reloaded on restart.
type SubscriptionRegistry struct {
	store driven.SubscriptionStore

	mu    sync.RWMutex
	repos map[string]model.RepoSubscription
	teams map[string]model.TeamSubscription
}

// NewSubscriptionRegistry creates an empty registry mirrored to the given store.
func NewSubscriptionRegistry(store driven.SubscriptionStore) *SubscriptionRegistry {
	return &SubscriptionRegistry{
		store: store,
		repos: make(map[string]model.RepoSubscription),
		teams: make(map[string]model.TeamSubscription),
	}
}

// Load replaces the in-memory set with the persisted subscriptions. Called
// once at startup before the reconciliation loop starts.
func (r *SubscriptionRegistry) Load(ctx context.Context) error {
	repos, err := r.store.ListRepos(ctx)
	if err != nil {
		return fmt.Errorf("load repository subscriptions: %w", err)
	}
	teams, err := r.store.ListTeams(ctx)
	if err != nil {
		return fmt.Errorf("load team subscriptions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.repos = make(map[string]model.RepoSubscription, len(repos))
	for _, sub := range repos {
		r.repos[sub.ScopeKey()] = sub
	}
	r.teams = make(map[string]model.TeamSubscription, len(teams))
	for _, sub := range teams {
		r.teams[sub.ScopeKey()] = sub
	}

	return nil
}

// SubscribeRepo adds a repository subscription. Returns ErrAlreadySubscribed
// if the repository is already watched.
func (r *SubscriptionRegistry) SubscribeRepo(ctx context.Context, sub model.RepoSubscription) error {
	r.mu.Lock()
	if _, exists := r.repos[sub.ScopeKey()]; exists {
		r.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", sub.RepoFullName, driven.ErrAlreadySubscribed)
	}
	r.repos[sub.ScopeKey()] = sub
	r.mu.Unlock()

	if err := r.store.UpsertRepo(ctx, sub); err != nil {
		slog.Error("persist repository subscription failed", "repo", sub.RepoFullName, "error", err)
	}
	return nil
}

// UnsubscribeRepo removes a repository subscription.
func (r *SubscriptionRegistry) UnsubscribeRepo(ctx context.Context, repoFullName string) error {
	r.mu.Lock()
	if _, exists := r.repos[repoFullName]; !exists {
		r.mu.Unlock()
		return fmt.Errorf("unsubscribe %s: %w", repoFullName, driven.ErrNotSubscribed)
	}
	delete(r.repos, repoFullName)
	r.mu.Unlock()

	if err := r.store.DeleteRepo(ctx, repoFullName); err != nil {
		slog.Error("delete repository subscription failed", "repo", repoFullName, "error", err)
	}
	return nil
}

// SubscribeTeam adds a team subscription.
func (r *SubscriptionRegistry) SubscribeTeam(ctx context.Context, sub model.TeamSubscription) error {
	r.mu.Lock()
	if _, exists := r.teams[sub.ScopeKey()]; exists {
		r.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", sub.ScopeKey(), driven.ErrAlreadySubscribed)
	}
	r.teams[sub.ScopeKey()] = sub
	r.mu.Unlock()

	if err := r.store.UpsertTeam(ctx, sub); err != nil {
		slog.Error("persist team subscription failed", "team", sub.ScopeKey(), "error", err)
	}
	return nil
}

// UnsubscribeTeam removes a team subscription.
func (r *SubscriptionRegistry) UnsubscribeTeam(ctx context.Context, org, teamSlug string) error {
	key := model.TeamScopeKey(org, teamSlug)

	r.mu.Lock()
	if _, exists := r.teams[key]; !exists {
		r.mu.Unlock()
		return fmt.Errorf("unsubscribe %s: %w", key, driven.ErrNotSubscribed)
	}
	delete(r.teams, key)
	r.mu.Unlock()

	if err := r.store.DeleteTeam(ctx, org, teamSlug); err != nil {
		slog.Error("delete team subscription failed", "team", key, "error", err)
	}
	return nil
}

// SetTeamEnabled suspends or resumes a team subscription without deleting it.
func (r *SubscriptionRegistry) SetTeamEnabled(ctx context.Context, org, teamSlug string, enabled bool) error {
	key := model.TeamScopeKey(org, teamSlug)

	r.mu.Lock()
	sub, exists := r.teams[key]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("set enabled %s: %w", key, driven.ErrNotSubscribed)
	}
	sub.Enabled = enabled
	r.teams[key] = sub
	r.mu.Unlock()

	if err := r.store.SetTeamEnabled(ctx, org, teamSlug, enabled); err != nil {
		slog.Error("persist team enabled flag failed", "team", key, "error", err)
	}
	return nil
}

// RepoSub returns the repository subscription for a scope key, if any.
func (r *SubscriptionRegistry) RepoSub(scopeKey string) (model.RepoSubscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.repos[scopeKey]
	return sub, ok
}

// TeamSub returns the team subscription for a scope key, if any.
func (r *SubscriptionRegistry) TeamSub(scopeKey string) (model.TeamSubscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.teams[scopeKey]
	return sub, ok
}

// ListKeys returns the sorted scope keys of one subscription kind.
func (r *SubscriptionRegistry) ListKeys(kind model.SubscriptionKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []string
	switch kind {
	case model.KindRepository:
		keys = make([]string, 0, len(r.repos))
		for key := range r.repos {
			keys = append(keys, key)
		}
	case model.KindTeam:
		keys = make([]string, 0, len(r.teams))
		for key := range r.teams {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// ListRepoSubs returns all repository subscriptions sorted by scope key.
func (r *SubscriptionRegistry) ListRepoSubs() []model.RepoSubscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]model.RepoSubscription, 0, len(r.repos))
	for _, sub := range r.repos {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ScopeKey() < subs[j].ScopeKey() })
	return subs
}

// ListTeamSubs returns all team subscriptions sorted by scope key, including
// disabled ones.
func (r *SubscriptionRegistry) ListTeamSubs() []model.TeamSubscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]model.TeamSubscription, 0, len(r.teams))
	for _, sub := range r.teams {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ScopeKey() < subs[j].ScopeKey() })
	return subs
}
