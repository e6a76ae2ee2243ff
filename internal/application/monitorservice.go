// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// refreshRequest represents a manual reconcile trigger. An empty scopeKey
// means reconcile every subscription.
type refreshRequest struct {
	scopeKey string
	done     chan error
}

// notificationTTL is how long a delivered notification suppresses repeats
// for the same pull request and change kind.
const notificationTTL = time.Hour

// MonitorService owns the reconciliation loop: it polls GitHub for every
// active subscription, diffs the results against the last known snapshot,
// broadcasts and notifies changes, and persists the new state. All scheduled
// and manual reconciles run on a single goroutine, so cycles for the same
// scope never interleave.
type MonitorService struct {
	provider   *GitHubClientProvider
	registry   *SubscriptionRegistry
	prStore    driven.PRStore
	statsStore driven.StatsStore
	assocStore driven.AssociationStore
	broadcast  driven.Broadcaster
	notifier   driven.Notifier
	teamSlugs  []string
	interval   time.Duration

	snapshots *snapshotCache
	refreshCh chan refreshRequest

	// recentNotices is only touched from the Start goroutine.
	recentNotices map[string]time.Time
}

// NewMonitorService creates a MonitorService with all required dependencies.
// notifier may be nil when no notification channel is configured.
func NewMonitorService(
	provider *GitHubClientProvider,
	registry *SubscriptionRegistry,
	prStore driven.PRStore,
	statsStore driven.StatsStore,
	assocStore driven.AssociationStore,
	broadcast driven.Broadcaster,
	notifier driven.Notifier,
	teamSlugs []string,
	interval time.Duration,
) *MonitorService {
	return &MonitorService{
		provider:      provider,
		registry:      registry,
		prStore:       prStore,
		statsStore:    statsStore,
		assocStore:    assocStore,
		broadcast:     broadcast,
		notifier:      notifier,
		teamSlugs:     teamSlugs,
		interval:      interval,
		snapshots:     newSnapshotCache(),
		refreshCh:     make(chan refreshRequest),
		recentNotices: make(map[string]time.Time),
	}
}

// Start begins the reconciliation loop. Subscriptions whose stats are older
// than one interval (or missing entirely) are reconciled immediately to catch
// up after downtime; everything else waits for the first tick. Start blocks
// until the context is canceled.
func (s *MonitorService) Start(ctx context.Context) {
	if stale := s.staleScopes(ctx, time.Now()); len(stale) > 0 {
		slog.Info("catching up stale subscriptions", "count", len(stale))
		for _, key := range stale {
			if err := s.reconcileScope(ctx, key); err != nil {
				slog.Error("startup reconcile failed", "scope", key, "error", err)
			}
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor service stopped")
			return
		case <-ticker.C:
			if err := s.reconcileAll(ctx); err != nil {
				slog.Error("reconcile cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.handleRefresh(ctx, req)
		}
	}
}

// Reconcile triggers a manual reconcile for one scope, bypassing the polling
// interval. It blocks until the reconcile completes or the context is
// canceled. Returns ErrNotSubscribed for unknown scope keys.
func (s *MonitorService) Reconcile(ctx context.Context, scopeKey string) error {
	return s.requestRefresh(ctx, scopeKey)
}

// ReconcileAll triggers a manual reconcile of every subscription.
func (s *MonitorService) ReconcileAll(ctx context.Context) error {
	return s.requestRefresh(ctx, "")
}

func (s *MonitorService) requestRefresh(ctx context.Context, scopeKey string) error {
	done := make(chan error, 1)
	req := refreshRequest{scopeKey: scopeKey, done: done}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InstallCredential validates a candidate GitHub client and, on success,
// swaps it in as the active credential. A rate-limited validation is
// surfaced as an error without touching the current credential. The caller
// should trigger ReconcileAll after a successful swap.
func (s *MonitorService) InstallCredential(ctx context.Context, client driven.GitHubClient) (driven.Identity, error) {
	identity, err := client.ValidateToken(ctx)
	if err != nil {
		return driven.Identity{}, fmt.Errorf("validate token: %w", err)
	}
	if len(identity.TeamSlugs) == 0 {
		identity.TeamSlugs = s.teamSlugs
	}
	s.provider.Replace(client, identity)
	slog.Info("github credential installed", "login", identity.Login)
	return identity, nil
}

// CachedRecords returns the last reconciled pull requests for a scope. Falls
// back to the persistence store when the scope has not been reconciled since
// startup. Returns ErrNotSubscribed for unknown scope keys.
func (s *MonitorService) CachedRecords(ctx context.Context, scopeKey string) ([]model.PullRequest, error) {
	if !s.isSubscribed(scopeKey) {
		return nil, fmt.Errorf("scope %s: %w", scopeKey, driven.ErrNotSubscribed)
	}
	if records, ok := s.snapshots.Records(scopeKey); ok {
		return records, nil
	}
	prs, err := s.prStore.GetByScope(ctx, scopeKey)
	if err != nil {
		return nil, fmt.Errorf("load cached records for %s: %w", scopeKey, err)
	}
	return prs, nil
}

// DropScope clears the in-memory snapshot for a scope after its
// subscription is removed. Persisted rows are left for history; they are
// cleaned up if the scope is ever re-subscribed and reconciled.
func (s *MonitorService) DropScope(scopeKey string) {
	s.snapshots.Delete(scopeKey)
}

// Registry exposes the subscription registry for the API layer.
func (s *MonitorService) Registry() *SubscriptionRegistry {
	return s.registry
}

// Provider exposes the client provider for the API layer.
func (s *MonitorService) Provider() *GitHubClientProvider {
	return s.provider
}

func (s *MonitorService) isSubscribed(scopeKey string) bool {
	if _, ok := s.registry.RepoSub(scopeKey); ok {
		return true
	}
	_, ok := s.registry.TeamSub(scopeKey)
	return ok
}

// handleRefresh dispatches a manual reconcile request.
func (s *MonitorService) handleRefresh(ctx context.Context, req refreshRequest) error {
	if req.scopeKey == "" {
		return s.reconcileAll(ctx)
	}
	if !s.isSubscribed(req.scopeKey) {
		return fmt.Errorf("scope %s: %w", req.scopeKey, driven.ErrNotSubscribed)
	}
	return s.reconcileScope(ctx, req.scopeKey)
}

// reconcileAll runs one full cycle over every subscription. Each scope is
// isolated: one failed fetch does not abort the rest of the cycle, except
// that a rejected credential invalidates the client and ends the cycle early.
func (s *MonitorService) reconcileAll(ctx context.Context) error {
	start := time.Now()

	client, ok := s.provider.Get()
	if !ok {
		slog.Debug("reconcile skipped, no github credential configured")
		return nil
	}
	viewer := s.provider.Identity()

	var scopes, failed int
	for _, sub := range s.registry.ListRepoSubs() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		scopes++
		if stop := s.runScope(ctx, client, viewer, sub.ScopeKey(), &failed); stop {
			return nil
		}
	}

	assoc := newAssociationSet()
	for _, sub := range s.registry.ListTeamSubs() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !sub.Enabled {
			continue
		}
		scopes++
		current, err := s.reconcileTeam(ctx, client, viewer, sub)
		if err != nil {
			failed++
			slog.Error("team reconcile failed", "scope", sub.ScopeKey(), "error", err)
			if driven.IsUnauthorized(err) {
				s.invalidateCredential()
				return nil
			}
			continue
		}
		assoc.add(sub.ScopeKey(), current)
	}

	// Associations are resolved only after every team scope has reported,
	// so a PR surfacing through multiple teams is linked to all of them.
	s.resolveAssociations(ctx, assoc)
	s.pruneNotices(time.Now())

	slog.Info("reconcile cycle complete",
		"scopes", scopes,
		"errors", failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// runScope reconciles one repository scope inside a full cycle. Returns true
// when the cycle must stop because the credential was rejected.
func (s *MonitorService) runScope(ctx context.Context, client driven.GitHubClient, viewer driven.Identity, scopeKey string, failed *int) bool {
	sub, ok := s.registry.RepoSub(scopeKey)
	if !ok {
		return false
	}
	raw, err := client.FetchRepositoryPRs(ctx, sub.RepoFullName)
	if err != nil {
		*failed++
		slog.Error("repository reconcile failed", "scope", scopeKey, "error", err)
		if driven.IsUnauthorized(err) {
			s.invalidateCredential()
			return true
		}
		return false
	}
	if err := s.applyFetched(ctx, scopeKey, sub.WatchFlags, raw, viewer); err != nil {
		*failed++
		slog.Error("repository reconcile failed", "scope", scopeKey, "error", err)
	}
	return false
}

// reconcileScope runs a single-scope reconcile outside the full-cycle path
// (manual refresh and startup catch-up).
func (s *MonitorService) reconcileScope(ctx context.Context, scopeKey string) error {
	client, ok := s.provider.Get()
	if !ok {
		return fmt.Errorf("reconcile %s: no github credential configured", scopeKey)
	}
	viewer := s.provider.Identity()

	if sub, ok := s.registry.RepoSub(scopeKey); ok {
		raw, err := client.FetchRepositoryPRs(ctx, sub.RepoFullName)
		if err != nil {
			if driven.IsUnauthorized(err) {
				s.invalidateCredential()
			}
			return err
		}
		return s.applyFetched(ctx, scopeKey, sub.WatchFlags, raw, viewer)
	}

	sub, ok := s.registry.TeamSub(scopeKey)
	if !ok {
		return fmt.Errorf("scope %s: %w", scopeKey, driven.ErrNotSubscribed)
	}
	current, err := s.reconcileTeam(ctx, client, viewer, sub)
	if err != nil {
		if driven.IsUnauthorized(err) {
			s.invalidateCredential()
		}
		return err
	}

	// A lone scope sees only its own results, so it may add its link to a
	// PR but never replace the set: that would wipe links recorded by other
	// teams. Stale links are pruned by the next full cycle.
	s.mergeAssociations(ctx, scopeKey, current)
	return nil
}

// reconcileTeam fetches and applies one team scope, returning the normalized
// records for association resolution.
func (s *MonitorService) reconcileTeam(ctx context.Context, client driven.GitHubClient, viewer driven.Identity, sub model.TeamSubscription) ([]model.PullRequest, error) {
	raw, err := client.FetchTeamPRs(ctx, sub.Organization, sub.TeamSlug)
	if err != nil {
		return nil, err
	}
	current := NormalizeBatch(raw, viewer)
	if err := s.applyNormalized(ctx, sub.ScopeKey(), sub.WatchFlags, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *MonitorService) applyFetched(ctx context.Context, scopeKey string, flags model.WatchFlags, raw []model.RawPullRequest, viewer driven.Identity) error {
	return s.applyNormalized(ctx, scopeKey, flags, NormalizeBatch(raw, viewer))
}

// applyNormalized is the heart of a reconcile: diff against the previous
// snapshot, emit broadcasts and notifications, then persist the new state.
func (s *MonitorService) applyNormalized(ctx context.Context, scopeKey string, flags model.WatchFlags, current []model.PullRequest) error {
	previous, err := s.previousRecords(ctx, scopeKey)
	if err != nil {
		return err
	}

	changes := diffRecords(current, previous)
	s.emitChanges(ctx, scopeKey, flags, changes)

	s.snapshots.Replace(scopeKey, current)

	if err := s.prStore.UpsertBatch(ctx, current); err != nil {
		return fmt.Errorf("persist %s: %w", scopeKey, err)
	}
	for _, pr := range changes.closed {
		if err := s.prStore.Delete(ctx, pr.RepoFullName, pr.Number); err != nil {
			slog.Error("stale cleanup failed", "repo", pr.RepoFullName, "pr", pr.Number, "error", err)
		}
	}

	stats := model.ComputeScopeStats(scopeKey, current, time.Now())
	if err := s.statsStore.Upsert(ctx, stats); err != nil {
		slog.Error("persist stats failed", "scope", scopeKey, "error", err)
	}
	s.broadcast.BroadcastStats(scopeKey, stats)

	slog.Info("scope reconciled",
		"scope", scopeKey,
		"total", len(current),
		"new", len(changes.added),
		"updated", len(changes.updated),
		"closed", len(changes.closed),
	)

	return nil
}

// emitChanges publishes detected changes. New and updated PRs pass through
// the subscription's watch policy; a close is always announced so clients
// can drop the PR from their views.
func (s *MonitorService) emitChanges(ctx context.Context, scopeKey string, flags model.WatchFlags, changes changeSet) {
	if changes.empty() {
		return
	}

	for _, pr := range changes.added {
		if !shouldNotify(pr, flags) {
			continue
		}
		s.broadcast.BroadcastPRChange(scopeKey, model.ChangeNew, pr)
		s.notify(ctx, pr, model.ChangeNew)
	}
	for _, pr := range changes.updated {
		if !shouldNotify(pr, flags) {
			continue
		}
		s.broadcast.BroadcastPRChange(scopeKey, model.ChangeUpdated, pr)
		s.notify(ctx, pr, model.ChangeUpdated)
	}
	for _, pr := range changes.closed {
		if pr.State == model.PRStateOpen {
			pr.State = model.PRStateClosed
		}
		s.broadcast.BroadcastPRChange(scopeKey, model.ChangeClosed, pr)
		s.notify(ctx, pr, model.ChangeClosed)
	}
}

// notify delivers an external notification, suppressing repeats for the same
// PR and change kind within notificationTTL.
func (s *MonitorService) notify(ctx context.Context, pr model.PullRequest, kind model.ChangeKind) {
	if s.notifier == nil {
		return
	}

	key := fmt.Sprintf("%s:%s", pr.Key(), kind)
	if sent, ok := s.recentNotices[key]; ok && time.Since(sent) < notificationTTL {
		return
	}

	if err := s.notifier.NotifyPRChange(ctx, pr, kind); err != nil {
		slog.Error("notification failed", "repo", pr.RepoFullName, "pr", pr.Number, "kind", kind, "error", err)
		return
	}
	s.recentNotices[key] = time.Now()
}

// pruneNotices drops expired dedup entries so the map does not grow forever.
func (s *MonitorService) pruneNotices(now time.Time) {
	for key, sent := range s.recentNotices {
		if now.Sub(sent) >= notificationTTL {
			delete(s.recentNotices, key)
		}
	}
}

// previousRecords returns the last known records for a scope, keyed by PR
// number. The in-memory snapshot wins; on a cold start the store seeds it so
// PRs persisted before a restart are not re-announced as new.
func (s *MonitorService) previousRecords(ctx context.Context, scopeKey string) (map[int]model.PullRequest, error) {
	if previous := s.snapshots.Get(scopeKey); previous != nil {
		return previous, nil
	}

	prs, err := s.prStore.GetByScope(ctx, scopeKey)
	if err != nil {
		return nil, fmt.Errorf("load previous records for %s: %w", scopeKey, err)
	}
	previous := make(map[int]model.PullRequest, len(prs))
	for _, pr := range prs {
		previous[pr.Number] = pr
	}
	return previous, nil
}

// staleScopes lists subscriptions whose stats row is missing or older than
// one polling interval.
func (s *MonitorService) staleScopes(ctx context.Context, now time.Time) []string {
	all, err := s.statsStore.ListAll(ctx)
	if err != nil {
		slog.Error("list stats for catch-up failed", "error", err)
		return nil
	}
	lastSeen := make(map[string]time.Time, len(all))
	for _, st := range all {
		lastSeen[st.ScopeKey] = st.LastUpdated
	}

	cutoff := now.Add(-s.interval)
	var stale []string
	appendStale := func(key string) {
		if at, ok := lastSeen[key]; !ok || at.Before(cutoff) {
			stale = append(stale, key)
		}
	}
	for _, sub := range s.registry.ListRepoSubs() {
		appendStale(sub.ScopeKey())
	}
	for _, sub := range s.registry.ListTeamSubs() {
		if sub.Enabled {
			appendStale(sub.ScopeKey())
		}
	}
	return stale
}

func (s *MonitorService) invalidateCredential() {
	slog.Warn("github credential rejected, pausing reconciliation until a new token is set")
	s.provider.Invalidate()
}

// associationSet accumulates which team scopes saw which PRs during a cycle.
type associationSet struct {
	scopes map[string][]string
	refs   map[string]model.PullRequest
}

func newAssociationSet() *associationSet {
	return &associationSet{
		scopes: make(map[string][]string),
		refs:   make(map[string]model.PullRequest),
	}
}

func (a *associationSet) add(scopeKey string, prs []model.PullRequest) {
	for _, pr := range prs {
		key := pr.Key()
		a.scopes[key] = append(a.scopes[key], scopeKey)
		a.refs[key] = pr
	}
}

// mergeAssociations links one team scope to each PR it currently surfaces,
// preserving links held by other scopes.
func (s *MonitorService) mergeAssociations(ctx context.Context, scopeKey string, prs []model.PullRequest) {
	for _, pr := range prs {
		existing, err := s.assocStore.ListForPR(ctx, pr.RepoFullName, pr.Number)
		if err != nil {
			slog.Error("list associations failed", "repo", pr.RepoFullName, "pr", pr.Number, "error", err)
			continue
		}
		if slices.Contains(existing, scopeKey) {
			continue
		}
		if err := s.assocStore.ReplaceForPR(ctx, pr.RepoFullName, pr.Number, append(existing, scopeKey)); err != nil {
			slog.Error("replace associations failed", "repo", pr.RepoFullName, "pr", pr.Number, "error", err)
		}
	}
}

// resolveAssociations replaces each seen PR's team links with the union of
// scopes that reported it this cycle.
func (s *MonitorService) resolveAssociations(ctx context.Context, assoc *associationSet) {
	for key, scopeKeys := range assoc.scopes {
		pr := assoc.refs[key]
		if err := s.assocStore.ReplaceForPR(ctx, pr.RepoFullName, pr.Number, scopeKeys); err != nil {
			slog.Error("replace associations failed", "repo", pr.RepoFullName, "pr", pr.Number, "error", err)
		}
	}
}
