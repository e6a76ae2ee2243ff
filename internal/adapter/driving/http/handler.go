// Package httphandler is the HTTP driving adapter serving the REST API and
// the websocket upgrade endpoint.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/prmonitor/internal/adapter/driving/ws"
	"github.com/ericfisherdev/prmonitor/internal/application"
	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// ClientFactory builds a GitHub client for a candidate token submitted via
// the API. Injected so tests can substitute a fake.
type ClientFactory func(token string) driven.GitHubClient

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	monitor    *application.MonitorService
	prStore    driven.PRStore
	statsStore driven.StatsStore
	hub        *ws.Hub
	newClient  ClientFactory
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	monitor *application.MonitorService,
	prStore driven.PRStore,
	statsStore driven.StatsStore,
	hub *ws.Hub,
	newClient ClientFactory,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		monitor:    monitor,
		prStore:    prStore,
		statsStore: statsStore,
		hub:        hub,
		newClient:  newClient,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/subscriptions/repos", h.ListRepoSubscriptions)
	mux.HandleFunc("POST /api/v1/subscriptions/repos", h.SubscribeRepo)
	mux.HandleFunc("DELETE /api/v1/subscriptions/repos/{owner}/{repo}", h.UnsubscribeRepo)
	mux.HandleFunc("GET /api/v1/subscriptions/teams", h.ListTeamSubscriptions)
	mux.HandleFunc("POST /api/v1/subscriptions/teams", h.SubscribeTeam)
	mux.HandleFunc("DELETE /api/v1/subscriptions/teams/{org}/{slug}", h.UnsubscribeTeam)
	mux.HandleFunc("PUT /api/v1/subscriptions/teams/{org}/{slug}/enabled", h.SetTeamEnabled)

	mux.HandleFunc("GET /api/v1/scopes/{owner}/{name}/prs", h.ListScopePRs)
	mux.HandleFunc("POST /api/v1/scopes/{owner}/{name}/refresh", h.RefreshScope)
	mux.HandleFunc("POST /api/v1/refresh", h.RefreshAll)

	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/prs/{number}", h.GetPR)
	mux.HandleFunc("GET /api/v1/stats", h.ListStats)

	mux.HandleFunc("POST /api/v1/token", h.SetToken)
	mux.HandleFunc("GET /api/v1/token", h.TokenStatus)

	mux.HandleFunc("GET /api/v1/ws", h.hub.ServeWS)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListRepoSubscriptions returns all repository subscriptions.
func (h *Handler) ListRepoSubscriptions(w http.ResponseWriter, _ *http.Request) {
	subs := h.monitor.Registry().ListRepoSubs()

	resp := make([]RepoSubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, toRepoSubscriptionResponse(sub))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SubscribeRepo adds a repository subscription and triggers an async refresh
// of the new scope.
func (h *Handler) SubscribeRepo(w http.ResponseWriter, r *http.Request) {
	var req AddRepoSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !isValidScopeName(req.RepoFullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	sub := model.RepoSubscription{
		RepoFullName: req.RepoFullName,
		WatchFlags:   watchFlagsFrom(req.WatchAll, req.WatchAssigned, req.WatchReviewRequested),
	}

	if err := h.monitor.Registry().SubscribeRepo(r.Context(), sub); err != nil {
		h.writeSubscriptionError(w, err, "failed to subscribe repository")
		return
	}

	h.refreshAsync(sub.ScopeKey())

	writeJSON(w, http.StatusCreated, toRepoSubscriptionResponse(sub))
}

// UnsubscribeRepo removes a repository subscription and clears its cached
// snapshot.
func (h *Handler) UnsubscribeRepo(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	if err := h.monitor.Registry().UnsubscribeRepo(r.Context(), fullName); err != nil {
		h.writeSubscriptionError(w, err, "failed to unsubscribe repository")
		return
	}
	h.monitor.DropScope(fullName)

	w.WriteHeader(http.StatusNoContent)
}

// ListTeamSubscriptions returns all team subscriptions, including disabled ones.
func (h *Handler) ListTeamSubscriptions(w http.ResponseWriter, _ *http.Request) {
	subs := h.monitor.Registry().ListTeamSubs()

	resp := make([]TeamSubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, toTeamSubscriptionResponse(sub))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SubscribeTeam adds a team subscription and triggers an async refresh of the
// new scope. New team subscriptions start enabled.
func (h *Handler) SubscribeTeam(w http.ResponseWriter, r *http.Request) {
	var req AddTeamSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !isValidScopePart(req.Organization) || !isValidScopePart(req.TeamSlug) {
		writeError(w, http.StatusBadRequest, "invalid organization or team slug")
		return
	}

	sub := model.TeamSubscription{
		Organization: req.Organization,
		TeamSlug:     req.TeamSlug,
		WatchFlags:   watchFlagsFrom(req.WatchAll, req.WatchAssigned, req.WatchReviewRequested),
		Enabled:      true,
	}

	if err := h.monitor.Registry().SubscribeTeam(r.Context(), sub); err != nil {
		h.writeSubscriptionError(w, err, "failed to subscribe team")
		return
	}

	h.refreshAsync(sub.ScopeKey())

	writeJSON(w, http.StatusCreated, toTeamSubscriptionResponse(sub))
}

// UnsubscribeTeam removes a team subscription and clears its cached snapshot.
func (h *Handler) UnsubscribeTeam(w http.ResponseWriter, r *http.Request) {
	org := r.PathValue("org")
	slug := r.PathValue("slug")

	if err := h.monitor.Registry().UnsubscribeTeam(r.Context(), org, slug); err != nil {
		h.writeSubscriptionError(w, err, "failed to unsubscribe team")
		return
	}
	h.monitor.DropScope(model.TeamScopeKey(org, slug))

	w.WriteHeader(http.StatusNoContent)
}

// SetTeamEnabled suspends or resumes a team subscription. Re-enabling
// triggers an async refresh so the scope catches up immediately.
func (h *Handler) SetTeamEnabled(w http.ResponseWriter, r *http.Request) {
	org := r.PathValue("org")
	slug := r.PathValue("slug")

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.monitor.Registry().SetTeamEnabled(r.Context(), org, slug, req.Enabled); err != nil {
		h.writeSubscriptionError(w, err, "failed to update team subscription")
		return
	}

	if req.Enabled {
		h.refreshAsync(model.TeamScopeKey(org, slug))
	}

	sub, _ := h.monitor.Registry().TeamSub(model.TeamScopeKey(org, slug))
	writeJSON(w, http.StatusOK, toTeamSubscriptionResponse(sub))
}

// ListScopePRs returns the last reconciled pull requests for one scope.
func (h *Handler) ListScopePRs(w http.ResponseWriter, r *http.Request) {
	scopeKey := r.PathValue("owner") + "/" + r.PathValue("name")

	prs, err := h.monitor.CachedRecords(r.Context(), scopeKey)
	if err != nil {
		if errors.Is(err, driven.ErrNotSubscribed) {
			writeError(w, http.StatusNotFound, "scope not subscribed")
			return
		}
		h.logger.Error("failed to list scope PRs", "scope", scopeKey, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]PRResponse, 0, len(prs))
	for _, pr := range prs {
		resp = append(resp, toPRResponse(pr))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RefreshScope triggers a synchronous reconcile of one scope.
func (h *Handler) RefreshScope(w http.ResponseWriter, r *http.Request) {
	scopeKey := r.PathValue("owner") + "/" + r.PathValue("name")

	if err := h.monitor.Reconcile(r.Context(), scopeKey); err != nil {
		h.writeRefreshError(w, scopeKey, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshAll triggers a synchronous reconcile of every subscription.
func (h *Handler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.ReconcileAll(r.Context()); err != nil {
		h.writeRefreshError(w, "", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPR returns a single pull request by repository and number, with the
// description rendered to sanitized HTML.
func (h *Handler) GetPR(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	repo := r.PathValue("repo")

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid PR number")
		return
	}

	repoFullName := owner + "/" + repo

	pr, err := h.prStore.GetByNumber(r.Context(), repoFullName, number)
	if err != nil {
		h.logger.Error("failed to get PR", "repo", repoFullName, "number", number, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if pr == nil {
		writeError(w, http.StatusNotFound, "pull request not found")
		return
	}

	resp := toPRResponse(*pr)
	resp.Body = pr.Body
	resp.BodyHTML = renderMarkdown(pr.Body)

	writeJSON(w, http.StatusOK, resp)
}

// ListStats returns the aggregate statistics for every scope.
func (h *Handler) ListStats(w http.ResponseWriter, r *http.Request) {
	all, err := h.statsStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]StatsResponse, 0, len(all))
	for _, st := range all {
		resp = append(resp, toStatsResponse(st))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetToken validates a GitHub token and installs it as the active credential.
// A rate-limited validation is reported as temporarily unavailable rather
// than an invalid token.
func (h *Handler) SetToken(w http.ResponseWriter, r *http.Request) {
	var req SetTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	identity, err := h.monitor.InstallCredential(r.Context(), h.newClient(req.Token))
	if err != nil {
		switch driven.FetchKindOf(err) {
		case driven.FetchUnauthorized:
			writeError(w, http.StatusUnauthorized, "invalid token")
		case driven.FetchRateLimited:
			writeError(w, http.StatusServiceUnavailable, "token validation rate limited, try again later")
		default:
			h.logger.Error("token validation failed", "error", err)
			writeError(w, http.StatusBadGateway, "token validation failed")
		}
		return
	}

	// Full refresh with the new credential, detached from the request.
	go func() {
		if err := h.monitor.ReconcileAll(context.Background()); err != nil {
			h.logger.Error("async reconcile after token install failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusOK, TokenStatusResponse{Configured: true, Login: identity.Login})
}

// TokenStatus reports whether a credential is installed and for which login.
func (h *Handler) TokenStatus(w http.ResponseWriter, _ *http.Request) {
	_, configured := h.monitor.Provider().Get()

	resp := TokenStatusResponse{Configured: configured}
	if configured {
		resp.Login = h.monitor.Provider().Identity().Login
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// refreshAsync reconciles a scope in the background with a fresh context,
// since the HTTP request context is cancelled once the response is sent.
func (h *Handler) refreshAsync(scopeKey string) {
	go func() {
		if err := h.monitor.Reconcile(context.Background(), scopeKey); err != nil {
			h.logger.Error("async scope refresh failed", "scope", scopeKey, "error", err)
		}
	}()
}

// writeSubscriptionError maps registry errors to HTTP status codes.
func (h *Handler) writeSubscriptionError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, driven.ErrAlreadySubscribed):
		writeError(w, http.StatusConflict, "already subscribed")
	case errors.Is(err, driven.ErrNotSubscribed):
		writeError(w, http.StatusNotFound, "not subscribed")
	default:
		h.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeRefreshError maps reconcile errors to HTTP status codes.
func (h *Handler) writeRefreshError(w http.ResponseWriter, scopeKey string, err error) {
	switch {
	case errors.Is(err, driven.ErrNotSubscribed):
		writeError(w, http.StatusNotFound, "scope not subscribed")
	case driven.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, "github credential rejected")
	case driven.FetchKindOf(err) == driven.FetchRateLimited:
		writeError(w, http.StatusServiceUnavailable, "github rate limit reached, try again later")
	default:
		h.logger.Error("refresh failed", "scope", scopeKey, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// watchFlagsFrom builds watch flags from a request body. A subscription with
// every flag unset would never announce anything, so it defaults to watching
// all changes.
func watchFlagsFrom(all, assigned, reviewRequested bool) model.WatchFlags {
	if !all && !assigned && !reviewRequested {
		all = true
	}
	return model.WatchFlags{
		WatchAll:             all,
		WatchAssigned:        assigned,
		WatchReviewRequested: reviewRequested,
	}
}

// isValidScopeName validates that name is in owner/repo format where each
// part contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidScopeName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if !isValidScopePart(part) {
			return false
		}
	}

	return true
}

// isValidScopePart returns true if the string is a plausible repository
// owner, repository name, organization, or team slug.
func isValidScopePart(part string) bool {
	if part == "" {
		return false
	}
	for _, ch := range part {
		if !isValidScopeChar(ch) {
			return false
		}
	}
	return true
}

func isValidScopeChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
