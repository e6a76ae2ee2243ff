package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// PRResponse is the JSON representation of a pull request.
type PRResponse struct {
	Number     int    `json:"number"`
	Repository string `json:"repository"`
	Title      string `json:"title"`
	State      string `json:"state"`
	Status     string `json:"status"`
	URL        string `json:"url"`
	Author     string `json:"author"`
	IsDraft    bool   `json:"is_draft"`

	Assignees          []string         `json:"assignees"`
	RequestedReviewers []string         `json:"requested_reviewers"`
	RequestedTeamSlugs []string         `json:"requested_team_slugs"`
	Reviews            []ReviewResponse `json:"reviews"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`

	UserIsAssigned          bool `json:"user_is_assigned"`
	UserIsRequestedReviewer bool `json:"user_is_requested_reviewer"`
	UserHasReviewed         bool `json:"user_has_reviewed"`

	// Populated only on the single PR detail endpoint.
	Body     string `json:"body,omitempty"`
	BodyHTML string `json:"body_html,omitempty"`
}

// ReviewResponse is the JSON representation of a reviewer's latest review.
type ReviewResponse struct {
	Reviewer    string `json:"reviewer"`
	State       string `json:"state"`
	SubmittedAt string `json:"submitted_at"`
}

// RepoSubscriptionResponse is the JSON representation of a repository subscription.
type RepoSubscriptionResponse struct {
	RepoFullName         string `json:"repo_full_name"`
	WatchAll             bool   `json:"watch_all"`
	WatchAssigned        bool   `json:"watch_assigned"`
	WatchReviewRequested bool   `json:"watch_review_requested"`
}

// TeamSubscriptionResponse is the JSON representation of a team subscription.
type TeamSubscriptionResponse struct {
	Organization         string `json:"organization"`
	TeamSlug             string `json:"team_slug"`
	ScopeKey             string `json:"scope_key"`
	WatchAll             bool   `json:"watch_all"`
	WatchAssigned        bool   `json:"watch_assigned"`
	WatchReviewRequested bool   `json:"watch_review_requested"`
	Enabled              bool   `json:"enabled"`
}

// StatsResponse is the JSON representation of one scope's aggregate statistics.
type StatsResponse struct {
	ScopeKey       string `json:"scope_key"`
	TotalOpen      int    `json:"total_open"`
	AssignedToUser int    `json:"assigned_to_user"`
	ReviewRequests int    `json:"review_requests"`
	NeedsReview    int    `json:"needs_review"`
	LastUpdated    string `json:"last_updated"`
}

// TokenStatusResponse reports whether a GitHub credential is installed.
type TokenStatusResponse struct {
	Configured bool   `json:"configured"`
	Login      string `json:"login,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// AddRepoSubscriptionRequest is the JSON body for the repository subscribe endpoint.
type AddRepoSubscriptionRequest struct {
	RepoFullName         string `json:"repo_full_name"`
	WatchAll             bool   `json:"watch_all"`
	WatchAssigned        bool   `json:"watch_assigned"`
	WatchReviewRequested bool   `json:"watch_review_requested"`
}

// AddTeamSubscriptionRequest is the JSON body for the team subscribe endpoint.
type AddTeamSubscriptionRequest struct {
	Organization         string `json:"organization"`
	TeamSlug             string `json:"team_slug"`
	WatchAll             bool   `json:"watch_all"`
	WatchAssigned        bool   `json:"watch_assigned"`
	WatchReviewRequested bool   `json:"watch_review_requested"`
}

// SetEnabledRequest is the JSON body for the team enable/disable endpoint.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetTokenRequest is the JSON body for the token install endpoint.
type SetTokenRequest struct {
	Token string `json:"token"`
}

// toPRResponse converts a domain PullRequest to its JSON response
// representation. Body and BodyHTML are left empty; the detail handler fills
// them in.
func toPRResponse(pr model.PullRequest) PRResponse {
	reviews := make([]ReviewResponse, 0, len(pr.Reviews))
	for _, rv := range pr.Reviews {
		reviews = append(reviews, ReviewResponse{
			Reviewer:    rv.Reviewer,
			State:       string(rv.State),
			SubmittedAt: rv.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}

	return PRResponse{
		Number:     pr.Number,
		Repository: pr.RepoFullName,
		Title:      pr.Title,
		State:      string(pr.State),
		Status:     string(pr.Status),
		URL:        pr.URL,
		Author:     pr.Author,
		IsDraft:    pr.IsDraft,

		Assignees:          emptyIfNil(pr.Assignees),
		RequestedReviewers: emptyIfNil(pr.RequestedReviewers),
		RequestedTeamSlugs: emptyIfNil(pr.RequestedTeamSlugs),
		Reviews:            reviews,

		CreatedAt: pr.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: pr.UpdatedAt.UTC().Format(time.RFC3339),

		UserIsAssigned:          pr.UserIsAssigned,
		UserIsRequestedReviewer: pr.UserIsRequestedReviewer,
		UserHasReviewed:         pr.UserHasReviewed,
	}
}

// toRepoSubscriptionResponse converts a repository subscription to its JSON representation.
func toRepoSubscriptionResponse(sub model.RepoSubscription) RepoSubscriptionResponse {
	return RepoSubscriptionResponse{
		RepoFullName:         sub.RepoFullName,
		WatchAll:             sub.WatchAll,
		WatchAssigned:        sub.WatchAssigned,
		WatchReviewRequested: sub.WatchReviewRequested,
	}
}

// toTeamSubscriptionResponse converts a team subscription to its JSON representation.
func toTeamSubscriptionResponse(sub model.TeamSubscription) TeamSubscriptionResponse {
	return TeamSubscriptionResponse{
		Organization:         sub.Organization,
		TeamSlug:             sub.TeamSlug,
		ScopeKey:             sub.ScopeKey(),
		WatchAll:             sub.WatchAll,
		WatchAssigned:        sub.WatchAssigned,
		WatchReviewRequested: sub.WatchReviewRequested,
		Enabled:              sub.Enabled,
	}
}

// toStatsResponse converts scope statistics to their JSON representation.
func toStatsResponse(st model.ScopeStats) StatsResponse {
	return StatsResponse{
		ScopeKey:       st.ScopeKey,
		TotalOpen:      st.TotalOpen,
		AssignedToUser: st.AssignedToUser,
		ReviewRequests: st.ReviewRequests,
		NeedsReview:    st.NeedsReview,
		LastUpdated:    st.LastUpdated.UTC().Format(time.RFC3339),
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
