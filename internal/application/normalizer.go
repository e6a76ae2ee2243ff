// Package application contains use-case orchestration services.
package application

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// Normalize converts one raw fetch payload into the canonical record for the
// given viewer. It collapses the review list to the latest decisive review
// per reviewer, resolves merged-vs-closed, computes the viewer-relative
// booleans, and derives the status.
func Normalize(raw model.RawPullRequest, viewer driven.Identity) (model.PullRequest, error) {
	if raw.RepoFullName == "" {
		return model.PullRequest{}, fmt.Errorf("raw pull request missing repository name")
	}
	if raw.Number <= 0 {
		return model.PullRequest{}, fmt.Errorf("raw pull request %s has invalid number %d", raw.RepoFullName, raw.Number)
	}
	if raw.UpdatedAt.IsZero() {
		return model.PullRequest{}, fmt.Errorf("raw pull request %s#%d missing update timestamp", raw.RepoFullName, raw.Number)
	}

	reviews := collapseReviews(raw.Reviews)

	hasReviewed := false
	for _, r := range reviews {
		if strings.EqualFold(r.Reviewer, viewer.Login) {
			hasReviewed = true
			break
		}
	}

	isAssigned := containsFold(raw.Assignees, viewer.Login)

	// A team-level review request stops counting as pending for the viewer
	// once they have submitted a decisive review.
	isRequested := containsFold(raw.RequestedReviewers, viewer.Login)
	if !isRequested && !hasReviewed {
		for _, slug := range viewer.TeamSlugs {
			if containsFold(raw.RequestedTeamSlugs, slug) {
				isRequested = true
				break
			}
		}
	}

	// "closed" is a superset in the source data; a merge timestamp wins.
	state := raw.State
	if !raw.MergedAt.IsZero() {
		state = model.PRStateMerged
	}

	return model.PullRequest{
		RepoFullName:            raw.RepoFullName,
		Number:                  raw.Number,
		GitHubID:                raw.GitHubID,
		Title:                   raw.Title,
		Body:                    raw.Body,
		State:                   state,
		URL:                     raw.URL,
		Author:                  raw.Author,
		IsDraft:                 raw.IsDraft,
		Assignees:               raw.Assignees,
		RequestedReviewers:      raw.RequestedReviewers,
		RequestedTeamSlugs:      raw.RequestedTeamSlugs,
		Reviews:                 reviews,
		CreatedAt:               raw.CreatedAt,
		UpdatedAt:               raw.UpdatedAt,
		UserIsAssigned:          isAssigned,
		UserIsRequestedReviewer: isRequested,
		UserHasReviewed:         hasReviewed,
		Status:                  DeriveStatus(state, hasReviewed, isAssigned, isRequested),
	}, nil
}

// NormalizeBatch normalizes a full fetch result. A malformed record is
// skipped and logged; it never aborts the batch.
func NormalizeBatch(raws []model.RawPullRequest, viewer driven.Identity) []model.PullRequest {
	prs := make([]model.PullRequest, 0, len(raws))
	for _, raw := range raws {
		pr, err := Normalize(raw, viewer)
		if err != nil {
			slog.Warn("skipping malformed pull request payload", "error", err)
			continue
		}
		prs = append(prs, pr)
	}
	return prs
}

// DeriveStatus computes the viewer-relative status. The evaluation order is
// load-bearing: a closed or merged PR is always neutral, and a viewer who
// has reviewed stays REVIEWED even if a fresh team-level review request
// arrives afterwards.
func DeriveStatus(state model.PRState, hasReviewed, isAssigned, isRequested bool) model.PRStatus {
	switch {
	case state.Terminal():
		return model.StatusOpen
	case hasReviewed:
		return model.StatusReviewed
	case isAssigned || isRequested:
		return model.StatusNeedsReview
	default:
		return model.StatusOpen
	}
}

// collapseReviews reduces the raw review list to the chronologically latest
// decisive review per reviewer, in reviewer order. Plain comment entries are
// discarded.
func collapseReviews(raws []model.Review) []model.Review {
	latest := make(map[string]model.Review)
	for _, r := range raws {
		if r.Reviewer == "" || !r.State.Decisive() {
			continue
		}
		key := strings.ToLower(r.Reviewer)
		if prev, ok := latest[key]; !ok || r.SubmittedAt.After(prev.SubmittedAt) {
			latest[key] = r
		}
	}

	reviews := make([]model.Review, 0, len(latest))
	for _, r := range latest {
		reviews = append(reviews, r)
	}
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].Reviewer < reviews[j].Reviewer
	})

	return reviews
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
