package model

import "time"

// PullRequest is the canonical record for one pull request, replaced
// wholesale on every fetch. Status is always derived from the other fields;
// it is never written independently.
type PullRequest struct {
	RepoFullName string
	Number       int
	GitHubID     int64 // 0 when the fetch path does not report a numeric ID.
	Title        string
	Body         string
	State        PRState
	URL          string
	Author       string
	IsDraft      bool

	Assignees          []string
	RequestedReviewers []string
	RequestedTeamSlugs []string
	Reviews            []Review // Latest decisive review per reviewer.

	CreatedAt time.Time
	UpdatedAt time.Time // Source-of-truth clock; the sole diff change signal.

	UserIsAssigned          bool
	UserIsRequestedReviewer bool
	UserHasReviewed         bool
	Status                  PRStatus
}

// Key returns the "repo#number" identity used wherever a pull request must
// be addressed across repositories.
func (pr PullRequest) Key() string {
	return prKey(pr.RepoFullName, pr.Number)
}

// Review is one reviewer's latest decisive review on a pull request.
type Review struct {
	Reviewer    string
	State       ReviewState
	SubmittedAt time.Time
}

// RawPullRequest is the normalized intermediate shape both fetch variants
// (REST list and GraphQL search) produce. It carries the un-collapsed review
// list; the normalizer turns it into a PullRequest for a specific viewer.
type RawPullRequest struct {
	RepoFullName string
	Number       int
	GitHubID     int64
	Title        string
	Body         string
	State        PRState
	URL          string
	Author       string
	IsDraft      bool

	Assignees          []string
	RequestedReviewers []string
	RequestedTeamSlugs []string
	Reviews            []Review

	CreatedAt time.Time
	UpdatedAt time.Time
	MergedAt  time.Time // Zero when not merged; distinguishes merged from closed.
}
