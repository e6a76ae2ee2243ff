package model

// PRState represents the lifecycle state of a pull request as reported by
// the source of truth.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateClosed PRState = "closed"
	PRStateMerged PRState = "merged"
)

// Terminal returns true when the pull request can no longer change.
func (s PRState) Terminal() bool {
	return s == PRStateClosed || s == PRStateMerged
}

// ReviewState represents the outcome of a submitted review.
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "approved"
	ReviewStateChangesRequested ReviewState = "changes_requested"
	ReviewStateDismissed        ReviewState = "dismissed"
	ReviewStatePending          ReviewState = "pending"
)

// Decisive returns true for review states that count as an actual review
// rather than a placeholder.
func (s ReviewState) Decisive() bool {
	return s == ReviewStateApproved || s == ReviewStateChangesRequested || s == ReviewStateDismissed
}

// PRStatus is the viewer-relative status derived from a pull request's state
// and the viewer's relationship to it. StatusOpen is the neutral,
// non-actionable value; closed and merged PRs always resolve to it.
type PRStatus string

const (
	StatusOpen        PRStatus = "open"
	StatusNeedsReview PRStatus = "needs_review"
	StatusReviewed    PRStatus = "reviewed"
)

// ChangeKind classifies a pull request change detected between two polls.
type ChangeKind string

const (
	ChangeNew     ChangeKind = "new_pr"
	ChangeUpdated ChangeKind = "updated"
	ChangeClosed  ChangeKind = "closed"
)

// SubscriptionKind distinguishes repository subscriptions from team
// subscriptions.
type SubscriptionKind string

const (
	KindRepository SubscriptionKind = "repository"
	KindTeam       SubscriptionKind = "team"
)
