package model

import "time"

// ScopeStats is the per-subscription rollup recomputed wholesale after every
// successful poll of its scope. It is never incrementally patched.
type ScopeStats struct {
	ScopeKey       string
	TotalOpen      int
	AssignedToUser int
	ReviewRequests int
	NeedsReview    int
	LastUpdated    time.Time
}

// ComputeScopeStats derives the rollup for one scope from the full record
// set returned by its latest poll.
func ComputeScopeStats(scopeKey string, prs []PullRequest, now time.Time) ScopeStats {
	stats := ScopeStats{ScopeKey: scopeKey, LastUpdated: now}

	for _, pr := range prs {
		if pr.State == PRStateOpen {
			stats.TotalOpen++
		}
		if pr.UserIsAssigned {
			stats.AssignedToUser++
		}
		if pr.UserIsRequestedReviewer {
			stats.ReviewRequests++
		}
		if pr.Status == StatusNeedsReview {
			stats.NeedsReview++
		}
	}

	return stats
}
