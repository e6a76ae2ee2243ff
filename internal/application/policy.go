package application

import "github.com/ericfisherdev/prmonitor/internal/domain/model"

// shouldNotify decides whether a new-or-updated pull request triggers a push
// for a subscription. Pure predicate; closed changes bypass it entirely
// since removal is never noisy.
func shouldNotify(pr model.PullRequest, flags model.WatchFlags) bool {
	if flags.WatchAll {
		return true
	}
	if flags.WatchAssigned && pr.UserIsAssigned {
		return true
	}
	if flags.WatchReviewRequested && pr.UserIsRequestedReviewer {
		return true
	}
	return false
}
