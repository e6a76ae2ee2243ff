package driven

import "github.com/ericfisherdev/prmonitor/internal/domain/model"

// Broadcaster defines the driven port for the live-update transport. Both
// methods are fire-and-forget: delivery is best effort, at most once per
// connected receiver, and a slow or dead receiver must never block or fail
// the reconciliation path.
type Broadcaster interface {
	BroadcastPRChange(scopeKey string, kind model.ChangeKind, pr model.PullRequest)
	BroadcastStats(scopeKey string, stats model.ScopeStats)
}
