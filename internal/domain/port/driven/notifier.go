package driven

import (
	"context"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

// Notifier defines the driven port for out-of-band notifications (Slack
// incoming webhook). Optional: the monitor tolerates a nil Notifier.
type Notifier interface {
	NotifyPRChange(ctx context.Context, pr model.PullRequest, kind model.ChangeKind) error
}
