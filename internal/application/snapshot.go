package application

import (
	"sync"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

// snapshotCache holds the last-seen record set per scope key. Entries are
// replaced with an atomic per-key swap, never mutated in place, so the
// last-writer-wins contract stays auditable.
type snapshotCache struct {
	mu     sync.RWMutex
	scopes map[string]map[int]model.PullRequest
}

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{scopes: make(map[string]map[int]model.PullRequest)}
}

// Get returns the previous snapshot for a scope. The returned map is the
// stored one; callers must treat it as read-only.
func (c *snapshotCache) Get(scopeKey string) map[int]model.PullRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scopes[scopeKey]
}

// Replace swaps in the full current record set for a scope.
func (c *snapshotCache) Replace(scopeKey string, prs []model.PullRequest) {
	byNumber := make(map[int]model.PullRequest, len(prs))
	for _, pr := range prs {
		byNumber[pr.Number] = pr
	}

	c.mu.Lock()
	c.scopes[scopeKey] = byNumber
	c.mu.Unlock()
}

// Delete drops a scope's snapshot entirely (unsubscribe).
func (c *snapshotCache) Delete(scopeKey string) {
	c.mu.Lock()
	delete(c.scopes, scopeKey)
	c.mu.Unlock()
}

// Records returns a copy of a scope's records, and whether the scope has
// been polled at all since startup.
func (c *snapshotCache) Records(scopeKey string) ([]model.PullRequest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byNumber, ok := c.scopes[scopeKey]
	if !ok {
		return nil, false
	}

	prs := make([]model.PullRequest, 0, len(byNumber))
	for _, pr := range byNumber {
		prs = append(prs, pr)
	}
	return prs, true
}
