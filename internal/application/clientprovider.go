package application

import (
	"sync"

	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// GitHubClientProvider hands the reconciliation loop its GitHub client and
// allows the credential to be swapped or invalidated at runtime without
// restarting the loop.
type GitHubClientProvider struct {
	mu       sync.RWMutex
	client   driven.GitHubClient
	identity driven.Identity
}

// NewGitHubClientProvider creates a provider with no client configured.
func NewGitHubClientProvider() *GitHubClientProvider {
	return &GitHubClientProvider{}
}

// Get returns the current client, or false when no valid credential is set.
func (p *GitHubClientProvider) Get() (driven.GitHubClient, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client, p.client != nil
}

// Identity returns the identity the current credential authenticates as.
// Zero value when no client is set.
func (p *GitHubClientProvider) Identity() driven.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity
}

// Replace installs a validated client and the identity it belongs to.
func (p *GitHubClientProvider) Replace(client driven.GitHubClient, identity driven.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
	p.identity = identity
}

// Invalidate drops the current client. Called when GitHub rejects the
// credential; polling pauses until a new one is installed.
func (p *GitHubClientProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	p.identity = driven.Identity{}
}
