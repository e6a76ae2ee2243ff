package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prmonitor/internal/application"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

func TestGitHubClientProvider_ReplaceAndInvalidate(t *testing.T) {
	provider := application.NewGitHubClientProvider()

	_, ok := provider.Get()
	assert.False(t, ok)

	client := &mockGitHubClient{}
	provider.Replace(client, driven.Identity{Login: "me", TeamSlugs: []string{"platform"}})

	got, ok := provider.Get()
	require.True(t, ok)
	assert.Same(t, client, got)
	assert.Equal(t, "me", provider.Identity().Login)

	provider.Invalidate()
	_, ok = provider.Get()
	assert.False(t, ok)
	assert.Empty(t, provider.Identity().Login)
}
