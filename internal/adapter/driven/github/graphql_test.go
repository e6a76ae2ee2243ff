package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// graphqlHandler routes GraphQL POSTs by query shape: member queries mention
// "organization", search queries mention "search".
type graphqlHandler struct {
	members func(variables map[string]any) string
	search  func(variables map[string]any) string
}

func (h graphqlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case strings.Contains(req.Query, "organization"):
		fmt.Fprint(w, h.members(req.Variables))
	case strings.Contains(req.Query, "search"):
		fmt.Fprint(w, h.search(req.Variables))
	default:
		http.Error(w, "unexpected query", http.StatusBadRequest)
	}
}

func membersPayload(logins ...string) string {
	nodes := make([]string, 0, len(logins))
	for _, l := range logins {
		nodes = append(nodes, fmt.Sprintf(`{"login":%q}`, l))
	}
	return fmt.Sprintf(`{"data":{"organization":{"team":{"members":{
		"pageInfo":{"hasNextPage":false,"endCursor":""},
		"nodes":[%s]}}}}}`, strings.Join(nodes, ","))
}

func searchNode(repo string, number int, author string) string {
	return fmt.Sprintf(`{
		"databaseId": %d,
		"number": %d,
		"title": "change by %s",
		"state": "OPEN",
		"url": "https://github.com/%s/pull/%d",
		"createdAt": "2026-02-01T00:00:00Z",
		"updatedAt": "2026-02-02T00:00:00Z",
		"author": {"login": %q},
		"repository": {"nameWithOwner": %q},
		"assignees": {"nodes": []},
		"reviewRequests": {"nodes": [{"requestedReviewer": {"slug": "platform"}}]},
		"reviews": {"nodes": [
			{"state": "APPROVED", "submittedAt": "2026-02-01T12:00:00Z", "author": {"login": "reviewer1"}},
			{"state": "COMMENTED", "submittedAt": "2026-02-01T13:00:00Z", "author": {"login": "chatty"}}
		]}
	}`, number*100, number, author, repo, number, author, repo)
}

func searchPayload(nodes ...string) string {
	return fmt.Sprintf(`{"data":{"search":{
		"pageInfo":{"hasNextPage":false,"endCursor":""},
		"nodes":[%s]}}}`, strings.Join(nodes, ","))
}

func TestFetchTeamPRs_MapsAndDedups(t *testing.T) {
	handler := graphqlHandler{
		members: func(_ map[string]any) string {
			return membersPayload("alice", "bob")
		},
		search: func(_ map[string]any) string {
			// The same PR twice; the duplicate must collapse.
			return searchPayload(
				searchNode("acme/widgets", 7, "alice"),
				searchNode("acme/widgets", 7, "alice"),
				searchNode("acme/gadgets", 3, "bob"),
			)
		},
	}

	client, _ := newTestClient(t, handler)

	prs, err := client.FetchTeamPRs(context.Background(), "acme", "platform")
	require.NoError(t, err)
	require.Len(t, prs, 2)

	pr := prs[0]
	assert.Equal(t, "acme/widgets", pr.RepoFullName)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, int64(700), pr.GitHubID)
	assert.Equal(t, "alice", pr.Author)
	assert.Equal(t, model.PRStateOpen, pr.State)
	assert.Equal(t, []string{"platform"}, pr.RequestedTeamSlugs)

	// COMMENTED review dropped, decisive one kept.
	require.Len(t, pr.Reviews, 1)
	assert.Equal(t, "reviewer1", pr.Reviews[0].Reviewer)
	assert.Equal(t, model.ReviewStateApproved, pr.Reviews[0].State)
}

func TestFetchTeamPRs_BatchesAuthors(t *testing.T) {
	// 25 members force two search batches of 20 and 5 authors.
	logins := make([]string, 25)
	for i := range logins {
		logins[i] = fmt.Sprintf("user%02d", i)
	}

	var queries []string
	handler := graphqlHandler{
		members: func(_ map[string]any) string {
			return membersPayload(logins...)
		},
		search: func(variables map[string]any) string {
			q, _ := variables["q"].(string)
			queries = append(queries, q)
			return searchPayload()
		},
	}

	client, _ := newTestClient(t, handler)

	_, err := client.FetchTeamPRs(context.Background(), "acme", "platform")
	require.NoError(t, err)

	require.Len(t, queries, 2)
	assert.Equal(t, 20, strings.Count(queries[0], "author:"))
	assert.Equal(t, 5, strings.Count(queries[1], "author:"))
	assert.Contains(t, queries[0], "org:acme type:pr")
	assert.Contains(t, queries[0], "updated:>=")
}

func TestFetchTeamPRs_TeamNotFound(t *testing.T) {
	handler := graphqlHandler{
		members: func(_ map[string]any) string {
			return `{"data":{"organization":{"team":null}}}`
		},
	}

	client, _ := newTestClient(t, handler)

	_, err := client.FetchTeamPRs(context.Background(), "acme", "ghosts")
	require.Error(t, err)
	assert.Equal(t, driven.FetchNotFound, driven.FetchKindOf(err))
}

func TestFetchTeamPRs_EmptyTeam(t *testing.T) {
	handler := graphqlHandler{
		members: func(_ map[string]any) string {
			return membersPayload()
		},
	}

	client, _ := newTestClient(t, handler)

	prs, err := client.FetchTeamPRs(context.Background(), "acme", "platform")
	require.NoError(t, err)
	assert.Empty(t, prs)
}

func TestFetchTeamPRs_UnauthorizedStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.FetchTeamPRs(context.Background(), "acme", "platform")
	require.Error(t, err)
	assert.True(t, driven.IsUnauthorized(err))
}

func TestFetchTeamPRs_MergedStateCarriesTimestamp(t *testing.T) {
	merged := `{
		"number": 9,
		"state": "MERGED",
		"updatedAt": "2026-02-02T00:00:00Z",
		"createdAt": "2026-02-01T00:00:00Z",
		"mergedAt": "2026-02-02T00:00:00Z",
		"author": {"login": "alice"},
		"repository": {"nameWithOwner": "acme/widgets"},
		"assignees": {"nodes": []},
		"reviewRequests": {"nodes": []},
		"reviews": {"nodes": []}
	}`
	handler := graphqlHandler{
		members: func(_ map[string]any) string { return membersPayload("alice") },
		search:  func(_ map[string]any) string { return searchPayload(merged) },
	}

	client, _ := newTestClient(t, handler)

	prs, err := client.FetchTeamPRs(context.Background(), "acme", "platform")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, model.PRStateClosed, prs[0].State)
	assert.False(t, prs[0].MergedAt.IsZero())
}
