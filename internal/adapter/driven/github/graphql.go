package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// graphqlHTTPClient is the HTTP client used for GraphQL requests.
// It enforces a 30-second timeout as a safety net alongside context cancellation.
var graphqlHTTPClient = &http.Client{Timeout: 30 * time.Second}

// authorBatchSize bounds how many author: qualifiers go into one search
// query. GitHub's search syntax degrades well before the documented limits,
// so team member lists are chunked.
const authorBatchSize = 20

// teamActivityWindow is how far back the team search looks. PRs untouched
// for longer stop appearing in team scopes and are inferred closed.
const teamActivityWindow = 14 * 24 * time.Hour

const teamMembersQuery = `query($org: String!, $team: String!, $cursor: String) {
	organization(login: $org) {
		team(slug: $team) {
			members(first: 100, after: $cursor) {
				pageInfo {
					hasNextPage
					endCursor
				}
				nodes {
					login
				}
			}
		}
	}
}`

const teamSearchQuery = `query($q: String!, $cursor: String) {
	search(query: $q, type: ISSUE, first: 100, after: $cursor) {
		pageInfo {
			hasNextPage
			endCursor
		}
		nodes {
			... on PullRequest {
				databaseId
				number
				title
				body
				url
				state
				isDraft
				createdAt
				updatedAt
				mergedAt
				author {
					login
				}
				repository {
					nameWithOwner
				}
				assignees(first: 20) {
					nodes {
						login
					}
				}
				reviewRequests(first: 20) {
					nodes {
						requestedReviewer {
							... on User {
								login
							}
							... on Team {
								slug
							}
						}
					}
				}
				reviews(first: 50) {
					nodes {
						state
						submittedAt
						author {
							login
						}
					}
				}
			}
		}
	}
}`

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// membersResponse is the expected shape of the team member query result.
type membersResponse struct {
	Data struct {
		Organization struct {
			Team *struct {
				Members struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []struct {
						Login string `json:"login"`
					} `json:"nodes"`
				} `json:"members"`
			} `json:"team"`
		} `json:"organization"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// searchResponse is the expected shape of the PR search query result.
type searchResponse struct {
	Data struct {
		Search struct {
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Nodes []searchPRNode `json:"nodes"`
		} `json:"search"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type searchPRNode struct {
	DatabaseID int64      `json:"databaseId"`
	Number     int        `json:"number"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	URL        string     `json:"url"`
	State      string     `json:"state"`
	IsDraft    bool       `json:"isDraft"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	MergedAt   *time.Time `json:"mergedAt"`
	Author     struct {
		Login string `json:"login"`
	} `json:"author"`
	Repository struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
	Assignees struct {
		Nodes []struct {
			Login string `json:"login"`
		} `json:"nodes"`
	} `json:"assignees"`
	ReviewRequests struct {
		Nodes []struct {
			RequestedReviewer struct {
				Login string `json:"login"`
				Slug  string `json:"slug"`
			} `json:"requestedReviewer"`
		} `json:"nodes"`
	} `json:"reviewRequests"`
	Reviews struct {
		Nodes []struct {
			State       string     `json:"state"`
			SubmittedAt *time.Time `json:"submittedAt"`
			Author      struct {
				Login string `json:"login"`
			} `json:"author"`
		} `json:"nodes"`
	} `json:"reviews"`
}

// FetchTeamPRs returns the recently active pull requests authored by one
// organization team's members. It resolves the member list first, then runs
// search queries in author batches, deduplicating PRs that match through
// more than one batch.
func (c *Client) FetchTeamPRs(ctx context.Context, org, teamSlug string) ([]model.RawPullRequest, error) {
	members, err := c.fetchTeamMembers(ctx, org, teamSlug)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		slog.Warn("team has no members", "org", org, "team", teamSlug)
		return []model.RawPullRequest{}, nil
	}

	cutoff := time.Now().Add(-teamActivityWindow).Format("2006-01-02")

	seen := make(map[string]bool)
	var allPRs []model.RawPullRequest

	for start := 0; start < len(members); start += authorBatchSize {
		end := min(start+authorBatchSize, len(members))

		prs, err := c.searchAuthoredPRs(ctx, org, members[start:end], cutoff)
		if err != nil {
			return nil, err
		}

		for _, pr := range prs {
			key := fmt.Sprintf("%s#%d", pr.RepoFullName, pr.Number)
			if seen[key] {
				continue
			}
			seen[key] = true
			allPRs = append(allPRs, pr)
		}
	}

	slog.Debug("team search complete",
		"org", org,
		"team", teamSlug,
		"members", len(members),
		"prs", len(allPRs),
	)

	if allPRs == nil {
		allPRs = []model.RawPullRequest{}
	}

	return allPRs, nil
}

// fetchTeamMembers returns the login of every member of an organization
// team, following member-list pagination.
func (c *Client) fetchTeamMembers(ctx context.Context, org, teamSlug string) ([]string, error) {
	op := fmt.Sprintf("fetching members of %s/%s", org, teamSlug)

	var members []string
	var cursor *string

	for {
		var resp membersResponse
		err := c.doGraphQL(ctx, op, teamMembersQuery, map[string]any{
			"org":    org,
			"team":   teamSlug,
			"cursor": cursor,
		}, &resp)
		if err != nil {
			return nil, err
		}
		if len(resp.Errors) > 0 {
			return nil, &driven.FetchError{
				Kind: driven.FetchTransient,
				Op:   op,
				Err:  fmt.Errorf("graphql: %s", resp.Errors[0].Message),
			}
		}
		if resp.Data.Organization.Team == nil {
			return nil, &driven.FetchError{
				Kind: driven.FetchNotFound,
				Op:   op,
				Err:  fmt.Errorf("team %s not found in %s", teamSlug, org),
			}
		}

		page := resp.Data.Organization.Team.Members
		for _, node := range page.Nodes {
			if node.Login != "" {
				members = append(members, node.Login)
			}
		}

		if !page.PageInfo.HasNextPage {
			break
		}
		cursor = &page.PageInfo.EndCursor
	}

	return members, nil
}

// searchAuthoredPRs runs one author-batch search, following result pagination.
func (c *Client) searchAuthoredPRs(ctx context.Context, org string, authors []string, cutoff string) ([]model.RawPullRequest, error) {
	op := fmt.Sprintf("searching PRs in %s", org)

	var sb strings.Builder
	fmt.Fprintf(&sb, "org:%s type:pr", org)
	for _, author := range authors {
		fmt.Fprintf(&sb, " author:%s", author)
	}
	fmt.Fprintf(&sb, " updated:>=%s sort:updated-desc", cutoff)

	var prs []model.RawPullRequest
	var cursor *string

	for {
		var resp searchResponse
		err := c.doGraphQL(ctx, op, teamSearchQuery, map[string]any{
			"q":      sb.String(),
			"cursor": cursor,
		}, &resp)
		if err != nil {
			return nil, err
		}
		if len(resp.Errors) > 0 {
			return nil, &driven.FetchError{
				Kind: driven.FetchTransient,
				Op:   op,
				Err:  fmt.Errorf("graphql: %s", resp.Errors[0].Message),
			}
		}

		for _, node := range resp.Data.Search.Nodes {
			if node.Number == 0 || node.Repository.NameWithOwner == "" {
				continue
			}
			prs = append(prs, mapSearchNode(node))
		}

		if !resp.Data.Search.PageInfo.HasNextPage {
			break
		}
		cursor = &resp.Data.Search.PageInfo.EndCursor
	}

	return prs, nil
}

// doGraphQL posts one GraphQL request and decodes the response into out.
func (c *Client) doGraphQL(ctx context.Context, op, query string, variables map[string]any, out any) error {
	bodyBytes, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("%s: marshaling request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("bearer %s", c.token))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := graphqlHTTPClient.Do(httpReq)
	if err != nil {
		return &driven.FetchError{Kind: driven.FetchTransient, Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(op, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &driven.FetchError{Kind: driven.FetchTransient, Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return nil
}

// mapSearchNode converts one search result node to the raw domain shape.
func mapSearchNode(node searchPRNode) model.RawPullRequest {
	assignees := make([]string, 0, len(node.Assignees.Nodes))
	for _, a := range node.Assignees.Nodes {
		assignees = append(assignees, a.Login)
	}

	var reviewers, teamSlugs []string
	for _, rr := range node.ReviewRequests.Nodes {
		if rr.RequestedReviewer.Login != "" {
			reviewers = append(reviewers, rr.RequestedReviewer.Login)
		}
		if rr.RequestedReviewer.Slug != "" {
			teamSlugs = append(teamSlugs, rr.RequestedReviewer.Slug)
		}
	}

	var reviews []model.Review
	for _, r := range node.Reviews.Nodes {
		state, ok := mapGraphQLReviewState(r.State)
		if !ok || r.Author.Login == "" {
			continue
		}
		review := model.Review{Reviewer: r.Author.Login, State: state}
		if r.SubmittedAt != nil {
			review.SubmittedAt = *r.SubmittedAt
		}
		reviews = append(reviews, review)
	}

	raw := model.RawPullRequest{
		RepoFullName:       node.Repository.NameWithOwner,
		Number:             node.Number,
		GitHubID:           node.DatabaseID,
		Title:              node.Title,
		Body:               node.Body,
		State:              model.PRState(strings.ToLower(node.State)),
		URL:                node.URL,
		Author:             node.Author.Login,
		IsDraft:            node.IsDraft,
		Assignees:          assignees,
		RequestedReviewers: reviewers,
		RequestedTeamSlugs: teamSlugs,
		Reviews:            reviews,
		CreatedAt:          node.CreatedAt,
		UpdatedAt:          node.UpdatedAt,
	}
	if node.MergedAt != nil {
		raw.MergedAt = *node.MergedAt
	}
	// GraphQL reports merged PRs with state MERGED; the raw shape keeps
	// closed here and lets the merge timestamp decide downstream.
	if raw.State == model.PRStateMerged {
		raw.State = model.PRStateClosed
	}

	return raw
}

// mapGraphQLReviewState converts a GraphQL review state enum value.
// COMMENTED entries carry no decision and are dropped.
func mapGraphQLReviewState(state string) (model.ReviewState, bool) {
	switch state {
	case "APPROVED":
		return model.ReviewStateApproved, true
	case "CHANGES_REQUESTED":
		return model.ReviewStateChangesRequested, true
	case "DISMISSED":
		return model.ReviewStateDismissed, true
	case "PENDING":
		return model.ReviewStatePending, true
	default:
		return "", false
	}
}
