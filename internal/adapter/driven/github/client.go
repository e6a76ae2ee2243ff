// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library
// for REST calls and a raw HTTP client for GraphQL.
type Client struct {
	gh         *gh.Client
	token      string // Stored for GraphQL Authorization header.
	graphqlURL string // "https://api.github.com/graphql" in production; derived from baseURL in tests.
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:         client,
		token:      token,
		graphqlURL: "https://api.github.com/graphql",
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:         client,
		token:      token,
		graphqlURL: graphqlU.String(),
	}, nil
}

// ValidateToken checks the held credential against the authenticated-user
// endpoint and returns the login it belongs to. Team membership is not
// resolved here; the caller supplies team slugs from configuration.
func (c *Client) ValidateToken(ctx context.Context) (driven.Identity, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return driven.Identity{}, classifyError("validating token", err)
	}

	logRateLimit(resp, "user", 0, 1)

	return driven.Identity{Login: user.GetLogin()}, nil
}

// FetchRepositoryPRs retrieves the open pull requests of one repository,
// including each PR's review list. It handles pagination automatically and
// maps go-github types to the raw domain shape.
func (c *Client) FetchRepositoryPRs(ctx context.Context, repoFullName string) ([]model.RawPullRequest, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State:     "open",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var allPRs []model.RawPullRequest

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, classifyError(fmt.Sprintf("listing pull requests for %s (page %d)", repoFullName, opts.Page), err)
		}

		logRateLimit(resp, repoFullName, opts.Page, len(prs))

		for _, pr := range prs {
			raw := mapPullRequest(pr, repoFullName)

			reviews, err := c.fetchReviews(ctx, owner, repo, repoFullName, pr.GetNumber())
			if err != nil {
				// Reviews are supplementary; a failed review fetch degrades
				// the record instead of failing the whole repository.
				slog.Warn("fetch reviews failed", "repo", repoFullName, "pr", pr.GetNumber(), "error", err)
			}
			raw.Reviews = reviews

			allPRs = append(allPRs, raw)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allPRs == nil {
		allPRs = []model.RawPullRequest{}
	}

	return allPRs, nil
}

// fetchReviews retrieves all reviews for a pull request, paginated.
func (c *Client) fetchReviews(ctx context.Context, owner, repo, repoFullName string, prNumber int) ([]model.Review, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var allReviews []model.Review

	for {
		reviews, resp, err := c.gh.PullRequests.ListReviews(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, classifyError(fmt.Sprintf("listing reviews for %s#%d (page %d)", repoFullName, prNumber, opts.Page), err)
		}

		for _, r := range reviews {
			if review, ok := mapReview(r); ok {
				allReviews = append(allReviews, review)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allReviews, nil
}

// mapReview converts a go-github PullRequestReview to a domain Review.
// Comment-only entries carry no decision and are dropped at the source.
func mapReview(r *gh.PullRequestReview) (model.Review, bool) {
	state := strings.ToUpper(r.GetState())
	if state == "COMMENTED" || state == "" {
		return model.Review{}, false
	}

	return model.Review{
		Reviewer:    r.GetUser().GetLogin(),
		State:       model.ReviewState(strings.ToLower(state)),
		SubmittedAt: r.GetSubmittedAt().Time,
	}, true
}

// mapPullRequest converts a go-github PullRequest to the raw domain shape.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest, repoFullName string) model.RawPullRequest {
	reviewers := make([]string, 0, len(pr.RequestedReviewers))
	for _, r := range pr.RequestedReviewers {
		reviewers = append(reviewers, r.GetLogin())
	}

	teamSlugs := make([]string, 0, len(pr.RequestedTeams))
	for _, t := range pr.RequestedTeams {
		teamSlugs = append(teamSlugs, t.GetSlug())
	}

	assignees := make([]string, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		assignees = append(assignees, a.GetLogin())
	}

	return model.RawPullRequest{
		RepoFullName:       repoFullName,
		Number:             pr.GetNumber(),
		GitHubID:           pr.GetID(),
		Title:              pr.GetTitle(),
		Body:               pr.GetBody(),
		State:              model.PRState(pr.GetState()),
		URL:                pr.GetHTMLURL(),
		Author:             pr.GetUser().GetLogin(),
		IsDraft:            pr.GetDraft(),
		Assignees:          assignees,
		RequestedReviewers: reviewers,
		RequestedTeamSlugs: teamSlugs,
		CreatedAt:          pr.GetCreatedAt().Time,
		UpdatedAt:          pr.GetUpdatedAt().Time,
		MergedAt:           pr.GetMergedAt().Time,
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
