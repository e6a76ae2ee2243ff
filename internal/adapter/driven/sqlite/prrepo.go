package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PRStore = (*PRRepo)(nil)

// PRRepo is the SQLite implementation of the PRStore port interface.
// String slices and the review list are serialized as JSON arrays in TEXT
// columns.
type PRRepo struct {
	db *DB
}

// NewPRRepo creates a new PRRepo backed by the given DB.
func NewPRRepo(db *DB) *PRRepo {
	return &PRRepo{db: db}
}

const prColumns = `number, repo_full_name, github_id, title, body, state, url, author, is_draft,
	       assignees, requested_reviewers, requested_team_slugs, reviews,
	       created_at, updated_at,
	       user_is_assigned, user_is_requested_reviewer, user_has_reviewed, status`

// UpsertBatch inserts or replaces a full poll result in one transaction so a
// crash mid-write never leaves a half-updated scope.
func (r *PRRepo) UpsertBatch(ctx context.Context, prs []model.PullRequest) error {
	if len(prs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO pull_requests (` + prColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_full_name, number) DO UPDATE SET
			github_id = excluded.github_id,
			title = excluded.title,
			body = excluded.body,
			state = excluded.state,
			url = excluded.url,
			author = excluded.author,
			is_draft = excluded.is_draft,
			assignees = excluded.assignees,
			requested_reviewers = excluded.requested_reviewers,
			requested_team_slugs = excluded.requested_team_slugs,
			reviews = excluded.reviews,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			user_is_assigned = excluded.user_is_assigned,
			user_is_requested_reviewer = excluded.user_is_requested_reviewer,
			user_has_reviewed = excluded.user_has_reviewed,
			status = excluded.status
	`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, pr := range prs {
		assignees, err := marshalStrings(pr.Assignees)
		if err != nil {
			return fmt.Errorf("marshal assignees for %s#%d: %w", pr.RepoFullName, pr.Number, err)
		}
		reviewers, err := marshalStrings(pr.RequestedReviewers)
		if err != nil {
			return fmt.Errorf("marshal requested reviewers for %s#%d: %w", pr.RepoFullName, pr.Number, err)
		}
		teamSlugs, err := marshalStrings(pr.RequestedTeamSlugs)
		if err != nil {
			return fmt.Errorf("marshal requested teams for %s#%d: %w", pr.RepoFullName, pr.Number, err)
		}

		reviews := pr.Reviews
		if reviews == nil {
			reviews = []model.Review{}
		}
		reviewsJSON, err := json.Marshal(reviews)
		if err != nil {
			return fmt.Errorf("marshal reviews for %s#%d: %w", pr.RepoFullName, pr.Number, err)
		}

		_, err = stmt.ExecContext(ctx,
			pr.Number, pr.RepoFullName, pr.GitHubID, pr.Title, pr.Body,
			string(pr.State), pr.URL, pr.Author, boolToInt(pr.IsDraft),
			assignees, reviewers, teamSlugs, string(reviewsJSON),
			formatTime(pr.CreatedAt), formatTime(pr.UpdatedAt),
			boolToInt(pr.UserIsAssigned), boolToInt(pr.UserIsRequestedReviewer), boolToInt(pr.UserHasReviewed),
			string(pr.Status),
		)
		if err != nil {
			return fmt.Errorf("upsert pull request %s#%d: %w", pr.RepoFullName, pr.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert batch: %w", err)
	}

	return nil
}

// GetByRepository returns all pull requests for the given repository, ordered by number.
func (r *PRRepo) GetByRepository(ctx context.Context, repoFullName string) ([]model.PullRequest, error) {
	const query = `
		SELECT ` + prColumns + `
		FROM pull_requests
		WHERE repo_full_name = ?
		ORDER BY number
	`

	return r.queryPRs(ctx, query, repoFullName)
}

// GetByNumber retrieves a single pull request by repository and number.
// Returns nil, nil if the pull request does not exist.
func (r *PRRepo) GetByNumber(ctx context.Context, repoFullName string, number int) (*model.PullRequest, error) {
	const query = `
		SELECT ` + prColumns + `
		FROM pull_requests
		WHERE repo_full_name = ? AND number = ?
	`

	pr, err := scanPR(r.db.Reader.QueryRowContext(ctx, query, repoFullName, number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get PR %s#%d: %w", repoFullName, number, err)
	}

	return pr, nil
}

// GetByScope returns the pull requests visible under a scope key. A
// repository scope matches rows directly; a team scope matches through the
// association table. The two key shapes are syntactically identical, so both
// paths are checked in one query.
func (r *PRRepo) GetByScope(ctx context.Context, scopeKey string) ([]model.PullRequest, error) {
	const query = `
		SELECT ` + prColumns + `
		FROM pull_requests p
		WHERE p.repo_full_name = ?
		   OR EXISTS (
			SELECT 1 FROM pr_associations a
			WHERE a.scope_key = ?
			  AND a.repo_full_name = p.repo_full_name
			  AND a.number = p.number
		   )
		ORDER BY updated_at DESC
	`

	return r.queryPRs(ctx, query, scopeKey, scopeKey)
}

// Delete removes a pull request by repository and number, along with its
// scope associations. Deleting an absent row is not an error; inferred
// closes may race a scope that never persisted the PR.
func (r *PRRepo) Delete(ctx context.Context, repoFullName string, number int) error {
	const prQuery = `DELETE FROM pull_requests WHERE repo_full_name = ? AND number = ?`
	const assocQuery = `DELETE FROM pr_associations WHERE repo_full_name = ? AND number = ?`

	if _, err := r.db.Writer.ExecContext(ctx, prQuery, repoFullName, number); err != nil {
		return fmt.Errorf("delete PR %s#%d: %w", repoFullName, number, err)
	}
	if _, err := r.db.Writer.ExecContext(ctx, assocQuery, repoFullName, number); err != nil {
		return fmt.Errorf("delete PR associations %s#%d: %w", repoFullName, number, err)
	}

	return nil
}

func (r *PRRepo) queryPRs(ctx context.Context, query string, args ...any) ([]model.PullRequest, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pull requests: %w", err)
	}
	defer rows.Close()

	var prs []model.PullRequest
	for rows.Next() {
		pr, err := scanPR(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		prs = append(prs, *pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull requests: %w", err)
	}

	return prs, nil
}

func scanPR(s scanner) (*model.PullRequest, error) {
	var pr model.PullRequest
	var state, status string
	var isDraft, isAssigned, isRequested, hasReviewed int
	var assigneesJSON, reviewersJSON, teamSlugsJSON, reviewsJSON string
	var createdAt, updatedAt string

	err := s.Scan(
		&pr.Number, &pr.RepoFullName, &pr.GitHubID, &pr.Title, &pr.Body,
		&state, &pr.URL, &pr.Author, &isDraft,
		&assigneesJSON, &reviewersJSON, &teamSlugsJSON, &reviewsJSON,
		&createdAt, &updatedAt,
		&isAssigned, &isRequested, &hasReviewed, &status,
	)
	if err != nil {
		return nil, err
	}

	pr.State = model.PRState(state)
	pr.Status = model.PRStatus(status)
	pr.IsDraft = isDraft != 0
	pr.UserIsAssigned = isAssigned != 0
	pr.UserIsRequestedReviewer = isRequested != 0
	pr.UserHasReviewed = hasReviewed != 0

	if err := json.Unmarshal([]byte(assigneesJSON), &pr.Assignees); err != nil {
		return nil, fmt.Errorf("unmarshal assignees: %w", err)
	}
	if err := json.Unmarshal([]byte(reviewersJSON), &pr.RequestedReviewers); err != nil {
		return nil, fmt.Errorf("unmarshal requested reviewers: %w", err)
	}
	if err := json.Unmarshal([]byte(teamSlugsJSON), &pr.RequestedTeamSlugs); err != nil {
		return nil, fmt.Errorf("unmarshal requested teams: %w", err)
	}
	if err := json.Unmarshal([]byte(reviewsJSON), &pr.Reviews); err != nil {
		return nil, fmt.Errorf("unmarshal reviews: %w", err)
	}

	pr.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	pr.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &pr, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
