package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StatsStore = (*StatsRepo)(nil)

// StatsRepo is the SQLite implementation of the StatsStore port interface.
type StatsRepo struct {
	db *DB
}

// NewStatsRepo creates a new StatsRepo backed by the given DB.
func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Upsert inserts or replaces the stats row for one scope.
func (r *StatsRepo) Upsert(ctx context.Context, stats model.ScopeStats) error {
	const query = `
		INSERT INTO scope_stats (scope_key, total_open, assigned_to_user, review_requests, needs_review, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope_key) DO UPDATE SET
			total_open = excluded.total_open,
			assigned_to_user = excluded.assigned_to_user,
			review_requests = excluded.review_requests,
			needs_review = excluded.needs_review,
			last_updated = excluded.last_updated
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		stats.ScopeKey, stats.TotalOpen, stats.AssignedToUser, stats.ReviewRequests, stats.NeedsReview,
		formatTime(stats.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("upsert stats for %s: %w", stats.ScopeKey, err)
	}

	return nil
}

// Get retrieves the stats for one scope. Returns nil, nil when the scope has
// never been polled.
func (r *StatsRepo) Get(ctx context.Context, scopeKey string) (*model.ScopeStats, error) {
	const query = `
		SELECT scope_key, total_open, assigned_to_user, review_requests, needs_review, last_updated
		FROM scope_stats
		WHERE scope_key = ?
	`

	stats, err := scanStats(r.db.Reader.QueryRowContext(ctx, query, scopeKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stats for %s: %w", scopeKey, err)
	}

	return stats, nil
}

// ListAll returns the stats of every scope ordered by key.
func (r *StatsRepo) ListAll(ctx context.Context) ([]model.ScopeStats, error) {
	const query = `
		SELECT scope_key, total_open, assigned_to_user, review_requests, needs_review, last_updated
		FROM scope_stats
		ORDER BY scope_key
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	defer rows.Close()

	var all []model.ScopeStats
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		all = append(all, *stats)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}

	return all, nil
}

func scanStats(s scanner) (*model.ScopeStats, error) {
	var stats model.ScopeStats
	var lastUpdated string

	err := s.Scan(&stats.ScopeKey, &stats.TotalOpen, &stats.AssignedToUser, &stats.ReviewRequests, &stats.NeedsReview, &lastUpdated)
	if err != nil {
		return nil, err
	}

	stats.LastUpdated, err = parseTime(lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("parse last_updated: %w", err)
	}

	return &stats, nil
}
