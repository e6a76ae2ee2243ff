package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AssociationStore = (*AssociationRepo)(nil)

// AssociationRepo is the SQLite implementation of the AssociationStore port
// interface, backing the many-to-many link between pull requests and team
// scope keys.
type AssociationRepo struct {
	db *DB
}

// NewAssociationRepo creates a new AssociationRepo backed by the given DB.
func NewAssociationRepo(db *DB) *AssociationRepo {
	return &AssociationRepo{db: db}
}

// ReplaceForPR swaps the full scope-key set for one pull request inside a
// transaction, so a reader never observes a partial set.
func (r *AssociationRepo) ReplaceForPR(ctx context.Context, repoFullName string, number int, scopeKeys []string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace associations: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const deleteQuery = `DELETE FROM pr_associations WHERE repo_full_name = ? AND number = ?`
	if _, err := tx.ExecContext(ctx, deleteQuery, repoFullName, number); err != nil {
		return fmt.Errorf("clear associations for %s#%d: %w", repoFullName, number, err)
	}

	const insertQuery = `INSERT OR IGNORE INTO pr_associations (repo_full_name, number, scope_key) VALUES (?, ?, ?)`
	for _, key := range scopeKeys {
		if _, err := tx.ExecContext(ctx, insertQuery, repoFullName, number, key); err != nil {
			return fmt.Errorf("insert association %s#%d -> %s: %w", repoFullName, number, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace associations: %w", err)
	}

	return nil
}

// ListForPR returns the scope keys a pull request is associated with,
// ordered by key.
func (r *AssociationRepo) ListForPR(ctx context.Context, repoFullName string, number int) ([]string, error) {
	const query = `
		SELECT scope_key
		FROM pr_associations
		WHERE repo_full_name = ? AND number = ?
		ORDER BY scope_key
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repoFullName, number)
	if err != nil {
		return nil, fmt.Errorf("list associations for %s#%d: %w", repoFullName, number, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate associations: %w", err)
	}

	return keys, nil
}
