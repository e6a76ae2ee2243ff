package sqlite

import (
	"fmt"
	"net/url"
	"testing"
)

// setupTestDB opens a named shared in-memory database, runs the migrations,
// and closes it when the test finishes. The name comes from t.Name() so
// parallel tests never share state; cache=shared lets the writer and reader
// pools see the same database.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so subtests with slashes stay a single
	// URI filename component.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	writer, err := openPool(dsn, 1)
	if err != nil {
		t.Fatalf("open test db writer: %v", err)
	}

	reader, err := openPool(dsn, 4)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("open test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db
}
