package jobs

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Register the modernc sqlite driver under the name "sqlite".
	_ "modernc.org/sqlite"
)

// openDB opens (or creates) the JobRecord database at path and
// configures it for an append-mostly observability store: WAL journal
// mode, a busy timeout, and NORMAL synchronous durability. Adapted from
// the teacher's connection factory (see DESIGN.md).
//
// Use ":memory:" for tests.
func openDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("jobs.openDB: create dir %q: %w", dir, mkErr)
			}
		}
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobs.openDB: open %q: %w", path, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobs.openDB: ping %q: %w", path, err)
	}

	return db, nil
}
