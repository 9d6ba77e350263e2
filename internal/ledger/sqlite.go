package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teemow/inboxreply/internal/logging"
)

const schema = `CREATE TABLE IF NOT EXISTS seen_messages (
	id         TEXT PRIMARY KEY,
	first_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLite is a Ledger that survives restarts. Ids are loaded into memory on
// open and written through on every MarkSeen; the in-memory set stays
// authoritative, so a failed write is logged and never loses an id for the
// running process.
type SQLite struct {
	mem    *Memory
	db     *sql.DB
	logger logging.Logger
}

// OpenSQLite opens (or creates) the ledger database at path.
func OpenSQLite(path string, logger logging.Logger) (*SQLite, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("ledger: creating directory failed: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening sqlite database failed: %w", err)
	}
	// A single writer keeps sqlite from returning SQLITE_BUSY on write-through.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: connecting to sqlite database failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: creating schema failed: %w", err)
	}

	l := &SQLite{mem: NewMemory(), db: db, logger: logger}
	if err := l.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLite) load() error {
	rows, err := l.db.Query(`SELECT id FROM seen_messages`)
	if err != nil {
		return fmt.Errorf("ledger: sqlite query failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("ledger: scanning sqlite row failed: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("ledger: iterating sqlite rows failed: %w", err)
	}
	l.mem.MarkSeen(ids...)
	return nil
}

// Seen reports whether id is in the ledger.
func (l *SQLite) Seen(id string) bool {
	return l.mem.Seen(id)
}

// MarkSeen adds ids to the ledger and persists the new ones.
func (l *SQLite) MarkSeen(ids ...string) {
	added := l.mem.markNew(ids)
	if len(added) == 0 {
		return
	}
	if err := l.persist(added); err != nil {
		l.logger.Warn("failed to persist seen message ids",
			"count", len(added),
			logging.Err(err))
	}
}

func (l *SQLite) persist(ids []string) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("ledger: begin transaction failed: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO seen_messages (id) VALUES (?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("ledger: prepare insert failed: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ledger: insert %s failed: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit failed: %w", err)
	}
	return nil
}

// Len returns the number of ids recorded.
func (l *SQLite) Len() int {
	return l.mem.Len()
}

// Close closes the underlying database.
func (l *SQLite) Close() error {
	return l.db.Close()
}
