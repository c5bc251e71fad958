// Package store reads the Apple iMessage persistent store: the message,
// chat, handle and attachment tables plus their join tables. All access is
// read-only.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"
)

// guidCacheSize bounds the point-lookup cache used for reply-parent
// resolution.
const guidCacheSize = 2048

// ErrStoreOpen wraps any failure to open or verify the backing store.
var ErrStoreOpen = errors.New("cannot open message store")

// CorruptRow reports a row missing a required column; it aborts the current
// conversation.
type CorruptRow struct {
	RowID int64
	Field string
}

func (e *CorruptRow) Error() string {
	return fmt.Sprintf("corrupt row %d: missing required field %q", e.RowID, e.Field)
}

// DB wraps a read-only SQLite connection to a chat.db file.
type DB struct {
	*sql.DB

	guids *lru.Cache[string, *MessageRow]

	// hasThreads records whether the schema carries the Ventura-era thread
	// and edit columns; older stores get a reduced query.
	hasThreads bool
}

// Open opens chat.db read-only and probes the schema generation.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreOpen, err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreOpen, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrStoreOpen, err)
	}

	s := &DB{DB: db}
	s.guids, err = lru.New[string, *MessageRow](guidCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var n int
	err = db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('message') WHERE name = 'thread_originator_guid'`,
	).Scan(&n)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: schema probe: %v", ErrStoreOpen, err)
	}
	s.hasThreads = n > 0
	return s, nil
}
