// Package cache stores compiled programs in SQLite, keyed by source hash.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/clasp/vm"
	"github.com/chazu/clasp/vm/image"
	_ "modernc.org/sqlite"
)

// Cache is a program cache backed by a SQLite database.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		hash TEXT PRIMARY KEY,
		image BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating table: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Path returns the database location.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the program stored under hash. A stored image that no longer
// decodes is treated as a miss.
func (c *Cache) Get(hash string) (*vm.Program, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	err := c.db.QueryRow("SELECT image FROM programs WHERE hash = ?", hash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: querying program: %w", err)
	}
	p, err := image.Unmarshal(data)
	if err != nil {
		return nil, false, nil
	}
	return p, true, nil
}

// Put stores p under hash, replacing any previous entry.
func (c *Cache) Put(hash string, p *vm.Program) error {
	data, err := image.Marshal(p)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO programs (hash, image, created) VALUES (?, ?, ?)",
		hash, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: saving program: %w", err)
	}
	return nil
}

// Len returns the number of cached programs.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM programs").Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: counting programs: %w", err)
	}
	return n, nil
}
