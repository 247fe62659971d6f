// Package cache stores assembled images in SQLite, keyed by the
// fingerprint of the checked program they were built from.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/pix/compiler"
	"github.com/chazu/pix/compiler/hash"
	"github.com/chazu/pix/pkg/bytecode"
)

var log = commonlog.GetLogger("pix.cache")

// ErrNotFound indicates no image is stored under the requested key.
var ErrNotFound = errors.New("image not found")

// Store is an image cache backed by one SQLite database file.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		key     TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		image   BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores img under key, replacing any previous image.
func (s *Store) Put(key string, img *bytecode.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := img.Marshal()
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO images (key, name, image, created) VALUES (?, ?, ?, ?)",
		key, img.Name, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	return nil
}

// Get loads the image stored under key.
func (s *Store) Get(key string) (*bytecode.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow("SELECT image FROM images WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}

	img, err := bytecode.UnmarshalImage(data)
	if err != nil {
		return nil, fmt.Errorf("decoding cached image %s: %w", key, err)
	}
	return img, nil
}

// Delete removes the image stored under key, if any.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM images WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

// Prune removes images stored before cutoff and returns how many were
// removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM images WHERE created < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning images: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of cached images.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting images: %w", err)
	}
	return n, nil
}

// Build returns the image for src, from the cache when the checked program
// has been built before for the same memory size. The bool reports a hit.
func (s *Store) Build(name, src string, opts compiler.Options) (*bytecode.Image, bool, error) {
	opts = opts.WithDefaults()

	prog, err := compiler.Analyze(src, opts)
	if err != nil {
		return nil, false, err
	}
	key := hash.Key(hash.HashProgram(prog, opts.MemorySize))

	img, err := s.Get(key)
	switch {
	case err == nil:
		log.Debugf("cache hit %s for %s", key[:12], name)
		return img, true, nil
	case !errors.Is(err, ErrNotFound):
		log.Warningf("cache lookup failed, rebuilding: %s", err)
	}

	entries, err := compiler.Generate(prog, opts.MemorySize)
	if err != nil {
		return nil, false, err
	}
	res := &compiler.Result{Program: prog, Entries: entries, MemorySize: opts.MemorySize}
	img, err = res.Image(name)
	if err != nil {
		return nil, false, err
	}
	if err := s.Put(key, img); err != nil {
		return nil, false, err
	}
	log.Debugf("cache store %s for %s", key[:12], name)
	return img, false, nil
}
