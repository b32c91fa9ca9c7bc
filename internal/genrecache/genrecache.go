// Package genrecache persists MusicBrainz genre lookups so repeated
// runs don't re-query the same recordings. Only lookup results are
// cached here; play events themselves are never persisted.
package genrecache

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
)

type Cache struct {
	db *sql.DB
}

func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening genre cache: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func createTables(db *sql.DB) error {
	query := `
CREATE TABLE IF NOT EXISTS GenreCache (
  key TEXT PRIMARY KEY,
  genres TEXT NOT NULL,
  updated DATETIME NOT NULL
);
`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("creating GenreCache table: %w", err)
	}
	return nil
}

// cacheKey matches the legacy on-disk cache: lowercased artist and
// title joined with "::".
func cacheKey(artist, title string) string {
	return strings.ToLower(artist) + "::" + strings.ToLower(title)
}

// Get returns the cached genres for a recording. ok is false when the
// recording has never been looked up; a cached empty list is a valid
// hit (the lookup found nothing, no point repeating it).
func (c *Cache) Get(artist, title string) (genres []string, ok bool, err error) {
	var encoded string
	row := c.db.QueryRow("SELECT genres FROM GenreCache WHERE key = ?", cacheKey(artist, title))
	if err := row.Scan(&encoded); err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("reading genre cache: %w", err)
	}

	if err := json.Unmarshal([]byte(encoded), &genres); err != nil {
		return nil, false, fmt.Errorf("decoding cached genres: %w", err)
	}
	return genres, true, nil
}

// Put stores a lookup result, replacing any previous entry.
func (c *Cache) Put(artist, title string, genres []string) error {
	if genres == nil {
		genres = []string{}
	}
	encoded, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("encoding genres: %w", err)
	}

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO GenreCache (key, genres, updated) VALUES (?, ?, ?)",
		cacheKey(artist, title), string(encoded), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing genre cache: %w", err)
	}
	return nil
}
