package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS cloud_ids (
	site_url   TEXT PRIMARY KEY,
	cloud_id   TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`

// SQLCache persists cloud ids in a SQLite database so they survive restarts.
type SQLCache struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQLCache opens (or creates) the SQLite database at path.
func OpenSQLCache(path string) (*SQLCache, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cloud id schema: %w", err)
	}
	return &SQLCache{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (c *SQLCache) Close() error {
	return c.db.Close()
}

// Get implements Cache.
func (c *SQLCache) Get(ctx context.Context, siteURL string) (string, bool, error) {
	var row struct {
		CloudID   string `db:"cloud_id"`
		ExpiresAt int64  `db:"expires_at"`
	}
	err := c.db.GetContext(ctx, &row,
		"SELECT cloud_id, expires_at FROM cloud_ids WHERE site_url = ?", siteURL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cloud id: %w", err)
	}
	if c.now().UnixMilli() >= row.ExpiresAt {
		return "", false, nil
	}
	return row.CloudID, true, nil
}

// Put implements Cache.
func (c *SQLCache) Put(ctx context.Context, siteURL, cloudID string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl %s", ttl)
	}
	_, err := c.db.ExecContext(ctx, `
INSERT INTO cloud_ids (site_url, cloud_id, expires_at) VALUES (?, ?, ?)
ON CONFLICT(site_url) DO UPDATE SET cloud_id = excluded.cloud_id, expires_at = excluded.expires_at`,
		siteURL, cloudID, c.now().Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("writing cloud id: %w", err)
	}
	return nil
}
