package metalarchives

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS pages (
	url        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);
`

// pageCache stores raw page bodies between development runs so repeated
// exports of the same entity don't hammer the site.
type pageCache struct {
	db *sql.DB
}

func openPageCache(path string) (*pageCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(cacheSchema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &pageCache{db: db}, nil
}

func (c *pageCache) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.db.QueryRowContext(
		ctx, "SELECT body FROM pages WHERE url = ?", url,
	).Scan(&body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *pageCache) set(ctx context.Context, url string, body []byte) error {
	_, err := c.db.ExecContext(
		ctx,
		"INSERT OR REPLACE INTO pages (url, body, fetched_at) VALUES (?, ?, ?)",
		url, body, time.Now().Unix(),
	)
	return err
}

func (c *pageCache) Close() error {
	return c.db.Close()
}
