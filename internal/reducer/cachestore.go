package reducer

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"sentra/internal/typed"
)

// CacheStore persists the inliner's call cache to a sqlite file between CLI
// invocations, so re-reducing a large program after a small edit can skip
// re-inlining call sites it already resolved: one *sql.DB per store,
// guarded by the driver's own single-threaded access. Entries round-trip
// through typed.EncodeExpression/DecodeExpression, the same tagged-union
// wire format the CLI uses for whole programs, so a restored entry is a
// real typed.Expression the inliner can hand back, not just a diagnostic
// string.
type CacheStore struct {
	db *sql.DB
}

// OpenCacheStore opens (creating if necessary) a sqlite-backed cache store
// at path.
func OpenCacheStore(path string) (*CacheStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cachestore: open %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS call_cache (
		key TEXT PRIMARY KEY,
		result TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachestore: migrate: %w", err)
	}
	return &CacheStore{db: db}, nil
}

func (c *CacheStore) Close() error {
	return c.db.Close()
}

// Load reads every persisted (key, results) pair into a map keyed exactly
// as callCache.entries is (see cacheKey), decoding each row's JSON-encoded
// expression array back into typed.Expression values.
func (c *CacheStore) Load() (map[string][]typed.Expression, error) {
	rows, err := c.db.Query(`SELECT key, result FROM call_cache`)
	if err != nil {
		return nil, fmt.Errorf("cachestore: load: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]typed.Expression)
	for rows.Next() {
		var key, result string
		if err := rows.Scan(&key, &result); err != nil {
			return nil, fmt.Errorf("cachestore: scan: %w", err)
		}
		var raw []json.RawMessage
		if err := json.Unmarshal([]byte(result), &raw); err != nil {
			return nil, fmt.Errorf("cachestore: decode %s: %w", key, err)
		}
		exprs := make([]typed.Expression, len(raw))
		for i, r := range raw {
			e, err := typed.DecodeExpression(r)
			if err != nil {
				return nil, fmt.Errorf("cachestore: decode %s[%d]: %w", key, i, err)
			}
			exprs[i] = e
		}
		out[key] = exprs
	}
	return out, rows.Err()
}

// Save persists one cache entry, overwriting any prior value under the
// same key.
func (c *CacheStore) Save(key string, exprs []typed.Expression) error {
	raw := make([]json.RawMessage, len(exprs))
	for i, e := range exprs {
		enc, err := typed.EncodeExpression(e)
		if err != nil {
			return fmt.Errorf("cachestore: encode %s[%d]: %w", key, i, err)
		}
		raw[i] = enc
	}
	result, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("cachestore: marshal %s: %w", key, err)
	}
	_, err = c.db.Exec(`INSERT INTO call_cache (key, result) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET result = excluded.result`, key, string(result))
	if err != nil {
		return fmt.Errorf("cachestore: save: %w", err)
	}
	return nil
}

// SaveAll persists every entry currently in cache.
func (c *CacheStore) SaveAll(cache *callCache) error {
	for key, exprs := range cache.entries {
		if err := c.Save(key, exprs); err != nil {
			return err
		}
	}
	return nil
}
