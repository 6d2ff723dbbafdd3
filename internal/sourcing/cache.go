package sourcing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"outreach_backend/internal/provider/apollo"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CacheRepository stores provider search pages so that re-walking the same
// offset window (daily runs, restarts) does not re-bill the search API.
type CacheRepository struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewCacheRepository creates the page cache. Pages older than ttl are
// treated as misses.
func NewCacheRepository(pool *pgxpool.Pool, ttl time.Duration) *CacheRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CacheRepository{pool: pool, ttl: ttl}
}

// FiltersKey derives the cache key for a filter set.
func FiltersKey(filters apollo.SearchFilters) string {
	encoded, err := json.Marshal(filters)
	if err != nil {
		return "invalid"
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached page, or ok=false on miss or expiry.
func (r *CacheRepository) Get(ctx context.Context, key string, page int) ([]apollo.Person, bool) {
	query := `SELECT payload FROM lead_source_cache
		WHERE filters_hash = $1 AND page = $2 AND fetched_at > $3`

	var payload []byte
	if err := r.pool.QueryRow(ctx, query, key, page, time.Now().UTC().Add(-r.ttl)).Scan(&payload); err != nil {
		return nil, false
	}

	var people []apollo.Person
	if err := json.Unmarshal(payload, &people); err != nil {
		return nil, false
	}
	return people, true
}

// Put stores one search page, replacing any stale copy.
func (r *CacheRepository) Put(ctx context.Context, key string, page int, people []apollo.Person) error {
	payload, err := json.Marshal(people)
	if err != nil {
		return fmt.Errorf("failed to encode search page: %w", err)
	}

	query := `
		INSERT INTO lead_source_cache (filters_hash, page, payload, fetched_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (filters_hash, page) DO UPDATE SET
			payload = EXCLUDED.payload,
			fetched_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, key, page, payload); err != nil {
		return fmt.Errorf("failed to cache search page: %w", err)
	}
	return nil
}
