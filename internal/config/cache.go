package config

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"time"
)

// Source fetches one named setting. The second return is false when the
// setting has no stored value.
type Source interface {
	Get(ctx context.Context, name string) (string, bool, error)
}

// SQLSource reads the settings table.
type SQLSource struct{ db *sql.DB }

func NewSQLSource(db *sql.DB) *SQLSource { return &SQLSource{db: db} }

func (s *SQLSource) Get(ctx context.Context, name string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE name=$1`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

type entry struct {
	value   string
	ok      bool
	expires time.Time
}

// Cache is a process-wide read-through cache over a Source, keyed by setting
// name with explicit expiry. Injected where needed rather than a package
// singleton; the clock is swappable so tests control time.
type Cache struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewCache(src Source, ttl time.Duration) *Cache {
	return &Cache{src: src, ttl: ttl, now: time.Now, entries: map[string]entry{}}
}

// SetClock overrides the cache clock. Test hook.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// Get returns the setting value or def when unset. A source failure falls
// back to def; settings lookups never block the primary operation.
func (c *Cache) Get(ctx context.Context, name, def string) string {
	c.mu.Lock()
	e, hit := c.entries[name]
	if hit && c.now().Before(e.expires) {
		c.mu.Unlock()
		if !e.ok {
			return def
		}
		return e.value
	}
	c.mu.Unlock()

	v, ok, err := c.src.Get(ctx, name)
	if err != nil {
		return def
	}
	c.mu.Lock()
	c.entries[name] = entry{value: v, ok: ok, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	if !ok {
		return def
	}
	return v
}

func (c *Cache) GetInt(ctx context.Context, name string, def int) int {
	v := c.Get(ctx, name, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (c *Cache) GetFloat(ctx context.Context, name string, def float64) float64 {
	v := c.Get(ctx, name, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Settings exposes the exam tunables through the cache with env-provided
// defaults. Setting names match the settings table rows.
type Settings struct {
	Cache *Cache
	Cfg   Config
}

func (s *Settings) TotalQuestions(ctx context.Context) int {
	return s.Cache.GetInt(ctx, "exam_total_questions", s.Cfg.DefaultTotalQuestions)
}

func (s *Settings) DurationMinutes(ctx context.Context) int {
	return s.Cache.GetInt(ctx, "exam_duration_minutes", s.Cfg.DefaultDurationMinutes)
}

func (s *Settings) PassMarkPercent(ctx context.Context) float64 {
	return s.Cache.GetFloat(ctx, "pass_mark_percent", s.Cfg.DefaultPassMarkPercent)
}
