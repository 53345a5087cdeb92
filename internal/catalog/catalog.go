// Package catalog keeps the product alias table in step with the HZ platform.
//
// A sync pulls the variety map (code -> display name) of the in-flight OTC
// contracts, turns every display name the keyword tables do not know yet
// into an alias, and publishes a new table snapshot to the normalizer.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
	"github.com/wonny/rfqnorm/backend/pkg/redis"
)

// VarietySource lists the varieties currently traded (hz.Client)
type VarietySource interface {
	VarietyMap(ctx context.Context) (map[string]string, error)
	Address() string
}

// TableSink receives each published table snapshot (normalizer.Normalizer)
type TableSink interface {
	SetTables(tables *keywords.Tables)
}

// SyncObserver is told about every sync attempt (metrics.Metrics)
type SyncObserver interface {
	ObserveCatalogSync(err error, products int)
}

// Result summarizes one sync
type Result struct {
	Varieties int       `json:"varieties"`
	Aliases   int       `json:"aliases"`
	Products  int       `json:"products"`
	SyncedAt  time.Time `json:"synced_at"`
}

// Syncer publishes alias tables built from the variety map
// ⭐ SSOT: 카탈로그 동기화는 여기서만
type Syncer struct {
	base     *keywords.Tables
	source   VarietySource
	sink     TableSink
	cache    *redis.Cache
	cacheTTL time.Duration
	observer SyncObserver
	logger   *logger.Logger

	mu   sync.Mutex
	last *Result
	now  func() time.Time
}

// Option configures a Syncer
type Option func(*Syncer)

// WithCache caches the variety map in redis for ttl (redis.TTLVarieties when ttl <= 0)
func WithCache(cache *redis.Cache, ttl time.Duration) Option {
	return func(s *Syncer) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithObserver reports sync results
func WithObserver(o SyncObserver) Option {
	return func(s *Syncer) { s.observer = o }
}

// New creates a syncer. base defaults to keywords.Default().
func New(base *keywords.Tables, source VarietySource, sink TableSink, log *logger.Logger, opts ...Option) *Syncer {
	if base == nil {
		base = keywords.Default()
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Syncer{
		base:     base,
		source:   source,
		sink:     sink,
		cacheTTL: redis.TTLVarieties,
		logger:   log.Component("catalog"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadBase returns the built-in tables, or the tables in path when set
func LoadBase(path string) (*keywords.Tables, error) {
	if strings.TrimSpace(path) == "" {
		return keywords.Default(), nil
	}
	tables, err := keywords.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keyword tables %s: %w", path, err)
	}
	return tables, nil
}

// Sync fetches the variety map and publishes the merged tables.
// On error the previously published tables stay in place.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	result, err := s.sync(ctx)
	if s.observer != nil {
		s.observer.ObserveCatalogSync(err, result.Products)
	}
	if err != nil {
		s.logger.WithError(err).Error("Catalog sync failed")
		return Result{}, err
	}

	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"varieties": result.Varieties,
		"aliases":   result.Aliases,
		"products":  result.Products,
	}).Info("Catalog synced")
	return result, nil
}

// Refresh drops the cached variety map and syncs from HZ
func (s *Syncer) Refresh(ctx context.Context) (Result, error) {
	if s.cache != nil && s.source != nil {
		if err := s.cache.Delete(ctx, redis.VarietyMapKey(s.source.Address())); err != nil {
			s.logger.WithError(err).Warn("Failed to drop cached variety map")
		}
	}
	return s.Sync(ctx)
}

func (s *Syncer) sync(ctx context.Context) (Result, error) {
	if s.source == nil {
		return Result{}, fmt.Errorf("catalog: no variety source configured")
	}

	varieties, err := s.varieties(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch variety map: %w", err)
	}

	aliases := Aliases(varieties, s.base)
	tables := s.base.WithAliases(aliases)
	if s.sink != nil {
		s.sink.SetTables(tables)
	}

	return Result{
		Varieties: len(varieties),
		Aliases:   len(aliases),
		Products:  len(tables.Products()),
		SyncedAt:  s.now(),
	}, nil
}

func (s *Syncer) varieties(ctx context.Context) (map[string]string, error) {
	if s.cache == nil {
		return s.source.VarietyMap(ctx)
	}

	var out map[string]string
	err := s.cache.GetOrSet(ctx, redis.VarietyMapKey(s.source.Address()), &out, s.cacheTTL, func() (interface{}, error) {
		return s.source.VarietyMap(ctx)
	})
	return out, err
}

// Last returns the most recent successful sync
func (s *Syncer) Last() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}

// Aliases turns a variety map into alias -> code entries, keeping only
// display names the base tables cannot already resolve.
func Aliases(varieties map[string]string, base *keywords.Tables) map[string]string {
	out := make(map[string]string, len(varieties))
	for code, name := range varieties {
		code = strings.ToUpper(strings.TrimSpace(code))
		name = strings.TrimSpace(name)
		if code == "" || name == "" || strings.EqualFold(name, code) {
			continue
		}
		if _, known := base.ProductCode(name); known {
			continue
		}
		out[name] = code
	}
	return out
}
