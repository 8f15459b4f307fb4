package api

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/samcharles93/nextword/internal/predict"
)

// DefaultCacheTTL is how long a prediction is served from the cache.
const DefaultCacheTTL = 10 * time.Minute

// DefaultCacheCapacity bounds the number of cached predictions.
const DefaultCacheCapacity = 1024

// PredictionStore caches predictions keyed by predict.Request.Key. Entries
// expire after the TTL and are dropped whenever the model is reloaded.
// The store runs no background goroutine: Get never returns an expired entry
// and Save prunes expired entries before inserting.
type PredictionStore struct {
	cache *ttlcache.Cache[string, *predict.Prediction]
}

// NewPredictionStore returns a store holding at most capacity entries. A
// non-positive ttl disables caching.
func NewPredictionStore(ttl time.Duration, capacity uint64) *PredictionStore {
	if ttl <= 0 {
		return &PredictionStore{}
	}
	if capacity == 0 {
		capacity = DefaultCacheCapacity
	}
	c := ttlcache.New[string, *predict.Prediction](
		ttlcache.WithTTL[string, *predict.Prediction](ttl),
		ttlcache.WithCapacity[string, *predict.Prediction](capacity),
		ttlcache.WithDisableTouchOnHit[string, *predict.Prediction](),
	)
	return &PredictionStore{cache: c}
}

// Get returns the cached prediction for key, or nil.
func (s *PredictionStore) Get(key string) *predict.Prediction {
	if s == nil || s.cache == nil {
		return nil
	}
	item := s.cache.Get(key)
	if item == nil {
		return nil
	}
	return item.Value()
}

func (s *PredictionStore) Save(key string, p *predict.Prediction) {
	if s == nil || s.cache == nil {
		return
	}
	s.cache.DeleteExpired()
	s.cache.Set(key, p, ttlcache.DefaultTTL)
}

// Clear drops every entry.
func (s *PredictionStore) Clear() {
	if s == nil || s.cache == nil {
		return
	}
	s.cache.DeleteAll()
}

func (s *PredictionStore) Len() int {
	if s == nil || s.cache == nil {
		return 0
	}
	return s.cache.Len()
}
