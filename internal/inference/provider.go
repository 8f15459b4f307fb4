package inference

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/samcharles93/nextword/internal/logger"
)

// Provider hands out the current bundle.
type Provider interface {
	WithBundle(ctx context.Context, fn func(b *Bundle) error) error
}

// CachedProvider loads the bundle on first use and keeps it until Reload.
// Concurrent first callers share a single load.
type CachedProvider struct {
	loader Loader
	log    logger.Logger
	group  singleflight.Group
	loads  atomic.Int64

	mu       sync.RWMutex
	bundle   *Bundle
	onReload []func(*Bundle)
}

func NewCachedProvider(loader Loader, log logger.Logger) *CachedProvider {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedProvider{loader: loader, log: log}
}

// Loader returns the loader the provider was built with.
func (p *CachedProvider) Loader() Loader { return p.loader }

// OnReload registers fn to run after every successful Reload.
func (p *CachedProvider) OnReload(fn func(*Bundle)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onReload = append(p.onReload, fn)
}

// Loaded reports whether a bundle is in service.
func (p *CachedProvider) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bundle != nil
}

// Bundle returns the cached bundle, loading it if needed.
func (p *CachedProvider) Bundle(ctx context.Context) (*Bundle, error) {
	p.mu.RLock()
	b := p.bundle
	p.mu.RUnlock()
	if b != nil {
		return b, nil
	}

	ch := p.group.DoChan("load", func() (any, error) {
		p.mu.RLock()
		cached := p.bundle
		p.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
		fresh, err := p.load()
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.bundle == nil {
			p.bundle = fresh
		}
		return p.bundle, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Bundle), nil
	}
}

func (p *CachedProvider) WithBundle(ctx context.Context, fn func(b *Bundle) error) error {
	b, err := p.Bundle(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(b)
}

// Reload loads the artifacts again and swaps the bundle in on success. On
// failure the previous bundle stays in service.
func (p *CachedProvider) Reload(ctx context.Context) (*Bundle, error) {
	ch := p.group.DoChan("reload", func() (any, error) {
		return p.load()
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		p.log.Warn("reload failed, keeping current model", "error", res.Err)
		return nil, fmt.Errorf("reload: %w", res.Err)
	}
	fresh := res.Val.(*Bundle)

	p.mu.Lock()
	if p.bundle == fresh {
		// shared result of a concurrent Reload that already swapped it in
		p.mu.Unlock()
		return fresh, nil
	}
	p.bundle = fresh
	hooks := slices.Clone(p.onReload)
	p.mu.Unlock()

	p.log.Info("model reloaded", "model", fresh.Model.Config().Name, "words", fresh.Vocab.Size())
	for _, fn := range hooks {
		fn(fresh)
	}
	return fresh, nil
}

func (p *CachedProvider) load() (*Bundle, error) {
	p.loads.Add(1)
	b, err := p.loader.Load()
	if err != nil {
		return nil, err
	}
	p.log.Debug("loaded artifacts", "model", b.ModelPath, "vocab", b.VocabPath)
	return b, nil
}
