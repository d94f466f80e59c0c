/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

// Package engine is the explicit engine context spec.md section 9 asks
// for in place of package-level globals: it owns the kvstore, keyindex,
// keyfetch, and keycache instances and exposes Sign/Verify as methods on
// a value the caller constructs once and can Close.
package engine

import (
	"context"
	"fmt"

	"github.com/stirshaken/core/internal/config"
	"github.com/stirshaken/core/keycache"
	"github.com/stirshaken/core/keyfetch"
	"github.com/stirshaken/core/keyindex"
	"github.com/stirshaken/core/kvstore"
	"github.com/stirshaken/core/passport"
	"github.com/stirshaken/core/registry"
	"github.com/stirshaken/core/sserr"
	"golang.org/x/time/rate"
)

// Engine wires components B through E (keyindex, keyfetch, keycache,
// passport) together around one configuration and one persistent store,
// per spec.md section 9's design note.
type Engine struct {
	cfg      config.Config
	store    *kvstore.Store
	index    *keyindex.Index
	fetcher  *keyfetch.Fetcher
	cache    *keycache.Manager
	registry registry.Registry
}

// New opens the persistent store at cfg.StorePath and constructs the
// index/fetcher/cache chain. registry is the external certificate
// collaborator used for signing (spec.md section 6); it may be nil if
// the engine will only ever be asked to Verify.
func New(cfg config.Config, reg registry.Registry) (*Engine, error) {
	store, err := kvstore.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}

	index, err := keyindex.New(store, cfg.CacheMaxSize)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("engine: build index: %w", err)
	}

	fetcher := keyfetch.New(cfg.CurlTimeout, rate.Limit(cfg.PerHostFetchLimit), cfg.PerHostFetchBurst)
	cache := keycache.New(index, fetcher, cfg.DataDir)

	return &Engine{
		cfg:      cfg,
		store:    store,
		index:    index,
		fetcher:  fetcher,
		cache:    cache,
		registry: reg,
	}, nil
}

// Close releases the underlying persistent store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Verify implements spec.md section 4.E's verification operation, routed
// through this engine's key cache manager.
func (e *Engine) Verify(ctx context.Context, headerStr, payloadStr, sigB64, algStr, publicKeyURL string) (*passport.Result, *sserr.Error) {
	return passport.Verify(ctx, headerStr, payloadStr, sigB64, algStr, publicKeyURL, e.cache)
}

// Sign implements spec.md section 4.E's signing operation, looking up the
// caller's certificate in the registry this engine was constructed with.
func (e *Engine) Sign(doc map[string]interface{}, opts passport.SignOptions) (*passport.Result, *sserr.Error) {
	if e.registry == nil {
		return nil, sserr.CryptoInternalError(fmt.Errorf("engine: no certificate registry configured"))
	}
	return passport.Sign(doc, e.registry, opts)
}

// SignOptionsFromConfig builds the SignOptions this engine's configuration
// calls for, preserving the legacy_iat_milliseconds compatibility flag.
func (e *Engine) SignOptionsFromConfig() passport.SignOptions {
	opts := passport.DefaultSignOptions()
	opts.LegacyIatMilliseconds = e.cfg.LegacyIatMilliseconds
	return opts
}
