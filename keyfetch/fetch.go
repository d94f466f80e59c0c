/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

// Package keyfetch downloads a public-key URL to a local path and reports
// the response's freshness headers, per spec.md section 4.C.
package keyfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Metadata is the transient freshness information captured from a fetch's
// HTTP response. Its lifetime is the fetch call only.
type Metadata struct {
	CacheControl string
	Expires      string
}

// Fetcher downloads public keys over http/https, honoring a per-call
// timeout. Following the teacher's pattern of a token-bucket limiter keyed
// per caller (server/limiter.go limits per entity ID), Fetcher throttles
// outbound requests per destination host so that repeated cold misses for
// the same certificate server can't turn into a request storm. This is a
// defensive rate limit only: it never substitutes for the "at most one
// fetch per get_local_key_path call" invariant enforced by keycache.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration

	limit rate.Limit
	burst int
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// New constructs a Fetcher with the given per-request timeout. perHostLimit
// and perHostBurst configure the token bucket applied per destination host;
// pass rate.Inf to disable throttling.
func New(timeout time.Duration, perHostLimit rate.Limit, perHostBurst int) *Fetcher {
	return &Fetcher{
		client:  &http.Client{},
		timeout: timeout,
		limit:   perHostLimit,
		burst:   perHostBurst,
		hosts:   make(map[string]*rate.Limiter),
	}
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.hosts[host]; ok {
		return l
	}
	l := rate.NewLimiter(f.limit, f.burst)
	f.hosts[host] = l
	return l
}

// Fetch downloads url's body to targetPath, creating parent directories as
// needed. On any failure (bad scheme, timeout, DNS failure, non-2xx
// response, I/O error), targetPath is left exactly as it was before the
// call: the download is written to a sibling temp file and only renamed
// into place once it has been fully and successfully received.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, targetPath string) (Metadata, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Metadata{}, fmt.Errorf("keyfetch: parse url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Metadata{}, fmt.Errorf("keyfetch: unsupported scheme %q", parsed.Scheme)
	}

	if err := f.limiterFor(parsed.Host).Wait(ctx); err != nil {
		return Metadata{}, fmt.Errorf("keyfetch: rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("keyfetch: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("keyfetch: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Metadata{}, fmt.Errorf("keyfetch: fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	meta := Metadata{
		CacheControl: resp.Header.Get("Cache-Control"),
		Expires:      resp.Header.Get("Expires"),
	}

	if err := writeAtomically(targetPath, resp.Body); err != nil {
		return Metadata{}, fmt.Errorf("keyfetch: write %s: %w", targetPath, err)
	}

	return meta, nil
}

// writeAtomically streams body into a temp file alongside targetPath, then
// renames it into place. On any error the temp file is removed and
// targetPath is left untouched.
func writeAtomically(targetPath string, body io.Reader) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".keyfetch-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close() //nolint:errcheck
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
