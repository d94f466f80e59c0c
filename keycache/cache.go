/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

// Package keycache composes the URL digest, persistent index, and fetcher
// into spec.md section 4.D's key cache manager: "give me a valid local key
// for this URL", fetching and re-fetching at most once per call.
package keycache

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/stirshaken/core/keyfetch"
	"github.com/stirshaken/core/keyindex"
	"github.com/stirshaken/core/passport"
	"github.com/stirshaken/core/sserr"
	"github.com/stirshaken/core/util"
)

// Manager is the key cache manager. It satisfies passport.KeyResolver.
type Manager struct {
	index   *keyindex.Index
	fetcher *keyfetch.Fetcher
	dataDir string
	now     func() time.Time
}

// New constructs a Manager. Downloaded keys are written under
// <dataDir>/keys/stir_shaken/<basename(url)>, per spec.md section 6.
func New(index *keyindex.Index, fetcher *keyfetch.Fetcher, dataDir string) *Manager {
	return &Manager{
		index:   index,
		fetcher: fetcher,
		dataDir: dataDir,
		now:     time.Now,
	}
}

func (m *Manager) defaultPath(rawURL string) string {
	base := "key"
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		if b := path.Base(parsed.Path); b != "." && b != "/" {
			base = b
		}
	}
	return filepath.Join(m.dataDir, "keys", "stir_shaken", base)
}

// GetLocalKeyPath implements the algorithm in spec.md section 4.D: at most
// one network fetch per call, re-fetching once to rescue an expired or
// unparseable local copy before giving up.
func (m *Manager) GetLocalKeyPath(ctx context.Context, rawURL string) (string, error) {
	path := m.index.GetPath(rawURL)
	alreadyFetched := false

	if path == "" {
		// Cold miss: drop any stale entry (e.g. an orphaned expiration with
		// no path) before fetching fresh.
		m.index.Remove(rawURL)

		path = m.defaultPath(rawURL)
		if err := m.fetchAndStamp(ctx, rawURL, path); err != nil {
			return "", err
		}
		alreadyFetched = true
	}

	if m.expired(rawURL) {
		m.index.Remove(rawURL)
		if alreadyFetched {
			return "", sserr.ExpiredError(fmt.Errorf("key for %s expired immediately after fetch", rawURL))
		}
		if err := m.fetchAndStamp(ctx, rawURL, path); err != nil {
			return "", err
		}
		alreadyFetched = true

		if m.expired(rawURL) {
			m.index.Remove(rawURL)
			return "", sserr.ExpiredError(fmt.Errorf("key for %s still expired after re-fetch", rawURL))
		}
	}

	if _, parseErr := passport.ParsePublicKeyFile(path); parseErr != nil {
		m.index.Remove(rawURL)
		if alreadyFetched {
			return "", sserr.KeyUnreadableError(parseErr)
		}
		if err := m.fetchAndStamp(ctx, rawURL, path); err != nil {
			return "", err
		}
		if _, parseErr := passport.ParsePublicKeyFile(path); parseErr != nil {
			m.index.Remove(rawURL)
			return "", sserr.KeyUnreadableError(parseErr)
		}
	}

	return path, nil
}

func (m *Manager) expired(rawURL string) bool {
	exp := m.index.GetExpiration(rawURL)
	return exp == 0 || exp <= m.now().Unix()
}

// fetchAndStamp performs the single fetch this call is entitled to, records
// the binding in the index, and stamps expiration per the rule in spec.md
// section 4.D.
func (m *Manager) fetchAndStamp(ctx context.Context, rawURL, path string) error {
	log.Printf("keycache: fetching key from %s", rawURL)

	meta, err := m.fetcher.Fetch(ctx, rawURL, path)
	if err != nil {
		return sserr.FetchFailedError(err)
	}

	if err := m.index.Put(rawURL, path); err != nil {
		return sserr.FetchFailedError(err)
	}

	exp := stampExpiration(meta, m.now())
	if err := m.index.SetExpiration(rawURL, exp); err != nil {
		return sserr.FetchFailedError(err)
	}

	if pub, parseErr := passport.ParsePublicKeyFile(path); parseErr == nil {
		if fp, fpErr := util.Fingerprint(pub); fpErr == nil {
			log.Printf("keycache: cached key for %s (fingerprint %s, expires %d)", rawURL, fp, exp)
		}
	}
	return nil
}

// stampExpiration implements the expiration rule in spec.md section 4.D:
// prefer Cache-Control's s-maxage, fall back to max-age, then to parsing
// Expires as an HTTP date, and finally to "now" (immediately expired) if
// neither header is usable.
func stampExpiration(meta keyfetch.Metadata, now time.Time) int64 {
	if seconds, ok := cacheControlMaxAge(meta.CacheControl); ok {
		return now.Unix() + seconds
	}

	if meta.Expires != "" {
		if t, err := http.ParseTime(meta.Expires); err == nil {
			return t.Unix()
		}
	}

	return now.Unix()
}

// cacheControlMaxAge parses a Cache-Control header value, preferring
// s-maxage over max-age per spec.md section 4.D/8.
func cacheControlMaxAge(cacheControl string) (int64, bool) {
	var maxAge int64
	var hasMaxAge bool

	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		key, value, hasValue := strings.Cut(directive, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if !hasValue {
			continue
		}

		seconds, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}

		switch key {
		case "s-maxage":
			return seconds, true
		case "max-age":
			maxAge = seconds
			hasMaxAge = true
		}
	}

	return maxAge, hasMaxAge
}
