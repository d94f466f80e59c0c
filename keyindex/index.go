/*
 * Copyright (c) 2020-2025 Joe Siltberg
 *
 * You should have received a copy of the MIT license along with this project.
 * If not, see <https://opensource.org/licenses/MIT>.
 */

// Package keyindex implements the persistent key index: the durable binding
// from a public-key URL to a local file path and an expiration time, and the
// bounded-size LRU eviction spec.md's cache_max_size setting calls for.
package keyindex

import (
	"container/list"
	"os"
	"strconv"
	"sync"

	"github.com/stirshaken/core/keyurl"
	"github.com/stirshaken/core/kvstore"
)

// ReverseFamily is the family name for the url -> digest reverse index.
const ReverseFamily = "STIR_SHAKEN"

const (
	subkeyPath       = "path"
	subkeyExpiration = "expiration"
)

// Index is the persistent key index described in spec section 4.B. It is
// safe for concurrent use: each store read or write is a single kvstore
// call, and the in-memory LRU tracker is guarded by mu. The store calls are
// made outside mu, so a multi-step method such as Put or Remove is not
// atomic as a whole with respect to other callers.
type Index struct {
	store   *kvstore.Store
	maxSize int

	mu    sync.Mutex
	lru   *list.List               // each Element.Value is a url string, front = most recently used
	byURL map[string]*list.Element // url -> its element in lru
}

// New constructs an Index backed by store. maxSize <= 0 disables eviction.
// Any URLs already present in the reverse family (e.g. from a previous
// process) are seeded into the LRU tracker so restart doesn't make the
// index appear empty to the eviction policy; their relative order across
// the restart boundary is not preserved, since the store doesn't persist
// access recency, only presence.
func New(store *kvstore.Store, maxSize int) (*Index, error) {
	idx := &Index{
		store:   store,
		maxSize: maxSize,
		lru:     list.New(),
		byURL:   make(map[string]*list.Element),
	}

	urls, err := store.Keys(ReverseFamily)
	if err != nil {
		return nil, err
	}
	for _, url := range urls {
		idx.byURL[url] = idx.lru.PushBack(url)
	}

	return idx, nil
}

// touch marks url as most recently used, inserting it if untracked.
// Caller must hold mu.
func (idx *Index) touch(url string) {
	if el, ok := idx.byURL[url]; ok {
		idx.lru.MoveToFront(el)
		return
	}
	idx.byURL[url] = idx.lru.PushFront(url)
}

// untrack removes url from the LRU tracker. Caller must hold mu.
func (idx *Index) untrack(url string) {
	if el, ok := idx.byURL[url]; ok {
		idx.lru.Remove(el)
		delete(idx.byURL, url)
	}
}

// Put binds url to path, recording the reverse mapping. It does not set an
// expiration; callers stamp that separately with SetExpiration.
func (idx *Index) Put(url, path string) error {
	digest := keyurl.Digest(url)

	if err := idx.store.Put(digest, subkeyPath, path); err != nil {
		return err
	}
	if err := idx.store.Put(ReverseFamily, url, digest); err != nil {
		return err
	}

	idx.mu.Lock()
	idx.touch(url)
	evictURL, shouldEvict := idx.victimLocked()
	idx.mu.Unlock()

	if shouldEvict {
		return idx.Remove(evictURL)
	}
	return nil
}

// victimLocked returns the least-recently-used url to evict, if the index
// is over capacity. Caller must hold mu.
func (idx *Index) victimLocked() (string, bool) {
	if idx.maxSize <= 0 || idx.lru.Len() <= idx.maxSize {
		return "", false
	}
	back := idx.lru.Back()
	if back == nil {
		return "", false
	}
	return back.Value.(string), true
}

// GetPath returns the local path bound to url, or "" if there is none. This
// read is soft: it never fails, matching the store's read contract.
func (idx *Index) GetPath(url string) string {
	digest, ok, err := idx.store.Get(ReverseFamily, url)
	if err != nil || !ok {
		return ""
	}

	path, ok, err := idx.store.Get(digest, subkeyPath)
	if err != nil || !ok {
		return ""
	}

	idx.mu.Lock()
	idx.touch(url)
	idx.mu.Unlock()

	return path
}

// SetExpiration stamps url's expiration as an absolute unix-seconds value.
func (idx *Index) SetExpiration(url string, absSeconds int64) error {
	digest := keyurl.Digest(url)
	return idx.store.Put(digest, subkeyExpiration, strconv.FormatInt(absSeconds, 10))
}

// GetExpiration returns url's stamped expiration, or 0 if there is none or
// it can't be parsed (both signal "unknown/expired" per spec section 3).
func (idx *Index) GetExpiration(url string) int64 {
	digest, ok, err := idx.store.Get(ReverseFamily, url)
	if err != nil || !ok {
		return 0
	}

	raw, ok, err := idx.store.Get(digest, subkeyExpiration)
	if err != nil || !ok {
		return 0
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return seconds
}

// Remove deletes the reverse mapping and the per-digest family for url, and
// best-effort unlinks the file named by its path. A missing file, or a url
// with no entry at all, is not an error.
func (idx *Index) Remove(url string) error {
	digest, ok, err := idx.store.Get(ReverseFamily, url)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	idx.untrack(url)
	idx.mu.Unlock()

	if !ok {
		return nil
	}

	if path, ok, err := idx.store.Get(digest, subkeyPath); err == nil && ok && path != "" {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			// Unlinking is best-effort; a stray file is cheaper to leave
			// behind than to fail the whole eviction over.
			_ = rmErr
		}
	}

	if err := idx.store.DeleteSubtree(digest); err != nil {
		return err
	}
	return idx.store.Delete(ReverseFamily, url)
}
