// Package resolver turns the document references on items into URLs a
// browser can display.
package resolver

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/objstore"
)

// DefaultMaxAge bounds how long a resolved storage URL is reused. It must
// stay below the lifetime of the signed URLs.
const DefaultMaxAge = 50 * time.Minute

// maxParallel bounds concurrent storage lookups per Resolve call.
const maxParallel = 8

var spaceRun = regexp.MustCompile(`[\s\x{2000}-\x{200B}\x{FEFF}]+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// PrimaryRef returns the first non-empty reference in docURLs, with
// whitespace normalized, or "".
func PrimaryRef(docURLs []string) string {
	for _, u := range docURLs {
		if n := normalizeSpace(u); n != "" {
			return n
		}
	}
	return ""
}

type entry struct {
	key        string
	url        string
	signed     bool
	resolvedAt time.Time
}

// Resolver caches the primary image URL of each item shown by one gallery
// view. Entries are dropped when their item leaves the view and refreshed when
// the item's primary reference changes or a signed URL grows old.
type Resolver struct {
	signer objstore.Signer
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cache  map[string]entry
	gen    uint64
	closed bool
}

// New creates a resolver. A zero maxAge selects DefaultMaxAge.
func New(signer objstore.Signer, maxAge time.Duration, logger *slog.Logger) *Resolver {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		signer: signer,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
		cache:  make(map[string]entry),
	}
}

// Resolve returns item id → image URL for the items that have one. Items
// without a usable image are absent from the result.
//
// Only items whose primary reference is new, changed or expired are looked
// up, concurrently. The cache is updated only if the resolver is still open
// and no later Resolve call started in the meantime; a superseded call still
// returns its own results.
func (r *Resolver) Resolve(ctx context.Context, items []model.Item) map[string]string {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return map[string]string{}
	}
	r.gen++
	gen := r.gen
	now := r.now()

	allowed := make(map[string]bool, len(items))
	for _, it := range items {
		allowed[it.ID] = true
	}
	current := make(map[string]entry, len(items))
	for id, e := range r.cache {
		if allowed[id] {
			current[id] = e
		}
	}

	type job struct {
		id  string
		key string
	}
	var pending []job
	queued := make(map[string]bool)
	for _, it := range items {
		key := PrimaryRef(it.DocURLs)
		if key == "" || queued[it.ID] {
			continue
		}
		cached, ok := current[it.ID]
		if ok && cached.key == key && !(cached.signed && now.Sub(cached.resolvedAt) >= r.maxAge) {
			continue
		}
		queued[it.ID] = true
		pending = append(pending, job{id: it.ID, key: key})
	}

	if len(pending) == 0 {
		r.cache = current
		r.mu.Unlock()
		return urls(current)
	}
	r.mu.Unlock()

	// In-flight lookups finish even if the requesting client goes away.
	lookupCtx := context.WithoutCancel(ctx)
	results := make([]entry, len(pending))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, j := range pending {
		g.Go(func() error {
			results[i] = r.lookup(lookupCtx, j.id, j.key)
			return nil
		})
	}
	g.Wait()

	next := make(map[string]entry, len(current)+len(results))
	for id, e := range current {
		next[id] = e
	}
	for i, j := range pending {
		next[j.id] = results[i]
	}

	r.mu.Lock()
	if !r.closed && r.gen == gen {
		r.cache = next
	} else {
		r.logger.Debug("discarding superseded image resolution", "items", len(pending))
	}
	r.mu.Unlock()

	return urls(next)
}

func (r *Resolver) lookup(ctx context.Context, id, key string) entry {
	e := entry{key: key, resolvedAt: r.now()}
	if !objstore.IsRef(key) {
		e.url = key
		return e
	}
	e.signed = true
	ref, err := objstore.ParseRef(key)
	if err != nil {
		r.logger.Warn("invalid storage reference", "item", id, "ref", key, "error", err)
		return e
	}
	u, err := r.signer.DownloadURL(ctx, ref)
	if err != nil {
		r.logger.Warn("failed to resolve storage URL", "item", id, "ref", key, "error", err)
		return e
	}
	e.url = u
	return e
}

func urls(m map[string]entry) map[string]string {
	out := make(map[string]string, len(m))
	for id, e := range m {
		if e.url != "" {
			out[id] = e.url
		}
	}
	return out
}

// Close marks the owning view as torn down. Later Resolve calls do nothing
// and in-flight calls no longer write to the cache.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.closed = true
	r.cache = make(map[string]entry)
	r.mu.Unlock()
}

// Len returns the number of cached entries.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
