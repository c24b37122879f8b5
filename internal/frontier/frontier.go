package frontier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/nao1215/sitecrawler/internal/model"
)

// ErrAlreadySeen is returned by Admit for URLs that were already queued,
// dispatched or visited.
var ErrAlreadySeen = errors.New("url already seen")

// ErrAlreadyBlocked is returned by Admit for a URL that robots rules rejected
// earlier. It matches both ErrAlreadySeen and model.ErrRobotsDisallowed, so
// callers can drop the link without counting the rejection twice.
var ErrAlreadyBlocked = fmt.Errorf("%w: %w", ErrAlreadySeen, model.ErrRobotsDisallowed)

// RobotsChecker reports whether robots rules allow fetching u.
type RobotsChecker interface {
	Allowed(ctx context.Context, u *url.URL) bool
}

// Item is a URL handed out by DequeueBatch.
type Item struct {
	// Key is the identity of the URL.
	Key model.NormalizedURL
	// Target is the address to fetch: the discovered URL without its fragment.
	Target string
	// Parent is the page the URL was discovered on. Empty for the seed.
	Parent model.NormalizedURL
}

// Frontier is the shared record of pending, in-flight and visited URLs.
// It is safe for concurrent use by every worker of a crawl.
//
// A key moves through the frontier in one direction only:
//
//	pending -> in flight (DequeueBatch) -> visited (MarkVisited)
//
// Requeue is the single way back, used for items whose worker never started.
// Keys rejected by robots rules are remembered in a separate blocked set so a
// later reference to the same URL neither refetches robots.txt nor becomes a
// structure edge.
//
// Design decision: We keep a bloom filter in front of the four key maps.
// Most discovered links on a large site are already known, and most unknown
// links are answered by the filter alone. The maps stay the source of truth,
// so a false positive only costs the map lookups it would have done anyway.
type Frontier struct {
	scope    *Scope
	patterns *Patterns
	robots   RobotsChecker
	maxPages int
	logger   *slog.Logger

	mu        sync.Mutex
	filter    *bloom.BloomFilter
	queued    map[model.NormalizedURL]struct{}
	inflight  map[model.NormalizedURL]struct{}
	visited   map[model.NormalizedURL]struct{}
	blocked   map[model.NormalizedURL]struct{}
	pending   []Item
	completed int
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithRobots enables robots checks on admission.
func WithRobots(r RobotsChecker) Option {
	return func(f *Frontier) {
		f.robots = r
	}
}

// WithMaxPages sets the page cap. Zero means unlimited.
func WithMaxPages(n int) Option {
	return func(f *Frontier) {
		if n > 0 {
			f.maxPages = n
		}
	}
}

// WithPatterns replaces the default path filter.
func WithPatterns(p *Patterns) Option {
	return func(f *Frontier) {
		f.patterns = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Frontier) {
		f.logger = logger
	}
}

// New creates a Frontier bounded by scope.
func New(scope *Scope, opts ...Option) *Frontier {
	f := &Frontier{
		scope:    scope,
		queued:   make(map[model.NormalizedURL]struct{}),
		inflight: make(map[model.NormalizedURL]struct{}),
		visited:  make(map[model.NormalizedURL]struct{}),
		blocked:  make(map[model.NormalizedURL]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.patterns == nil {
		f.patterns = NewPatterns(nil, nil)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	estimate := uint(100_000)
	if f.maxPages > 0 {
		estimate = uint(max(f.maxPages*50, 10_000))
	}
	f.filter = bloom.NewWithEstimates(estimate, 0.001)
	return f
}

// Scope returns the crawl scope.
func (f *Frontier) Scope() *Scope {
	return f.scope
}

// InScope reports whether raw is a crawlable URL inside the domain scope.
// Pattern and robots checks are not applied.
func (f *Frontier) InScope(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return f.scope.Contains(u)
}

// Enqueue admits raw if it passes every check. It reports whether the URL was queued.
func (f *Frontier) Enqueue(ctx context.Context, raw string) bool {
	_, err := f.Admit(ctx, raw, "")
	return err == nil
}

// Admit queues raw, discovered on parent, and returns its key.
// It returns model.ErrScopeRejected, model.ErrRobotsDisallowed,
// ErrAlreadyBlocked or ErrAlreadySeen when the URL is not queued.
func (f *Frontier) Admit(ctx context.Context, raw string, parent model.NormalizedURL) (model.NormalizedURL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !f.scope.Contains(u) {
		return "", model.ErrScopeRejected
	}
	u.Fragment = ""
	u.RawFragment = ""

	key, err := model.NormalizeURL(u)
	if err != nil {
		return "", model.ErrScopeRejected
	}
	if !f.patterns.Allowed(u.Path) {
		return key, model.ErrScopeRejected
	}

	f.mu.Lock()
	err = f.seenLocked(key)
	f.mu.Unlock()
	if err != nil {
		return key, err
	}

	if f.robots != nil && !f.robots.Allowed(ctx, u) {
		f.mu.Lock()
		if err := f.seenLocked(key); err != nil {
			f.mu.Unlock()
			return key, err
		}
		f.blocked[key] = struct{}{}
		f.filter.AddString(string(key))
		f.mu.Unlock()
		f.logger.Debug("robots disallowed", "url", key)
		return key, model.ErrRobotsDisallowed
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.seenLocked(key); err != nil {
		return key, err
	}
	f.filter.AddString(string(key))
	f.queued[key] = struct{}{}
	f.pending = append(f.pending, Item{Key: key, Target: u.String(), Parent: parent})
	return key, nil
}

// seenLocked returns ErrAlreadyBlocked for a key robots rules rejected,
// ErrAlreadySeen for a queued, in-flight or visited key, and nil otherwise.
// The bloom filter answers most unseen URLs without touching the maps.
func (f *Frontier) seenLocked(key model.NormalizedURL) error {
	if !f.filter.TestString(string(key)) {
		return nil
	}
	if _, ok := f.blocked[key]; ok {
		return ErrAlreadyBlocked
	}
	if _, ok := f.queued[key]; ok {
		return ErrAlreadySeen
	}
	if _, ok := f.inflight[key]; ok {
		return ErrAlreadySeen
	}
	if _, ok := f.visited[key]; ok {
		return ErrAlreadySeen
	}
	return nil
}

// DequeueBatch removes up to n pending URLs in FIFO order and marks them in flight.
// With a page cap it never hands out more URLs than the cap leaves room for,
// and it returns nil once the cap is reached.
func (f *Frontier) DequeueBatch(n int) []Item {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.maxPages > 0 {
		room := f.maxPages - f.completed - len(f.inflight)
		n = min(n, room)
	}
	n = min(n, len(f.pending))
	if n <= 0 {
		return nil
	}

	batch := make([]Item, n)
	copy(batch, f.pending[:n])
	f.pending = f.pending[n:]
	for _, item := range batch {
		delete(f.queued, item.Key)
		f.inflight[item.Key] = struct{}{}
	}
	return batch
}

// Requeue puts items that were dequeued but never fetched back at the
// front of the pending queue, in their original order.
func (f *Frontier) Requeue(items ...Item) {
	f.mu.Lock()
	defer f.mu.Unlock()

	back := make([]Item, 0, len(items)+len(f.pending))
	for _, item := range items {
		if _, ok := f.inflight[item.Key]; !ok {
			continue
		}
		delete(f.inflight, item.Key)
		f.queued[item.Key] = struct{}{}
		back = append(back, item)
	}
	f.pending = append(back, f.pending...)
}

// MarkVisited records the completion of a fetch attempt, successful or not.
// It reports false when key was already visited.
func (f *Frontier) MarkVisited(key model.NormalizedURL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[key]; ok {
		return false
	}
	delete(f.inflight, key)
	delete(f.queued, key)
	f.visited[key] = struct{}{}
	f.filter.AddString(string(key))
	f.completed++
	return true
}

// Exhausted reports whether the page cap has been reached.
func (f *Frontier) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxPages > 0 && f.completed >= f.maxPages
}

// Empty reports whether nothing is pending or in flight.
func (f *Frontier) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) == 0 && len(f.inflight) == 0
}

// Stats is a point-in-time view of the frontier sizes.
type Stats struct {
	Pending  int
	InFlight int
	Visited  int
	Blocked  int
}

// Stats returns the current sizes.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Pending:  len(f.pending),
		InFlight: len(f.inflight),
		Visited:  len(f.visited),
		Blocked:  len(f.blocked),
	}
}

// IsVisited reports whether key has completed.
func (f *Frontier) IsVisited(key model.NormalizedURL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[key]
	return ok
}
