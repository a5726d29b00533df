package archive

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
)

// Frontier is the per-job in-memory URL queue, seen set, and admission
// counter shared by all workers of one crawl session. It is never
// persisted; it lives and dies with the session.
type Frontier struct {
	host     string
	maxPages int64

	totalEnqueued atomic.Int64

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []string
	seen    map[string]struct{}
	pending int
	stopped bool
}

// NewFrontier builds a Frontier anchored to the seed URL's authority.
func NewFrontier(seedURL string, maxPages int) (*Frontier, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("seed url %q has no host", seedURL)
	}
	f := &Frontier{
		host:     strings.ToLower(u.Host),
		maxPages: int64(maxPages),
		seen:     make(map[string]struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	return f, nil
}

// Host returns the seed authority all admitted URLs must match.
func (f *Frontier) Host() string { return f.host }

// TotalEnqueued returns the number of URLs admitted so far.
func (f *Frontier) TotalEnqueued() int64 { return f.totalEnqueued.Load() }

// EnqueueSeed admits the seed URL, subject to the same checks as any
// discovered URL.
func (f *Frontier) EnqueueSeed(seedURL string) bool {
	return f.Admit(seedURL)
}

// Admit enqueues a URL iff it is http/https, matches the seed authority
// exactly, and the page cap has not been reached. The cap check and the
// increment are two separate steps rather than one critical section, so
// concurrent discovery can overshoot maxPages by up to numWorkers-1.
func (f *Frontier) Admit(raw string) bool {
	if !SameHost(raw, f.host) {
		return false
	}
	if f.totalEnqueued.Load() >= f.maxPages {
		return false
	}
	f.totalEnqueued.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return false
	}
	f.queue = append(f.queue, raw)
	f.pending++
	f.cond.Broadcast()
	return true
}

// FilterNew returns the subset of urls never seen before and marks them
// seen, under one lock section per discovery batch. Advisory: callers
// are expected to Admit each returned URL.
func (f *Frontier) FilterNew(urls []string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	fresh := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := f.seen[u]; ok {
			continue
		}
		f.seen[u] = struct{}{}
		fresh = append(fresh, u)
	}
	return fresh
}

// Dequeue blocks until a URL is available or the frontier is stopped.
// ok is false only on stop.
func (f *Frontier) Dequeue() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if f.stopped {
			return "", false
		}
		if len(f.queue) > 0 {
			u := f.queue[0]
			f.queue = f.queue[1:]
			return u, true
		}
		f.cond.Wait()
	}
}

// TaskDone marks one dequeued URL as fully processed.
func (f *Frontier) TaskDone() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending > 0 {
		f.pending--
	}
	if f.pending == 0 {
		f.cond.Broadcast()
	}
}

// Join blocks until the queue is empty and no dequeued URL is still in
// flight, or until the frontier is stopped. A worker mid-fetch can
// still produce new work, so "queue empty" alone is not the end
// condition. Stop ends the wait even with tasks outstanding: stopped
// workers exit at the dequeue point without marking their task done.
func (f *Frontier) Join() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.pending > 0 && !f.stopped {
		f.cond.Wait()
	}
}

// Stop unblocks all dequeuers; they exit without re-entering the loop.
func (f *Frontier) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.cond.Broadcast()
}
