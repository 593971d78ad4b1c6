package facets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
)

const (
	// DefaultDebounce is the quiet period before a typed query is sent
	DefaultDebounce = 300 * time.Millisecond
	// DefaultCacheTTL is how long a fetched option list stays fresh
	DefaultCacheTTL = 60 * time.Second
)

// ErrClosed is returned by Search once the coordinator has been closed
var ErrClosed = errors.New("facets: coordinator closed")

// Transport fetches the raw, decoded option payload for one facet search
type Transport interface {
	Search(ctx context.Context, facet, query string) (interface{}, error)
}

// Phase is where a facet sits in its request lifecycle
type Phase int

const (
	Idle Phase = iota
	Scheduled
	InFlight
)

func (p Phase) String() string {
	switch p {
	case Scheduled:
		return "scheduled"
	case InFlight:
		return "in_flight"
	default:
		return "idle"
	}
}

// Options tunes a Coordinator
type Options struct {
	Debounce time.Duration
	CacheTTL time.Duration
	Logger   *zerolog.Logger
	Metrics  *observability.Metrics
}

// call is one transport request and everyone waiting on its result
type call struct {
	key     Key
	waiters []chan []Option
}

func (c *call) resolve(options []Option) {
	for _, w := range c.waiters {
		w <- options
	}
	c.waiters = nil
}

type facetState struct {
	// latest is the most recently requested key; only its result is applied.
	latest   Key
	pending  *call
	timer    *time.Timer
	seq      uint64
	inflight map[Key]*call
	shown    []Option
}

// Coordinator issues facet searches. Per facet it debounces typed input,
// shares one request among identical searches and discards responses for
// queries that have since been superseded. Different facets run concurrently.
type Coordinator struct {
	transport Transport
	cache     *SessionCache
	debounce  time.Duration
	logger    zerolog.Logger
	metrics   *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	facets map[string]*facetState
}

// NewCoordinator creates a coordinator on top of transport
func NewCoordinator(transport Transport, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		transport: transport,
		cache:     NewSessionCache(opts.CacheTTL),
		debounce:  opts.Debounce,
		logger:    logger.With().Str("component", "facets").Logger(),
		metrics:   opts.Metrics,
		ctx:       ctx,
		cancel:    cancel,
		facets:    make(map[string]*facetState),
	}
}

// Search returns the options for query on facet. A fresh cached list is
// returned immediately; otherwise the search is debounced and shares any
// identical request already scheduled or in flight. Transport failures never
// surface here: they resolve to the stale cached list or to no options.
// Errors are only ctx cancellation and ErrClosed.
func (c *Coordinator) Search(ctx context.Context, facet, query string) ([]Option, error) {
	key := NewKey(facet, query)
	wait := make(chan []Option, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	st := c.state(facet)
	st.latest = key

	if entry, ok := c.cache.Get(key); ok && c.cache.IsFresh(entry) {
		if st.pending != nil {
			st.timer.Stop()
			st.pending.resolve(entry.Options)
			st.pending, st.timer = nil, nil
		}
		st.shown = entry.Options
		c.mu.Unlock()
		observability.RecordFacetCache(ctx, c.metrics, facet, true)
		return entry.Options, nil
	}

	switch {
	case st.pending != nil:
		// Still typing: the pending search moves to the newest key and its
		// timer starts over. Earlier waiters get the newest result.
		st.timer.Stop()
		st.pending.key = key
		st.pending.waiters = append(st.pending.waiters, wait)
		c.schedule(facet, st)
	case st.inflight[key] != nil:
		running := st.inflight[key]
		running.waiters = append(running.waiters, wait)
	default:
		st.pending = &call{key: key, waiters: []chan []Option{wait}}
		c.schedule(facet, st)
	}
	c.mu.Unlock()
	observability.RecordFacetCache(ctx, c.metrics, facet, false)

	select {
	case options := <-wait:
		return options, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// schedule arms the debounce timer for st.pending. Must hold c.mu.
func (c *Coordinator) schedule(facet string, st *facetState) {
	st.seq++
	seq, p := st.seq, st.pending

	delay := c.debounce
	if p.key.Query == "" {
		delay = 0
	}
	st.timer = time.AfterFunc(delay, func() { c.fire(facet, p, seq) })
}

func (c *Coordinator) fire(facet string, p *call, seq uint64) {
	c.mu.Lock()
	st := c.facets[facet]
	if c.closed || st == nil || st.pending != p || st.seq != seq {
		// Superseded by a later schedule, a cache hit or Close.
		c.mu.Unlock()
		return
	}
	st.pending, st.timer = nil, nil

	key := p.key
	if running, ok := st.inflight[key]; ok {
		running.waiters = append(running.waiters, p.waiters...)
		c.mu.Unlock()
		return
	}
	if st.inflight == nil {
		st.inflight = make(map[Key]*call)
	}
	st.inflight[key] = p
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	payload, err := c.fetch(facet, key.Query)
	observability.RecordFacetTransport(c.ctx, c.metrics, facet, err)

	var options []Option
	if err == nil {
		options = NormalizeFor(payload, facet)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(st.inflight, key)

	current := !c.closed && st.latest == key
	if err != nil {
		options = c.fallback(key)
		c.logger.Warn().
			Err(err).
			Str("facet", facet).
			Str("query", key.Query).
			Int("fallback_options", len(options)).
			Msg("Facet options request failed")
	} else if current {
		c.cache.Put(key, Entry{Options: options})
	}
	if current {
		st.shown = options
	} else {
		c.logger.Debug().Str("facet", facet).Str("query", key.Query).Msg("Discarding superseded facet response")
	}
	p.resolve(options)
}

// fetch calls the transport, turning a panic into an error so the in-flight
// marker is always cleared
func (c *Coordinator) fetch(facet, query string) (payload interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("facet transport panicked: %v", r)
		}
	}()
	return c.transport.Search(c.ctx, facet, query)
}

// fallback is the stale cached list for key, or no options. Must hold c.mu.
func (c *Coordinator) fallback(key Key) []Option {
	if entry, ok := c.cache.Get(key); ok {
		return entry.Options
	}
	return []Option{}
}

func (c *Coordinator) state(facet string) *facetState {
	st, ok := c.facets[facet]
	if !ok {
		st = &facetState{inflight: make(map[Key]*call)}
		c.facets[facet] = st
	}
	return st
}

// GetCached returns the options last applied for facet without any I/O
func (c *Coordinator) GetCached(facet string) []Option {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.facets[facet]; ok && st.shown != nil {
		return append([]Option(nil), st.shown...)
	}
	if entry, ok := c.cache.Get(NewKey(facet, "")); ok {
		return append([]Option(nil), entry.Options...)
	}
	return []Option{}
}

// Phase reports the lifecycle phase of facet. A pending debounce wins over
// a request in flight.
func (c *Coordinator) Phase(facet string) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.facets[facet]
	switch {
	case !ok:
		return Idle
	case st.pending != nil:
		return Scheduled
	case len(st.inflight) > 0:
		return InFlight
	}
	return Idle
}

// Invalidate drops cached options for the given facets, or all facets when
// none are named. Requests already in flight are unaffected.
func (c *Coordinator) Invalidate(facets ...string) {
	c.cache.DeleteFacet(facets...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(facets) == 0 {
		for _, st := range c.facets {
			st.shown = nil
		}
		return
	}
	for _, f := range facets {
		if st, ok := c.facets[f]; ok {
			st.shown = nil
		}
	}
}

// Follow applies server-side invalidations until ctx is done or the channel
// closes. Each received list is passed to Invalidate; an empty list clears
// every facet.
func (c *Coordinator) Follow(ctx context.Context, invalidations <-chan []string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case facets, ok := <-invalidations:
			if !ok {
				return
			}
			c.Invalidate(facets...)
			c.logger.Debug().Strs("facets", facets).Msg("Applied remote invalidation")
		}
	}
}

// LoadAll runs the initial (empty query) load of every facet concurrently
func (c *Coordinator) LoadAll(ctx context.Context, facets ...string) (map[string][]Option, error) {
	var mu sync.Mutex
	out := make(map[string][]Option, len(facets))

	g, gctx := errgroup.WithContext(ctx)
	for _, facet := range facets {
		g.Go(func() error {
			options, err := c.Search(gctx, facet, "")
			if err != nil {
				return fmt.Errorf("load %s: %w", facet, err)
			}
			mu.Lock()
			out[facet] = options
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close cancels pending searches, aborts requests in flight and clears the
// session cache. Waiters on cancelled searches receive no options.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, st := range c.facets {
		if st.pending != nil {
			st.timer.Stop()
			st.pending.resolve([]Option{})
			st.pending, st.timer = nil, nil
		}
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.cache.DeleteFacet()
}
