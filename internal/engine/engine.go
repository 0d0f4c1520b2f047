// Package engine aggregates market comparables for an item. It serves cached
// search results when it can, fetches at most once per item at a time when
// it cannot, and applies curation and availability before averaging prices.
package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/donaldgifford/market-comps/internal/cache"
	"github.com/donaldgifford/market-comps/internal/curation"
	"github.com/donaldgifford/market-comps/internal/enrich"
	"github.com/donaldgifford/market-comps/internal/gateway"
	"github.com/donaldgifford/market-comps/internal/kv"
	"github.com/donaldgifford/market-comps/internal/metrics"
	"github.com/donaldgifford/market-comps/pkg/availability"
	"github.com/donaldgifford/market-comps/pkg/pricing"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// MarketCacheName is the cache namespace for raw search responses.
const MarketCacheName = "market"

const defaultFetchTimeout = 45 * time.Second

var tracer = otel.Tracer("github.com/donaldgifford/market-comps/internal/engine")

// Engine orchestrates cache lookup, search, curation, availability, and
// enrichment for items.
type Engine struct {
	searcher   gateway.Searcher
	store      *cache.Store
	market     *cache.Cache[domain.SearchResponse]
	curation   *curation.Store
	classifier availability.Classifier
	generator  *enrich.Generator
	queries    *gateway.QueryBuilder
	log        *slog.Logger
	now        func() time.Time

	fetchTimeout time.Duration

	flights singleflight.Group
	locks   *kv.KeyMutex

	// items holds lifecycle state for items the engine has served since
	// they were last invalidated. Invalidate and DeleteItem drop the entry. seq is the last
	// generation handed out, so a recreated entry never reuses a
	// generation an older fetch or lookup may still hold.
	mu    sync.Mutex
	seq   uint64
	items map[string]*itemState
}

type itemState struct {
	generation uint64
	state      domain.FetchState
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithClassifier replaces the keyword availability classifier.
func WithClassifier(c availability.Classifier) Option {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithGenerator enables generated-text enrichment of views.
func WithGenerator(g *enrich.Generator) Option {
	return func(e *Engine) {
		e.generator = g
	}
}

// WithQueryBuilder sets the builder used to derive fallback cache keys. It
// should match the one the gateway searches with.
func WithQueryBuilder(b *gateway.QueryBuilder) Option {
	return func(e *Engine) {
		e.queries = b
	}
}

// WithFetchTimeout bounds one fetch, fallback and enrichment included.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc(f func() time.Time) Option {
	return func(e *Engine) {
		e.now = f
	}
}

// NewEngine creates an Engine. The cache store and curation store are
// shared with any other component that needs them.
func NewEngine(
	s gateway.Searcher,
	store *cache.Store,
	cur *curation.Store,
	opts ...Option,
) *Engine {
	e := &Engine{
		searcher:     s,
		store:        store,
		market:       cache.New[domain.SearchResponse](store, MarketCacheName),
		curation:     cur,
		classifier:   availability.NewKeywordClassifier(),
		queries:      gateway.NewQueryBuilder(),
		log:          slog.Default(),
		now:          time.Now,
		fetchTimeout: defaultFetchTimeout,
		locks:        kv.NewKeyMutex(),
		items:        make(map[string]*itemState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// keys are the two cache keys an item's search response lives under.
type keys struct {
	primary  string
	fallback string
}

// keysFor derives the cache keys for item. Items without a real title get
// no query key: they would all share the generic fallback query.
func (e *Engine) keysFor(item domain.Item) keys {
	custom := item.HasCustomImage()
	k := keys{primary: cache.MarketKey(item.ID, custom)}
	if !e.queries.IsPlaceholder(item.Title) {
		k.fallback = cache.QueryKey(e.queries.Build(item.Title, item.HasImage()), custom)
	}
	return k
}

// GetMarketData returns the aggregated view for item, fetching from the
// search providers only when neither cache key holds a response. A fetch
// failure is returned as an error and leaves the item Errored.
func (e *Engine) GetMarketData(ctx context.Context, item domain.Item) (domain.AggregatedView, error) {
	if item.ID == "" {
		return domain.AggregatedView{}, fmt.Errorf("%w: item id is required", domain.ErrInvalidRequest)
	}

	ctx, span := tracer.Start(ctx, "engine.GetMarketData")
	defer span.End()
	span.SetAttributes(
		attribute.String("item.id", item.ID),
		attribute.Bool("item.custom_image", item.HasCustomImage()),
	)

	start := time.Now()
	k := e.keysFor(item)
	gen := e.generation(item.ID)

	if entry, ok := e.lookup(ctx, item.ID, k, gen); ok {
		metrics.FetchDuration.WithLabelValues("cache").Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("fetch.source", "cache"))
		e.setReady(item.ID, gen)
		return e.view(ctx, item, entry.Value, entry.CachedAt, true, false)
	}

	resp, err := e.fetch(ctx, item, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return domain.AggregatedView{}, err
	}
	metrics.FetchDuration.WithLabelValues("provider").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("fetch.source", "provider"))

	view, err := e.view(ctx, item, resp, resp.FetchedAt, false, true)
	if err != nil {
		return domain.AggregatedView{}, err
	}
	if view.AveragePriceUSD != nil {
		metrics.AveragePriceUSD.Observe(*view.AveragePriceUSD)
	}
	return view, nil
}

// lookup checks the primary key, then the query key. A hit on the query key
// is copied to the primary key unless the item was invalidated after gen
// was read.
func (e *Engine) lookup(ctx context.Context, itemID string, k keys, gen uint64) (cache.Entry[domain.SearchResponse], bool) {
	if entry, ok := e.market.GetEntry(ctx, k.primary); ok {
		return entry, true
	}
	if k.fallback == "" {
		return cache.Entry[domain.SearchResponse]{}, false
	}
	entry, ok := e.market.GetEntry(ctx, k.fallback)
	if !ok {
		return entry, false
	}
	e.promote(ctx, itemID, k.primary, entry.Value, gen)
	return entry, true
}

// promote writes resp under the item's primary key. It holds the item lock
// so it cannot interleave with Invalidate.
func (e *Engine) promote(ctx context.Context, itemID, key string, resp domain.SearchResponse, gen uint64) {
	unlock := e.locks.Lock(itemID)
	defer unlock()

	if !e.current(itemID, gen) {
		e.log.Debug("skipping promotion of superseded query entry", "item_id", itemID)
		return
	}
	if err := e.market.Put(ctx, key, resp, cache.Indefinite()); err != nil {
		e.log.Warn("promoting query cache entry failed", "key", key, "error", err)
	}
}

// fetch runs one search per primary key no matter how many callers ask.
// The flight outlives any single caller's context.
func (e *Engine) fetch(ctx context.Context, item domain.Item, k keys) (domain.SearchResponse, error) {
	// Callers that arrive after an Invalidate start a new flight rather
	// than joining one that is bound to be discarded.
	gen := e.generation(item.ID)
	v, err, shared := e.flights.Do(fmt.Sprintf("%s#%d", k.primary, gen), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.fetchTimeout)
		defer cancel()
		return e.fetchOnce(fctx, item, k, gen)
	})
	if shared {
		metrics.FetchesDeduplicatedTotal.Inc()
	}
	if err != nil {
		return domain.SearchResponse{}, err
	}
	return v.(domain.SearchResponse), nil
}

func (e *Engine) fetchOnce(ctx context.Context, item domain.Item, k keys, gen uint64) (domain.SearchResponse, error) {
	// A flight that committed between the caller's lookup and this one
	// already cached the response.
	if entry, ok := e.lookup(ctx, item.ID, k, gen); ok {
		return entry.Value, nil
	}

	e.setState(item.ID, gen, domain.StatusLoading, "")
	log := e.log.With("item_id", item.ID)

	var resp domain.SearchResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resp, err = e.searcher.Search(gctx, item)
		return err
	})
	if e.enrichable(item) {
		// Warms the listing copy cache while the search runs.
		g.Go(func() error {
			if _, err := e.generator.Generate(gctx, enrich.ToolListingCopy, item.Title); err != nil {
				log.Warn("listing copy generation failed", "error", err)
			}
			return nil
		})
	}
	err := g.Wait()

	unlock := e.locks.Lock(item.ID)
	defer unlock()

	if !e.current(item.ID, gen) {
		metrics.FetchesSupersededTotal.Inc()
		log.Info("discarding superseded fetch result")
		return domain.SearchResponse{}, fmt.Errorf("fetching market data for %s: %w", item.ID, domain.ErrSuperseded)
	}

	if err != nil {
		metrics.FetchErrorsTotal.Inc()
		e.setState(item.ID, gen, domain.StatusErrored, err.Error())
		log.Error("market data fetch failed", "error", err)
		return domain.SearchResponse{}, fmt.Errorf("fetching market data for %s: %w", item.ID, err)
	}

	for _, key := range []string{k.primary, k.fallback} {
		if key == "" {
			continue
		}
		if err := e.market.Put(ctx, key, resp, cache.Indefinite()); err != nil {
			log.Warn("caching search response failed", "key", key, "error", err)
		}
	}
	e.setState(item.ID, gen, domain.StatusReady, "")
	log.Info("market data fetched",
		"engine", resp.Engine,
		"visual", len(resp.Listings(domain.KindVisualMatch)),
		"shopping", len(resp.Listings(domain.KindShoppingResult)),
	)
	return resp, nil
}

// DeleteListing curates listingID out of item's results and returns the
// recomputed view. It reads only cached data and never calls a provider.
func (e *Engine) DeleteListing(ctx context.Context, item domain.Item, listingID string) (domain.AggregatedView, error) {
	if item.ID == "" || listingID == "" {
		return domain.AggregatedView{}, fmt.Errorf("%w: item id and listing id are required", domain.ErrInvalidRequest)
	}

	entry, ok := e.lookup(ctx, item.ID, e.keysFor(item), e.generation(item.ID))
	if !ok {
		return domain.AggregatedView{}, fmt.Errorf("deleting listing %s: %w", listingID, domain.ErrNoMarketData)
	}

	l, ok := entry.Value.Find(listingID)
	if !ok {
		return domain.AggregatedView{}, fmt.Errorf("deleting listing %s: %w", listingID, domain.ErrListingNotFound)
	}

	if err := e.curation.MarkDeleted(ctx, item.ID, listingID, l.Kind); err != nil {
		return domain.AggregatedView{}, fmt.Errorf("deleting listing %s: %w", listingID, err)
	}

	return e.view(ctx, item, entry.Value, entry.CachedAt, true, false)
}

// Invalidate drops item's cached search results under every image variant
// and supersedes any fetch in flight. Curation survives. Only the item's ID
// and title are needed.
func (e *Engine) Invalidate(ctx context.Context, item domain.Item) error {
	unlock := e.locks.Lock(item.ID)
	defer unlock()

	e.supersede(item.ID)

	// Callers may not resend the photo, so clear the keys of both the
	// image and the text-only query.
	var errs []error
	for _, custom := range []bool{false, true} {
		keys := []string{cache.MarketKey(item.ID, custom)}
		if !e.queries.IsPlaceholder(item.Title) {
			for _, withImage := range []bool{false, true} {
				keys = append(keys, cache.QueryKey(e.queries.Build(item.Title, withImage), custom))
			}
		}
		for _, key := range keys {
			if err := e.market.Remove(ctx, key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalidating %s: %w", item.ID, err)
	}
	e.log.Info("market data invalidated", "item_id", item.ID)
	return nil
}

// DeleteItem invalidates item and also forgets its curation record.
func (e *Engine) DeleteItem(ctx context.Context, item domain.Item) error {
	if err := e.Invalidate(ctx, item); err != nil {
		return err
	}
	if err := e.curation.DeleteItem(ctx, item.ID); err != nil {
		return fmt.Errorf("deleting item %s: %w", item.ID, err)
	}
	return nil
}

// State reports the item's lookup lifecycle state.
func (e *Engine) State(itemID string) domain.FetchState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.items[itemID]; ok {
		return st.state
	}
	return domain.FetchState{Status: domain.StatusEmpty}
}

func (e *Engine) entry(itemID string) *itemState {
	st, ok := e.items[itemID]
	if !ok {
		st = &itemState{generation: e.seq, state: domain.FetchState{Status: domain.StatusEmpty}}
		e.items[itemID] = st
	}
	return st
}

// generation is bumped whenever the item's cached data is invalidated. A
// fetch commits only if the generation it started under is still current.
func (e *Engine) generation(itemID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entry(itemID).generation
}

func (e *Engine) current(itemID string, gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entry(itemID).generation == gen
}

// supersede forgets the item. Its next entry starts at a generation newer
// than any handed out so far.
func (e *Engine) supersede(itemID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	delete(e.items, itemID)
}

// setState records status for a fetch started under gen. Superseded
// fetches leave the state alone.
func (e *Engine) setState(itemID string, gen uint64, status domain.FetchStatus, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.entry(itemID)
	if st.generation != gen {
		return
	}
	st.state = domain.FetchState{Status: status, Message: msg, UpdatedAt: e.now()}
}

// setReady marks a cache hit. A hit read under a superseded generation
// leaves the state alone.
func (e *Engine) setReady(itemID string, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.entry(itemID)
	if st.generation != gen {
		return
	}
	if st.state.Status != domain.StatusReady {
		st.state = domain.FetchState{Status: domain.StatusReady, UpdatedAt: e.now()}
	}
}

// view curates, classifies, partitions, and averages resp. When network is
// false enrichment only reads cached text, so a cache hit never waits on
// the LLM backend.
func (e *Engine) view(
	ctx context.Context,
	item domain.Item,
	resp domain.SearchResponse,
	fetchedAt time.Time,
	fromCache bool,
	network bool,
) (domain.AggregatedView, error) {
	rec, err := e.curation.Load(ctx, item.ID)
	if err != nil {
		return domain.AggregatedView{}, fmt.Errorf("building view for %s: %w", item.ID, err)
	}

	v := Aggregate(resp, &rec, e.classifier)
	v.ItemID = item.ID
	v.FromCache = fromCache
	v.FetchedAt = fetchedAt

	e.enrich(ctx, item, &v, network)
	return v, nil
}

// Aggregate applies curation and availability to resp and computes the
// average over every priced listing that survives curation, sold or not.
// resp is not modified.
func Aggregate(resp domain.SearchResponse, rec *curation.Record, c availability.Classifier) domain.AggregatedView {
	var (
		v     domain.AggregatedView
		sum   float64
		count int
	)
	for _, kind := range domain.Kinds {
		listings := curation.Filter(rec, resp.Listings(kind))
		slices.SortStableFunc(listings, func(a, b domain.Listing) int {
			return cmp.Compare(a.Position, b.Position)
		})
		availability.Apply(c, listings)

		for _, l := range listings {
			if l.Availability == domain.AvailabilitySold {
				v.Sold.Add(l)
			} else {
				v.Available.Add(l)
			}
			if l.Priced() {
				sum += *l.PriceUSD
				count++
			}
		}
	}

	if count > 0 {
		avg := sum / float64(count)
		v.AveragePriceUSD = &avg
	}
	v.PricedCount = count
	v.AveragePriceDisplay = pricing.DisplayOptional(v.AveragePriceUSD)
	return v
}

func (e *Engine) enrichable(item domain.Item) bool {
	return e.generator != nil && !e.queries.IsPlaceholder(item.Title)
}

// enrich attaches generated text. Failures are logged and leave the field
// empty.
func (e *Engine) enrich(ctx context.Context, item domain.Item, v *domain.AggregatedView, network bool) {
	if !e.enrichable(item) {
		return
	}

	// Listing copy is generated alongside the search, so it is only ever
	// read back here.
	if text, ok := e.generator.Cached(ctx, enrich.ToolListingCopy, item.Title); ok {
		v.ListingCopy = &text
	}

	appraisalInput := AppraisalInput(item.Title, v)
	if !network {
		if text, ok := e.generator.Cached(ctx, enrich.ToolAppraisal, appraisalInput); ok {
			v.Summary = &text
		}
		return
	}

	text, err := e.generator.Generate(ctx, enrich.ToolAppraisal, appraisalInput)
	if err != nil {
		e.log.Warn("appraisal generation failed", "item_id", item.ID, "error", err)
		return
	}
	v.Summary = &text
}

// AppraisalInput is the generated-text input for an appraisal of title
// given the view's price data.
func AppraisalInput(title string, v *domain.AggregatedView) string {
	if v.AveragePriceUSD == nil {
		return title
	}
	return fmt.Sprintf("%s (comparable listings average %s across %d priced results)",
		title, v.AveragePriceDisplay, v.PricedCount)
}
