package retriever

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/fetch"
	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/models"
)

const (
	DefaultDelay        = 500 * time.Millisecond
	DefaultFetchTimeout = 30 * time.Second
)

// Remote fetches one detail document per item and parses it with its
// catalog. Fetches are paced by a single-token limiter so that no two start
// closer together than the configured delay.
type Remote struct {
	id      string
	catalog *catalog.Catalog
	fetcher fetch.ItemFetcher
	limiter *rate.Limiter
	timeout time.Duration
}

type RemoteOption func(*Remote)

func WithDelay(d time.Duration) RemoteOption {
	return func(r *Remote) {
		r.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithFetchTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) {
		r.timeout = d
	}
}

func NewRemote(cat *catalog.Catalog, fetcher fetch.ItemFetcher, opts ...RemoteOption) *Remote {
	r := &Remote{
		id:      cat.Owner(),
		catalog: cat,
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Every(DefaultDelay), 1),
		timeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Remote) ID() string                { return r.id }
func (r *Remote) Catalog() *catalog.Catalog { return r.catalog }

func (r *Remote) CanRetrieveData(fields []models.FieldName) bool {
	return r.catalog.CanSupply(fields)
}

// Complete reports whether it already holds every non-optional selectable
// field of this retriever, so a fetch would add nothing.
func (r *Remote) Complete(it *models.Item) bool {
	for _, name := range r.catalog.SelectableNames() {
		d, _ := r.catalog.Lookup(name)
		if !d.Optional && !it.Has(name) {
			return false
		}
	}
	return true
}

func (r *Remote) RetrieveData(ctx context.Context, req Request, items []*models.Item, checkin Checkin) error {
	needs := func(it *models.Item) bool {
		return req.ForceRefresh || !r.Complete(it)
	}

	fetched := 0
	step := func(ctx context.Context, _ int, it *models.Item) {
		fetched++
		r.fetchOne(ctx, it)
	}

	err := Sequence(ctx, items, needs, step, checkin, r.limiter)
	logger.Log.Debug().Str("retriever", r.id).Int("items", len(items)).Int("fetched", fetched).Err(err).Msg("retrieval finished")
	return err
}

// fetchOne runs on a context detached from cancellation so an in-flight
// request completes and its result can be discarded by the caller.
func (r *Remote) fetchOne(ctx context.Context, it *models.Item) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	body, err := r.fetcher.FetchItem(fetchCtx, it.ID)
	if err != nil {
		logger.Log.Warn().Err(err).Str("retriever", r.id).Str("item_id", it.ID).Msg("fetch failed")
		r.markFailed(it)
		return
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logger.Log.Warn().Err(err).Str("retriever", r.id).Str("item_id", it.ID).Msg("parse failed")
		r.markFailed(it)
		return
	}

	r.Parse(doc.Selection, it)
}

// Parse extracts every selectable field from a detail document. A required
// numeric field that cannot be read becomes a sentinel.
func (r *Remote) Parse(doc *goquery.Selection, it *models.Item) {
	for _, name := range r.catalog.SelectableNames() {
		d, _ := r.catalog.Lookup(name)
		if v, ok := d.Extract(doc); ok {
			it.Set(name, v)
			continue
		}
		if !d.Optional && d.Kind == models.KindNumber {
			it.Set(name, models.Sentinel())
		}
	}
}

func (r *Remote) markFailed(it *models.Item) {
	for _, name := range r.catalog.SelectableNames() {
		d, _ := r.catalog.Lookup(name)
		if d.Kind == models.KindNumber && !it.Has(name) {
			it.Set(name, models.Sentinel())
		}
	}
}
