package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/fetch"
	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/models"
)

// HTMLPage reads the queue from a rendered page. Each row element carries
// the item id and optionally a group id as attributes.
type HTMLPage struct {
	url       string
	fetcher   fetch.Fetcher
	catalog   *catalog.Catalog
	rowSel    string
	idAttr    string
	groupAttr string
}

type HTMLOption func(*HTMLPage)

func WithRowSelector(sel string) HTMLOption {
	return func(p *HTMLPage) {
		p.rowSel = sel
	}
}

func WithIDAttr(attr string) HTMLOption {
	return func(p *HTMLPage) {
		p.idAttr = attr
	}
}

func WithGroupAttr(attr string) HTMLOption {
	return func(p *HTMLPage) {
		p.groupAttr = attr
	}
}

func NewHTMLPage(url string, fetcher fetch.Fetcher, cat *catalog.Catalog, opts ...HTMLOption) *HTMLPage {
	p := &HTMLPage{
		url:       url,
		fetcher:   fetcher,
		catalog:   cat,
		rowSel:    "[data-item-id]",
		idAttr:    "data-item-id",
		groupAttr: "data-group-id",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTMLPage) ListItems(ctx context.Context) ([]*models.Item, error) {
	body, err := p.fetcher.Fetch(ctx, p.url)
	if err != nil {
		return nil, fmt.Errorf("fetch queue page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse queue page: %w", err)
	}
	return p.Parse(doc.Selection), nil
}

// Parse extracts one item per row in document order.
func (p *HTMLPage) Parse(root *goquery.Selection) []*models.Item {
	var items []*models.Item
	root.Find(p.rowSel).Each(func(i int, row *goquery.Selection) {
		id := strings.TrimSpace(row.AttrOr(p.idAttr, ""))
		it := &models.Item{
			ID:               id,
			GroupID:          strings.TrimSpace(row.AttrOr(p.groupAttr, "")),
			OriginalPosition: i + 1,
			Fields:           make(models.Fields),
		}
		for _, name := range p.catalog.Names() {
			d, _ := p.catalog.Lookup(name)
			if v, ok := d.Extract(row); ok {
				it.Set(name, v)
			}
		}
		items = append(items, it)
	})

	logger.Log.Debug().Str("url", p.url).Int("rows", len(items)).Msg("queue page parsed")
	return items
}
