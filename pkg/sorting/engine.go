package sorting

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/video-analitics/queuesorter/pkg/extractor"
	"github.com/video-analitics/queuesorter/pkg/models"
)

type Engine struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Engine)

// WithRand fixes the shuffle source, mostly for tests.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rnd = r
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rnd: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate applies the commands in order and returns the new ordering. The
// input slice is left untouched. orders may be nil, in which case custom
// comparators use their built-in default order.
func (e *Engine) Evaluate(ctx context.Context, items []*models.Item, cmds []Command, orders OrderResolver) ([]*models.Item, error) {
	if err := Validate(cmds); err != nil {
		return nil, err
	}

	out := slices.Clone(items)
	for _, c := range cmds {
		switch c.Kind {
		case Reverse:
			slices.Reverse(out)
		case Shuffle:
			e.shuffle(out)
		case Sort:
			cmp, err := compile(ctx, c, orders)
			if err != nil {
				return nil, err
			}
			slices.SortStableFunc(out, cmp)
		}
	}
	return out, nil
}

func (e *Engine) shuffle(items []*models.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rnd.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}

// AssignPositions numbers items consecutively starting at first.
func AssignPositions(items []*models.Item, first int) {
	for i, it := range items {
		it.TargetPosition = first + i
	}
}

type keyFunc func(v models.Value) (key, bool)

type sortKey struct {
	field   models.FieldName
	extract keyFunc
	compare func(a, b key) int
	dir     int
}

// compile builds the lexicographic multi-key comparator for c.
func compile(ctx context.Context, c Command, orders OrderResolver) (func(a, b *models.Item) int, error) {
	keys := make([]sortKey, len(c.Fields))
	for i, f := range c.Fields {
		k := sortKey{field: f, dir: int(c.Directions[i])}
		switch c.Comparators[i] {
		case Lexical:
			k.extract, k.compare = lexicalKey, compareText
		case Numeric:
			k.extract, k.compare = numericKey, compareNumber
		case Chrono:
			k.extract, k.compare = dateKey, compareRank
		case Custom:
			order, err := resolveOrder(ctx, c, orders)
			if err != nil {
				return nil, err
			}
			k.extract, k.compare = customKey(order), compareRank
		}
		keys[i] = k
	}

	return func(a, b *models.Item) int {
		for _, k := range keys {
			ka, aok := keyOf(a, k)
			kb, bok := keyOf(b, k)
			switch {
			case !aok && !bok:
				continue
			case !aok:
				return 1
			case !bok:
				return -1
			}
			if r := k.compare(ka, kb) * k.dir; r != 0 {
				return r
			}
		}
		return 0
	}, nil
}

// keyOf reports ok=false for missing, sentinel and unusable values; those
// always sort after present ones whatever the direction.
func keyOf(it *models.Item, k sortKey) (key, bool) {
	v, ok := it.Get(k.field)
	if !ok || v.IsSentinel() {
		return key{}, false
	}
	return k.extract(v)
}

func resolveOrder(ctx context.Context, c Command, orders OrderResolver) ([]string, error) {
	if orders != nil && c.OrderKey != "" {
		order, ok, err := orders.CustomOrder(ctx, c.OrderKey)
		if err != nil {
			return nil, err
		}
		if ok && len(order) > 0 {
			return order, nil
		}
	}
	return c.DefaultOrder, nil
}

type key struct {
	text string
	num  float64
	rank int
	date time.Time
}

func lexicalKey(v models.Value) (key, bool) {
	return key{text: strings.ToLower(v.String())}, true
}

func numericKey(v models.Value) (key, bool) {
	f, ok := v.Float()
	return key{num: f}, ok
}

func dateKey(v models.Value) (key, bool) {
	if v.Kind == models.KindDate {
		return key{date: v.Date}, true
	}
	t, ok := extractor.ParseDate(v.String())
	return key{date: t}, ok
}

// customKey ranks a value by the first order slot any of its tokens matches.
func customKey(order []string) keyFunc {
	return func(v models.Value) (key, bool) {
		if v.Kind == models.KindDate {
			return rankDate(order, v.Date)
		}
		tokens := v.Strings()
		for pos, slot := range order {
			for _, tok := range tokens {
				if slot == DatePlaceholder {
					if t, ok := extractor.ParseDate(tok); ok {
						return key{rank: pos, date: t}, true
					}
					continue
				}
				if strings.EqualFold(strings.TrimSpace(slot), strings.TrimSpace(tok)) {
					return key{rank: pos}, true
				}
			}
		}
		return key{}, false
	}
}

func rankDate(order []string, t time.Time) (key, bool) {
	for pos, slot := range order {
		if slot == DatePlaceholder {
			return key{rank: pos, date: t}, true
		}
	}
	return key{}, false
}

func compareText(a, b key) int {
	return strings.Compare(a.text, b.text)
}

func compareNumber(a, b key) int {
	switch {
	case a.num < b.num:
		return -1
	case a.num > b.num:
		return 1
	}
	return 0
}

// compareRank orders by slot, then chronologically within a date slot.
func compareRank(a, b key) int {
	if a.rank != b.rank {
		if a.rank < b.rank {
			return -1
		}
		return 1
	}
	return a.date.Compare(b.date)
}
