package source

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/video-analitics/queuesorter/pkg/models"
)

// ItemSource lists the queue in its current on-page order with every field
// readable without a network call.
type ItemSource interface {
	ListItems(ctx context.Context) ([]*models.Item, error)
}

// Static serves a snapshot that callers can replace at any time.
type Static struct {
	mu    sync.RWMutex
	items []*models.Item
}

func NewStatic(items ...*models.Item) *Static {
	s := &Static{}
	s.Replace(items)
	return s
}

func (s *Static) Replace(items []*models.Item) {
	cp := make([]*models.Item, len(items))
	for i, it := range items {
		cp[i] = it.Clone()
	}

	s.mu.Lock()
	s.items = cp
	s.mu.Unlock()
}

func (s *Static) ListItems(_ context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out, nil
}

// Reorder applies committed priorities and renumbers positions from 1. Items
// without a priority rank by their current position.
func (s *Static) Reorder(priorities map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rank := func(it *models.Item) int {
		if p, ok := priorities[it.ID]; ok {
			return p
		}
		return it.OriginalPosition
	}
	slices.SortStableFunc(s.items, func(a, b *models.Item) int {
		return cmp.Compare(rank(a), rank(b))
	})
	for i, it := range s.items {
		it.OriginalPosition = i + 1
		it.TargetPosition = 0
	}
}

// RawItem is the loosely typed wire form of an item: field values are plain
// JSON strings, numbers or string arrays.
type RawItem struct {
	ID       string                     `json:"id"`
	GroupID  string                     `json:"group_id,omitempty"`
	Position int                        `json:"position,omitempty"`
	Fields   map[string]json.RawMessage `json:"fields,omitempty"`
}

var ErrBadValue = errors.New("unsupported field value")

// DecodeItems reads a JSON array of RawItem. Items without a position are
// numbered by their order in the array.
func DecodeItems(r io.Reader) ([]*models.Item, error) {
	var raw []RawItem
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return FromRaw(raw)
}

func FromRaw(raw []RawItem) ([]*models.Item, error) {
	items := make([]*models.Item, 0, len(raw))
	for i, r := range raw {
		it := &models.Item{
			ID:               r.ID,
			GroupID:          r.GroupID,
			OriginalPosition: r.Position,
			Fields:           make(models.Fields, len(r.Fields)),
		}
		if it.OriginalPosition == 0 {
			it.OriginalPosition = i + 1
		}
		for name, msg := range r.Fields {
			v, ok, err := decodeValue(msg)
			if err != nil {
				return nil, fmt.Errorf("item %q field %s: %w", r.ID, name, err)
			}
			if ok {
				it.Set(models.FieldName(name), v)
			}
		}
		items = append(items, it)
	}
	return items, nil
}

// decodeValue maps a raw JSON value to a Value. null means absent.
func decodeValue(msg json.RawMessage) (models.Value, bool, error) {
	var raw interface{}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return models.Value{}, false, err
	}

	switch v := raw.(type) {
	case nil:
		return models.Value{}, false, nil
	case string:
		return models.Text(v), true, nil
	case float64:
		return models.Number(v), true, nil
	case []interface{}:
		list := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return models.Value{}, false, ErrBadValue
			}
			list = append(list, s)
		}
		return models.List(list...), true, nil
	}
	return models.Value{}, false, ErrBadValue
}
