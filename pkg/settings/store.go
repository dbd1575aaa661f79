package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrEmptyOrder = errors.New("custom order must not be empty")

// Range selects rows From..To (1-based, inclusive). The zero value selects
// the whole queue.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r Range) IsZero() bool { return r.From == 0 && r.To == 0 }

// Store is the per-queue view of persisted settings. Every key is prefixed
// with the queue namespace.
type Store struct {
	kv        KV
	namespace string
}

func NewStore(kv KV, namespace string) *Store {
	return &Store{kv: kv, namespace: namespace}
}

func (s *Store) Namespace() string { return s.namespace }

func (s *Store) key(parts ...string) string {
	k := s.namespace
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// CustomOrder returns the user's priority list for a sort button, if any.
func (s *Store) CustomOrder(ctx context.Context, key string) ([]string, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.key("order", key))
	if err != nil || !ok {
		return nil, false, err
	}
	var order []string
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, false, fmt.Errorf("decode order %s: %w", key, err)
	}
	return order, true, nil
}

func (s *Store) SetCustomOrder(ctx context.Context, key string, order []string) error {
	if len(order) == 0 {
		return ErrEmptyOrder
	}
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key("order", key), string(data))
}

func (s *Store) ResetCustomOrder(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, s.key("order", key))
}

// Range returns the last used row range.
func (s *Store) Range(ctx context.Context) (Range, error) {
	raw, ok, err := s.kv.Get(ctx, s.key("range"))
	if err != nil || !ok {
		return Range{}, err
	}
	var r Range
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Range{}, fmt.Errorf("decode range: %w", err)
	}
	return r, nil
}

func (s *Store) SetRange(ctx context.Context, r Range) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key("range"), string(data))
}

func (s *Store) ForceRefresh(ctx context.Context) (bool, error) {
	return s.flag(ctx, "force_refresh")
}

func (s *Store) SetForceRefresh(ctx context.Context, on bool) error {
	return s.kv.Set(ctx, s.key("force_refresh"), strconv.FormatBool(on))
}

func (s *Store) Debug(ctx context.Context) (bool, error) {
	return s.flag(ctx, "debug")
}

func (s *Store) SetDebug(ctx context.Context, on bool) error {
	return s.kv.Set(ctx, s.key("debug"), strconv.FormatBool(on))
}

func (s *Store) flag(ctx context.Context, name string) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(name))
	if err != nil || !ok {
		return false, err
	}
	return strconv.ParseBool(raw)
}
