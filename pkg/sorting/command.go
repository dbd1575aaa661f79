package sorting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/video-analitics/queuesorter/pkg/models"
)

// ErrInvalidCommand is returned for a malformed sort configuration
var ErrInvalidCommand = errors.New("invalid sort command")

type CommandKind string

const (
	Reverse CommandKind = "reverse"
	Shuffle CommandKind = "shuffle"
	Sort    CommandKind = "sort"
)

type Comparator string

const (
	Lexical Comparator = "lexical"
	Numeric Comparator = "numeric" // missing values sort last
	Custom  Comparator = "custom"  // explicit priority list
	Chrono  Comparator = "date"
)

// DatePlaceholder is a custom-order slot matching any parseable date.
const DatePlaceholder = "{date}"

type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

func (d Direction) MarshalText() ([]byte, error) {
	if d == Descending {
		return []byte("desc"), nil
	}
	return []byte("asc"), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "asc", "ascending", "1":
		*d = Ascending
	case "desc", "descending", "-1":
		*d = Descending
	default:
		return fmt.Errorf("%w: direction %q", ErrInvalidCommand, b)
	}
	return nil
}

// Command is one step of a sort configuration. Fields, Comparators and
// Directions are parallel lists.
type Command struct {
	Kind         CommandKind        `json:"kind"`
	Fields       []models.FieldName `json:"fields,omitempty"`
	Comparators  []Comparator       `json:"comparators,omitempty"`
	Directions   []Direction        `json:"directions,omitempty"`
	OrderKey     string             `json:"order_key,omitempty"`
	DefaultOrder []string           `json:"default_order,omitempty"`
}

func (c Command) Validate() error {
	switch c.Kind {
	case Reverse, Shuffle:
		return nil
	case Sort:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, c.Kind)
	}

	if len(c.Fields) == 0 {
		return fmt.Errorf("%w: sort without fields", ErrInvalidCommand)
	}
	if len(c.Fields) != len(c.Comparators) || len(c.Fields) != len(c.Directions) {
		return fmt.Errorf("%w: %d fields, %d comparators, %d directions",
			ErrInvalidCommand, len(c.Fields), len(c.Comparators), len(c.Directions))
	}
	for i, cmp := range c.Comparators {
		switch cmp {
		case Lexical, Numeric, Chrono:
		case Custom:
			if c.OrderKey == "" && len(c.DefaultOrder) == 0 {
				return fmt.Errorf("%w: custom order for %s has neither key nor default", ErrInvalidCommand, c.Fields[i])
			}
		default:
			return fmt.Errorf("%w: unknown comparator %q", ErrInvalidCommand, cmp)
		}
		if d := c.Directions[i]; d != Ascending && d != Descending {
			return fmt.Errorf("%w: direction %d for %s", ErrInvalidCommand, d, c.Fields[i])
		}
	}
	return nil
}

func Validate(cmds []Command) error {
	for i, c := range cmds {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}
	return nil
}

// RequiredFields lists every field the commands compare on, deduplicated in
// first-use order. Pure reverse/shuffle configurations need none.
func RequiredFields(cmds []Command) []models.FieldName {
	seen := make(map[models.FieldName]bool)
	var out []models.FieldName
	for _, c := range cmds {
		if c.Kind != Sort {
			continue
		}
		for _, f := range c.Fields {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// OrderResolver looks up a user-customised priority order.
type OrderResolver interface {
	CustomOrder(ctx context.Context, key string) ([]string, bool, error)
}
