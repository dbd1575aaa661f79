package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/video-analitics/queuesorter/pkg/extractor"
	"github.com/video-analitics/queuesorter/pkg/models"
)

var (
	// ErrInvalidDescriptor is returned for a descriptor without name, display label or extractor
	ErrInvalidDescriptor = errors.New("invalid field descriptor")

	// ErrDuplicateField is returned when two descriptors share a field name
	ErrDuplicateField = errors.New("duplicate field name")

	// ErrDuplicateDisplay is returned when two descriptors share a display label
	ErrDuplicateDisplay = errors.New("duplicate display label")
)

// Descriptor declares one data point.
type Descriptor struct {
	Name       models.FieldName
	Display    string
	Kind       models.Kind
	Selectable bool
	// Optional marks fields that may truly be absent, not just not yet fetched.
	Optional bool
	// SiblingBackfill allows copying the value from another item of the same group.
	SiblingBackfill bool
	// Fallback names a field from another catalog whose value stands in for
	// this one when it cannot be read locally.
	Fallback models.FieldName
	Extract  extractor.Func
}

// Catalog is an immutable registry of descriptors owned by one retriever.
type Catalog struct {
	owner  string
	order  []models.FieldName
	fields map[models.FieldName]Descriptor
}

func New(owner string, descriptors ...Descriptor) (*Catalog, error) {
	c := &Catalog{
		owner:  owner,
		fields: make(map[models.FieldName]Descriptor, len(descriptors)),
	}
	labels := make(map[string]models.FieldName, len(descriptors))

	for _, d := range descriptors {
		if d.Name == "" || d.Display == "" || d.Extract == nil {
			return nil, fmt.Errorf("%w: %s/%q", ErrInvalidDescriptor, owner, d.Name)
		}
		if _, dup := c.fields[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s in %s", ErrDuplicateField, d.Name, owner)
		}
		if other, dup := labels[d.Display]; dup {
			return nil, fmt.Errorf("%w: %q used by %s and %s", ErrDuplicateDisplay, d.Display, other, d.Name)
		}
		if d.Kind == "" {
			d.Kind = models.KindText
		}
		labels[d.Display] = d.Name
		c.fields[d.Name] = d
		c.order = append(c.order, d.Name)
	}

	return c, nil
}

// MustNew panics on a configuration error. Catalogs are declared at startup.
func MustNew(owner string, descriptors ...Descriptor) *Catalog {
	c, err := New(owner, descriptors...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Owner() string { return c.owner }

func (c *Catalog) Lookup(name models.FieldName) (Descriptor, bool) {
	d, ok := c.fields[name]
	return d, ok
}

// Names returns all field names in declaration order.
func (c *Catalog) Names() []models.FieldName {
	out := make([]models.FieldName, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Catalog) SelectableNames() []models.FieldName {
	var out []models.FieldName
	for _, n := range c.order {
		if c.fields[n].Selectable {
			out = append(out, n)
		}
	}
	return out
}

// SelectableFields maps every user-selectable field to its display label.
func (c *Catalog) SelectableFields() map[models.FieldName]string {
	out := make(map[models.FieldName]string)
	for _, n := range c.order {
		if d := c.fields[n]; d.Selectable {
			out[n] = d.Display
		}
	}
	return out
}

func (c *Catalog) AllFields() map[models.FieldName]Descriptor {
	out := make(map[models.FieldName]Descriptor, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}

// CanSupply reports whether at least one requested field is declared here.
func (c *Catalog) CanSupply(names []models.FieldName) bool {
	for _, n := range names {
		if _, ok := c.fields[n]; ok {
			return true
		}
	}
	return false
}

// Validate enforces that names and display labels are unique across all
// catalogs, i.e. queue fields and every remote retriever's fields.
func Validate(catalogs ...*Catalog) error {
	names := make(map[models.FieldName]string)
	labels := make(map[string]string)

	for _, c := range catalogs {
		for _, n := range c.order {
			d := c.fields[n]
			if owner, dup := names[n]; dup {
				return fmt.Errorf("%w: %s declared by %s and %s", ErrDuplicateField, n, owner, c.owner)
			}
			if owner, dup := labels[d.Display]; dup {
				return fmt.Errorf("%w: %q declared by %s and %s", ErrDuplicateDisplay, d.Display, owner, c.owner)
			}
			names[n] = c.owner
			labels[d.Display] = c.owner
		}
	}
	return nil
}

// Option is a selectable field as presented to the user.
type Option struct {
	Name    models.FieldName `json:"name"`
	Display string           `json:"display"`
	Owner   string           `json:"owner"`
}

// Options lists the selectable fields of all catalogs sorted by label.
func Options(catalogs ...*Catalog) []Option {
	var out []Option
	for _, c := range catalogs {
		for n, label := range c.SelectableFields() {
			out = append(out, Option{Name: n, Display: label, Owner: c.owner})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Display < out[j].Display })
	return out
}
