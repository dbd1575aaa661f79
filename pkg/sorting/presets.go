package sorting

import (
	"fmt"

	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/models"
)

// Preset is a named sort button.
type Preset struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Commands []Command `json:"commands"`
}

var (
	DefaultAvailabilityOrder = []string{"NOW", DatePlaceholder, "SHORT WAIT", "LONG WAIT", "VERY LONG WAIT", "UNAVAILABLE"}
	DefaultMPAAOrder         = []string{"G", "PG", "PG-13", "R", "NC-17", "NR", "UR"}
	DefaultFormatOrder       = []string{"Blu-ray", "DVD"}
)

func by(field models.FieldName, cmp Comparator, dir Direction) Command {
	return Command{
		Kind:        Sort,
		Fields:      []models.FieldName{field},
		Comparators: []Comparator{cmp},
		Directions:  []Direction{dir},
	}
}

func byOrder(field models.FieldName, key string, order []string) Command {
	c := by(field, Custom, Ascending)
	c.OrderKey = key
	c.DefaultOrder = order
	return c
}

// Presets returns the built-in sort buttons.
func Presets() []Preset {
	return []Preset{
		{ID: "shuffle", Label: "Shuffle", Commands: []Command{{Kind: Shuffle}}},
		{ID: "reverse", Label: "Reverse", Commands: []Command{{Kind: Reverse}}},
		{ID: "title", Label: "Title", Commands: []Command{by(catalog.FieldTitle, Lexical, Ascending)}},
		{ID: "genre", Label: "Genre", Commands: []Command{{
			Kind:        Sort,
			Fields:      []models.FieldName{catalog.FieldGenre, catalog.FieldTitle},
			Comparators: []Comparator{Lexical, Lexical},
			Directions:  []Direction{Ascending, Ascending},
		}}},
		{ID: "starRating", Label: "Star rating", Commands: []Command{{
			Kind:        Sort,
			Fields:      []models.FieldName{catalog.FieldStarRating, catalog.FieldAvgRating},
			Comparators: []Comparator{Numeric, Numeric},
			Directions:  []Direction{Descending, Descending},
		}}},
		{ID: "avgRating", Label: "Average rating", Commands: []Command{by(catalog.FieldAvgRating, Numeric, Descending)}},
		{ID: "availability", Label: "Availability", Commands: []Command{byOrder(catalog.FieldAvailability, "availability", DefaultAvailabilityOrder)}},
		{ID: "length", Label: "Length", Commands: []Command{by(catalog.FieldLength, Numeric, Ascending)}},
		{ID: "releaseYear", Label: "Release year", Commands: []Command{by(catalog.FieldReleaseYear, Numeric, Descending)}},
		{ID: "mpaa", Label: "MPAA rating", Commands: []Command{byOrder(catalog.FieldMPAA, "mpaa", DefaultMPAAOrder)}},
		{ID: "mediaFormat", Label: "Media format", Commands: []Command{byOrder(catalog.FieldMediaFormat, "mediaFormat", DefaultFormatOrder)}},
	}
}

func FindPreset(id string) (Preset, bool) {
	for _, p := range Presets() {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// Resolve picks the commands of a named preset, or cmds when no preset is
// given.
func Resolve(preset string, cmds []Command) ([]Command, error) {
	if preset == "" {
		if len(cmds) == 0 {
			return nil, fmt.Errorf("%w: no commands", ErrInvalidCommand)
		}
		return cmds, nil
	}
	p, ok := FindPreset(preset)
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidCommand, preset)
	}
	return p.Commands, nil
}
