package catalog

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/video-analitics/queuesorter/pkg/extractor"
	"github.com/video-analitics/queuesorter/pkg/models"
)

const (
	OwnerQueue   = "queue"
	OwnerDetails = "details"
)

// Queue page fields.
const (
	FieldTitle        models.FieldName = "title"
	FieldStarRating   models.FieldName = "starRating"
	FieldAvgRating    models.FieldName = "avgRating"
	FieldGenre        models.FieldName = "genre"
	FieldAvailability models.FieldName = "availability"
	FieldMediaFormat  models.FieldName = "mediaFormat"
)

// Detail page fields.
const (
	FieldLength       models.FieldName = "length"
	FieldReleaseYear  models.FieldName = "releaseYear"
	FieldMPAA         models.FieldName = "mpaa"
	FieldDetailRating models.FieldName = "detailRating"
)

// DefaultQueue declares the fields readable from a rendered queue row. Rows
// are expected to carry data-field markers; the rating mask fallback reads
// the star widget width (95px is five stars).
func DefaultQueue() *Catalog {
	return MustNew(OwnerQueue,
		Descriptor{
			Name:       FieldTitle,
			Display:    "Title",
			Kind:       models.KindText,
			Selectable: true,
			Extract:    extractor.FirstOf(extractor.Text("[data-field=title]"), extractor.Text("[itemprop=name]")),
		},
		Descriptor{
			Name:       FieldStarRating,
			Display:    "Star rating",
			Kind:       models.KindNumber,
			Selectable: true,
			Optional:   true,
			Extract: extractor.FirstOf(
				extractor.NumberAttr("[data-field=starRating]", "data-value"),
				extractor.StarsFromWidth(".stbrMaskFg", 95, 5),
			),
		},
		Descriptor{
			Name:            FieldAvgRating,
			Display:         "Average rating",
			Kind:            models.KindNumber,
			Selectable:      true,
			SiblingBackfill: true,
			Fallback:        FieldDetailRating,
			Extract:         extractor.NumberAttr("[data-field=avgRating]", "data-value"),
		},
		Descriptor{
			Name:            FieldGenre,
			Display:         "Genre",
			Kind:            models.KindList,
			Selectable:      true,
			SiblingBackfill: true,
			Extract:         extractor.List("[data-field=genre]"),
		},
		Descriptor{
			Name:       FieldAvailability,
			Display:    "Availability",
			Kind:       models.KindText,
			Selectable: true,
			Extract:    extractor.Text("[data-field=availability]"),
		},
		Descriptor{
			Name:       FieldMediaFormat,
			Display:    "Media format",
			Kind:       models.KindText,
			Selectable: true,
			Optional:   true,
			Extract:    extractor.Text("[data-field=mediaFormat]"),
		},
	)
}

// DefaultDetails declares the fields parsed from a title's detail page using
// schema.org microdata.
func DefaultDetails() *Catalog {
	return MustNew(OwnerDetails,
		Descriptor{
			Name:       FieldLength,
			Display:    "Length",
			Kind:       models.KindNumber,
			Selectable: true,
			Extract:    extractor.Minutes("[itemprop=duration]"),
		},
		Descriptor{
			Name:       FieldReleaseYear,
			Display:    "Release year",
			Kind:       models.KindNumber,
			Selectable: true,
			Extract: extractor.FirstOf(
				extractor.Number("[itemprop=copyrightYear]"),
				yearOf(extractor.Date("[itemprop=datePublished]")),
			),
		},
		Descriptor{
			Name:       FieldMPAA,
			Display:    "MPAA rating",
			Kind:       models.KindText,
			Selectable: true,
			Optional:   true,
			Extract:    extractor.FirstOf(extractor.Attr("[itemprop=contentRating]", "content"), extractor.Text("[itemprop=contentRating]")),
		},
		Descriptor{
			Name:       FieldDetailRating,
			Display:    "Average rating (details)",
			Kind:       models.KindNumber,
			Selectable: true,
			Extract: extractor.FirstOf(
				extractor.NumberAttr("[itemprop=ratingValue]", "content"),
				extractor.Number("[itemprop=ratingValue]"),
			),
		},
	)
}

func yearOf(fn extractor.Func) extractor.Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		v, ok := fn(s)
		if !ok {
			return v, false
		}
		return models.Number(float64(v.Date.Year())), true
	}
}
