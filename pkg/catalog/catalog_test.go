package catalog

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-analitics/queuesorter/pkg/extractor"
	"github.com/video-analitics/queuesorter/pkg/models"
)

func TestNewRejectsIncompleteDescriptors(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
	}{
		{"no name", Descriptor{Display: "X", Extract: extractor.Text("x")}},
		{"no display", Descriptor{Name: "x", Extract: extractor.Text("x")}},
		{"no extractor", Descriptor{Name: "x", Display: "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("test", tt.d)
			assert.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New("test",
		Descriptor{Name: "a", Display: "A", Extract: extractor.Text("a")},
		Descriptor{Name: "a", Display: "B", Extract: extractor.Text("a")},
	)
	assert.ErrorIs(t, err, ErrDuplicateField)

	_, err = New("test",
		Descriptor{Name: "a", Display: "A", Extract: extractor.Text("a")},
		Descriptor{Name: "b", Display: "A", Extract: extractor.Text("b")},
	)
	assert.ErrorIs(t, err, ErrDuplicateDisplay)
}

func TestValidateAcrossCatalogs(t *testing.T) {
	require.NoError(t, Validate(DefaultQueue(), DefaultDetails()))

	clash := MustNew("other", Descriptor{Name: FieldTitle, Display: "Other title", Extract: extractor.Text("x")})
	assert.ErrorIs(t, Validate(DefaultQueue(), clash), ErrDuplicateField)

	labelClash := MustNew("other", Descriptor{Name: "otherTitle", Display: "Title", Extract: extractor.Text("x")})
	assert.ErrorIs(t, Validate(DefaultQueue(), labelClash), ErrDuplicateDisplay)
}

func TestSelectableAndCanSupply(t *testing.T) {
	c := MustNew("test",
		Descriptor{Name: "a", Display: "A", Selectable: true, Extract: extractor.Text("a")},
		Descriptor{Name: "b", Display: "B", Extract: extractor.Text("b")},
	)

	assert.Equal(t, map[models.FieldName]string{"a": "A"}, c.SelectableFields())
	assert.Len(t, c.AllFields(), 2)
	assert.Equal(t, []models.FieldName{"a"}, c.SelectableNames())
	assert.True(t, c.CanSupply([]models.FieldName{"z", "b"}))
	assert.False(t, c.CanSupply([]models.FieldName{"z"}))
	assert.False(t, c.CanSupply(nil))
}

func TestDefaultDetailsParsesMicrodata(t *testing.T) {
	html := `<html><body>
		<h1 itemprop="name">Heat</h1>
		<time itemprop="duration" datetime="PT2H50M">2h 50m</time>
		<span itemprop="copyrightYear">1995</span>
		<span itemprop="contentRating">R</span>
		<span itemprop="ratingValue" content="4.1">4.1</span>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	c := DefaultDetails()
	want := map[models.FieldName]models.Value{
		FieldLength:       models.Number(170),
		FieldReleaseYear:  models.Number(1995),
		FieldMPAA:         models.Text("R"),
		FieldDetailRating: models.Number(4.1),
	}
	for name, v := range want {
		d, ok := c.Lookup(name)
		require.True(t, ok)
		got, ok := d.Extract(doc.Selection)
		require.True(t, ok, name)
		assert.True(t, v.Equal(got), "%s: got %+v", name, got)
	}
}
