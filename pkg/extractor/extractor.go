package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/video-analitics/queuesorter/pkg/models"
)

// Func pulls one field value out of a parsed page fragment. The selection is
// a queue row for local fields or the whole document for detail pages.
type Func func(s *goquery.Selection) (models.Value, bool)

var numberRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

func find(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return s
	}
	return s.Find(selector).First()
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func Text(selector string) Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		sel := find(s, selector)
		if sel.Length() == 0 {
			return models.Value{}, false
		}
		text := clean(sel.Text())
		if text == "" {
			return models.Value{}, false
		}
		return models.Text(text), true
	}
}

func Attr(selector, attr string) Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		val, ok := find(s, selector).Attr(attr)
		val = clean(val)
		if !ok || val == "" {
			return models.Value{}, false
		}
		return models.Text(val), true
	}
}

func Number(selector string) Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		return parseNumber(find(s, selector).Text())
	}
}

func NumberAttr(selector, attr string) Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		val, ok := find(s, selector).Attr(attr)
		if !ok {
			return models.Value{}, false
		}
		return parseNumber(val)
	}
}

func parseNumber(raw string) (models.Value, bool) {
	m := numberRe.FindString(raw)
	if m == "" {
		return models.Value{}, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return models.Value{}, false
	}
	return models.Number(f), true
}

// List collects the text of every match, e.g. all genre links.
func List(selector string) Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		var out []string
		s.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if t := clean(sel.Text()); t != "" {
				out = append(out, t)
			}
		})
		if len(out) == 0 {
			return models.Value{}, false
		}
		return models.List(out...), true
	}
}

// Date parses the element's datetime/content attribute, then its text.
func Date(selector string) Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		sel := find(s, selector)
		if sel.Length() == 0 {
			return models.Value{}, false
		}
		for _, attr := range []string{"datetime", "content"} {
			if raw, ok := sel.Attr(attr); ok {
				if t, ok := ParseDate(raw); ok {
					return models.Date(t), true
				}
			}
		}
		if t, ok := ParseDate(sel.Text()); ok {
			return models.Date(t), true
		}
		return models.Value{}, false
	}
}

// FirstOf tries each extractor in priority order and keeps the first hit.
func FirstOf(fns ...Func) Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		for _, fn := range fns {
			if v, ok := fn(s); ok {
				return v, true
			}
		}
		return models.Value{}, false
	}
}

var widthRe = regexp.MustCompile(`width:\s*([\d.]+)px`)

// StarsFromWidth converts a rendered rating mask into stars: a mask of
// fullWidth pixels is maxStars.
func StarsFromWidth(selector string, fullWidth, maxStars float64) Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		style, ok := find(s, selector).Attr("style")
		if !ok {
			return models.Value{}, false
		}
		m := widthRe.FindStringSubmatch(style)
		if m == nil {
			return models.Value{}, false
		}
		px, err := strconv.ParseFloat(m[1], 64)
		if err != nil || fullWidth <= 0 {
			return models.Value{}, false
		}
		return models.Number(px / fullWidth * maxStars), true
	}
}
