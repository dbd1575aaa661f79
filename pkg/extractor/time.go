package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/video-analitics/queuesorter/pkg/models"
)

var dateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
	time.RFC3339,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2006",
	"2006",
}

// ParseDate accepts the calendar date spellings queue and detail pages use.
func ParseDate(raw string) (time.Time, bool) {
	s := clean(raw)
	s = strings.TrimPrefix(s, "Available ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var (
	isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:\d+S)?$`)
	hoursRe       = regexp.MustCompile(`(\d+)\s*(?:h|hr|hrs|hour|hours)\b`)
	minutesRe     = regexp.MustCompile(`(\d+)\s*(?:m|min|mins|minutes)\b`)
)

// ParseMinutes reads "PT1H52M", "1h 52m", "112 minutes" and the like.
func ParseMinutes(raw string) (float64, bool) {
	s := strings.ToLower(clean(raw))
	if s == "" {
		return 0, false
	}
	if m := isoDurationRe.FindStringSubmatch(strings.ToUpper(s)); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		if h == 0 && mins == 0 {
			return 0, false
		}
		return float64(h*60 + mins), true
	}
	var total int
	found := false
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		total += h * 60
		found = true
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.Atoi(m[1])
		total += mins
		found = true
	}
	if !found {
		if n, err := strconv.Atoi(s); err == nil {
			return float64(n), true
		}
		return 0, false
	}
	return float64(total), true
}

// Minutes extracts a running time, preferring a machine-readable attribute.
func Minutes(selector string) Func {
	return func(s *goquery.Selection) (models.Value, bool) {
		sel := find(s, selector)
		if sel.Length() == 0 {
			return models.Value{}, false
		}
		for _, attr := range []string{"datetime", "content"} {
			if raw, ok := sel.Attr(attr); ok {
				if n, ok := ParseMinutes(raw); ok {
					return models.Number(n), true
				}
			}
		}
		if n, ok := ParseMinutes(sel.Text()); ok {
			return models.Number(n), true
		}
		return models.Value{}, false
	}
}
