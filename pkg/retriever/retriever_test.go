package retriever

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/models"
	"github.com/video-analitics/queuesorter/pkg/source"
)

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fail    map[string]bool
	calls   []string
	times   []time.Time
	ctxErrs []error
	onFetch func()
}

func (f *fakeFetcher) FetchItem(ctx context.Context, id string) ([]byte, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	f.times = append(f.times, time.Now())
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.fail[id] {
		return nil, errors.New("connection reset")
	}
	if page, ok := f.pages[id]; ok {
		return []byte(page), nil
	}
	return []byte(detailPage(90, 2001, "PG", 3.5)), nil
}

func detailPage(minutes, year int, mpaa string, rating float64) string {
	return fmt.Sprintf(`<html><body>
		<time itemprop="duration" datetime="PT%dM"></time>
		<span itemprop="copyrightYear">%d</span>
		<span itemprop="contentRating">%s</span>
		<span itemprop="ratingValue" content="%.1f"></span>
	</body></html>`, minutes, year, mpaa, rating)
}

func queueItems(n int) []*models.Item {
	items := make([]*models.Item, n)
	for i := range items {
		items[i] = &models.Item{ID: fmt.Sprintf("%d", i+1), OriginalPosition: i + 1, Fields: models.Fields{}}
	}
	return items
}

func complete(it *models.Item) {
	it.Set(catalog.FieldLength, models.Number(100))
	it.Set(catalog.FieldReleaseYear, models.Number(1999))
	it.Set(catalog.FieldDetailRating, models.Number(4))
}

func TestRemotePopulatesAllSelectableFields(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{"1": detailPage(170, 1995, "R", 4.1)}}
	r := NewRemote(catalog.DefaultDetails(), f, WithDelay(time.Millisecond))

	items := queueItems(1)
	req := Request{Fields: []models.FieldName{catalog.FieldLength}}
	require.NoError(t, r.RetrieveData(context.Background(), req, items, nil))

	it := items[0]
	for name, want := range map[models.FieldName]models.Value{
		catalog.FieldLength:       models.Number(170),
		catalog.FieldReleaseYear:  models.Number(1995),
		catalog.FieldMPAA:         models.Text("R"),
		catalog.FieldDetailRating: models.Number(4.1),
	} {
		got, ok := it.Get(name)
		require.True(t, ok, name)
		assert.True(t, want.Equal(got), "%s: %+v", name, got)
	}
}

func TestRemoteSkipsCachedButChecksInEveryPosition(t *testing.T) {
	f := &fakeFetcher{}
	r := NewRemote(catalog.DefaultDetails(), f, WithDelay(time.Millisecond))

	items := queueItems(5)
	complete(items[1])
	complete(items[3])

	var checked []int
	err := r.RetrieveData(context.Background(), Request{}, items, func(i int) bool {
		checked = append(checked, i)
		return false
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, checked)
	assert.Equal(t, []string{"1", "3", "5"}, f.calls)
}

func TestRemoteRateBound(t *testing.T) {
	const delay = 40 * time.Millisecond
	f := &fakeFetcher{}
	r := NewRemote(catalog.DefaultDetails(), f, WithDelay(delay))

	items := queueItems(6)
	complete(items[0])
	complete(items[2])

	start := time.Now()
	require.NoError(t, r.RetrieveData(context.Background(), Request{}, items, nil))
	elapsed := time.Since(start)

	require.Len(t, f.times, 4)
	for i := 1; i < len(f.times); i++ {
		gap := f.times[i].Sub(f.times[i-1])
		assert.GreaterOrEqual(t, gap, delay-5*time.Millisecond, "gap %d", i)
	}
	// cached items do not consume a slot: 4 fetches need 3 waits
	assert.Less(t, elapsed, 5*delay+delay/2)
}

func TestRemoteStopsOnCheckin(t *testing.T) {
	f := &fakeFetcher{}
	r := NewRemote(catalog.DefaultDetails(), f, WithDelay(time.Millisecond))

	items := queueItems(5)
	err := r.RetrieveData(context.Background(), Request{}, items, func(i int) bool {
		return i == 1
	})

	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, []string{"1", "2"}, f.calls)
	assert.False(t, items[2].Has(catalog.FieldLength))
}

func TestRemoteInFlightFetchSurvivesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{onFetch: cancel}
	r := NewRemote(catalog.DefaultDetails(), f, WithDelay(time.Millisecond))

	items := queueItems(3)
	err := r.RetrieveData(ctx, Request{}, items, nil)

	assert.ErrorIs(t, err, ErrStopped)
	require.Len(t, f.calls, 1)
	assert.NoError(t, f.ctxErrs[0])
	assert.True(t, items[0].Has(catalog.FieldLength))
}

func TestRemoteFailureAssignsSentinel(t *testing.T) {
	f := &fakeFetcher{
		fail:  map[string]bool{"2": true},
		pages: map[string]string{"3": `<html><body><span itemprop="contentRating">G</span></body></html>`},
	}
	r := NewRemote(catalog.DefaultDetails(), f, WithDelay(time.Millisecond))

	items := queueItems(3)
	require.NoError(t, r.RetrieveData(context.Background(), Request{}, items, nil))

	v, ok := items[1].Get(catalog.FieldLength)
	require.True(t, ok)
	assert.True(t, v.IsSentinel())
	assert.False(t, items[1].Has(catalog.FieldMPAA), "text fields stay absent")

	v, _ = items[2].Get(catalog.FieldDetailRating)
	assert.True(t, v.IsSentinel(), "unparseable required number")
	mpaa, _ := items[2].Get(catalog.FieldMPAA)
	assert.Equal(t, "G", mpaa.Text)

	assert.Equal(t, []string{"1", "2", "3"}, f.calls, "one bad item does not stop the rest")
}

func TestRemoteForceRefresh(t *testing.T) {
	f := &fakeFetcher{}
	r := NewRemote(catalog.DefaultDetails(), f, WithDelay(time.Millisecond))

	items := queueItems(2)
	complete(items[0])
	complete(items[1])

	require.NoError(t, r.RetrieveData(context.Background(), Request{ForceRefresh: true}, items, nil))
	assert.Equal(t, []string{"1", "2"}, f.calls)
	v, _ := items[0].Get(catalog.FieldLength)
	assert.Equal(t, 90.0, v.Num)
}

func TestCanRetrieveData(t *testing.T) {
	r := NewRemote(catalog.DefaultDetails(), &fakeFetcher{})
	assert.Equal(t, catalog.OwnerDetails, r.ID())
	assert.True(t, r.CanRetrieveData([]models.FieldName{catalog.FieldTitle, catalog.FieldLength}))
	assert.False(t, r.CanRetrieveData([]models.FieldName{catalog.FieldTitle}))
}

func TestLocalRefreshesFromSource(t *testing.T) {
	src := source.NewStatic(
		&models.Item{ID: "1", OriginalPosition: 1, Fields: models.Fields{catalog.FieldTitle: models.Text("Heat")}},
		&models.Item{ID: "2", OriginalPosition: 2, Fields: models.Fields{catalog.FieldTitle: models.Text("Alien")}},
	)
	l := NewLocal(catalog.DefaultQueue(), src)

	items := queueItems(2)
	items[1].Set(catalog.FieldStarRating, models.Number(5))

	var checked []int
	err := l.RetrieveData(context.Background(), Request{}, items, func(i int) bool {
		checked = append(checked, i)
		return false
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, checked)
	title, _ := items[0].Get(catalog.FieldTitle)
	assert.Equal(t, "Heat", title.Text)
	assert.False(t, items[1].Has(catalog.FieldStarRating), "stale local value dropped")
}

func TestLocalRefreshUsesLastRead(t *testing.T) {
	src := source.NewStatic(
		&models.Item{ID: "1", OriginalPosition: 1, Fields: models.Fields{catalog.FieldTitle: models.Text("Heat")}},
	)
	l := NewLocal(catalog.DefaultQueue(), src)

	read, err := l.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, read, 1)

	src.Replace([]*models.Item{
		{ID: "1", OriginalPosition: 1, Fields: models.Fields{catalog.FieldTitle: models.Text("Ronin")}},
	})

	items := queueItems(1)
	require.NoError(t, l.RetrieveData(context.Background(), Request{}, items, nil))
	title, _ := items[0].Get(catalog.FieldTitle)
	assert.Equal(t, "Heat", title.Text, "served from the read that fixed the positions")
}

func TestSequenceStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := 0
	err := Sequence(ctx, queueItems(3), func(*models.Item) bool { return true },
		func(context.Context, int, *models.Item) { steps++ }, nil, nil)

	assert.ErrorIs(t, err, ErrStopped)
	assert.Zero(t, steps)
}
