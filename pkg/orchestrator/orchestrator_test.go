package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-analitics/queuesorter/pkg/cache"
	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/models"
	"github.com/video-analitics/queuesorter/pkg/queue"
	"github.com/video-analitics/queuesorter/pkg/retriever"
	"github.com/video-analitics/queuesorter/pkg/settings"
	"github.com/video-analitics/queuesorter/pkg/sink"
	"github.com/video-analitics/queuesorter/pkg/sorting"
	"github.com/video-analitics/queuesorter/pkg/source"
	"github.com/video-analitics/queuesorter/pkg/status"
)

type detailFetcher struct {
	mu      sync.Mutex
	ratings map[string]float64
	fail    map[string]bool
	calls   []string
	onFetch func(id string)
}

func (f *detailFetcher) FetchItem(_ context.Context, id string) ([]byte, error) {
	if f.onFetch != nil {
		f.onFetch(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return nil, errors.New("upstream returned 503")
	}

	rating, ok := f.ratings[id]
	if !ok {
		rating = 3
	}
	page := fmt.Sprintf(`<html><body>
		<time itemprop="duration" datetime="PT%dM"></time>
		<span itemprop="copyrightYear">2001</span>
		<span itemprop="ratingValue" content="%.1f"></span>
	</body></html>`, 60+len(f.calls), rating)
	return []byte(page), nil
}

func (f *detailFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fixture struct {
	orch     *Orchestrator
	source   *source.Static
	fetcher  *detailFetcher
	cache    *cache.Memory
	recorder *sink.Recorder

	mu     sync.Mutex
	states []string
}

func (f *fixture) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.states...)
}

func newFixture(t *testing.T, items ...*models.Item) *fixture {
	t.Helper()
	f := &fixture{
		source:   source.NewStatic(items...),
		fetcher:  &detailFetcher{ratings: map[string]float64{}, fail: map[string]bool{}},
		cache:    cache.NewMemory(),
		recorder: sink.NewRecorder(),
	}

	remote := retriever.NewRemote(catalog.DefaultDetails(), f.fetcher, retriever.WithDelay(time.Millisecond))
	orch, err := New(Deps{
		Namespace: "test",
		Queue:     catalog.DefaultQueue(),
		Source:    f.source,
		Remotes:   []retriever.Retriever{remote},
		Cache:     f.cache,
		Sink:      f.recorder,
		Progress: func(p queue.Progress) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if n := len(f.states); n == 0 || f.states[n-1] != p.State {
				f.states = append(f.states, p.State)
			}
		},
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

func item(id string, pos int, fields models.Fields) *models.Item {
	if fields == nil {
		fields = models.Fields{}
	}
	return &models.Item{ID: id, OriginalPosition: pos, Fields: fields}
}

func titled(n int) []*models.Item {
	items := make([]*models.Item, n)
	for i := range items {
		items[i] = item(fmt.Sprintf("item%d", i+1), i+1, models.Fields{
			catalog.FieldTitle: models.Text(string(rune('z' - i))),
		})
	}
	return items
}

func byTitle() []sorting.Command {
	return []sorting.Command{{
		Kind:        sorting.Sort,
		Fields:      []models.FieldName{catalog.FieldTitle},
		Comparators: []sorting.Comparator{sorting.Lexical},
		Directions:  []sorting.Direction{sorting.Ascending},
	}}
}

func byNumber(field models.FieldName, dir sorting.Direction) []sorting.Command {
	return []sorting.Command{{
		Kind:        sorting.Sort,
		Fields:      []models.FieldName{field},
		Comparators: []sorting.Comparator{sorting.Numeric},
		Directions:  []sorting.Direction{dir},
	}}
}

func TestRunSortsByStarRating(t *testing.T) {
	f := newFixture(t,
		item("item1", 1, models.Fields{catalog.FieldStarRating: models.Number(3)}),
		item("item2", 2, nil),
		item("item3", 3, models.Fields{catalog.FieldStarRating: models.Number(5)}),
		item("item4", 4, models.Fields{catalog.FieldStarRating: models.Number(1)}),
		item("item5", 5, nil),
	)

	res, err := f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldStarRating, sorting.Descending)})
	require.NoError(t, err)

	assert.Equal(t, []string{"item3", "item1", "item4", "item2", "item5"}, res.Order())
	assert.Equal(t, map[string]int{"item3": 1, "item1": 2, "item4": 3, "item2": 4, "item5": 5}, f.recorder.Last())
	assert.Equal(t, 1, f.recorder.Submits())
	assert.Empty(t, f.fetcher.Calls(), "queue fields never hit the details page")
	assert.NotEmpty(t, res.SnapshotID)

	assert.Equal(t, status.Idle, f.orch.State())
	assert.Equal(t, []string{"validating", "retrieving", "sorting", "committing", "idle"}, f.seen())
}

func TestRunFetchesMissingDetailsAndCaches(t *testing.T) {
	f := newFixture(t, titled(3)...)

	_, err := f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldLength, sorting.Ascending)})
	require.NoError(t, err)
	assert.Equal(t, []string{"item1", "item2", "item3"}, f.fetcher.Calls())

	ids, err := f.cache.IDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"item1", "item2", "item3"}, ids)

	_, err = f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldLength, sorting.Descending)})
	require.NoError(t, err)
	assert.Len(t, f.fetcher.Calls(), 3, "second run is served from cache")

	_, err = f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldLength, sorting.Descending), ForceRefresh: true})
	require.NoError(t, err)
	assert.Len(t, f.fetcher.Calls(), 6)
}

func TestRunFetchesGroupRepresentativeFirst(t *testing.T) {
	f := newFixture(t,
		item("A", 1, models.Fields{catalog.FieldTitle: models.Text("Season 1")}),
		item("B", 2, models.Fields{catalog.FieldTitle: models.Text("Season 2")}),
		item("C", 3, models.Fields{catalog.FieldAvgRating: models.Number(4)}),
	)
	f.source.Replace([]*models.Item{
		item("A", 1, models.Fields{catalog.FieldTitle: models.Text("Season 1")}),
		{ID: "B", GroupID: "A", OriginalPosition: 2, Fields: models.Fields{catalog.FieldTitle: models.Text("Season 2")}},
		item("C", 3, models.Fields{catalog.FieldAvgRating: models.Number(4)}),
	})
	f.fetcher.ratings["A"] = 3.5

	res, err := f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldAvgRating, sorting.Descending)})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, f.fetcher.Calls(), "the sibling is backfilled from the representative")
	assert.Equal(t, []string{"C", "A", "B"}, res.Order())

	for _, it := range res.Items {
		v, ok := it.Get(catalog.FieldAvgRating)
		require.True(t, ok, it.ID)
		if it.ID != "C" {
			assert.True(t, models.Number(3.5).Equal(v), it.ID)
		}
	}
}

func TestRunBackfillsFromSiblingOutsideRange(t *testing.T) {
	f := newFixture(t)
	f.source.Replace([]*models.Item{
		item("A", 1, models.Fields{catalog.FieldGenre: models.List("Drama")}),
		{ID: "B", GroupID: "A", OriginalPosition: 2, Fields: models.Fields{}},
		item("C", 3, models.Fields{catalog.FieldGenre: models.List("Comedy")}),
	})

	cmds := []sorting.Command{{
		Kind:         sorting.Sort,
		Fields:       []models.FieldName{catalog.FieldGenre},
		Comparators:  []sorting.Comparator{sorting.Custom},
		Directions:   []sorting.Direction{sorting.Ascending},
		DefaultOrder: []string{"Comedy", "Drama"},
	}}
	res, err := f.orch.Run(context.Background(), Request{Commands: cmds, Range: &settings.Range{From: 2, To: 3}})
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "B"}, res.Order())
	assert.Equal(t, map[string]int{"C": 2, "B": 3}, f.recorder.Last(), "items outside the range keep their positions")
	assert.Empty(t, f.fetcher.Calls())
}

func TestRunRejectsDanglingGroup(t *testing.T) {
	f := newFixture(t)
	f.source.Replace([]*models.Item{
		item("A", 1, nil),
		{ID: "B", GroupID: "missing", OriginalPosition: 2, Fields: models.Fields{}},
	})

	_, err := f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldAvgRating, sorting.Descending)})

	var se *StructureError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "B", se.ItemID)
	assert.ErrorIs(t, err, ErrStructure)
	assert.Zero(t, f.recorder.Writes())
}

func TestRunRejectsMalformedQueue(t *testing.T) {
	tests := []struct {
		name  string
		items []*models.Item
	}{
		{"duplicate id", []*models.Item{item("a", 1, nil), item("a", 2, nil)}},
		{"gap", []*models.Item{item("a", 1, nil), item("b", 3, nil)}},
		{"empty id", []*models.Item{item("", 1, nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.items...)
			_, err := f.orch.Run(context.Background(), Request{Commands: byTitle()})
			assert.ErrorIs(t, err, ErrStructure)
			assert.Equal(t, status.Idle, f.orch.State())
		})
	}
}

func TestRunValidatesInput(t *testing.T) {
	f := newFixture(t, titled(3)...)

	_, err := f.orch.Run(context.Background(), Request{Commands: byNumber("bogus", sorting.Ascending)})
	assert.ErrorIs(t, err, sorting.ErrInvalidCommand)

	_, err = f.orch.Run(context.Background(), Request{Commands: []sorting.Command{{Kind: "flip"}}})
	assert.ErrorIs(t, err, sorting.ErrInvalidCommand)

	for _, r := range []settings.Range{{From: 0, To: 2}, {From: 3, To: 2}, {From: 1, To: 4}} {
		_, err = f.orch.Run(context.Background(), Request{Commands: byTitle(), Range: &r})
		assert.ErrorIs(t, err, ErrInvalidRange, "%+v", r)
	}

	assert.Zero(t, f.recorder.Writes())
	assert.Equal(t, status.Idle, f.orch.State())
}

func TestRunReusesStoredRange(t *testing.T) {
	f := newFixture(t, titled(5)...)

	res, err := f.orch.Run(context.Background(), Request{Commands: byTitle(), Range: &settings.Range{From: 2, To: 4}})
	require.NoError(t, err)
	assert.Equal(t, []string{"item4", "item3", "item2"}, res.Order())
	assert.Equal(t, map[string]int{"item4": 2, "item3": 3, "item2": 4}, f.recorder.Last())

	res, err = f.orch.Run(context.Background(), Request{Commands: byTitle()})
	require.NoError(t, err)
	assert.Equal(t, settings.Range{From: 2, To: 4}, res.Range)

	f.source.Replace(titled(2))
	res, err = f.orch.Run(context.Background(), Request{Commands: byTitle()})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2, "a stored range that no longer fits falls back to the whole queue")
}

func TestCancelDuringRetrievalWritesNothing(t *testing.T) {
	f := newFixture(t, titled(4)...)
	f.fetcher.onFetch = func(string) {
		assert.True(t, f.orch.Cancel())
	}

	_, err := f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldLength, sorting.Ascending)})
	require.ErrorIs(t, err, ErrCancelled)

	assert.Len(t, f.fetcher.Calls(), 1, "the in-flight fetch finishes, nothing new starts")
	assert.Zero(t, f.recorder.Writes())
	assert.Zero(t, f.recorder.Submits())

	ids, err := f.cache.IDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids, "results landing after cancel are discarded")

	assert.Equal(t, status.Idle, f.orch.State())
	assert.Contains(t, f.seen(), "cancelling")
	assert.False(t, f.orch.Cancel(), "nothing left to cancel")
}

func TestConcurrentInvocationIsBusy(t *testing.T) {
	f := newFixture(t, titled(2)...)
	release := make(chan struct{})
	f.fetcher.onFetch = func(string) { <-release }

	require.NoError(t, f.orch.Start(context.Background(), Request{Commands: byNumber(catalog.FieldLength, sorting.Ascending)}))
	assert.Eventually(t, func() bool { return f.orch.State() == status.Retrieving }, time.Second, 5*time.Millisecond)

	_, err := f.orch.Run(context.Background(), Request{Commands: byTitle()})
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, f.orch.Start(context.Background(), Request{Commands: byTitle()}), ErrBusy)
	assert.ErrorIs(t, f.orch.Warm(context.Background()), ErrBusy)
	_, err = f.orch.Undo(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	assert.Eventually(t, func() bool { return f.orch.LastOutcome() != nil }, time.Second, 5*time.Millisecond)
	assert.Empty(t, f.orch.LastOutcome().Error)
	assert.Equal(t, status.Idle, f.orch.State())
}

func TestUndoToggles(t *testing.T) {
	f := newFixture(t, titled(3)...)

	_, err := f.orch.Undo(context.Background())
	require.ErrorIs(t, err, ErrNothingToUndo)

	_, err = f.orch.Run(context.Background(), Request{Commands: byTitle()})
	require.NoError(t, err)
	sorted := map[string]int{"item3": 1, "item2": 2, "item1": 3}
	original := map[string]int{"item1": 1, "item2": 2, "item3": 3}
	assert.Equal(t, sorted, f.recorder.Last())
	assert.True(t, f.orch.CanUndo())

	_, err = f.orch.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, original, f.recorder.Last())

	_, err = f.orch.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sorted, f.recorder.Last())
	assert.Equal(t, status.Idle, f.orch.State())
}

type failingSink struct{ *sink.Recorder }

func (s *failingSink) SubmitNewOrder(context.Context) error { return errors.New("host rejected order") }

func TestCommitFailureKeepsPreviousSnapshot(t *testing.T) {
	orch, err := New(Deps{
		Namespace: "test",
		Queue:     catalog.DefaultQueue(),
		Source:    source.NewStatic(titled(2)...),
		Sink:      &failingSink{Recorder: sink.NewRecorder()},
	})
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), Request{Commands: byTitle()})
	assert.ErrorContains(t, err, "host rejected order")
	assert.False(t, orch.CanUndo())
	assert.Equal(t, status.Idle, orch.State())
}

func TestWarmFillsCache(t *testing.T) {
	f := newFixture(t, titled(3)...)

	require.NoError(t, f.orch.Warm(context.Background()))
	assert.Len(t, f.fetcher.Calls(), 3)

	for _, id := range []string{"item1", "item2", "item3"} {
		fields, ok, err := f.cache.Get(context.Background(), id)
		require.NoError(t, err)
		require.True(t, ok, id)
		assert.Contains(t, fields, catalog.FieldLength)
		assert.Contains(t, fields, catalog.FieldDetailRating)
	}

	_, err := f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldReleaseYear, sorting.Ascending)})
	require.NoError(t, err)
	assert.Len(t, f.fetcher.Calls(), 3)
	assert.Equal(t, 3, f.recorder.Writes())
}

func TestNewRejectsClashingCatalogs(t *testing.T) {
	dup := retriever.NewRemote(catalog.DefaultQueue(), &detailFetcher{})
	_, err := New(Deps{
		Queue:   catalog.DefaultQueue(),
		Source:  source.NewStatic(),
		Sink:    sink.NewRecorder(),
		Remotes: []retriever.Retriever{dup},
	})
	assert.ErrorIs(t, err, catalog.ErrDuplicateField)
}

func TestRunFailedFetchSortsLast(t *testing.T) {
	f := newFixture(t, titled(3)...)
	f.fetcher.fail["item1"] = true

	res, err := f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldLength, sorting.Ascending)})
	require.NoError(t, err)
	assert.Equal(t, []string{"item2", "item3", "item1"}, res.Order())

	v, ok := res.Items[2].Get(catalog.FieldLength)
	require.True(t, ok)
	assert.True(t, v.IsSentinel())

	res, err = f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldLength, sorting.Descending)})
	require.NoError(t, err)
	assert.Equal(t, []string{"item3", "item2", "item1"}, res.Order())

	assert.Equal(t, 2, f.recorder.Submits())
	assert.Equal(t, []string{"item1", "item2", "item3", "item1"}, f.fetcher.Calls(), "failures are not cached")
}

func TestRunFallsBackToSiblingWhenRepresentativeFails(t *testing.T) {
	f := newFixture(t)
	f.source.Replace([]*models.Item{
		item("A", 1, nil),
		{ID: "B", GroupID: "A", OriginalPosition: 2, Fields: models.Fields{}},
		item("C", 3, models.Fields{catalog.FieldAvgRating: models.Number(4)}),
	})
	f.fetcher.fail["A"] = true
	f.fetcher.ratings["B"] = 4.5

	res, err := f.orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldAvgRating, sorting.Descending)})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, f.fetcher.Calls())
	assert.Equal(t, []string{"A", "B", "C"}, res.Order())
	for _, it := range res.Items[:2] {
		v, ok := it.Get(catalog.FieldAvgRating)
		require.True(t, ok, it.ID)
		assert.True(t, models.Number(4.5).Equal(v), it.ID)
	}
}

type countingSource struct {
	*source.Static
	lists atomic.Int32
}

func (s *countingSource) ListItems(ctx context.Context) ([]*models.Item, error) {
	s.lists.Add(1)
	return s.Static.ListItems(ctx)
}

func TestRunListsQueueOnce(t *testing.T) {
	src := &countingSource{Static: source.NewStatic(
		item("item1", 1, models.Fields{catalog.FieldStarRating: models.Number(2)}),
		item("item2", 2, nil),
		item("item3", 3, models.Fields{catalog.FieldStarRating: models.Number(4)}),
	)}
	orch, err := New(Deps{
		Namespace: "test",
		Queue:     catalog.DefaultQueue(),
		Source:    src,
		Sink:      sink.NewRecorder(),
	})
	require.NoError(t, err)

	res, err := orch.Run(context.Background(), Request{Commands: byNumber(catalog.FieldStarRating, sorting.Descending)})
	require.NoError(t, err)

	assert.Equal(t, []string{"item3", "item1", "item2"}, res.Order())
	assert.Equal(t, int32(1), src.lists.Load(), "an item missing a local field does not trigger a second read")
}

func TestStartRejectsInvalidRequestsSynchronously(t *testing.T) {
	f := newFixture(t, titled(3)...)

	uneven := []sorting.Command{{Kind: sorting.Sort, Fields: []models.FieldName{catalog.FieldTitle}}}
	assert.ErrorIs(t, f.orch.Start(context.Background(), Request{Commands: uneven}), sorting.ErrInvalidCommand)
	assert.ErrorIs(t, f.orch.Start(context.Background(), Request{Commands: byNumber("bogus", sorting.Ascending)}), sorting.ErrInvalidCommand)
	assert.ErrorIs(t, f.orch.Start(context.Background(), Request{Commands: byTitle(), Range: &settings.Range{From: 2, To: 9}}), ErrInvalidRange)

	f.source.Replace([]*models.Item{item("a", 1, nil), item("a", 2, nil)})
	assert.ErrorIs(t, f.orch.Start(context.Background(), Request{Commands: byTitle()}), ErrStructure)

	assert.Nil(t, f.orch.LastOutcome())
	assert.Equal(t, status.Idle, f.orch.State())
	assert.Zero(t, f.recorder.Writes())
	assert.Empty(t, f.fetcher.Calls())
}
