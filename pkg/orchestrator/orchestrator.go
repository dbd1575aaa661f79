package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/video-analitics/queuesorter/pkg/cache"
	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/models"
	"github.com/video-analitics/queuesorter/pkg/queue"
	"github.com/video-analitics/queuesorter/pkg/retriever"
	"github.com/video-analitics/queuesorter/pkg/settings"
	"github.com/video-analitics/queuesorter/pkg/sink"
	"github.com/video-analitics/queuesorter/pkg/sorting"
	"github.com/video-analitics/queuesorter/pkg/source"
	"github.com/video-analitics/queuesorter/pkg/status"
)

type ProgressFunc func(queue.Progress)

type Deps struct {
	Namespace string
	Queue     *catalog.Catalog
	Source    source.ItemSource
	Remotes   []retriever.Retriever
	Cache     cache.Store
	Settings  *settings.Store
	Sink      sink.Sink
	Engine    *sorting.Engine
	Progress  ProgressFunc
}

type Request struct {
	Commands []sorting.Command `json:"commands"`
	// Range nil means the last used range.
	Range        *settings.Range `json:"range,omitempty"`
	ForceRefresh bool            `json:"force_refresh,omitempty"`
}

type Result struct {
	SnapshotID string         `json:"snapshot_id"`
	Range      settings.Range `json:"range"`
	Items      []*models.Item `json:"items"`
	Progress   queue.Progress `json:"progress"`
	Duration   time.Duration  `json:"duration"`
}

// Order lists item ids in their new order.
func (r *Result) Order() []string {
	ids := make([]string, len(r.Items))
	for i, it := range r.Items {
		ids[i] = it.ID
	}
	return ids
}

// Outcome is the last finished invocation started with Start.
type Outcome struct {
	Result     *Result   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Orchestrator drives one queue: read, retrieve, sort, commit. Only one
// invocation runs at a time.
type Orchestrator struct {
	ns         string
	queue      *catalog.Catalog
	local      *retriever.Local
	remotes    []retriever.Retriever
	catalogs   []*catalog.Catalog
	cache      cache.Store
	settings   *settings.Store
	sink       sink.Sink
	engine     *sorting.Engine
	onProgress ProgressFunc

	mu        sync.Mutex
	state     status.Orchestrator
	cancelled bool
	cancel    context.CancelFunc
	progress  queue.Progress
	undo      *snapshot
	last      *Outcome
}

func New(d Deps) (*Orchestrator, error) {
	if d.Queue == nil || d.Source == nil || d.Sink == nil {
		return nil, errors.New("orchestrator needs a queue catalog, an item source and a sink")
	}

	catalogs := []*catalog.Catalog{d.Queue}
	for _, r := range d.Remotes {
		catalogs = append(catalogs, r.Catalog())
	}
	if err := catalog.Validate(catalogs...); err != nil {
		return nil, fmt.Errorf("queue %s: %w", d.Namespace, err)
	}

	o := &Orchestrator{
		ns:         d.Namespace,
		queue:      d.Queue,
		local:      retriever.NewLocal(d.Queue, d.Source),
		remotes:    d.Remotes,
		catalogs:   catalogs,
		cache:      d.Cache,
		settings:   d.Settings,
		sink:       d.Sink,
		engine:     d.Engine,
		onProgress: d.Progress,
		state:      status.Idle,
	}
	if o.cache == nil {
		o.cache = cache.NewMemory()
	}
	if o.settings == nil {
		o.settings = settings.NewStore(settings.NewMemoryKV(), d.Namespace)
	}
	if o.engine == nil {
		o.engine = sorting.NewEngine()
	}
	return o, nil
}

func (o *Orchestrator) Namespace() string            { return o.ns }
func (o *Orchestrator) Catalogs() []*catalog.Catalog { return o.catalogs }
func (o *Orchestrator) Settings() *settings.Store    { return o.settings }
func (o *Orchestrator) Cache() cache.Store           { return o.cache }

func (o *Orchestrator) State() status.Orchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Progress() queue.Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

func (o *Orchestrator) CanUndo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.undo != nil
}

func (o *Orchestrator) LastOutcome() *Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Run executes one sort invocation synchronously.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	runCtx, p, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.execute(runCtx, req, p)
}

// Start acquires the orchestrator, validates the request and reads the queue
// synchronously, then retrieves, sorts and commits in the background. Busy,
// invalid commands, invalid ranges and structural errors are returned here;
// the outcome of the rest is kept for LastOutcome.
func (o *Orchestrator) Start(ctx context.Context, req Request) error {
	runCtx, p, err := o.begin(ctx, req)
	if err != nil {
		return err
	}

	go func() {
		res, err := o.execute(runCtx, req, p)
		out := &Outcome{Result: res, FinishedAt: time.Now()}
		if err != nil {
			out.Error = err.Error()
		}
		o.mu.Lock()
		o.last = out
		o.mu.Unlock()
	}()
	return nil
}

func (o *Orchestrator) begin(ctx context.Context, req Request) (context.Context, *plan, error) {
	runCtx, err := o.acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	p, err := o.prepare(runCtx, req)
	if err != nil {
		o.finish(err)
		return nil, nil, err
	}
	return runCtx, p, nil
}

// Cancel asks a running invocation to stop. It only succeeds while items
// are still being read or retrieved.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.IsCancellable() || o.cancelled {
		return false
	}
	o.cancelled = true
	if o.cancel != nil {
		o.cancel()
	}
	return true
}

// Warm fetches every remote field for the whole queue without sorting, so
// later invocations are served from cache.
func (o *Orchestrator) Warm(ctx context.Context) (retErr error) {
	runCtx, err := o.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { o.finish(retErr) }()

	log := o.logger(runCtx)
	items, err := o.readItems(runCtx)
	if err != nil {
		return err
	}

	var fields []models.FieldName
	for _, r := range o.remotes {
		fields = append(fields, r.Catalog().SelectableNames()...)
	}
	if len(fields) == 0 || len(items) == 0 {
		return nil
	}

	if err := o.advance(status.Retrieving); err != nil {
		return err
	}
	start := time.Now()
	err = o.retrieve(runCtx, log, items, items, fields, false)
	log.Info().Int("items", len(items)).Dur("took", time.Since(start)).Err(err).Msg("cache warmed")
	return err
}

func (o *Orchestrator) acquire(ctx context.Context) (context.Context, error) {
	o.mu.Lock()
	if o.state.IsBusy() {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.state = status.Validating
	o.cancelled = false
	o.cancel = cancel
	o.progress = queue.Progress{Queue: o.ns, State: string(status.Validating), At: time.Now()}
	p := o.progress
	o.mu.Unlock()

	o.report(p)
	return runCtx, nil
}

// advance moves to the next state. Once cancellation was requested only the
// unwinding states are reachable.
func (o *Orchestrator) advance(to status.Orchestrator) error {
	o.mu.Lock()
	if o.cancelled && to != status.Cancelling && to != status.Idle {
		o.mu.Unlock()
		return ErrCancelled
	}
	if !status.CanTransition(o.state, to) {
		from := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, from, to)
	}
	o.state = to
	o.progress.State = string(to)
	o.progress.At = time.Now()
	p := o.progress
	o.mu.Unlock()

	o.report(p)
	return nil
}

func (o *Orchestrator) finish(err error) {
	if errors.Is(err, ErrCancelled) {
		_ = o.advance(status.Cancelling)
	}

	o.mu.Lock()
	o.state = status.Idle
	o.cancelled = false
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.progress.State = string(status.Idle)
	o.progress.At = time.Now()
	p := o.progress
	o.mu.Unlock()

	o.report(p)
}

func (o *Orchestrator) isCancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled
}

func (o *Orchestrator) report(p queue.Progress) {
	if o.onProgress != nil {
		o.onProgress(p)
	}
}

func (o *Orchestrator) addWork(retrieverID string, n int) {
	o.mu.Lock()
	o.progress.Retriever = retrieverID
	o.progress.Total += n
	o.progress.At = time.Now()
	p := o.progress
	o.mu.Unlock()
	o.report(p)
}

func (o *Orchestrator) stepDone() {
	o.mu.Lock()
	o.progress.Done++
	o.progress.At = time.Now()
	p := o.progress
	o.mu.Unlock()
	o.report(p)
}

func (o *Orchestrator) logger(ctx context.Context) zerolog.Logger {
	debug, err := o.settings.Debug(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Str("queue", o.ns).Msg("read debug flag")
	}
	return logger.ForDebug(debug).With().Str("queue", o.ns).Logger()
}

// plan is a validated request resolved against the current queue.
type plan struct {
	items    []*models.Item
	selected []*models.Item
	required []models.FieldName
	rng      settings.Range
	from, to int
}

func (o *Orchestrator) prepare(ctx context.Context, req Request) (*plan, error) {
	if err := sorting.Validate(req.Commands); err != nil {
		return nil, err
	}
	required := sorting.RequiredFields(req.Commands)
	if err := o.checkKnown(required); err != nil {
		return nil, err
	}

	items, err := o.readItems(ctx)
	if err != nil {
		return nil, err
	}

	rng, from, to, err := o.resolveRange(ctx, req.Range, len(items))
	if err != nil {
		return nil, err
	}
	selected := items[from-1 : to]

	if err := o.checkGroups(items, selected, required); err != nil {
		return nil, err
	}
	return &plan{items: items, selected: selected, required: required, rng: rng, from: from, to: to}, nil
}

func (o *Orchestrator) execute(ctx context.Context, req Request, p *plan) (res *Result, retErr error) {
	defer func() { o.finish(retErr) }()

	start := time.Now()
	log := o.logger(ctx)
	items, selected, required := p.items, p.selected, p.required
	from, to := p.from, p.to

	force := req.ForceRefresh
	if !force {
		var err error
		if force, err = o.settings.ForceRefresh(ctx); err != nil {
			log.Warn().Err(err).Msg("read force refresh flag")
		}
	}

	if err := o.advance(status.Retrieving); err != nil {
		return nil, err
	}
	if len(required) > 0 && len(selected) > 0 {
		if err := o.retrieve(ctx, log, items, selected, required, force); err != nil {
			return nil, err
		}
	}

	if err := o.advance(status.Sorting); err != nil {
		return nil, err
	}
	sorted, err := o.engine.Evaluate(ctx, selected, req.Commands, o.settings)
	if err != nil {
		return nil, err
	}
	sorting.AssignPositions(sorted, from)

	var snapID string
	if len(sorted) > 0 {
		if err := o.advance(status.Committing); err != nil {
			return nil, err
		}
		if snapID, err = o.commit(context.WithoutCancel(ctx), selected, sorted); err != nil {
			return nil, err
		}
	}

	res = &Result{
		SnapshotID: snapID,
		Range:      p.rng,
		Items:      sorted,
		Progress:   o.Progress(),
		Duration:   time.Since(start),
	}
	log.Info().
		Int("items", len(sorted)).
		Int("from", from).
		Int("to", to).
		Int("fetched", res.Progress.Done).
		Dur("took", res.Duration).
		Msg("queue sorted")
	return res, nil
}

// readItems lists the queue and checks it is a well formed 1..N sequence.
func (o *Orchestrator) readItems(ctx context.Context) ([]*models.Item, error) {
	items, err := o.local.Read(ctx)
	if err != nil {
		if o.isCancelled() {
			return nil, ErrCancelled
		}
		return nil, err
	}

	slices.SortStableFunc(items, func(a, b *models.Item) int {
		return a.OriginalPosition - b.OriginalPosition
	})

	seen := make(map[string]bool, len(items))
	for i, it := range items {
		switch {
		case it.ID == "":
			return nil, &StructureError{Position: it.OriginalPosition, Reason: "empty item id"}
		case seen[it.ID]:
			return nil, &StructureError{ItemID: it.ID, Position: it.OriginalPosition, Reason: "duplicate item id"}
		case it.OriginalPosition != i+1:
			return nil, &StructureError{ItemID: it.ID, Position: it.OriginalPosition, Reason: fmt.Sprintf("expected position %d", i+1)}
		}
		seen[it.ID] = true
		if it.Fields == nil {
			it.Fields = make(models.Fields)
		}
	}
	return items, nil
}

func (o *Orchestrator) checkKnown(fields []models.FieldName) error {
	for _, f := range fields {
		known := false
		for _, c := range o.catalogs {
			if _, ok := c.Lookup(f); ok {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: unknown field %q", sorting.ErrInvalidCommand, f)
		}
	}
	return nil
}

// resolveRange validates an explicit range and persists it. A nil range
// reuses the stored one, falling back to the whole queue when the stored
// range no longer fits.
func (o *Orchestrator) resolveRange(ctx context.Context, r *settings.Range, n int) (settings.Range, int, int, error) {
	if r == nil {
		stored, err := o.settings.Range(ctx)
		if err != nil {
			logger.Log.Warn().Err(err).Str("queue", o.ns).Msg("read stored range")
		}
		if from, to, err := bounds(stored, n); err == nil {
			return stored, from, to, nil
		}
		return settings.Range{}, 1, n, nil
	}

	from, to, err := bounds(*r, n)
	if err != nil {
		return settings.Range{}, 0, 0, err
	}
	if err := o.settings.SetRange(ctx, *r); err != nil {
		logger.Log.Warn().Err(err).Str("queue", o.ns).Msg("persist range")
	}
	return *r, from, to, nil
}

func bounds(r settings.Range, n int) (int, int, error) {
	if r.IsZero() {
		return 1, n, nil
	}
	if r.From < 1 || r.To > n || r.From > r.To {
		return 0, 0, fmt.Errorf("%w: %d-%d of %d items", ErrInvalidRange, r.From, r.To, n)
	}
	return r.From, r.To, nil
}
