package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/video-analitics/queuesorter/pkg/models"
	"github.com/video-analitics/queuesorter/pkg/retriever"
)

// groups maps a group id to its members in position order. An item whose id
// is referenced as a group id but carries no marker itself is the group head.
type groups map[string][]*models.Item

func groupIndex(items []*models.Item) (groups, map[*models.Item]string) {
	referenced := make(map[string]bool)
	for _, it := range items {
		if it.GroupID != "" {
			referenced[it.GroupID] = true
		}
	}

	idx := make(groups)
	keyOf := make(map[*models.Item]string)
	for _, it := range items {
		key := it.GroupID
		if key == "" && referenced[it.ID] {
			key = it.ID
		}
		if key == "" {
			continue
		}
		idx[key] = append(idx[key], it)
		keyOf[it] = key
	}
	return idx, keyOf
}

func (o *Orchestrator) backfillNeeded(required []models.FieldName) []models.FieldName {
	var out []models.FieldName
	for _, f := range required {
		if slices.Contains(o.backfillFields(), f) {
			out = append(out, f)
		}
	}
	return out
}

func (o *Orchestrator) backfillFields() []models.FieldName {
	var out []models.FieldName
	for _, c := range o.catalogs {
		for _, name := range c.Names() {
			if d, _ := c.Lookup(name); d.SiblingBackfill {
				out = append(out, name)
			}
		}
	}
	return out
}

// checkGroups rejects a selected item that needs a sibling value but whose
// group reference resolves to nobody else.
func (o *Orchestrator) checkGroups(all, selected []*models.Item, required []models.FieldName) error {
	need := o.backfillNeeded(required)
	if len(need) == 0 {
		return nil
	}

	idx, _ := groupIndex(all)
	for _, it := range selected {
		if it.GroupID == "" || it.HasAll(need) {
			continue
		}
		if len(idx[it.GroupID]) < 2 {
			return &StructureError{
				ItemID:   it.ID,
				Position: it.OriginalPosition,
				Reason:   fmt.Sprintf("group %q has no other member", it.GroupID),
			}
		}
	}
	return nil
}

// retrieve fills required fields on selected items from the cache, then by
// fallback and sibling backfill, then with remote fetches in two phases.
// Local fields come from the read that produced all; the queue is not listed
// again. Group representatives go first since their values may complete
// whole groups.
func (o *Orchestrator) retrieve(ctx context.Context, log zerolog.Logger, all, selected []*models.Item, required []models.FieldName, force bool) error {
	idx, keyOf := groupIndex(all)
	working := workingSet(all, selected, idx, keyOf)

	if !force {
		o.mergeCached(ctx, log, working)
	}

	o.complete(working, idx, keyOf)

	wanted := o.withFallbacks(required)

	reps := o.representatives(working, idx, keyOf, required)
	if len(reps) > 0 {
		log.Debug().Int("items", len(reps)).Msg("fetching group representatives")
		if err := o.fetchRemote(ctx, log, reps, required, wanted, force); err != nil {
			return err
		}
		o.complete(working, idx, keyOf)
	}

	var rest []*models.Item
	for _, it := range selected {
		if !slices.Contains(reps, it) {
			rest = append(rest, it)
		}
	}
	if err := o.fetchRemote(ctx, log, rest, required, wanted, force); err != nil {
		return err
	}
	o.complete(working, idx, keyOf)
	return nil
}

// workingSet is the selection plus every group sibling of a selected item,
// in position order.
func workingSet(all, selected []*models.Item, idx groups, keyOf map[*models.Item]string) []*models.Item {
	in := make(map[*models.Item]bool, len(selected))
	for _, it := range selected {
		in[it] = true
		if key, ok := keyOf[it]; ok {
			for _, m := range idx[key] {
				in[m] = true
			}
		}
	}

	out := make([]*models.Item, 0, len(in))
	for _, it := range all {
		if in[it] {
			out = append(out, it)
		}
	}
	return out
}

func (o *Orchestrator) withFallbacks(required []models.FieldName) []models.FieldName {
	out := slices.Clone(required)
	for _, f := range required {
		if d, ok := o.queue.Lookup(f); ok && d.Fallback != "" && !slices.Contains(out, d.Fallback) {
			out = append(out, d.Fallback)
		}
	}
	return out
}

func (o *Orchestrator) mergeCached(ctx context.Context, log zerolog.Logger, items []*models.Item) {
	hits := 0
	for _, it := range items {
		fields, ok, err := o.cache.Get(ctx, it.ID)
		if err != nil {
			log.Warn().Err(err).Str("item_id", it.ID).Msg("cache read failed")
			continue
		}
		if !ok {
			continue
		}
		hits++
		for name, v := range fields {
			if _, local := o.queue.Lookup(name); local || it.Has(name) {
				continue
			}
			it.Set(name, v)
		}
	}
	log.Debug().Int("items", len(items)).Int("hits", hits).Msg("cache merged")
}

// complete copies fallback values into local fields and then backfills
// siblings.
func (o *Orchestrator) complete(working []*models.Item, idx groups, keyOf map[*models.Item]string) {
	for _, name := range o.queue.Names() {
		d, _ := o.queue.Lookup(name)
		if d.Fallback == "" {
			continue
		}
		for _, it := range working {
			if usable(it, name) {
				continue
			}
			if v, ok := it.Get(d.Fallback); ok && !v.IsSentinel() {
				it.Set(name, v)
			}
		}
	}

	fields := o.backfillFields()
	visited := make(map[string]bool)
	for _, it := range working {
		key, ok := keyOf[it]
		if !ok || visited[key] {
			continue
		}
		visited[key] = true
		backfill(idx[key], fields)
	}
}

// backfill copies each field from the first member holding it to every
// member lacking it.
func backfill(members []*models.Item, fields []models.FieldName) {
	for _, f := range fields {
		var src *models.Item
		for _, m := range members {
			if usable(m, f) {
				src = m
				break
			}
		}
		if src == nil {
			continue
		}
		v, _ := src.Get(f)
		for _, m := range members {
			if !usable(m, f) {
				m.Set(f, v)
			}
		}
	}
}

func usable(it *models.Item, f models.FieldName) bool {
	v, ok := it.Get(f)
	return ok && !v.IsSentinel()
}

// representatives picks the first member of every group in which nobody
// holds a required backfill field that a remote retriever could supply.
func (o *Orchestrator) representatives(working []*models.Item, idx groups, keyOf map[*models.Item]string, required []models.FieldName) []*models.Item {
	var fetchable []models.FieldName
	for _, f := range o.backfillNeeded(required) {
		if o.remoteCanSupply(f) {
			fetchable = append(fetchable, f)
		}
	}
	if len(fetchable) == 0 {
		return nil
	}

	var reps []*models.Item
	visited := make(map[string]bool)
	for _, it := range working {
		key, ok := keyOf[it]
		if !ok || visited[key] {
			continue
		}
		visited[key] = true

		members := idx[key]
		for _, f := range fetchable {
			if !slices.ContainsFunc(members, func(m *models.Item) bool { return usable(m, f) }) {
				reps = append(reps, members[0])
				break
			}
		}
	}
	return reps
}

func (o *Orchestrator) remoteCanSupply(f models.FieldName) bool {
	fields := []models.FieldName{f}
	if d, ok := o.queue.Lookup(f); ok && d.Fallback != "" {
		fields = append(fields, d.Fallback)
	}
	for _, r := range o.remotes {
		if r.CanRetrieveData(fields) {
			return true
		}
	}
	return false
}

// fetchRemote runs every remote retriever that owns a wanted field over the
// items still missing something it can supply.
func (o *Orchestrator) fetchRemote(ctx context.Context, log zerolog.Logger, items []*models.Item, required, wanted []models.FieldName, force bool) error {
	for _, r := range o.remotes {
		if !r.CanRetrieveData(wanted) {
			continue
		}
		names := r.Catalog().Names()

		var batch []*models.Item
		for _, it := range items {
			if force || o.needsFrom(it, names, required) {
				batch = append(batch, it)
			}
		}
		if err := o.runRetriever(ctx, log, r, batch, wanted, force); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) needsFrom(it *models.Item, names, required []models.FieldName) bool {
	for _, f := range required {
		if usable(it, f) {
			continue
		}
		if slices.Contains(names, f) {
			return true
		}
		if d, ok := o.queue.Lookup(f); ok && d.Fallback != "" && slices.Contains(names, d.Fallback) {
			return true
		}
	}
	return false
}

// runRetriever drives one retriever over batch. Each checkin merges the
// finished item into the cache unless cancellation was requested, so an
// in-flight result that lands after Cancel is discarded.
func (o *Orchestrator) runRetriever(ctx context.Context, log zerolog.Logger, r retriever.Retriever, batch []*models.Item, fields []models.FieldName, force bool) error {
	if len(batch) == 0 {
		return nil
	}
	o.addWork(r.ID(), len(batch))
	names := r.Catalog().Names()

	checkin := func(i int) bool {
		if o.isCancelled() {
			return true
		}
		o.store(ctx, log, batch[i], names)
		o.stepDone()
		return false
	}

	err := r.RetrieveData(ctx, retriever.Request{Fields: fields, ForceRefresh: force}, batch, checkin)
	switch {
	case o.isCancelled(), errors.Is(err, retriever.ErrStopped):
		log.Info().Str("retriever", r.ID()).Msg("retrieval cancelled")
		return ErrCancelled
	case err != nil:
		return fmt.Errorf("retriever %s: %w", r.ID(), err)
	}
	return nil
}

func (o *Orchestrator) store(ctx context.Context, log zerolog.Logger, it *models.Item, names []models.FieldName) {
	fields := make(models.Fields, len(names))
	for _, name := range names {
		if v, ok := it.Get(name); ok {
			fields[name] = v
		}
	}
	if err := o.cache.Merge(ctx, it.ID, fields); err != nil {
		log.Warn().Err(err).Str("item_id", it.ID).Msg("cache merge failed")
	}
}
