package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/models"
	"github.com/video-analitics/queuesorter/pkg/status"
)

// snapshot holds the priorities on both sides of a commit so undo can
// toggle between them.
type snapshot struct {
	id     string
	before map[string]int
	after  map[string]int
}

func (o *Orchestrator) commit(ctx context.Context, selected, sorted []*models.Item) (string, error) {
	snap := &snapshot{
		id:     uuid.NewString(),
		before: make(map[string]int, len(selected)),
		after:  make(map[string]int, len(sorted)),
	}
	for _, it := range selected {
		snap.before[it.ID] = it.OriginalPosition
	}
	for _, it := range sorted {
		snap.after[it.ID] = it.TargetPosition
	}

	if err := o.write(ctx, snap.after); err != nil {
		return "", err
	}

	o.mu.Lock()
	o.undo = snap
	o.mu.Unlock()
	return snap.id, nil
}

// write hands the whole permutation to the sink, then submits it.
func (o *Orchestrator) write(ctx context.Context, priorities map[string]int) error {
	ids := make([]string, 0, len(priorities))
	for id := range priorities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return priorities[ids[i]] < priorities[ids[j]] })

	for _, id := range ids {
		if err := o.sink.WritePriority(ctx, id, priorities[id]); err != nil {
			return fmt.Errorf("write priority %s: %w", id, err)
		}
	}
	if err := o.sink.SubmitNewOrder(ctx); err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	return nil
}

// Undo restores the order recorded before the last commit. Calling it again
// re-applies the undone order.
func (o *Orchestrator) Undo(ctx context.Context) (id string, retErr error) {
	o.mu.Lock()
	if o.state.IsBusy() {
		o.mu.Unlock()
		return "", ErrBusy
	}
	snap := o.undo
	if snap == nil {
		o.mu.Unlock()
		return "", ErrNothingToUndo
	}
	if !status.CanTransition(o.state, status.Committing) {
		o.mu.Unlock()
		return "", status.ErrInvalidTransition
	}
	o.state = status.Committing
	o.mu.Unlock()

	defer func() { o.finish(retErr) }()

	if err := o.write(ctx, snap.before); err != nil {
		return "", err
	}

	next := &snapshot{id: uuid.NewString(), before: snap.after, after: snap.before}
	o.mu.Lock()
	o.undo = next
	o.mu.Unlock()

	logger.Log.Info().Str("queue", o.ns).Str("restored", snap.id).Int("items", len(snap.before)).Msg("order restored")
	return next.id, nil
}
