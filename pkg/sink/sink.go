package sink

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/queue"
)

// Sink applies a computed order to the host. WritePriority calls are
// buffered until SubmitNewOrder.
type Sink interface {
	WritePriority(ctx context.Context, id string, priority int) error
	SubmitNewOrder(ctx context.Context) error
}

// Recorder keeps submitted orders in memory.
type Recorder struct {
	mu      sync.Mutex
	pending map[string]int
	last    map[string]int
	writes  int
	submits int
}

func NewRecorder() *Recorder {
	return &Recorder{pending: make(map[string]int)}
}

func (r *Recorder) WritePriority(_ context.Context, id string, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[id] = priority
	r.writes++
	return nil
}

func (r *Recorder) SubmitNewOrder(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = r.pending
	r.pending = make(map[string]int)
	r.submits++
	return nil
}

// Last returns the most recently submitted priorities.
func (r *Recorder) Last() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.last))
	for k, v := range r.last {
		out[k] = v
	}
	return out
}

func (r *Recorder) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func (r *Recorder) Submits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submits
}

// Reorderer is a host that can apply a full priority map at once.
type Reorderer interface {
	Reorder(priorities map[string]int)
}

// Apply buffers priorities and hands them to a Reorderer on submit.
type Apply struct {
	mu      sync.Mutex
	target  Reorderer
	pending map[string]int
}

func NewApply(target Reorderer) *Apply {
	return &Apply{target: target, pending: make(map[string]int)}
}

func (a *Apply) WritePriority(_ context.Context, id string, priority int) error {
	a.mu.Lock()
	a.pending[id] = priority
	a.mu.Unlock()
	return nil
}

func (a *Apply) SubmitNewOrder(_ context.Context) error {
	a.mu.Lock()
	pending := a.pending
	a.pending = make(map[string]int)
	a.mu.Unlock()

	a.target.Reorder(pending)
	return nil
}

// Publisher is the part of the NATS publisher the sink needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATS publishes each submitted order as a queue.OrderCommitted event.
type NATS struct {
	mu      sync.Mutex
	pub     Publisher
	subject string
	queue   string
	pending []queue.Priority
}

func NewNATS(pub Publisher, subject, queueName string) *NATS {
	return &NATS{pub: pub, subject: subject, queue: queueName}
}

func (n *NATS) WritePriority(_ context.Context, id string, priority int) error {
	n.mu.Lock()
	n.pending = append(n.pending, queue.Priority{ItemID: id, Priority: priority})
	n.mu.Unlock()
	return nil
}

func (n *NATS) SubmitNewOrder(ctx context.Context) error {
	n.mu.Lock()
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()

	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Priority < pending[j].Priority })

	msg := queue.OrderCommitted{
		ID:          uuid.NewString(),
		Queue:       n.queue,
		Priorities:  pending,
		CommittedAt: time.Now(),
	}
	if err := n.pub.Publish(ctx, n.subject, msg); err != nil {
		return err
	}

	logger.Log.Info().Str("queue", n.queue).Str("order_id", msg.ID).Int("items", len(pending)).Msg("order published")
	return nil
}

// Tee fans every call out to all sinks and joins their errors.
type Tee []Sink

func (t Tee) WritePriority(ctx context.Context, id string, priority int) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.WritePriority(ctx, id, priority))
	}
	return errors.Join(errs...)
}

func (t Tee) SubmitNewOrder(ctx context.Context) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.SubmitNewOrder(ctx))
	}
	return errors.Join(errs...)
}
