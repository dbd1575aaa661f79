package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/video-analitics/queuesorter/pkg/queue"
)

// Identified payloads are published with their id as the jetstream message
// id, so a retried publish is dropped by the server within the duplicate
// window.
type Identified interface {
	MessageID() string
}

type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{js: client.JetStream()}
}

func (p *Publisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}

	var opts []jetstream.PublishOpt
	if m, ok := data.(Identified); ok && m.MessageID() != "" {
		opts = append(opts, jetstream.WithMsgID(m.MessageID()))
	}
	if _, err := p.js.Publish(ctx, subject, payload, opts...); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) PublishSortRequest(ctx context.Context, req queue.SortRequest) error {
	return p.Publish(ctx, SubjectSortRequests, req)
}

// ProgressThrottle forwards progress updates, dropping the ones that arrive
// within interval of the previous one unless the state changed or the work
// is complete.
type ProgressThrottle struct {
	mu       sync.Mutex
	send     func(queue.Progress)
	interval time.Duration
	last     map[string]queue.Progress
}

func NewProgressThrottle(interval time.Duration, send func(queue.Progress)) *ProgressThrottle {
	return &ProgressThrottle{send: send, interval: interval, last: make(map[string]queue.Progress)}
}

func (t *ProgressThrottle) Report(p queue.Progress) {
	t.mu.Lock()
	prev, seen := t.last[p.Queue]
	skip := seen &&
		prev.State == p.State &&
		p.Done < p.Total &&
		p.At.Sub(prev.At) < t.interval
	if !skip {
		t.last[p.Queue] = p
	}
	t.mu.Unlock()

	if !skip {
		t.send(p)
	}
}

// ProgressFunc publishes throttled progress events and logs failures with
// onErr.
func (p *Publisher) ProgressFunc(interval time.Duration, onErr func(error)) func(queue.Progress) {
	t := NewProgressThrottle(interval, func(pr queue.Progress) {
		if err := p.Publish(context.Background(), SubjectProgress, pr); err != nil && onErr != nil {
			onErr(err)
		}
	})
	return t.Report
}
