package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/nats"
	"github.com/video-analitics/queuesorter/pkg/orchestrator"
	"github.com/video-analitics/queuesorter/pkg/queue"
	"github.com/video-analitics/queuesorter/pkg/sorting"
)

const (
	consumerName = "queuesorter-sort"
	busyDelay    = 5 * time.Second
)

// Runner is the part of an orchestrator the worker drives.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// SortProcessor executes sort requests published on the command stream.
type SortProcessor struct {
	client  *nats.Client
	runners map[string]Runner
}

func NewSortProcessor(client *nats.Client, runners map[string]Runner) *SortProcessor {
	return &SortProcessor{client: client, runners: runners}
}

func (p *SortProcessor) Run(ctx context.Context) error {
	consumer, err := nats.NewConsumer(p.client, nats.ConsumerConfig{
		Stream:     nats.StreamQueueCommands,
		Consumer:   consumerName,
		AckWait:    15 * time.Minute,
		MaxDeliver: 10,
	})
	if err != nil {
		return err
	}

	logger.Log.Info().Int("queues", len(p.runners)).Msg("sort processor started")
	return consumer.Consume(ctx, p.Handle)
}

// Handle runs one request. A busy queue is retried later; malformed requests
// are dropped.
func (p *SortProcessor) Handle(ctx context.Context, msg *nats.Message) error {
	log := logger.Log

	var req queue.SortRequest
	if err := msg.Unmarshal(&req); err != nil {
		return fmt.Errorf("decode sort request: %w", err)
	}

	runner, ok := p.runners[req.Queue]
	if !ok {
		return fmt.Errorf("unknown queue %q", req.Queue)
	}
	cmds, err := sorting.Resolve(req.Preset, req.Commands)
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx, orchestrator.Request{Commands: cmds, Range: req.Range, ForceRefresh: req.ForceRefresh})
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		return &nats.ErrRetryLater{Delay: busyDelay, Err: err}
	case errors.Is(err, orchestrator.ErrCancelled):
		log.Info().Str("request_id", req.ID).Str("queue", req.Queue).Msg("sort request cancelled")
		return nil
	case err != nil:
		return fmt.Errorf("sort request %s: %w", req.ID, err)
	}

	log.Info().
		Str("request_id", req.ID).
		Str("queue", req.Queue).
		Str("snapshot_id", res.SnapshotID).
		Int("items", len(res.Items)).
		Uint64("attempt", msg.Deliveries()).
		Msg("sort request done")
	return nil
}
