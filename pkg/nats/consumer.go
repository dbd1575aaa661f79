package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/video-analitics/queuesorter/pkg/logger"
)

type ConsumerConfig struct {
	Stream     string
	Consumer   string
	AckWait    time.Duration
	MaxDeliver int
}

type Consumer struct {
	consumer jetstream.Consumer
	config   ConsumerConfig
}

func NewConsumer(client *Client, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.AckWait == 0 {
		cfg.AckWait = 10 * time.Minute
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = 5
	}

	consumerCfg := jetstream.ConsumerConfig{
		Durable:       cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: 1,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}

	consumer, err := client.js.CreateOrUpdateConsumer(context.Background(), cfg.Stream, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", cfg.Consumer, err)
	}

	logger.Log.Debug().
		Str("stream", cfg.Stream).
		Str("consumer", cfg.Consumer).
		Dur("ack_wait", cfg.AckWait).
		Int("max_deliver", cfg.MaxDeliver).
		Msg("consumer created")

	return &Consumer{consumer: consumer, config: cfg}, nil
}

// Message is what handlers see; the jetstream message stays private so
// acknowledgement is decided by the consumer loop.
type Message struct {
	data       []byte
	deliveries uint64
}

func NewMessage(data []byte, deliveries uint64) *Message {
	return &Message{data: data, deliveries: deliveries}
}

func (m *Message) Data() []byte       { return m.data }
func (m *Message) Deliveries() uint64 { return m.deliveries }

func (m *Message) Unmarshal(v any) error {
	return json.Unmarshal(m.data, v)
}

// ErrRetryLater asks for redelivery after the given delay.
type ErrRetryLater struct {
	Delay time.Duration
	Err   error
}

func (e *ErrRetryLater) Error() string { return fmt.Sprintf("retry in %s: %v", e.Delay, e.Err) }
func (e *ErrRetryLater) Unwrap() error { return e.Err }

type HandlerFunc func(ctx context.Context, msg *Message) error

func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	log := logger.Log

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Str("consumer", c.config.Consumer).Msg("fetch error")
			time.Sleep(time.Second)
			continue
		}

		for msg := range msgs.Messages() {
			c.process(ctx, msg, handler)
		}
		if err := msgs.Error(); err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Str("consumer", c.config.Consumer).Msg("fetch batch error")
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg jetstream.Msg, handler HandlerFunc) {
	log := logger.Log

	meta, err := msg.Metadata()
	if err != nil {
		msg.Term()
		log.Error().Err(err).Str("consumer", c.config.Consumer).Msg("get metadata")
		return
	}

	stop := c.keepAlive(msg)
	err = handler(ctx, NewMessage(msg.Data(), meta.NumDelivered))
	stop()
	if err == nil {
		msg.Ack()
		return
	}

	var retry *ErrRetryLater
	if errors.As(err, &retry) && meta.NumDelivered < uint64(c.config.MaxDeliver) {
		log.Warn().
			Err(err).
			Str("consumer", c.config.Consumer).
			Uint64("attempt", meta.NumDelivered).
			Int("max", c.config.MaxDeliver).
			Msg("processing deferred, will retry")
		msg.NakWithDelay(retry.Delay)
		return
	}

	log.Error().
		Err(err).
		Str("consumer", c.config.Consumer).
		Uint64("attempts", meta.NumDelivered).
		Msg("processing failed, terminating")
	msg.Term()
}

// keepAlive extends the ack deadline while a long sort is running so the
// request is not redelivered to another worker mid-run.
func (c *Consumer) keepAlive(msg jetstream.Msg) (stop func()) {
	done := make(chan struct{})
	ticker := time.NewTicker(c.config.AckWait / 2)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := msg.InProgress(); err != nil {
					logger.Log.Debug().Err(err).Str("consumer", c.config.Consumer).Msg("extend ack deadline")
				}
			}
		}
	}()
	return func() { close(done) }
}
