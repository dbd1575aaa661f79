package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/video-analitics/queuesorter/pkg/logger"
)

const (
	StreamQueueEvents   = "QUEUE_EVENTS"
	StreamQueueCommands = "QUEUE_COMMANDS"

	SubjectOrderCommitted = "queuesorter.order.committed"
	SubjectProgress       = "queuesorter.progress"
	SubjectSortRequests   = "queuesorter.sort.requests"
)

// Streams declares the jetstream layout. Events are kept for a day for
// late subscribers; commands are a work queue consumed once.
func Streams() []jetstream.StreamConfig {
	return []jetstream.StreamConfig{
		{
			Name:        StreamQueueEvents,
			Subjects:    []string{SubjectOrderCommitted, SubjectProgress},
			Retention:   jetstream.LimitsPolicy,
			MaxAge:      24 * time.Hour,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			MaxMsgs:     100000,
			Duplicates:  2 * time.Minute,
			Description: "Committed queue orders and sort progress",
		},
		{
			Name:        StreamQueueCommands,
			Subjects:    []string{SubjectSortRequests},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      time.Hour,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			MaxMsgs:     10000,
			Duplicates:  2 * time.Minute,
			Description: "Sort requests for queue orchestrators",
		},
	}
}

type Client struct {
	nc *nats.Conn
	js jetstream.JetStream
}

type ClientOption func(*clientConfig)

type clientConfig struct {
	name          string
	reconnectWait time.Duration
	setupTimeout  time.Duration
}

func WithName(name string) ClientOption {
	return func(c *clientConfig) {
		c.name = name
	}
}

func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.reconnectWait = d
	}
}

// New connects and makes sure every stream from Streams exists.
func New(url string, opts ...ClientOption) (*Client, error) {
	cfg := clientConfig{name: "queuesorter", reconnectWait: 2 * time.Second, setupTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := logger.Log.With().Str("nats", url).Logger()

	nc, err := nats.Connect(url,
		nats.Name(cfg.name),
		nats.ReconnectWait(cfg.reconnectWait),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Warn().Str("server", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.setupTimeout)
	defer cancel()
	for _, sc := range Streams() {
		if _, err := js.CreateOrUpdateStream(ctx, sc); err != nil {
			nc.Close()
			return nil, fmt.Errorf("stream %s: %w", sc.Name, err)
		}
		log.Debug().Str("stream", sc.Name).Strs("subjects", sc.Subjects).Msg("stream ready")
	}

	log.Info().Msg("nats connected")
	return &Client{nc: nc, js: js}, nil
}

func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Close drains pending publishes before closing the connection.
func (c *Client) Close() {
	if err := c.nc.Drain(); err != nil {
		logger.Log.Warn().Err(err).Msg("nats drain")
		c.nc.Close()
	}
}
