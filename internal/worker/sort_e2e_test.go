//go:build e2e
// +build e2e

package worker_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/video-analitics/queuesorter/internal/worker"
	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/models"
	"github.com/video-analitics/queuesorter/pkg/nats"
	"github.com/video-analitics/queuesorter/pkg/orchestrator"
	"github.com/video-analitics/queuesorter/pkg/queue"
	"github.com/video-analitics/queuesorter/pkg/sink"
	"github.com/video-analitics/queuesorter/pkg/source"
)

func setupNATS(t *testing.T, ctx context.Context) (*nats.Client, func()) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10",
		Cmd:          []string{"-js"},
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start nats container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	client, err := nats.New(fmt.Sprintf("nats://%s:%s", host, port.Port()))
	require.NoError(t, err)

	cleanup := func() {
		client.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return client, cleanup
}

func TestSortRequestRoundTrip_E2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, cleanup := setupNATS(t, ctx)
	defer cleanup()

	publisher := nats.NewPublisher(client)
	static := source.NewStatic(
		&models.Item{ID: "a", OriginalPosition: 1, Fields: models.Fields{catalog.FieldTitle: models.Text("Heat")}},
		&models.Item{ID: "b", OriginalPosition: 2, Fields: models.Fields{catalog.FieldTitle: models.Text("Alien")}},
	)

	orch, err := orchestrator.New(orchestrator.Deps{
		Namespace: "dvd",
		Queue:     catalog.DefaultQueue(),
		Source:    static,
		Sink:      sink.Tee{sink.NewApply(static), sink.NewNATS(publisher, nats.SubjectOrderCommitted, "dvd")},
	})
	require.NoError(t, err)

	processor := worker.NewSortProcessor(client, map[string]worker.Runner{"dvd": orch})
	go processor.Run(ctx)

	require.NoError(t, publisher.PublishSortRequest(ctx, queue.SortRequest{ID: "r1", Queue: "dvd", Preset: "title", CreatedAt: time.Now()}))

	assert.Eventually(t, func() bool {
		items, err := static.ListItems(ctx)
		return err == nil && items[0].ID == "b"
	}, 30*time.Second, 100*time.Millisecond)

	events, err := client.JetStream().OrderedConsumer(ctx, nats.StreamQueueEvents, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{nats.SubjectOrderCommitted},
	})
	require.NoError(t, err)

	msg, err := events.Next(jetstream.FetchMaxWait(10 * time.Second))
	require.NoError(t, err)

	var committed queue.OrderCommitted
	require.NoError(t, json.Unmarshal(msg.Data(), &committed))
	assert.Equal(t, "dvd", committed.Queue)
	assert.Equal(t, []queue.Priority{{ItemID: "b", Priority: 1}, {ItemID: "a", Priority: 2}}, committed.Priorities)
}
