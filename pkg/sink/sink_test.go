package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-analitics/queuesorter/pkg/queue"
)

type fakePublisher struct {
	subjects []string
	msgs     []any
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data any) error {
	p.subjects = append(p.subjects, subject)
	p.msgs = append(p.msgs, data)
	return p.err
}

type fakeHost struct{ got map[string]int }

func (h *fakeHost) Reorder(p map[string]int) { h.got = p }

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder()

	require.NoError(t, r.WritePriority(ctx, "a", 2))
	require.NoError(t, r.WritePriority(ctx, "b", 1))
	assert.Empty(t, r.Last(), "nothing visible before submit")

	require.NoError(t, r.SubmitNewOrder(ctx))
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, r.Last())
	assert.Equal(t, 2, r.Writes())
	assert.Equal(t, 1, r.Submits())
}

func TestNATSPublishesSortedOrder(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	n := NewNATS(pub, "queuesorter.order.committed", "dvd")

	n.WritePriority(ctx, "x", 3)
	n.WritePriority(ctx, "y", 1)
	n.WritePriority(ctx, "z", 2)
	require.NoError(t, n.SubmitNewOrder(ctx))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "queuesorter.order.committed", pub.subjects[0])
	msg := pub.msgs[0].(queue.OrderCommitted)
	assert.Equal(t, "dvd", msg.Queue)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, []queue.Priority{{ItemID: "y", Priority: 1}, {ItemID: "z", Priority: 2}, {ItemID: "x", Priority: 3}}, msg.Priorities)

	require.NoError(t, n.SubmitNewOrder(ctx))
	assert.Empty(t, pub.msgs[1].(queue.OrderCommitted).Priorities, "buffer reset after submit")
}

func TestTeeJoinsErrors(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()
	host := &fakeHost{}
	failing := NewNATS(&fakePublisher{err: errors.New("nats down")}, "s", "dvd")

	tee := Tee{rec, NewApply(host), failing}
	require.NoError(t, tee.WritePriority(ctx, "a", 1))
	err := tee.SubmitNewOrder(ctx)

	assert.ErrorContains(t, err, "nats down")
	assert.Equal(t, map[string]int{"a": 1}, rec.Last())
	assert.Equal(t, map[string]int{"a": 1}, host.got)
}
