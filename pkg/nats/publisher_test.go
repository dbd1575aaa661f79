package nats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/video-analitics/queuesorter/pkg/queue"
)

func TestProgressThrottle(t *testing.T) {
	var sent []queue.Progress
	th := NewProgressThrottle(time.Second, func(p queue.Progress) { sent = append(sent, p) })

	t0 := time.Now()
	th.Report(queue.Progress{Queue: "dvd", State: "retrieving", Done: 0, Total: 3, At: t0})
	th.Report(queue.Progress{Queue: "dvd", State: "retrieving", Done: 1, Total: 3, At: t0.Add(10 * time.Millisecond)})
	th.Report(queue.Progress{Queue: "instant", State: "retrieving", Done: 1, Total: 3, At: t0.Add(20 * time.Millisecond)})
	th.Report(queue.Progress{Queue: "dvd", State: "retrieving", Done: 2, Total: 3, At: t0.Add(2 * time.Second)})
	th.Report(queue.Progress{Queue: "dvd", State: "retrieving", Done: 3, Total: 3, At: t0.Add(2*time.Second + time.Millisecond)})
	th.Report(queue.Progress{Queue: "dvd", State: "sorting", Done: 3, Total: 3, At: t0.Add(2*time.Second + 2*time.Millisecond)})

	var got []int
	for _, p := range sent {
		if p.Queue == "dvd" {
			got = append(got, p.Done)
		}
	}
	assert.Equal(t, []int{0, 2, 3, 3}, got)
	assert.Len(t, sent, 5)
}

func TestMessageIDs(t *testing.T) {
	var m any = queue.OrderCommitted{ID: "o1"}
	id, ok := m.(Identified)
	assert.True(t, ok)
	assert.Equal(t, "o1", id.MessageID())

	m = queue.Progress{}
	_, ok = m.(Identified)
	assert.False(t, ok)
}
