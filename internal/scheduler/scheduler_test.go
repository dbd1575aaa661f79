package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-analitics/queuesorter/pkg/orchestrator"
)

type fakeWarmer struct {
	name  string
	err   error
	calls atomic.Int32
}

func (f *fakeWarmer) Namespace() string { return f.name }

func (f *fakeWarmer) Warm(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func TestSchedulerWarmsEveryQueue(t *testing.T) {
	ok := &fakeWarmer{name: "dvd"}
	busy := &fakeWarmer{name: "instant", err: orchestrator.ErrBusy}

	s, err := New(20*time.Millisecond, ok, busy)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return ok.calls.Load() >= 2 && busy.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond, "a busy queue is retried on the next tick")
}
