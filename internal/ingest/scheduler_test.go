package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autotrack/autotrack/internal/fetch"
)

func TestSchedulerWarmsUpThenAnnounces(t *testing.T) {
	t.Parallel()

	f := fetch.NewStatic()
	f.Register(baseURL+"?page=1", 200, pageHTML("701"))

	p, s := newPipeline(t, f, 1)
	h := &recordingHub{}
	p.WithHub(h)

	sched := NewScheduler(p, 10*time.Millisecond, 0, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// Warm-up seeds the store without announcing.
	require.Eventually(t, func() bool { return s.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.Empty(t, h.Received())

	// A listing appearing later is broadcast by a scheduled cycle.
	f.Register(baseURL+"?page=1", 200, pageHTML("701", "702"))
	require.Eventually(t, func() bool { return len(h.Received()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "lbc_702", h.Received()[0].ID)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestSchedulerStopsDuringWarmup(t *testing.T) {
	t.Parallel()

	f := fetch.NewStatic()
	f.Register(baseURL+"?page=1", 200, pageHTML("801"))

	p, _ := newPipeline(t, f, 1)
	sched := NewScheduler(p, time.Minute, 0, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sched.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
