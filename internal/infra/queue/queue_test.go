package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestImmediateQueueDeliversDetached(t *testing.T) {
	q := NewImmediateQueue(nil)
	type delivery struct {
		name    string
		payload map[string]any
		ctxErr  error
	}
	got := make(chan delivery, 1)
	q.SetHandler(func(ctx context.Context, name string, payload map[string]any) {
		got <- delivery{name: name, payload: payload, ctxErr: ctx.Err()}
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(ctx, "evaluate_run", map[string]any{"run_id": "r1"}))
	cancel()
	q.Stop()

	select {
	case d := <-got:
		require.Equal(t, "evaluate_run", d.name)
		require.Equal(t, "r1", d.payload["run_id"])
		require.NoError(t, d.ctxErr)
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}
}

func TestImmediateQueueWithoutHandler(t *testing.T) {
	q := NewImmediateQueue(nil)
	require.NoError(t, q.Enqueue(context.Background(), "noop", "not a map"))
	q.Stop()
}

func TestDecodeJob(t *testing.T) {
	job, err := decodeJob(`{"name":"evaluate_run","payload":{"run_id":"abc"}}`)
	require.NoError(t, err)
	require.Equal(t, "evaluate_run", job.Name)
	require.Equal(t, "abc", job.Payload["run_id"])

	job, err = decodeJob(`{"name":"x"}`)
	require.NoError(t, err)
	require.NotNil(t, job.Payload)

	_, err = decodeJob("{")
	require.Error(t, err)
}
