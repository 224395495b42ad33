package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhmod1992/workshop-engine/internal/model"
)

func testEvent(id string) model.ChangeEvent {
	return model.ChangeEvent{
		Table:   model.TableRequests,
		Type:    model.EventInsert,
		ID:      id,
		Payload: json.RawMessage(`{"id":"` + id + `"}`),
	}
}

func TestDispatcherAppliesInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	d := NewDispatcher([]string{model.TableRequests}, func(ev model.ChangeEvent) error {
		mu.Lock()
		got = append(got, ev.ID)
		mu.Unlock()
		return nil
	}, Config{}, zerolog.Nop())
	defer d.Stop()

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, d.Submit(ctx, testEvent(id)))
	}
	require.NoError(t, d.Barrier(ctx, model.TableRequests))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDispatcherDropsMalformedEvents(t *testing.T) {
	var applied int32
	d := NewDispatcher([]string{model.TableRequests}, func(model.ChangeEvent) error {
		atomic.AddInt32(&applied, 1)
		return nil
	}, Config{}, zerolog.Nop())
	defer d.Stop()

	ctx := context.Background()
	// Missing id: must be dropped by the worker, not surfaced.
	require.NoError(t, d.Submit(ctx, model.ChangeEvent{
		Table: model.TableRequests, Type: model.EventInsert, Payload: json.RawMessage(`{}`),
	}))
	require.NoError(t, d.Submit(ctx, testEvent("ok")))
	require.NoError(t, d.Barrier(ctx, model.TableRequests))

	assert.Equal(t, int32(1), atomic.LoadInt32(&applied))
}

func TestDispatcherSurvivesHandlerPanic(t *testing.T) {
	var applied int32
	d := NewDispatcher([]string{model.TableRequests}, func(ev model.ChangeEvent) error {
		if ev.ID == "boom" {
			panic("merge exploded")
		}
		atomic.AddInt32(&applied, 1)
		return nil
	}, Config{}, zerolog.Nop())
	defer d.Stop()

	ctx := context.Background()
	require.NoError(t, d.Submit(ctx, testEvent("boom")))
	require.NoError(t, d.Submit(ctx, testEvent("after")))
	require.NoError(t, d.Barrier(ctx, model.TableRequests))

	assert.Equal(t, int32(1), atomic.LoadInt32(&applied))
}

func TestSubmitAfterStop(t *testing.T) {
	d := NewDispatcher([]string{model.TableRequests}, func(model.ChangeEvent) error { return nil }, Config{}, zerolog.Nop())
	d.Stop()
	err := d.Submit(context.Background(), testEvent("x"))
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestSubmitUnknownTable(t *testing.T) {
	d := NewDispatcher([]string{model.TableRequests}, func(model.ChangeEvent) error { return nil }, Config{}, zerolog.Nop())
	defer d.Stop()
	ev := testEvent("x")
	ev.Table = "no_such_table"
	assert.ErrorIs(t, d.Submit(context.Background(), ev), ErrUnknownTable)
}

func TestStopDrainsQueue(t *testing.T) {
	var applied int32
	block := make(chan struct{})
	d := NewDispatcher([]string{model.TableRequests}, func(model.ChangeEvent) error {
		<-block
		atomic.AddInt32(&applied, 1)
		return nil
	}, Config{QueueSize: 16}, zerolog.Nop())

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, d.Submit(ctx, testEvent(id)))
	}
	close(block)
	d.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&applied))
}

func TestSubmitQueueFull(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d := NewDispatcher([]string{model.TableRequests}, func(model.ChangeEvent) error {
		<-block
		return nil
	}, Config{QueueSize: 1, EnqueueTimeout: 20 * time.Millisecond}, zerolog.Nop())
	defer d.Stop()

	ctx := context.Background()
	// First submission may be picked up by the worker immediately; fill the
	// queue until Submit reports back-pressure.
	var qf *QueueFullError
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := d.Submit(ctx, testEvent("x")); err != nil {
			require.ErrorAs(t, err, &qf)
			assert.Equal(t, model.TableRequests, qf.Table)
			return
		}
	}
	t.Fatal("queue never reported back-pressure")
}
