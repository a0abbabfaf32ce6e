package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterDispatchOrder(t *testing.T) {
	e := newEmitter()

	var order []string
	e.On("a", func(evt any) { order = append(order, "a1") })
	e.On("*", func(evt any) { order = append(order, "wild") })
	e.On("a", func(evt any) { order = append(order, "a2") })

	e.dispatch("a", nil)
	assert.Equal(t, []string{"a1", "a2", "wild"}, order)

	order = nil
	e.dispatch("b", nil)
	assert.Equal(t, []string{"wild"}, order)
}

func TestEmitterWaitForNext(t *testing.T) {
	e := newEmitter()

	done := make(chan any, 1)
	go func() {
		evt, err := e.WaitForNext(context.Background(), "tick")
		require.NoError(t, err)
		done <- evt
	}()
	time.Sleep(10 * time.Millisecond)

	e.dispatch("tick", 42)
	assert.Equal(t, 42, <-done)

	// Waiters are one-shot: the next dispatch has nobody to notify.
	e.dispatch("tick", 43)
}

func TestEmitterWaitForNextContextCancel(t *testing.T) {
	e := newEmitter()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.WaitForNext(ctx, "never")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmitterShutdownFailsWaiters(t *testing.T) {
	e := newEmitter()

	errs := make(chan error, 1)
	go func() {
		_, err := e.WaitForNext(context.Background(), "tick")
		errs <- err
	}()
	time.Sleep(10 * time.Millisecond)

	e.shutdown()
	assert.ErrorIs(t, <-errs, ErrConnectionClosed)

	_, err := e.WaitForNext(context.Background(), "tick")
	assert.ErrorIs(t, err, ErrConnectionClosed)

	e.reopen()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.WaitForNext(ctx, "tick")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmitterAsyncHandlerRuns(t *testing.T) {
	e := newEmitter()
	ran := make(chan struct{})
	e.OnAsync("evt", func(evt any) { close(ran) })
	e.dispatch("evt", nil)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestEmitterClearHandlers(t *testing.T) {
	e := newEmitter()
	called := false
	e.On("evt", func(evt any) { called = true })
	e.clearHandlers()
	e.dispatch("evt", nil)
	assert.False(t, called)
}
