package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

func testDispatcher() *Dispatcher {
	return NewDispatcher(zerolog.Nop())
}

func rawDispatch(t *testing.T, name string, payload interface{}, seq uint64) *structs.RawEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &structs.RawEvent{Op: 0, T: name, S: seq, D: data}
}

func TestProcessRawDecodesMessageCreate(t *testing.T) {
	d := testDispatcher()
	got := make(chan *structs.Message, 1)
	d.Register(EventMessageCreate, func(_ context.Context, args ...interface{}) error {
		msg, ok := args[0].(*structs.Message)
		require.True(t, ok)
		got <- msg
		return nil
	})

	d.ProcessRaw(0, rawDispatch(t, structs.EventNameMessageCreate, structs.Message{ID: "m1", Content: "hi"}, 1))

	select {
	case msg := <-got:
		assert.Equal(t, "m1", msg.ID)
		assert.Equal(t, "hi", msg.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestProcessRawUnknownEventStillEmits(t *testing.T) {
	d := testDispatcher()
	got := make(chan *structs.RawEvent, 1)
	d.Register("on_typing_start", func(_ context.Context, args ...interface{}) error {
		e, ok := args[0].(*structs.RawEvent)
		require.True(t, ok)
		got <- e
		return nil
	})

	d.ProcessRaw(0, rawDispatch(t, "TYPING_START", map[string]string{"channel_id": "1"}, 2))

	select {
	case e := <-got:
		assert.Equal(t, "TYPING_START", e.T)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestRegisterWithoutPrefixNormalizes(t *testing.T) {
	d := testDispatcher()
	var hits atomic.Int32
	d.Register("message_create", func(_ context.Context, _ ...interface{}) error {
		hits.Add(1)
		return nil
	})
	d.ProcessRaw(0, rawDispatch(t, structs.EventNameMessageCreate, structs.Message{}, 1))
	require.True(t, d.Drain(2*time.Second))
	assert.Equal(t, int32(1), hits.Load())
}

func TestHandlersRunConcurrently(t *testing.T) {
	d := testDispatcher()
	release := make(chan struct{})
	var running atomic.Int32
	for i := 0; i < 3; i++ {
		d.Register(EventMessageCreate, func(_ context.Context, _ ...interface{}) error {
			running.Add(1)
			<-release
			return nil
		})
	}
	d.Emit(context.Background(), EventMessageCreate, &structs.Message{})

	assert.Eventually(t, func() bool { return running.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
	close(release)
	require.True(t, d.Drain(2*time.Second))
}

func TestUnregisterRemovesOneHandler(t *testing.T) {
	d := testDispatcher()
	var a, b atomic.Int32
	idA := d.Register(EventMessageCreate, func(_ context.Context, _ ...interface{}) error {
		a.Add(1)
		return nil
	})
	d.Register(EventMessageCreate, func(_ context.Context, _ ...interface{}) error {
		b.Add(1)
		return nil
	})
	d.Unregister(EventMessageCreate, idA)

	d.Emit(context.Background(), EventMessageCreate, &structs.Message{})
	require.True(t, d.Drain(2*time.Second))
	assert.Equal(t, int32(0), a.Load())
	assert.Equal(t, int32(1), b.Load())
}

func TestHandlerErrorReachesOnError(t *testing.T) {
	d := testDispatcher()
	boom := errors.New("boom")
	got := make(chan error, 1)
	d.Register(EventError, func(_ context.Context, args ...interface{}) error {
		err, ok := args[0].(error)
		require.True(t, ok)
		got <- err
		return nil
	})
	d.Register(EventMessageCreate, func(_ context.Context, _ ...interface{}) error {
		return boom
	})

	d.Emit(context.Background(), EventMessageCreate, &structs.Message{})

	select {
	case err := <-got:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("error never surfaced")
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	d := testDispatcher()
	got := make(chan error, 1)
	d.Register(EventError, func(_ context.Context, args ...interface{}) error {
		got <- args[0].(error)
		return nil
	})
	d.Register(EventMessageCreate, func(_ context.Context, _ ...interface{}) error {
		panic("handler exploded")
	})

	d.Emit(context.Background(), EventMessageCreate, &structs.Message{})

	select {
	case err := <-got:
		assert.Contains(t, err.Error(), "handler exploded")
	case <-time.After(2 * time.Second):
		t.Fatal("panic never surfaced as error")
	}
}

func TestMiddlewareOverride(t *testing.T) {
	d := testDispatcher()
	d.Override("message_create", func(_ context.Context, e *structs.RawEvent) (string, []interface{}, error) {
		return "on_custom", []interface{}{"replaced"}, nil
	})
	got := make(chan string, 1)
	d.Register("on_custom", func(_ context.Context, args ...interface{}) error {
		got <- args[0].(string)
		return nil
	})

	d.ProcessRaw(0, rawDispatch(t, structs.EventNameMessageCreate, structs.Message{}, 1))

	select {
	case v := <-got:
		assert.Equal(t, "replaced", v)
	case <-time.After(2 * time.Second):
		t.Fatal("override never ran")
	}
}

func TestWaitForMatchesPredicate(t *testing.T) {
	d := testDispatcher()
	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Emit(context.Background(), EventMessageCreate, &structs.Message{ID: "skip"})
		d.Emit(context.Background(), EventMessageCreate, &structs.Message{ID: "want"})
	}()

	args, err := d.WaitFor(context.Background(), "message_create", func(args []interface{}) bool {
		msg, ok := args[0].(*structs.Message)
		return ok && msg.ID == "want"
	}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "want", args[0].(*structs.Message).ID)
}

func TestWaitForTimeout(t *testing.T) {
	d := testDispatcher()
	_, err := d.WaitFor(context.Background(), EventMessageCreate, nil, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestWaitForSeesEventBeforeHandlers(t *testing.T) {
	// A handler emitting the event a waiter wants must not deadlock:
	// waiters are offered first, handlers run on their own goroutines.
	d := testDispatcher()
	go func() {
		time.Sleep(10 * time.Millisecond)
		d.Emit(context.Background(), EventReady, &structs.ReadyEvent{SessionID: "s"})
	}()
	args, err := d.WaitFor(context.Background(), EventReady, nil, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "s", args[0].(*structs.ReadyEvent).SessionID)
}

func TestLoopForYieldsUntilTimeout(t *testing.T) {
	d := testDispatcher()
	ch := d.LoopFor(context.Background(), EventMessageCreate, nil, 200*time.Millisecond)

	go func() {
		for i := 0; i < 3; i++ {
			d.Emit(context.Background(), EventMessageCreate, &structs.Message{ID: "m"})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	var n int
	for range ch {
		n++
	}
	assert.Equal(t, 3, n)
}

func TestEmitErrorWithoutHandlersDoesNotPanic(t *testing.T) {
	d := testDispatcher()
	d.EmitError(context.Background(), errors.New("nobody listens"))
}

func TestBoundContextReachesHandlers(t *testing.T) {
	d := testDispatcher()
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "bound")
	d.Bind(ctx)

	got := make(chan interface{}, 1)
	d.Register(EventMessageCreate, func(ctx context.Context, _ ...interface{}) error {
		got <- ctx.Value(ctxKey{})
		return nil
	})
	d.ProcessRaw(0, rawDispatch(t, structs.EventNameMessageCreate, structs.Message{ID: "m1"}, 1))

	select {
	case v := <-got:
		assert.Equal(t, "bound", v)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestSpawnTrackedAndCancelled(t *testing.T) {
	d := testDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	d.Bind(ctx)

	started := make(chan struct{})
	var finished atomic.Bool
	d.Spawn(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		finished.Store(true)
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("spawned work never started")
	}
	cancel()
	require.True(t, d.Drain(2*time.Second), "drain must wait for spawned work")
	assert.True(t, finished.Load())
}
