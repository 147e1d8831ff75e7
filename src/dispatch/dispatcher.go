package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// Emitted event names. Anything with the on_ prefix goes straight to
// user handlers; bare names select a middleware first.
const (
	EventReady             = "on_ready"
	EventResumed           = "on_resumed"
	EventGuildCreate       = "on_guild_create"
	EventGuildUpdate       = "on_guild_update"
	EventGuildDelete       = "on_guild_delete"
	EventChannelCreate     = "on_channel_create"
	EventChannelUpdate     = "on_channel_update"
	EventChannelDelete     = "on_channel_delete"
	EventMessageCreate     = "on_message_create"
	EventInteractionCreate = "on_interaction_create"
	EventError             = "on_error"
	EventCommandError      = "on_command_error"
)

// emitPrefix is the sentinel: a middleware returning a key with this
// prefix ends the chain and the args go to handlers.
const emitPrefix = "on_"

// Handler runs for one emitted event. Handlers execute concurrently,
// each on its own goroutine with its own error boundary.
type Handler func(ctx context.Context, args ...interface{}) error

// Middleware lowers a raw gateway frame one step: it returns the next
// pipeline key and the args that will eventually reach handlers.
type Middleware func(ctx context.Context, e *structs.RawEvent) (next string, args []interface{}, err error)

// Dispatcher routes raw gateway frames through the middleware chain
// and fans the result out to registered handlers.
type registeredHandler struct {
	id string
	fn Handler
}

type Dispatcher struct {
	mu          sync.RWMutex
	middlewares map[string]Middleware
	handlers    map[string][]registeredHandler
	waiters     *waiterRegistry
	baseCtx     context.Context
	log         zerolog.Logger
	wg          sync.WaitGroup
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		middlewares: make(map[string]Middleware),
		handlers:    make(map[string][]registeredHandler),
		waiters:     newWaiterRegistry(),
		log:         log.With().Str("component", "dispatch").Logger(),
	}
	d.registerDefaults()
	return d
}

// Bind sets the context dispatched work derives from. The client binds
// its run context here so shutdown cancellation reaches every handler
// and command goroutine.
func (d *Dispatcher) Bind(ctx context.Context) {
	d.mu.Lock()
	d.baseCtx = ctx
	d.mu.Unlock()
}

func (d *Dispatcher) context() context.Context {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.baseCtx == nil {
		return context.Background()
	}
	return d.baseCtx
}

// Spawn runs fn on its own goroutine inside the drain group, with the
// bound context. Used for work that must not block the receive loop
// but still has to finish (or be cancelled) before shutdown completes.
func (d *Dispatcher) Spawn(fn func(ctx context.Context)) {
	ctx := d.context()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(ctx)
	}()
}

// Register adds a handler for an emitted event name and returns a
// token that removes exactly this handler again.
func (d *Dispatcher) Register(event string, h Handler) string {
	event = normalizeEvent(event)
	id := uuid.New().String()
	d.mu.Lock()
	d.handlers[event] = append(d.handlers[event], registeredHandler{id: id, fn: h})
	d.mu.Unlock()
	return id
}

// Unregister removes one handler by its registration token. Used by
// cog unload.
func (d *Dispatcher) Unregister(event string, id string) {
	event = normalizeEvent(event)
	d.mu.Lock()
	hs := d.handlers[event]
	for i, rh := range hs {
		if rh.id == id {
			d.handlers[event] = append(hs[:i], hs[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
}

// Override replaces the middleware for a gateway event name. The key
// is the lowercased dispatch name (e.g. "interaction_create").
func (d *Dispatcher) Override(event string, mw Middleware) {
	d.mu.Lock()
	d.middlewares[strings.ToLower(event)] = mw
	d.mu.Unlock()
}

// ProcessRaw implements gateway.EventSink. It runs on the shard's
// receive goroutine, so the chain itself must stay non-blocking;
// handlers are spawned.
func (d *Dispatcher) ProcessRaw(shardID uint, e *structs.RawEvent) {
	ctx := d.context()
	key := strings.ToLower(e.T)
	args := []interface{}{e}
	for !strings.HasPrefix(key, emitPrefix) {
		d.mu.RLock()
		mw, ok := d.middlewares[key]
		d.mu.RUnlock()
		if !ok {
			// Unknown events still reach whoever registered for them.
			key = emitPrefix + key
			break
		}
		next, a, err := mw(ctx, e)
		if err != nil {
			d.log.Error().Err(err).Str("event", e.T).Msg("middleware failed")
			d.EmitError(ctx, err)
			return
		}
		key, args = next, a
	}
	d.Emit(ctx, key, args...)
}

// ProcessError implements gateway.EventSink for session-fatal errors.
func (d *Dispatcher) ProcessError(shardID uint, err error) {
	d.EmitError(d.context(), fmt.Errorf("shard %d: %w", shardID, err))
}

// Emit hands args to every handler registered for the event, each on
// its own goroutine. Waiters see the event before the handlers run.
func (d *Dispatcher) Emit(ctx context.Context, event string, args ...interface{}) {
	d.waiters.offer(event, args)
	d.mu.RLock()
	hs := d.handlers[event]
	d.mu.RUnlock()
	for _, rh := range hs {
		fn := rh.fn
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.handlerFault(ctx, event, fmt.Errorf("handler panic: %v", r))
				}
			}()
			if err := fn(ctx, args...); err != nil {
				d.handlerFault(ctx, event, err)
			}
		}()
	}
}

// handlerFault funnels a handler failure into on_error. Failures in
// on_error itself are only logged; the session never dies from a
// handler fault.
func (d *Dispatcher) handlerFault(ctx context.Context, event string, err error) {
	if event == EventError {
		d.log.Error().Err(err).Msg("error handler failed")
		return
	}
	d.EmitError(ctx, err)
}

// HasHandlers reports whether anything is registered for an event.
func (d *Dispatcher) HasHandlers(event string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[event]) > 0
}

// EmitError emits on_error, or logs and swallows when nobody
// registered for it.
func (d *Dispatcher) EmitError(ctx context.Context, err error) {
	d.mu.RLock()
	registered := len(d.handlers[EventError]) > 0
	d.mu.RUnlock()
	if !registered {
		d.log.Error().Err(err).Msg("unhandled error")
		return
	}
	d.Emit(ctx, EventError, err)
}

// Drain waits for in-flight handlers up to the timeout, then gives
// up on the stragglers.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		d.log.Warn().Msg("abandoning handlers still running at shutdown")
		return false
	}
}
