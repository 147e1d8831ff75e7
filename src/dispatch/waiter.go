package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrWaitTimeout is returned when no matching event arrived in time.
var ErrWaitTimeout = errors.New("timed out waiting for event")

// Predicate filters candidate events by their emitted args. A nil
// predicate matches everything.
type Predicate func(args []interface{}) bool

type waiter struct {
	pred Predicate
	ch   chan []interface{}
	once bool
}

type waiterRegistry struct {
	mu      sync.Mutex
	byEvent map[string]map[string]*waiter
}

func newWaiterRegistry() *waiterRegistry {
	return &waiterRegistry{byEvent: make(map[string]map[string]*waiter)}
}

func (r *waiterRegistry) add(event string, w *waiter) string {
	id := uuid.New().String()
	r.mu.Lock()
	if r.byEvent[event] == nil {
		r.byEvent[event] = make(map[string]*waiter)
	}
	r.byEvent[event][id] = w
	r.mu.Unlock()
	return id
}

func (r *waiterRegistry) remove(event string, id string) {
	r.mu.Lock()
	delete(r.byEvent[event], id)
	r.mu.Unlock()
}

// offer runs on the dispatch path: hand args to every matching
// waiter without ever blocking the receive loop.
func (r *waiterRegistry) offer(event string, args []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.byEvent[event] {
		if w.pred != nil && !w.pred(args) {
			continue
		}
		select {
		case w.ch <- args:
			if w.once {
				delete(r.byEvent[event], id)
			}
		default:
		}
	}
}

// WaitFor suspends until the next event of the given name for which
// the predicate holds, or until the timeout elapses.
func (d *Dispatcher) WaitFor(ctx context.Context, event string, pred Predicate, timeout time.Duration) ([]interface{}, error) {
	event = normalizeEvent(event)
	w := &waiter{pred: pred, ch: make(chan []interface{}, 1), once: true}
	id := d.waiters.add(event, w)
	defer d.waiters.remove(event, id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case args := <-w.ch:
		return args, nil
	case <-timer.C:
		return nil, ErrWaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LoopFor yields successive matches on the returned channel until the
// cumulative timeout elapses, then closes it.
func (d *Dispatcher) LoopFor(ctx context.Context, event string, pred Predicate, timeout time.Duration) <-chan []interface{} {
	event = normalizeEvent(event)
	w := &waiter{pred: pred, ch: make(chan []interface{}, 8)}
	id := d.waiters.add(event, w)

	out := make(chan []interface{})
	go func() {
		defer close(out)
		defer d.waiters.remove(event, id)
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		for {
			select {
			case args := <-w.ch:
				select {
				case out <- args:
				case <-deadline.C:
					return
				case <-ctx.Done():
					return
				}
			case <-deadline.C:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func normalizeEvent(event string) string {
	if !strings.HasPrefix(event, emitPrefix) {
		return emitPrefix + event
	}
	return event
}
