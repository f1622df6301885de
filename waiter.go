package hbs

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// SettleFunc reports the outcome of a single piece of async work. Only the
// first call has any effect.
type SettleFunc func(value any, err error)

// Resolution holds the settled values of every piece of work registered on a
// Waiter.
type Resolution struct {
	// Tokens lists the registered tokens in the order they were
	// registered.
	Tokens []Token

	// Values maps each token to the value its work settled with.
	Values map[Token]any
}

// Waiter tracks the async work started while a template executes and
// reports when all of it has settled.
//
// It can safely be used by multiple goroutines.
type Waiter struct {
	mu      sync.Mutex
	tokens  []Token
	values  map[Token]any
	pending int
	err     error

	// notify is signaled whenever pending drops to zero or an error is
	// recorded. Waiters re-check the state after every signal.
	notify chan struct{}
}

// NewWaiter returns a Waiter with nothing registered on it.
func NewWaiter() *Waiter {
	return &Waiter{
		values: map[Token]any{},
		notify: make(chan struct{}, 1),
	}
}

// Register generates a new Token and calls work with a SettleFunc for it
// before returning the Token. work runs on the caller's goroutine; it may
// settle right away or hand the SettleFunc to another goroutine that settles
// later. If work panics, the registration fails with an *AsyncHelperError
// naming helper.
func (w *Waiter) Register(helper string, work func(settle SettleFunc)) Token {
	token := NewToken()

	w.mu.Lock()
	w.tokens = append(w.tokens, token)
	w.pending++
	w.mu.Unlock()

	var once sync.Once
	settle := func(value any, err error) {
		once.Do(func() {
			w.settle(token, value, err)
		})
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				settle(nil, &AsyncHelperError{Helper: helper, Err: fmt.Errorf("panic: %v", r)})
			}
		}()
		work(settle)
	}()
	return token
}

func (w *Waiter) settle(token Token, value any, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending--
	if err != nil {
		if w.err == nil {
			w.err = err
		}
	} else {
		w.values[token] = value
	}
	if w.pending == 0 || w.err != nil {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// Wait blocks until everything registered on the Waiter has settled and
// returns their values. If any registration fails, Wait returns that error
// as soon as it's reported, without waiting for the rest. If ctx is done
// first, ctx.Err() is returned.
func (w *Waiter) Wait(ctx context.Context) (Resolution, error) {
	for {
		w.mu.Lock()
		if w.err != nil {
			err := w.err
			w.mu.Unlock()
			return Resolution{}, err
		}
		if w.pending == 0 {
			res := Resolution{
				Tokens: slices.Clone(w.tokens),
				Values: maps.Clone(w.values),
			}
			w.mu.Unlock()
			return res, nil
		}
		w.mu.Unlock()

		select {
		case <-w.notify:
		case <-ctx.Done():
			return Resolution{}, ctx.Err()
		}
	}
}

// wave groups the async work started by a single template execution. Its
// Waiter is only created once something registers, and is dropped when the
// wave is settled so the next execution starts a fresh one.
type wave struct {
	mu     sync.Mutex
	waiter *Waiter
}

func (wv *wave) register(helper string, work func(settle SettleFunc)) Token {
	wv.mu.Lock()
	if wv.waiter == nil {
		wv.waiter = NewWaiter()
	}
	waiter := wv.waiter
	wv.mu.Unlock()
	return waiter.Register(helper, work)
}

// settle waits for the current Waiter, if any, and detaches it. With nothing
// registered it returns an empty Resolution immediately.
func (wv *wave) settle(ctx context.Context) (Resolution, error) {
	wv.mu.Lock()
	waiter := wv.waiter
	wv.waiter = nil
	wv.mu.Unlock()

	if waiter == nil {
		return Resolution{Values: map[Token]any{}}, nil
	}
	return waiter.Wait(ctx)
}

// discard detaches the current Waiter without waiting for it. Anything still
// running settles into the detached Waiter and is ignored.
func (wv *wave) discard() {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	wv.waiter = nil
}
