package sse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/qianfan-go/qianfan/pkg/api"
)

// DoneSentinel is the data payload that signals graceful end-of-stream,
// distinct from connection close.
const DoneSentinel = "[DONE]"

// Stream is a lazy, ordered sequence of typed items decoded from one SSE
// byte source. Items are produced on demand: the underlying transport read
// advances only when Next is called.
//
// A stream may be split exactly once, before any consumption, into two
// independently paced handles that each observe every item once in order.
// Cancel aborts the transport read and is idempotent.
type Stream[T any] struct {
	src  *source[T]
	tee  *tee[T]
	side int

	mu      sync.Mutex
	started bool
	split   bool
}

// StreamOption configures a Stream.
type StreamOption func(*streamConfig)

type streamConfig struct {
	abort     context.CancelFunc
	closeHook func()
}

// WithAbort wires the context cancel function of the underlying transport
// request; Cancel invokes it to abort the in-flight read.
func WithAbort(abort context.CancelFunc) StreamOption {
	return func(c *streamConfig) { c.abort = abort }
}

// WithCloseHook registers a function called exactly once when the stream
// reaches any terminal state (exhaustion, error, cancellation).
func WithCloseHook(hook func()) StreamOption {
	return func(c *streamConfig) { c.closeHook = hook }
}

// NewStream creates a Stream decoding items of type T from body.
func NewStream[T any](body io.ReadCloser, opts ...StreamOption) *Stream[T] {
	var cfg streamConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Stream[T]{
		src: &source[T]{
			dec:       NewDecoder(body),
			body:      body,
			abort:     cfg.abort,
			closeHook: cfg.closeHook,
		},
	}
}

// Next returns the next item. It returns io.EOF after the termination
// sentinel or a clean connection close, a CanceledError after Cancel, and
// a StateError on a handle that has been split.
func (s *Stream[T]) Next() (T, error) {
	var zero T
	s.mu.Lock()
	if s.split {
		s.mu.Unlock()
		return zero, api.NewStateError("next", "stream handle was split")
	}
	s.started = true
	s.mu.Unlock()

	if s.tee != nil {
		return s.tee.next(s.side)
	}
	return s.src.next()
}

// Split duplicates the stream into two handles over the same byte source,
// each yielding every remaining item once, in order, at its own pace.
// Allowed exactly once per stream and only before consumption has begun;
// afterwards the original handle is no longer consumable.
func (s *Stream[T]) Split() (*Stream[T], *Stream[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.tee != nil:
		return nil, nil, api.NewStateError("split", "stream already split")
	case s.split:
		return nil, nil, api.NewStateError("split", "stream already split")
	case s.started:
		return nil, nil, api.NewStateError("split", "stream already consumed")
	case s.src.canceled.Load():
		return nil, nil, api.NewStateError("split", "stream canceled")
	}

	s.split = true
	t := newTee[T](s.src)
	s.src.setCancelHook(t.discard)
	return &Stream[T]{src: s.src, tee: t, side: 0},
		&Stream[T]{src: s.src, tee: t, side: 1},
		nil
}

// Cancel aborts the underlying transport read. Pending and subsequent
// Next calls fail with a CanceledError; buffered undelivered items are
// discarded. Canceling twice is a no-op.
func (s *Stream[T]) Cancel() {
	s.src.cancel()
}

// source is the shared byte side of a stream: one decoder over one
// transport body. readMu serializes frame decoding across handles.
type source[T any] struct {
	readMu sync.Mutex
	dec    *Decoder
	done   bool

	body      io.Closer
	abort     context.CancelFunc
	closeHook func()
	closeOnce sync.Once
	canceled  atomic.Bool

	hookMu     sync.Mutex
	cancelHook func()
}

// setCancelHook registers extra cancellation work; Split uses it so that
// canceling any handle also discards the tee's undelivered buffers.
func (s *source[T]) setCancelHook(hook func()) {
	s.hookMu.Lock()
	s.cancelHook = hook
	s.hookMu.Unlock()
}

func (s *source[T]) next() (T, error) {
	var zero T
	s.readMu.Lock()
	defer s.readMu.Unlock()

	for {
		if s.done {
			return zero, io.EOF
		}
		if s.canceled.Load() {
			return zero, api.NewCanceledError("stream next")
		}

		ev, err := s.dec.Next()
		if err != nil {
			// A read failure right after Cancel is the closed body, not a
			// transport fault.
			if s.canceled.Load() {
				return zero, api.NewCanceledError("stream next")
			}
			s.terminate()
			if err == io.EOF {
				return zero, io.EOF
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return zero, api.NewTimeoutError("stream read")
			}
			return zero, api.NewRequestError(0, "stream read: "+err.Error())
		}

		if ev.Data == "" {
			continue
		}
		if ev.Data == DoneSentinel {
			s.terminate()
			return zero, io.EOF
		}

		// The service reports mid-stream failures as ordinary frames
		// carrying an error body.
		var se api.ServiceError
		if json.Unmarshal([]byte(ev.Data), &se) == nil && se.ErrorCode != 0 {
			s.terminate()
			return zero, api.NewServiceError(0, se.ErrorCode, se.ErrorMsg)
		}

		var item T
		if err := json.Unmarshal([]byte(ev.Data), &item); err != nil {
			slog.Warn("skipping malformed SSE frame",
				"error", err.Error(),
				"data", truncate(ev.Data, 200),
			)
			continue
		}
		return item, nil
	}
}

// terminate marks the source exhausted and releases the transport.
// Callers hold readMu.
func (s *source[T]) terminate() {
	s.done = true
	s.close()
}

func (s *source[T]) close() {
	s.closeOnce.Do(func() {
		if s.body != nil {
			s.body.Close()
		}
		if s.closeHook != nil {
			s.closeHook()
		}
	})
}

func (s *source[T]) cancel() {
	if !s.canceled.CompareAndSwap(false, true) {
		return
	}
	if s.abort != nil {
		s.abort()
	}
	s.hookMu.Lock()
	hook := s.cancelHook
	s.hookMu.Unlock()
	if hook != nil {
		hook()
	}
	s.close()
}

// tee fans one source out to two consumers through a shared buffer of
// undelivered items with one read cursor per side. Items pulled by the
// faster side stay buffered until the slower one catches up; the terminal
// state, once reached, is replayed to both sides after their cursors
// drain the buffer. A buffered item is always deliverable immediately,
// even while the sibling is blocked inside a source read.
type tee[T any] struct {
	src *source[T]

	mu   sync.Mutex
	cond *sync.Cond
	buf  []T
	// base is the sequence number of buf[0]; cursor holds each side's next
	// sequence number.
	base    int
	cursor  [2]int
	pulling bool
	err     error
}

func newTee[T any](src *source[T]) *tee[T] {
	t := &tee[T]{src: src}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *tee[T]) next(side int) (T, error) {
	var zero T
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if t.cursor[side] < t.base+len(t.buf) {
			item := t.buf[t.cursor[side]-t.base]
			t.cursor[side]++
			t.trim()
			return item, nil
		}
		if t.err != nil {
			return zero, t.err
		}

		// The sibling is mid-pull; wait for it to land an item or the
		// terminal state rather than stacking a second source read.
		if t.pulling {
			t.cond.Wait()
			continue
		}

		// Pull outside the lock so the sibling can keep draining buffered
		// items while this read is in flight.
		t.pulling = true
		t.mu.Unlock()
		item, err := t.src.next()
		t.mu.Lock()
		t.pulling = false
		t.cond.Broadcast()

		if err != nil {
			if t.err == nil {
				t.err = err
			}
			return zero, t.err
		}
		// A cancel may have landed while the read was in flight; the frame
		// is undelivered and gets dropped with the rest.
		if t.err != nil {
			return zero, t.err
		}
		t.buf = append(t.buf, item)
	}
}

// trim drops buffered items both cursors have passed. Callers hold t.mu.
func (t *tee[T]) trim() {
	min := t.cursor[0]
	if t.cursor[1] < min {
		min = t.cursor[1]
	}
	if n := min - t.base; n > 0 {
		t.buf = t.buf[n:]
		t.base = min
	}
}

// discard drops undelivered items on cancellation and pins the terminal
// state to a CanceledError unless the stream already ended.
func (t *tee[T]) discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = nil
	t.base = max(t.cursor[0], t.cursor[1])
	t.cursor[0], t.cursor[1] = t.base, t.base
	if t.err == nil {
		t.err = api.NewCanceledError("stream next")
	}
	t.cond.Broadcast()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
