package connection

import (
	"errors"
	"io"
	"sync"
)

// Handle errors.
var (
	// ErrHandleClosed indicates the handle's channel has been closed.
	ErrHandleClosed = errors.New("channel handle closed")
)

// Handle provides explicit shared ownership of a single physical
// channel. Two collaborators sharing one serial connection each Retain
// the handle; the underlying channel closes when the last holder calls
// Release. There is no process-wide registry keyed by port name —
// sharing is always explicit through a Handle value.
type Handle struct {
	mu     sync.Mutex
	ch     io.Closer
	refs   int
	closed bool
}

// NewHandle wraps an open channel with a reference count of one.
// The caller owns the initial reference and must Release it.
func NewHandle(ch io.Closer) *Handle {
	return &Handle{ch: ch, refs: 1}
}

// Retain adds a reference for a new holder.
// Returns ErrHandleClosed if the channel has already been closed.
func (h *Handle) Retain() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	h.refs++
	return nil
}

// Release drops one reference. When the last reference is released the
// underlying channel is closed and its error returned.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	h.closed = true
	return h.ch.Close()
}

// Refs returns the current reference count.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Closed reports whether the underlying channel has been closed.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
