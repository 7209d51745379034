package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/f3rmion/frosttap/keys"
)

// ErrClosed is returned by every operation on a closed transport.
var ErrClosed = errors.New("transport closed")

// ErrUnknownParticipant is returned when a message is addressed to a
// participant the transport does not know.
var ErrUnknownParticipant = errors.New("unknown participant")

// Op names the transport operation that failed.
type Op string

const (
	OpSend      Op = "send"
	OpBroadcast Op = "broadcast"
	OpReceive   Op = "receive"
)

// Error is the fault type of every Transport implementation.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Envelope is one queued message and the participant it is addressed to.
type Envelope[M any] struct {
	To  keys.ParticipantID
	Msg M
}

// Transport moves protocol messages between the participants of one
// ceremony. Implementations must be safe for concurrent use.
type Transport[M any] interface {
	// Send queues msg for a single participant.
	Send(ctx context.Context, to keys.ParticipantID, msg M) error
	// Broadcast queues one copy of msg for every participant, the sender
	// included.
	Broadcast(ctx context.Context, msg M) error
	// Receive dequeues the oldest message. It does not wait: ok is false
	// when nothing is queued.
	Receive(ctx context.Context) (env Envelope[M], ok bool, err error)
}

// InMemory is a Transport backed by a single FIFO queue shared by all
// participants of a ceremony running in one process.
type InMemory[M any] struct {
	mu           sync.Mutex
	participants []keys.ParticipantID
	known        map[keys.ParticipantID]bool
	queue        []Envelope[M]
	closed       bool
}

// NewInMemory creates a queue for the given participants. Broadcast
// delivers in the order participants are listed.
func NewInMemory[M any](participants []keys.ParticipantID) *InMemory[M] {
	t := &InMemory[M]{
		participants: append([]keys.ParticipantID(nil), participants...),
		known:        make(map[keys.ParticipantID]bool, len(participants)),
	}
	for _, id := range participants {
		t.known[id] = true
	}
	return t
}

// Send implements Transport.
func (t *InMemory[M]) Send(ctx context.Context, to keys.ParticipantID, msg M) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: OpSend, Err: err}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &Error{Op: OpSend, Err: ErrClosed}
	}
	if !t.known[to] {
		return &Error{Op: OpSend, Err: fmt.Errorf("%w: %s", ErrUnknownParticipant, to)}
	}
	t.queue = append(t.queue, Envelope[M]{To: to, Msg: msg})
	return nil
}

// Broadcast implements Transport.
func (t *InMemory[M]) Broadcast(ctx context.Context, msg M) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: OpBroadcast, Err: err}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &Error{Op: OpBroadcast, Err: ErrClosed}
	}
	for _, id := range t.participants {
		t.queue = append(t.queue, Envelope[M]{To: id, Msg: msg})
	}
	return nil
}

// Receive implements Transport.
func (t *InMemory[M]) Receive(ctx context.Context) (Envelope[M], bool, error) {
	var zero Envelope[M]
	if err := ctx.Err(); err != nil {
		return zero, false, &Error{Op: OpReceive, Err: err}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return zero, false, &Error{Op: OpReceive, Err: ErrClosed}
	}
	if len(t.queue) == 0 {
		return zero, false, nil
	}
	env := t.queue[0]
	t.queue[0] = zero
	t.queue = t.queue[1:]
	return env, true, nil
}

// Len returns the number of queued messages.
func (t *InMemory[M]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Close drops queued messages and makes every later call fail with
// ErrClosed.
func (t *InMemory[M]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.queue = nil
	return nil
}
