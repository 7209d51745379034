package guardian

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/f3rmion/frosttap/keys"
	"github.com/f3rmion/frosttap/transport"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

var (
	// ErrInvalidState is returned by Ping when the node is not Idle.
	ErrInvalidState = errors.New("guardian: invalid state for operation")
	// ErrEncoding wraps wire message encoding failures.
	ErrEncoding = errors.New("guardian: message encoding")
)

// Payload is the body of a wire message.
type Payload uint8

const (
	Ping Payload = iota + 1
	Pong
)

func (p Payload) String() string {
	switch p {
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	}
	return fmt.Sprintf("payload(%d)", uint8(p))
}

// WireMessage is what travels over the byte transport.
type WireMessage struct {
	Sender  keys.ParticipantID `msgpack:"sender"`
	Payload Payload            `msgpack:"payload"`
}

// Phase is the coarse state of a Node.
type Phase int

const (
	Idle Phase = iota
	AwaitingPong
	Done
)

// State is a Node's phase and, while awaiting a pong, the pinged peer.
type State struct {
	Phase Phase
	Peer  keys.ParticipantID
}

func (s State) String() string {
	switch s.Phase {
	case Idle:
		return "Idle"
	case AwaitingPong:
		return "AwaitingPong(" + s.Peer.String() + ")"
	case Done:
		return "Done"
	}
	return fmt.Sprintf("Phase(%d)", int(s.Phase))
}

// Node answers pings and waits for the pong to its own ping.
type Node struct {
	id        keys.ParticipantID
	transport transport.Transport[[]byte]
	log       *zap.Logger

	mu    sync.Mutex
	state State
}

// NewNode creates an Idle node. A nil logger discards output.
func NewNode(id keys.ParticipantID, tr transport.Transport[[]byte], log *zap.Logger) *Node {
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		id:        id,
		transport: tr,
		log:       log.With(zap.Uint16("participant_id", uint16(id))),
	}
}

// ID returns the node's participant identifier.
func (n *Node) ID() keys.ParticipantID { return n.id }

// State returns the current state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Ping sends a ping to peer and moves the node to AwaitingPong. The state
// is set before sending and restored if the send fails.
func (n *Node) Ping(ctx context.Context, peer keys.ParticipantID) error {
	n.mu.Lock()
	if n.state.Phase != Idle {
		current := n.state
		n.mu.Unlock()
		return fmt.Errorf("%w: node %s is %s", ErrInvalidState, n.id, current)
	}
	awaiting := State{Phase: AwaitingPong, Peer: peer}
	n.state = awaiting
	n.mu.Unlock()

	if err := n.send(ctx, peer, Ping); err != nil {
		n.mu.Lock()
		if n.state == awaiting {
			n.state = State{}
		}
		n.mu.Unlock()
		return err
	}
	return nil
}

// Step takes one message off the transport and handles it. It reports
// whether a message addressed to this node was handled. Messages for other
// nodes and undecodable messages are dropped.
func (n *Node) Step(ctx context.Context) (bool, error) {
	env, ok, err := n.transport.Receive(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if env.To != n.id {
		n.log.Debug("dropping message for another node", zap.Uint16("to", uint16(env.To)))
		return false, nil
	}

	var msg WireMessage
	if err := msgpack.Unmarshal(env.Msg, &msg); err != nil {
		n.log.Debug("dropping undecodable message", zap.Error(err))
		return false, nil
	}
	return true, n.handle(ctx, msg)
}

func (n *Node) handle(ctx context.Context, msg WireMessage) error {
	var reply bool

	n.mu.Lock()
	switch {
	case n.state.Phase == Idle && msg.Payload == Ping:
		reply = true
	case n.state.Phase == AwaitingPong && msg.Payload == Pong && msg.Sender == n.state.Peer:
		n.state = State{Phase: Done}
	}
	n.mu.Unlock()

	n.log.Debug("handled message", zap.Stringer("payload", msg.Payload), zap.Uint16("from", uint16(msg.Sender)))
	if reply {
		return n.send(ctx, msg.Sender, Pong)
	}
	return nil
}

func (n *Node) send(ctx context.Context, to keys.ParticipantID, p Payload) error {
	b, err := msgpack.Marshal(&WireMessage{Sender: n.id, Payload: p})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return n.transport.Send(ctx, to, b)
}
