package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/f3rmion/frosttap/frost"
	"github.com/f3rmion/frosttap/group"
	"github.com/f3rmion/frosttap/keys"
	"github.com/f3rmion/frosttap/transport"
	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

// DefaultRoundTimeout bounds each protocol round.
const DefaultRoundTimeout = 60 * time.Second

// SignerConfig configures a Signer. Zero values select defaults.
type SignerConfig struct {
	RoundTimeout time.Duration
	Rand         io.Reader
	Logger       *zap.Logger
	Metrics      metrics.Registry
}

func (c SignerConfig) withDefaults() SignerConfig {
	if c.RoundTimeout <= 0 {
		c.RoundTimeout = DefaultRoundTimeout
	}
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.DefaultRegistry
	}
	return c
}

// Signer is one participant's view of a signing ceremony. All methods are
// safe for concurrent use; state changes happen under a single mutex that
// is never held while sending or while computing FROST rounds.
type Signer struct {
	id        keys.ParticipantID
	km        *keys.KeyMaterial
	share     *frost.KeyShare
	frost     *frost.FROST
	transport transport.Transport[Message]
	rand      io.Reader
	timeout   time.Duration
	log       *zap.Logger

	commitmentsProcessed metrics.Counter
	sharesProcessed      metrics.Counter

	mu    sync.Mutex
	state SigningState
}

// NewSigner creates a Signer for participant id in state Idle.
func NewSigner(id keys.ParticipantID, km *keys.KeyMaterial, tr transport.Transport[Message], cfg SignerConfig) (*Signer, error) {
	share, ok := km.Share(id)
	if !ok {
		return nil, newError(ErrInternal, "new signer", fmt.Errorf("no key share for participant %s", id))
	}
	f, err := km.FROST()
	if err != nil {
		return nil, newError(ErrFrost, "new signer", err)
	}
	cfg = cfg.withDefaults()

	return &Signer{
		id:                   id,
		km:                   km,
		share:                share,
		frost:                f,
		transport:            tr,
		rand:                 cfg.Rand,
		timeout:              cfg.RoundTimeout,
		log:                  cfg.Logger.With(zap.Stringer("participant", id)),
		commitmentsProcessed: metrics.GetOrRegisterCounter("frost.messages.processed.nonce_commitment", cfg.Metrics),
		sharesProcessed:      metrics.GetOrRegisterCounter("frost.messages.processed.signature_share", cfg.Metrics),
		state:                Idle{},
	}, nil
}

// ID returns the participant this Signer acts for.
func (s *Signer) ID() keys.ParticipantID { return s.id }

// State returns a snapshot of the current state.
func (s *Signer) State() SigningState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.state)
}

// Deadline returns the deadline of the current round, or the zero time
// outside of a round.
func (s *Signer) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch st := s.state.(type) {
	case CollectingCommitments:
		return st.Deadline
	case CollectingShares:
		return st.Deadline
	}
	return time.Time{}
}

// Commitments returns the round 1 commitments received so far.
func (s *Signer) Commitments() map[keys.ParticipantID]*frost.SigningCommitment {
	if st, ok := s.State().(CollectingCommitments); ok {
		return st.Commitments
	}
	return nil
}

// Shares returns the round 2 signature shares received so far.
func (s *Signer) Shares() map[keys.ParticipantID]*frost.SignatureShare {
	if st, ok := s.State().(CollectingShares); ok {
		return st.Shares
	}
	return nil
}

// InitiateRound1 starts session sessionID for unsignedTx: it moves the
// Signer from Idle to CollectingCommitments, generates a nonce pair and
// broadcasts the commitment. The returned nonces must be passed to
// SignAndBroadcastShare and never reused.
//
// Exactly one of several concurrent callers succeeds; the others get
// ErrInvalidState.
func (s *Signer) InitiateRound1(ctx context.Context, sessionID SessionID, unsignedTx *wire.MsgTx) (*frost.SigningNonce, error) {
	const op = "initiate round 1"
	if unsignedTx == nil {
		return nil, newError(ErrInternal, op, errors.New("nil transaction"))
	}

	s.mu.Lock()
	if _, ok := s.state.(Idle); !ok {
		current := s.state
		s.mu.Unlock()
		return nil, newError(ErrInvalidState, op, fmt.Errorf("signer %s is %s, not Idle", s.id, current))
	}
	s.state = CollectingCommitments{
		SessionID:   sessionID,
		UnsignedTx:  unsignedTx.Copy(),
		Commitments: make(map[keys.ParticipantID]*frost.SigningCommitment),
		Deadline:    time.Now().Add(s.timeout),
	}
	s.mu.Unlock()

	log := s.log.With(zap.Uint64("session_id", uint64(sessionID)))
	log.Debug("round 1 started")

	nonce, commitment, err := s.frost.SignRound1(s.rand, s.share)
	if err != nil {
		e := newError(ErrFrost, op, err)
		s.Fail(e)
		return nil, e
	}

	msg := &NonceCommitment{Session: sessionID, From: s.id, Commitment: commitment}
	if err := s.transport.Broadcast(ctx, msg); err != nil {
		e := newError(ErrTransport, op, err)
		s.Fail(e)
		return nil, e
	}
	log.Debug("nonce commitment broadcast")
	return nonce, nil
}

// AdvanceToRound2 moves the Signer from CollectingCommitments to
// CollectingShares for pkg. pkg must contain this Signer's commitment.
func (s *Signer) AdvanceToRound2(pkg *frost.SigningPackage) error {
	const op = "advance to round 2"

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.(CollectingCommitments)
	if !ok {
		return newError(ErrInvalidState, op, fmt.Errorf("signer %s is %s, not CollectingCommitments", s.id, s.state))
	}
	if _, ok := pkg.Commitment(s.share.ID); !ok {
		return newError(ErrInvalidState, op, fmt.Errorf("signer %s is not part of the signing package", s.id))
	}
	s.state = CollectingShares{
		SessionID:  st.SessionID,
		UnsignedTx: st.UnsignedTx,
		Package:    pkg,
		Shares:     make(map[keys.ParticipantID]*frost.SignatureShare),
		Deadline:   time.Now().Add(s.timeout),
	}
	return nil
}

// SignAndBroadcastShare computes this Signer's share over the current
// signing package with nonce and broadcasts it. A Signer signs at most
// once per ceremony; a second call fails with ErrInvalidState.
func (s *Signer) SignAndBroadcastShare(ctx context.Context, nonce *frost.SigningNonce) error {
	const op = "sign and broadcast share"

	s.mu.Lock()
	st, ok := s.state.(CollectingShares)
	if !ok {
		current := s.state
		s.mu.Unlock()
		return newError(ErrInvalidState, op, fmt.Errorf("signer %s is %s, not CollectingShares", s.id, current))
	}
	if st.Signed {
		s.mu.Unlock()
		return newError(ErrInvalidState, op, errors.New("share already produced: nonce reuse prevented"))
	}
	st.Signed = true
	s.state = st
	s.mu.Unlock()

	share, err := s.frost.SignRound2WithTweak(s.share, nonce, st.Package, nil)
	if err != nil {
		e := newError(ErrFrost, op, err)
		s.Fail(e)
		return e
	}

	msg := &SignatureShare{Session: st.SessionID, From: s.id, Share: share}
	if err := s.transport.Broadcast(ctx, msg); err != nil {
		e := newError(ErrTransport, op, err)
		s.Fail(e)
		return e
	}
	s.log.Debug("signature share broadcast", zap.Uint64("session_id", uint64(st.SessionID)))
	return nil
}

// Complete records the signed transaction and moves the Signer to Complete.
// It has no effect unless the Signer is collecting shares.
func (s *Signer) Complete(signedTx *wire.MsgTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.(CollectingShares)
	if !ok {
		s.log.Warn("ignoring completion outside the share round", zap.Stringer("state", s.state))
		return
	}
	s.state = Complete{SessionID: st.SessionID, SignedTx: signedTx}
}

// Fail moves a non-terminal Signer to Failed.
func (s *Signer) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sid SessionID
	switch st := s.state.(type) {
	case Complete, Failed:
		return
	case CollectingCommitments:
		sid = st.SessionID
	case CollectingShares:
		sid = st.SessionID
	}
	s.state = Failed{SessionID: sid, Err: err}
	s.log.Info("signer failed", zap.Uint64("session_id", uint64(sid)), zap.Error(err))
}

// ProcessMessage applies an incoming message to the Signer's state and
// reports whether it was accepted. Messages for another session, of the
// wrong kind for the current round, from unknown or mismatched senders,
// or repeated from the same sender are discarded.
func (s *Signer) ProcessMessage(msg Message) bool {
	if msg == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st := s.state.(type) {
	case CollectingCommitments:
		m, ok := msg.(*NonceCommitment)
		if !ok || m == nil || m.Session != st.SessionID || m.Commitment == nil {
			return s.discard(msg, "not a commitment for this session")
		}
		if !s.fromKnownSender(m.From, m.Commitment.ID) {
			return s.discard(msg, "unknown or mismatched sender")
		}
		if !wellFormed(m.Commitment) {
			return s.discard(msg, "malformed commitment")
		}
		if _, dup := st.Commitments[m.From]; dup {
			return s.discard(msg, "duplicate commitment")
		}
		st.Commitments[m.From] = m.Commitment
		s.commitmentsProcessed.Inc(1)
		return true

	case CollectingShares:
		m, ok := msg.(*SignatureShare)
		if !ok || m == nil || m.Session != st.SessionID || m.Share == nil {
			return s.discard(msg, "not a share for this session")
		}
		if m.Share.Z == nil {
			return s.discard(msg, "share has no response scalar")
		}
		if !s.fromKnownSender(m.From, m.Share.ID) {
			return s.discard(msg, "unknown or mismatched sender")
		}
		if _, member := st.Package.Commitment(m.Share.ID); !member {
			return s.discard(msg, "sender is not in the signing package")
		}
		if _, dup := st.Shares[m.From]; dup {
			return s.discard(msg, "duplicate share")
		}
		st.Shares[m.From] = m.Share
		s.sharesProcessed.Inc(1)
		return true
	}
	return s.discard(msg, "no round in progress")
}

func (s *Signer) fromKnownSender(from keys.ParticipantID, claimed group.Scalar) bool {
	share, ok := s.km.Share(from)
	if !ok || claimed == nil {
		return false
	}
	return share.ID.Equal(claimed)
}

// wellFormed reports whether both nonce points are present and not the
// identity.
func wellFormed(c *frost.SigningCommitment) bool {
	if c.HidingPoint == nil || c.BindingPoint == nil {
		return false
	}
	return !c.HidingPoint.IsIdentity() && !c.BindingPoint.IsIdentity()
}

func (s *Signer) discard(msg Message, reason string) bool {
	s.log.Debug("message discarded",
		zap.String("type", fmt.Sprintf("%T", msg)),
		zap.String("reason", reason),
	)
	return false
}
