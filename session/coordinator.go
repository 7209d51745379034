package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/f3rmion/frosttap/frost"
	"github.com/f3rmion/frosttap/keys"
	"github.com/f3rmion/frosttap/taproot"
	"github.com/f3rmion/frosttap/transport"
	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

// Config configures a Coordinator. Zero values select defaults.
type Config struct {
	// RoundTimeout bounds each round. Default DefaultRoundTimeout.
	RoundTimeout time.Duration
	// StrictDeadlines makes an expired round deadline fail the ceremony
	// with ErrTimeout. By default the round ends with whatever arrived
	// and the threshold check decides.
	StrictDeadlines bool
	// Rand feeds session identifiers and nonces. Default crypto/rand.
	Rand io.Reader
	Logger *zap.Logger
	// Metrics receives message and ceremony counters. Default
	// metrics.DefaultRegistry.
	Metrics metrics.Registry
	// NewTransport creates the transport for one ceremony. Default
	// transport.NewInMemory.
	NewTransport func(participants []keys.ParticipantID) transport.Transport[Message]
}

// Coordinator drives complete signing ceremonies for one key set, with
// every participant's Signer running in this process.
type Coordinator struct {
	km        *keys.KeyMaterial
	frost     *frost.FROST
	outputKey *btcec.PublicKey
	cfg       Config
	log       *zap.Logger

	succeeded metrics.Counter
	failed    metrics.Counter
}

// NewCoordinator validates km and prepares a Coordinator.
func NewCoordinator(km *keys.KeyMaterial, cfg Config) (*Coordinator, error) {
	if err := km.Validate(); err != nil {
		return nil, newError(ErrInternal, "new coordinator", err)
	}
	f, err := km.FROST()
	if err != nil {
		return nil, newError(ErrFrost, "new coordinator", err)
	}
	q, err := km.OutputKey()
	if err != nil {
		return nil, newError(ErrBitcoin, "new coordinator", err)
	}

	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = DefaultRoundTimeout
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultRegistry
	}
	if cfg.NewTransport == nil {
		cfg.NewTransport = func(ids []keys.ParticipantID) transport.Transport[Message] {
			return transport.NewInMemory[Message](ids)
		}
	}

	return &Coordinator{
		km:        km,
		frost:     f,
		outputKey: q,
		cfg:       cfg,
		log:       cfg.Logger,
		succeeded: metrics.GetOrRegisterCounter("frost.ceremony.success", cfg.Metrics),
		failed:    metrics.GetOrRegisterCounter("frost.ceremony.failure", cfg.Metrics),
	}, nil
}

// ceremony is the per-call state of Sign.
type ceremony struct {
	id      SessionID
	tr      transport.Transport[Message]
	order   []keys.ParticipantID
	signers map[keys.ParticipantID]*Signer
	nonces  map[keys.ParticipantID]*frost.SigningNonce
	log     *zap.Logger
}

// Sign runs one FROST ceremony over input 0 of tx, whose spent outputs
// are prevOuts (one per input, in order), and returns a copy of tx
// carrying the key-path witness. tx itself is never modified.
func (c *Coordinator) Sign(ctx context.Context, tx *wire.MsgTx, prevOuts []*wire.TxOut) (*wire.MsgTx, error) {
	signed, cer, err := c.sign(ctx, tx, prevOuts)
	if err != nil {
		if cer != nil {
			for _, s := range cer.signers {
				s.Fail(err)
			}
			cer.log.Warn("ceremony failed", zap.Error(err))
		}
		c.failed.Inc(1)
		return nil, err
	}
	c.succeeded.Inc(1)
	cer.log.Info("ceremony complete", zap.Stringer("txid", signed.TxHash()))
	return signed, nil
}

func (c *Coordinator) sign(ctx context.Context, tx *wire.MsgTx, prevOuts []*wire.TxOut) (*wire.MsgTx, *ceremony, error) {
	if tx == nil {
		return nil, nil, newError(ErrBitcoin, "sign", errors.New("nil transaction"))
	}
	cer, err := c.setup()
	if err != nil {
		return nil, nil, err
	}
	if closer, ok := cer.tr.(io.Closer); ok {
		defer closer.Close()
	}

	// Round 1.
	cer.log.Info("round 1: broadcasting nonce commitments")
	for _, id := range cer.order {
		nonce, err := cer.signers[id].InitiateRound1(ctx, cer.id, tx)
		if err != nil {
			return nil, cer, err
		}
		cer.nonces[id] = nonce
	}
	deadline := cer.signers[cer.order[0]].Deadline()
	if err := c.drain(ctx, cer, deadline, "round 1"); err != nil {
		return nil, cer, err
	}

	commitments, err := cer.collectCommitments()
	if err != nil {
		return nil, cer, err
	}
	if len(commitments) < int(c.km.Threshold) {
		return nil, cer, newError(ErrNotEnoughSigners, "round 1",
			fmt.Errorf("%d commitments, threshold %d", len(commitments), c.km.Threshold))
	}

	sighash, err := taproot.Sighash(tx, prevOuts)
	if err != nil {
		return nil, cer, newError(ErrBitcoin, "sighash", err)
	}
	pkg, err := frost.NewSigningPackage(commitments, sighash[:])
	if err != nil {
		return nil, cer, newError(ErrFrost, "signing package", err)
	}

	// Round 2.
	cer.log.Info("round 2: broadcasting signature shares", zap.Int("signers", len(pkg.Commitments)))
	members := make([]keys.ParticipantID, 0, len(pkg.Commitments))
	for _, id := range cer.order {
		s := cer.signers[id]
		if _, ok := pkg.Commitment(s.share.ID); !ok {
			s.Fail(newError(ErrNotEnoughSigners, "round 2", errors.New("commitment missing from signing package")))
			continue
		}
		if err := s.AdvanceToRound2(pkg); err != nil {
			return nil, cer, err
		}
		members = append(members, id)
	}
	if len(members) == 0 {
		return nil, cer, newError(ErrNotEnoughSigners, "round 2", errors.New("no signer is part of the signing package"))
	}
	for _, id := range members {
		nonce := cer.nonces[id]
		delete(cer.nonces, id)
		if err := cer.signers[id].SignAndBroadcastShare(ctx, nonce); err != nil {
			return nil, cer, err
		}
	}
	deadline = cer.signers[members[0]].Deadline()
	if err := c.drain(ctx, cer, deadline, "round 2"); err != nil {
		return nil, cer, err
	}

	shares, err := cer.collectShares(members, pkg)
	if err != nil {
		return nil, cer, err
	}
	if len(shares) < int(c.km.Threshold) || len(shares) < len(pkg.Commitments) {
		return nil, cer, newError(ErrNotEnoughSigners, "round 2",
			fmt.Errorf("%d shares for %d commitments, threshold %d", len(shares), len(pkg.Commitments), c.km.Threshold))
	}

	// Aggregation.
	sig, err := c.frost.AggregateWithTweak(pkg, shares, c.km.Public, nil)
	if err != nil {
		return nil, cer, newError(ErrFrost, "aggregate", err)
	}
	raw, err := frost.SerializeSignature(sig)
	if err != nil {
		return nil, cer, newError(ErrFrost, "serialize signature", err)
	}
	if err := taproot.VerifySignature(raw, sighash[:], c.outputKey); err != nil {
		return nil, cer, newError(ErrFrost, "verify signature", err)
	}

	signed := tx.Copy()
	if err := taproot.AddWitness(signed, raw); err != nil {
		return nil, cer, newError(ErrBitcoin, "add witness", err)
	}
	for _, id := range members {
		cer.signers[id].Complete(signed)
	}
	return signed, cer, nil
}

func (c *Coordinator) setup() (*ceremony, error) {
	var buf [8]byte
	if _, err := io.ReadFull(c.cfg.Rand, buf[:]); err != nil {
		return nil, newError(ErrInternal, "session id", err)
	}
	id := SessionID(binary.BigEndian.Uint64(buf[:]))

	order := c.km.Participants()
	cer := &ceremony{
		id:      id,
		tr:      c.cfg.NewTransport(order),
		order:   order,
		signers: make(map[keys.ParticipantID]*Signer, len(order)),
		nonces:  make(map[keys.ParticipantID]*frost.SigningNonce, len(order)),
		log:     c.log.With(zap.Uint64("session_id", uint64(id))),
	}
	scfg := SignerConfig{
		RoundTimeout: c.cfg.RoundTimeout,
		Rand:         c.cfg.Rand,
		Logger:       c.log,
		Metrics:      c.cfg.Metrics,
	}
	for _, pid := range order {
		s, err := NewSigner(pid, c.km, cer.tr, scfg)
		if err != nil {
			return nil, err
		}
		cer.signers[pid] = s
	}
	return cer, nil
}

// drain delivers queued messages to their addressed Signers until the
// queue is empty or the round deadline passes.
func (c *Coordinator) drain(ctx context.Context, cer *ceremony, deadline time.Time, round string) error {
	rctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	delivered := 0
	for {
		if rctx.Err() != nil {
			return c.roundExpired(ctx, cer, round, delivered)
		}
		env, ok, err := cer.tr.Receive(rctx)
		if err != nil {
			if rctx.Err() != nil {
				return c.roundExpired(ctx, cer, round, delivered)
			}
			return newError(ErrTransport, round, err)
		}
		if !ok {
			cer.log.Debug("queue drained", zap.String("round", round), zap.Int("delivered", delivered))
			return nil
		}
		s, known := cer.signers[env.To]
		if !known {
			cer.log.Debug("message for unknown participant dropped", zap.Stringer("to", env.To))
			continue
		}
		s.ProcessMessage(env.Msg)
		delivered++
	}
}

func (c *Coordinator) roundExpired(ctx context.Context, cer *ceremony, round string, delivered int) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrTimeout, round, err)
	case err != nil:
		return newError(ErrInternal, round, err)
	}
	if c.cfg.StrictDeadlines {
		return newError(ErrTimeout, round, fmt.Errorf("deadline passed after %d messages", delivered))
	}
	cer.log.Warn("round deadline passed, continuing with collected messages",
		zap.String("round", round), zap.Int("delivered", delivered))
	return nil
}

// collectCommitments reads the commitments gathered by the first Signer,
// in participant order, that is still collecting them.
func (cer *ceremony) collectCommitments() ([]*frost.SigningCommitment, error) {
	for _, id := range cer.order {
		st, ok := cer.signers[id].State().(CollectingCommitments)
		if !ok {
			continue
		}
		out := make([]*frost.SigningCommitment, 0, len(st.Commitments))
		for _, pid := range cer.order {
			if comm, ok := st.Commitments[pid]; ok {
				out = append(out, comm)
			}
		}
		return out, nil
	}
	return nil, newError(ErrInternal, "round 1", errors.New("no signer is collecting commitments"))
}

// collectShares reads the shares gathered by the first package member
// still collecting them, ordered like the package.
func (cer *ceremony) collectShares(members []keys.ParticipantID, pkg *frost.SigningPackage) ([]*frost.SignatureShare, error) {
	for _, id := range members {
		st, ok := cer.signers[id].State().(CollectingShares)
		if !ok {
			continue
		}
		out := make([]*frost.SignatureShare, 0, len(st.Shares))
		for _, pid := range members {
			if share, ok := st.Shares[pid]; ok {
				out = append(out, share)
			}
		}
		return out, nil
	}
	return nil, newError(ErrInternal, "round 2", errors.New("no signer is collecting shares"))
}
