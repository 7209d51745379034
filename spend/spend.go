package spend

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/f3rmion/frosttap/chain"
	"github.com/f3rmion/frosttap/keys"
	"github.com/f3rmion/frosttap/session"
	"github.com/f3rmion/frosttap/taproot"
	"go.uber.org/zap"
)

// ErrForeignUTXO is returned when the output being spent is not locked to
// the group's key-path script.
var ErrForeignUTXO = errors.New("spend: output is not locked to the group key")

// Request describes one payment out of a group-controlled output.
type Request struct {
	UTXO   wire.OutPoint
	To     btcutil.Address
	Amount btcutil.Amount
	// Fee is the absolute fee. Zero selects taproot.DefaultFee.
	Fee btcutil.Amount
	// DryRun signs without broadcasting.
	DryRun bool
}

// Result is a signed spend.
type Result struct {
	Tx   *wire.MsgTx
	TxID chainhash.Hash
	// Broadcast is false for dry runs.
	Broadcast bool
}

// Spender pays out of outputs controlled by one key set. Change returns
// to the group's own address.
type Spender struct {
	km      *keys.KeyMaterial
	backend chain.Backend
	params  *chaincfg.Params
	coord   *session.Coordinator
	log     *zap.Logger

	script []byte
	change *btcutil.AddressTaproot
}

// New prepares a Spender for km on the network described by params.
func New(km *keys.KeyMaterial, backend chain.Backend, params *chaincfg.Params, cfg session.Config) (*Spender, error) {
	coord, err := session.NewCoordinator(km, cfg)
	if err != nil {
		return nil, err
	}
	addr, err := km.Address(params)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", taproot.ErrAddress, err)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Spender{
		km:      km,
		backend: backend,
		params:  params,
		coord:   coord,
		log:     log,
		script:  script,
		change:  addr,
	}, nil
}

// Address returns the group address funds are received on.
func (s *Spender) Address() *btcutil.AddressTaproot { return s.change }

// Spend fetches the output, builds and signs the payment and, unless
// req.DryRun is set, broadcasts it.
func (s *Spender) Spend(ctx context.Context, req Request) (*Result, error) {
	if req.To == nil || !req.To.IsForNet(s.params) {
		return nil, fmt.Errorf("%w: destination is not a %s address", taproot.ErrAddress, s.params.Name)
	}
	fee := req.Fee
	if fee == 0 {
		fee = taproot.DefaultFee
	}
	log := s.log.With(zap.Stringer("utxo", req.UTXO), zap.Int64("amount", int64(req.Amount)))

	prev, err := s.backend.FetchPrevOut(ctx, req.UTXO)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(prev.PkScript, s.script) {
		return nil, fmt.Errorf("%w: %s", ErrForeignUTXO, req.UTXO)
	}

	unsigned, err := taproot.BuildUnsignedTx(req.UTXO, prev, req.To, req.Amount, s.change, fee)
	if err != nil {
		return nil, err
	}
	log.Info("unsigned transaction built", zap.Int("outputs", len(unsigned.TxOut)))

	signed, err := s.coord.Sign(ctx, unsigned, []*wire.TxOut{prev})
	if err != nil {
		return nil, err
	}
	res := &Result{Tx: signed, TxID: signed.TxHash()}
	if req.DryRun {
		log.Info("dry run, not broadcasting", zap.Stringer("txid", res.TxID))
		return res, nil
	}

	txid, err := s.backend.Broadcast(ctx, signed)
	if err != nil {
		return nil, err
	}
	if !txid.IsEqual(&res.TxID) {
		log.Warn("node reported a different txid", zap.Stringer("node_txid", txid))
	}
	res.Broadcast = true
	return res, nil
}
