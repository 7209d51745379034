package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"
)

var (
	// ErrClient wraps failures talking to the node.
	ErrClient = errors.New("chain: rpc client")
	// ErrUTXO is returned when the referenced output does not exist.
	ErrUTXO = errors.New("chain: utxo")
)

// Backend is the view of the Bitcoin network the spend flow needs.
type Backend interface {
	// FetchPrevOut returns the output referenced by op.
	FetchPrevOut(ctx context.Context, op wire.OutPoint) (*wire.TxOut, error)
	// Broadcast submits a signed transaction and returns its id.
	Broadcast(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error)
}

// RPCConfig locates a bitcoind or btcd JSON-RPC endpoint.
type RPCConfig struct {
	Host       string
	User       string
	Pass       string
	DisableTLS bool
}

type rawTxRPC interface {
	GetRawTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error)
	SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (*chainhash.Hash, error)
	Shutdown()
}

// Client is a Backend over JSON-RPC in HTTP POST mode.
type Client struct {
	rpc rawTxRPC
	log *zap.Logger
}

var _ Backend = (*Client)(nil)

// Dial creates a Client for cfg. No request is made until the first call.
func Dial(cfg RPCConfig, log *zap.Logger) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: rpc host is required", ErrClient)
	}
	c, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   cfg.DisableTLS,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClient, err)
	}
	return newClient(c, log), nil
}

func newClient(rpc rawTxRPC, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{rpc: rpc, log: log}
}

// FetchPrevOut implements Backend by looking up the full previous
// transaction, so the node needs -txindex or a wallet that knows it.
func (c *Client) FetchPrevOut(ctx context.Context, op wire.OutPoint) (*wire.TxOut, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.log.Debug("fetching previous output", zap.Stringer("outpoint", op))

	tx, err := c.rpc.GetRawTransaction(&op.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: getrawtransaction %s: %v", ErrClient, op.Hash, err)
	}
	outs := tx.MsgTx().TxOut
	if int(op.Index) >= len(outs) {
		return nil, fmt.Errorf("%w: %s has %d outputs, no index %d", ErrUTXO, op.Hash, len(outs), op.Index)
	}
	out := *outs[op.Index]
	return &out, nil
}

// Broadcast implements Backend.
func (c *Client) Broadcast(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txid, err := c.rpc.SendRawTransaction(tx, false)
	if err != nil {
		return nil, fmt.Errorf("%w: sendrawtransaction: %v", ErrClient, err)
	}
	c.log.Info("transaction broadcast", zap.Stringer("txid", txid))
	return txid, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.rpc.Shutdown()
	return nil
}
