package taproot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// DefaultFee is the flat fee paid by BuildUnsignedTx callers that do
	// not choose one.
	DefaultFee btcutil.Amount = 500
	// DustLimit is the smallest P2TR output relayed by default policy.
	DustLimit btcutil.Amount = 330
)

// BuildUnsignedTx spends prev (located at utxo) to `to`, paying amount
// and fee. Any remainder goes to change unless it is below DustLimit, in
// which case it is left to the miner.
func BuildUnsignedTx(
	utxo wire.OutPoint,
	prev *wire.TxOut,
	to btcutil.Address,
	amount btcutil.Amount,
	change btcutil.Address,
	fee btcutil.Amount,
) (*wire.MsgTx, error) {
	if prev == nil {
		return nil, fmt.Errorf("%w: missing previous output", ErrSpend)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrSpend)
	}
	if fee < 0 {
		return nil, fmt.Errorf("%w: negative fee", ErrSpend)
	}
	value := btcutil.Amount(prev.Value)
	if amount+fee > value {
		return nil, fmt.Errorf("%w: amount %v plus fee %v exceeds output value %v", ErrSpend, amount, fee, value)
	}

	toScript, err := txscript.PayToAddrScript(to)
	if err != nil {
		return nil, fmt.Errorf("%w: destination: %v", ErrAddress, err)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&utxo, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(amount), toScript))

	if rest := value - amount - fee; rest >= DustLimit {
		changeScript, err := txscript.PayToAddrScript(change)
		if err != nil {
			return nil, fmt.Errorf("%w: change: %v", ErrAddress, err)
		}
		tx.AddTxOut(wire.NewTxOut(int64(rest), changeScript))
	}
	return tx, nil
}

// ParseOutPoint parses a "txid:vout" reference.
func ParseOutPoint(s string) (wire.OutPoint, error) {
	txid, vout, ok := strings.Cut(s, ":")
	if !ok {
		return wire.OutPoint{}, fmt.Errorf("%w: expected txid:vout, got %q", ErrUTXO, s)
	}
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil || len(txid) != 2*chainhash.HashSize {
		return wire.OutPoint{}, fmt.Errorf("%w: invalid txid %q", ErrUTXO, txid)
	}
	index, err := strconv.ParseUint(vout, 10, 32)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("%w: invalid output index %q", ErrUTXO, vout)
	}
	return *wire.NewOutPoint(hash, uint32(index)), nil
}

// DecodeAddress parses addr and checks it belongs to params' network.
func DecodeAddress(addr string, params *chaincfg.Params) (btcutil.Address, error) {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAddress, err)
	}
	if !decoded.IsForNet(params) {
		return nil, fmt.Errorf("%w: %s is not a %s address", ErrAddress, addr, params.Name)
	}
	return decoded, nil
}

// NetworkParams maps a network name to its chain parameters.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "bitcoin", "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "testnet4":
		return &chaincfg.TestNet4Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("%w: unknown network %q", ErrAddress, name)
	}
}
