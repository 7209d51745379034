package taproot

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SignatureSize is the length of a key-path spend signature with
// SIGHASH_DEFAULT.
const SignatureSize = schnorr.SignatureSize

// InternalKey returns the BIP-341 internal key for groupKey: the same
// point when its y-coordinate is even, its negation otherwise.
func InternalKey(groupKey *btcec.PublicKey) *btcec.PublicKey {
	if groupKey.SerializeCompressed()[0] == 0x02 {
		return groupKey
	}
	var p btcec.JacobianPoint
	groupKey.AsJacobian(&p)
	p.Y.Negate(1).Normalize()
	return btcec.NewPublicKey(&p.X, &p.Y)
}

// OutputKey returns Q = P + H_TapTweak(P)*G for an internal key P with no
// script tree.
func OutputKey(internal *btcec.PublicKey) *btcec.PublicKey {
	return txscript.ComputeTaprootKeyNoScript(internal)
}

// TweakedKey returns the output key committed to by a key-path-only P2TR
// output controlled by groupKey.
func TweakedKey(groupKey *btcec.PublicKey) *btcec.PublicKey {
	return OutputKey(InternalKey(groupKey))
}

// Sighash computes the BIP-341 SIGHASH_DEFAULT signature hash for input 0
// of tx. prevOuts holds the spent output of every input, in input order.
func Sighash(tx *wire.MsgTx, prevOuts []*wire.TxOut) ([32]byte, error) {
	var out [32]byte
	if len(tx.TxIn) == 0 {
		return out, fmt.Errorf("%w: transaction has no inputs", ErrSighash)
	}
	if len(prevOuts) != len(tx.TxIn) {
		return out, fmt.Errorf("%w: %d previous outputs for %d inputs", ErrSighash, len(prevOuts), len(tx.TxIn))
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range tx.TxIn {
		if prevOuts[i] == nil {
			return out, fmt.Errorf("%w: missing previous output for input %d", ErrSighash, i)
		}
		fetcher.AddPrevOut(in.PreviousOutPoint, prevOuts[i])
	}

	hashes := txscript.NewTxSigHashes(tx, fetcher)
	digest, err := txscript.CalcTaprootSignatureHash(hashes, txscript.SigHashDefault, tx, 0, fetcher)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrSighash, err)
	}
	copy(out[:], digest)
	return out, nil
}

// AddWitness installs sig as the sole witness element of input 0.
func AddWitness(tx *wire.MsgTx, sig [SignatureSize]byte) error {
	if len(tx.TxIn) == 0 {
		return fmt.Errorf("%w: transaction has no inputs", ErrSighash)
	}
	witness := make([]byte, SignatureSize)
	copy(witness, sig[:])
	tx.TxIn[0].Witness = wire.TxWitness{witness}
	return nil
}

// VerifySignature checks sig as a BIP-340 signature over msg by key.
func VerifySignature(sig [SignatureSize]byte, msg []byte, key *btcec.PublicKey) error {
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !parsed.Verify(msg, key) {
		return ErrInvalidSignature
	}
	return nil
}
