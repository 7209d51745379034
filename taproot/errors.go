package taproot

import "errors"

var (
	// ErrSighash reports a transaction whose signature hash cannot be computed.
	ErrSighash = errors.New("sighash error")
	// ErrAddress reports an unparseable address or one for another network.
	ErrAddress = errors.New("address error")
	// ErrSpend reports a spend that cannot be built from the given output.
	ErrSpend = errors.New("spend error")
	// ErrUTXO reports a malformed "txid:vout" reference.
	ErrUTXO = errors.New("utxo error")
	// ErrInvalidSignature reports a signature that fails BIP-340 verification.
	ErrInvalidSignature = errors.New("invalid schnorr signature")
)
