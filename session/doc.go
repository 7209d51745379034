// Package session runs FROST signing ceremonies that produce Taproot
// key-path witnesses. It sits on top of the [frost] primitives and adds
// per-participant state tracking, message validation and round deadlines.
//
// # Signers
//
// A [Signer] is one participant's view of a ceremony. It starts Idle and
// moves through the closed set of [SigningState] values:
//
//	Idle -> CollectingCommitments -> CollectingShares -> Complete
//
// Any non-terminal state may move to Failed. A Signer is single-use: once
// it has left Idle it cannot start another ceremony, and it produces at
// most one signature share, so nonces are never reused.
//
// # Coordinator
//
// A [Coordinator] hosts every Signer of a key set in one process and
// drives a full ceremony over a [transport.Transport]:
//
//	c, err := session.NewCoordinator(km, session.Config{Logger: log})
//	if err != nil {
//		return err
//	}
//	signed, err := c.Sign(ctx, unsignedTx, prevOuts)
//
// Round 1 collects nonce commitments until the queue is drained or the
// round deadline passes. If at least the threshold of commitments arrived,
// the BIP-341 sighash of input 0 is signed by exactly those participants
// in round 2. Every share is verified before aggregation and the final
// signature is checked against the tweaked output key before it is put in
// the witness.
//
// Errors carry one of the category sentinels ([ErrInvalidState],
// [ErrNotEnoughSigners], [ErrTimeout], [ErrTransport], [ErrFrost],
// [ErrBitcoin], [ErrInternal]) and can be matched with errors.Is.
package session
