// Package frost implements two-round FROST threshold Schnorr signatures
// over any [group.Group]. A t-of-n key is split so that t holders can sign
// together while fewer learn nothing about the secret.
//
// # Keys
//
// [FROST.GenerateWithDealer] splits a fresh secret in one place. Without a
// dealer, each holder runs a Feldman-verified DKG:
//
//  1. [FROST.NewParticipant] samples a polynomial; [Participant.Round1Broadcast]
//     publishes its coefficient commitments.
//  2. [FROST.Round1PrivateSend] evaluates the polynomial for one recipient.
//  3. [FROST.Round2ReceiveShare] checks a received evaluation against the
//     sender's commitments and fails with [ErrBadDealing] if it does not match.
//  4. [FROST.Finalize] sums the shares; [FROST.PublicKeyPackage] derives the
//     group key and every verifying share from the broadcasts alone.
//
// # Signing
//
// Round one is [FROST.SignRound1], which returns a single-use nonce and its
// public commitment. The commitments of the chosen signers and the message
// form a [SigningPackage]. Round two is [FROST.SignRound2]. A coordinator
// checks each share with [FROST.VerifyShare] (a bad one is reported as a
// [ShareError]) and combines them with [FROST.Aggregate]. [FROST.Verify]
// checks the result.
//
// # Taproot
//
// With a group whose points implement [group.ParityPoint], the *WithTweak
// variants produce BIP-340 signatures valid under the BIP-341 output key
// Q = P + H_TapTweak(P||merkleRoot)*G, where P is the group key with even y:
//
//	f, _ := frost.NewWithHasher(&secp.Secp256k1{}, 2, 3, &frost.TaprootHasher{})
//	shares, pub, _ := f.GenerateWithDealer(rand.Reader)
//
//	n1, c1, _ := f.SignRound1(rand.Reader, shares[0])
//	n2, c2, _ := f.SignRound1(rand.Reader, shares[1])
//	pkg, _ := frost.NewSigningPackage([]*frost.SigningCommitment{c1, c2}, sighash)
//
//	z1, _ := f.SignRound2WithTweak(shares[0], n1, pkg, nil)
//	z2, _ := f.SignRound2WithTweak(shares[1], n2, pkg, nil)
//	sig, _ := f.AggregateWithTweak(pkg, []*frost.SignatureShare{z1, z2}, pub, nil)
//	raw, _ := frost.SerializeSignature(sig)
//
// A nonce signs at most once. Reusing one across two packages reveals the
// signer's share.
package frost
