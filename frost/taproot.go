package frost

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/f3rmion/frosttap/group"
)

// SignatureSize is the length of a serialized BIP-340 signature.
const SignatureSize = 64

var errNotParityGroup = errors.New("group points do not expose y parity")

// taprootKey captures how the group key Y maps to the BIP-341 output key.
//
//	P = Y, or -Y when Y has odd y
//	t = H_TapTweak(P.x || merkleRoot)
//	Q = P + t*G, negated when odd for signing purposes
type taprootKey struct {
	negateP bool
	tweak   group.Scalar
	output  group.Point // Q with its real parity
	negateQ bool
}

func (f *FROST) taprootKey(groupKey group.Point, merkleRoot []byte) (*taprootKey, error) {
	gk, ok := groupKey.(group.ParityPoint)
	if !ok {
		return nil, errNotParityGroup
	}
	if groupKey.IsIdentity() {
		return nil, errors.New("group key is the identity")
	}

	tk := &taprootKey{negateP: gk.IsOddY()}
	P := f.group.NewPoint().Set(groupKey)
	if tk.negateP {
		P = f.group.NewPoint().Negate(groupKey)
	}

	digest := chainhash.TaggedHash(chainhash.TagTapTweak, P.(group.ParityPoint).XBytes(), merkleRoot)
	if bytes.Compare(digest[:], padOrder(f.group.Order())) >= 0 {
		return nil, errors.New("taproot tweak exceeds group order")
	}
	t, err := f.group.NewScalar().SetBytes(digest[:])
	if err != nil {
		return nil, err
	}
	tk.tweak = t

	Q := f.group.NewPoint().Add(P, f.group.NewPoint().ScalarMult(t, f.group.Generator()))
	if Q.IsIdentity() {
		return nil, errors.New("taproot output key is the identity")
	}
	tk.output = Q
	tk.negateQ = Q.(group.ParityPoint).IsOddY()
	return tk, nil
}

// signingScalar maps a secret share s to sq*(sp*s + t).
func (tk *taprootKey) signingScalar(g group.Group, s group.Scalar) group.Scalar {
	x := g.NewScalar().Set(s)
	if tk.negateP {
		x = g.NewScalar().Negate(x)
	}
	x = g.NewScalar().Add(x, tk.tweak)
	if tk.negateQ {
		x = g.NewScalar().Negate(x)
	}
	return x
}

// verifyingPoint maps a verifying share Y_i to sq*(sp*Y_i + t*G).
func (tk *taprootKey) verifyingPoint(g group.Group, Y group.Point) group.Point {
	X := g.NewPoint().Set(Y)
	if tk.negateP {
		X = g.NewPoint().Negate(X)
	}
	X = g.NewPoint().Add(X, g.NewPoint().ScalarMult(tk.tweak, g.Generator()))
	if tk.negateQ {
		X = g.NewPoint().Negate(X)
	}
	return X
}

// TaprootOutputKey returns the BIP-341 output key Q for groupKey. An empty
// merkleRoot selects a key-path-only output.
func (f *FROST) TaprootOutputKey(groupKey group.Point, merkleRoot []byte) (group.Point, error) {
	tk, err := f.taprootKey(groupKey, merkleRoot)
	if err != nil {
		return nil, err
	}
	return tk.output, nil
}

// taprootCommitment returns R and whether it must be negated to have even y.
func (f *FROST) taprootCommitment(pkg *SigningPackage) (group.Point, map[string]group.Scalar, bool, error) {
	R, rhos := f.groupCommitment(pkg)
	rp, ok := R.(group.ParityPoint)
	if !ok {
		return nil, nil, false, errNotParityGroup
	}
	if R.IsIdentity() {
		return nil, nil, false, errors.New("group commitment is the identity")
	}
	return R, rhos, rp.IsOddY(), nil
}

func (f *FROST) bip340Challenge(R, Q group.Point, msg []byte) group.Scalar {
	return toScalar(f.group, tagged(chainhash.TagBIP0340Challenge,
		R.(group.ParityPoint).XBytes(), Q.(group.ParityPoint).XBytes(), msg))
}

// SignRound2WithTweak produces a signature share for a BIP-340 signature
// under the Taproot output key derived from share.GroupKey and merkleRoot.
func (f *FROST) SignRound2WithTweak(
	share *KeyShare,
	nonce *SigningNonce,
	pkg *SigningPackage,
	merkleRoot []byte,
) (*SignatureShare, error) {
	if err := f.checkSigner(share, nonce, pkg); err != nil {
		return nil, err
	}
	tk, err := f.taprootKey(share.GroupKey, merkleRoot)
	if err != nil {
		return nil, err
	}
	R, rhos, negateR, err := f.taprootCommitment(pkg)
	if err != nil {
		return nil, err
	}
	lambda, err := f.lagrangeCoefficient(share.ID, pkg.Commitments)
	if err != nil {
		return nil, err
	}
	c := f.bip340Challenge(R, tk.output, pkg.Message)

	// k_i = d + rho*e, negated with R
	k := f.group.NewScalar().Mul(rhos[idKey(share.ID)], nonce.E)
	k = f.group.NewScalar().Add(nonce.D, k)
	if negateR {
		k = f.group.NewScalar().Negate(k)
	}

	x := tk.signingScalar(f.group, share.SecretKey)
	clx := f.group.NewScalar().Mul(c, lambda)
	clx = f.group.NewScalar().Mul(clx, x)

	return &SignatureShare{
		ID: share.ID,
		Z:  f.group.NewScalar().Add(k, clx),
	}, nil
}

// VerifyShareWithTweak checks a share produced by [FROST.SignRound2WithTweak].
func (f *FROST) VerifyShareWithTweak(
	sigShare *SignatureShare,
	pkg *SigningPackage,
	pub *PublicKeyPackage,
	merkleRoot []byte,
) error {
	if err := checkShare(sigShare); err != nil {
		return err
	}
	comm, ok := pkg.Commitment(sigShare.ID)
	if !ok {
		return &ShareError{ID: sigShare.ID}
	}
	Yi, ok := pub.VerifyingShare(sigShare.ID)
	if !ok {
		return &ShareError{ID: sigShare.ID}
	}
	tk, err := f.taprootKey(pub.GroupKey, merkleRoot)
	if err != nil {
		return err
	}
	R, rhos, negateR, err := f.taprootCommitment(pkg)
	if err != nil {
		return err
	}
	lambda, err := f.lagrangeCoefficient(sigShare.ID, pkg.Commitments)
	if err != nil {
		return err
	}
	c := f.bip340Challenge(R, tk.output, pkg.Message)

	Ri := f.commitmentShare(comm, rhos[idKey(comm.ID)])
	if negateR {
		Ri = f.group.NewPoint().Negate(Ri)
	}
	Xi := tk.verifyingPoint(f.group, Yi)
	cl := f.group.NewScalar().Mul(c, lambda)
	rhs := f.group.NewPoint().Add(Ri, f.group.NewPoint().ScalarMult(cl, Xi))
	lhs := f.group.NewPoint().ScalarMult(sigShare.Z, f.group.Generator())
	if !lhs.Equal(rhs) {
		return &ShareError{ID: sigShare.ID}
	}
	return nil
}

// AggregateWithTweak combines Taproot signature shares. Every share is
// verified against pub before the sum is taken. The returned signature has
// an even-y R and verifies under the output key as a BIP-340 signature.
func (f *FROST) AggregateWithTweak(
	pkg *SigningPackage,
	shares []*SignatureShare,
	pub *PublicKeyPackage,
	merkleRoot []byte,
) (*Signature, error) {
	if pub == nil {
		return nil, errors.New("public key package is required")
	}
	if err := checkShares(pkg, shares); err != nil {
		return nil, err
	}
	for _, s := range shares {
		if err := f.VerifyShareWithTweak(s, pkg, pub, merkleRoot); err != nil {
			return nil, err
		}
	}

	R, _, negateR, err := f.taprootCommitment(pkg)
	if err != nil {
		return nil, err
	}
	if negateR {
		R = f.group.NewPoint().Negate(R)
	}

	z := f.group.NewScalar()
	for _, s := range shares {
		z = f.group.NewScalar().Add(z, s.Z)
	}
	return &Signature{R: R, Z: z}, nil
}

// VerifyTaproot checks sig as a BIP-340 signature over msg under the
// Taproot output key of groupKey.
func (f *FROST) VerifyTaproot(msg []byte, sig *Signature, groupKey group.Point, merkleRoot []byte) bool {
	tk, err := f.taprootKey(groupKey, merkleRoot)
	if err != nil {
		return false
	}
	rp, ok := sig.R.(group.ParityPoint)
	if !ok || sig.R.IsIdentity() || rp.IsOddY() {
		return false
	}
	Q := tk.output
	if tk.negateQ {
		Q = f.group.NewPoint().Negate(Q)
	}
	c := f.bip340Challenge(sig.R, Q, msg)

	// z*G == R + c*Q
	lhs := f.group.NewPoint().ScalarMult(sig.Z, f.group.Generator())
	rhs := f.group.NewPoint().Add(sig.R, f.group.NewPoint().ScalarMult(c, Q))
	return lhs.Equal(rhs)
}

// SerializeSignature encodes sig as R.x || z. R must have even y.
func SerializeSignature(sig *Signature) ([SignatureSize]byte, error) {
	var out [SignatureSize]byte
	rp, ok := sig.R.(group.ParityPoint)
	if !ok {
		return out, errNotParityGroup
	}
	if sig.R.IsIdentity() || rp.IsOddY() {
		return out, fmt.Errorf("signature nonce point must have even y")
	}
	copy(out[:32], rp.XBytes())
	z := sig.Z.Bytes()
	copy(out[64-len(z):], z)
	return out, nil
}

func padOrder(order []byte) []byte {
	if len(order) >= 32 {
		return order
	}
	out := make([]byte, 32)
	copy(out[32-len(order):], order)
	return out
}
