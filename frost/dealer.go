package frost

import (
	"io"

	"github.com/f3rmion/frosttap/group"
)

// GenerateWithDealer splits a fresh random secret into n shares with
// threshold t using Shamir secret sharing. Participants are numbered 1..n.
//
// The dealer sees the full secret; use the DKG when no single party may
// learn it.
func (f *FROST) GenerateWithDealer(r io.Reader) ([]*KeyShare, *PublicKeyPackage, error) {
	coeffs := make([]group.Scalar, f.threshold)
	for i := range coeffs {
		c, err := f.group.RandomScalar(r)
		if err != nil {
			return nil, nil, err
		}
		coeffs[i] = c
	}

	groupKey := f.group.NewPoint().ScalarMult(coeffs[0], f.group.Generator())

	shares := make([]*KeyShare, f.total)
	for i := range shares {
		id := f.scalarFromInt(i + 1)
		secret := f.evalPolynomial(coeffs, id)
		shares[i] = &KeyShare{
			ID:        id,
			SecretKey: secret,
			PublicKey: f.group.NewPoint().ScalarMult(secret, f.group.Generator()),
			GroupKey:  groupKey,
		}
	}

	pub, err := NewPublicKeyPackage(shares)
	if err != nil {
		return nil, nil, err
	}
	return shares, pub, nil
}
