package frost

import (
	"errors"

	"github.com/f3rmion/frosttap/group"
)

// PublicKeyPackage is the public half of a key set: the group key and
// every participant's verifying share Y_i = s_i * G.
type PublicKeyPackage struct {
	GroupKey        group.Point
	VerifyingShares map[string]group.Point // keyed by identifier bytes
}

// NewPublicKeyPackage collects the public parts of shares.
func NewPublicKeyPackage(shares []*KeyShare) (*PublicKeyPackage, error) {
	if len(shares) == 0 {
		return nil, errors.New("no key shares provided")
	}
	pub := &PublicKeyPackage{
		GroupKey:        shares[0].GroupKey,
		VerifyingShares: make(map[string]group.Point, len(shares)),
	}
	for _, s := range shares {
		if !s.GroupKey.Equal(pub.GroupKey) {
			return nil, errors.New("key shares disagree on the group key")
		}
		pub.VerifyingShares[idKey(s.ID)] = s.PublicKey
	}
	return pub, nil
}

// VerifyingShare returns the verifying share of participant id.
func (p *PublicKeyPackage) VerifyingShare(id group.Scalar) (group.Point, bool) {
	y, ok := p.VerifyingShares[idKey(id)]
	return y, ok
}

// SetVerifyingShare records the verifying share of participant id.
func (p *PublicKeyPackage) SetVerifyingShare(id group.Scalar, y group.Point) {
	if p.VerifyingShares == nil {
		p.VerifyingShares = make(map[string]group.Point)
	}
	p.VerifyingShares[idKey(id)] = y
}
