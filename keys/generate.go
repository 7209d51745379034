package keys

import (
	"fmt"
	"io"

	"github.com/f3rmion/frosttap/frost"
)

// Generate creates t-of-n key material with a trusted dealer. Participants
// are numbered 1..n. Randomness is read from r; pass NewSeededReader for a
// reproducible key set.
func Generate(r io.Reader, threshold, total int) (*KeyMaterial, error) {
	f, err := newFROST(threshold, total)
	if err != nil {
		return nil, err
	}
	shares, pub, err := f.GenerateWithDealer(r)
	if err != nil {
		return nil, fmt.Errorf("dealer keygen: %w", err)
	}
	return assemble(threshold, total, shares, pub)
}

func newFROST(threshold, total int) (*frost.FROST, error) {
	if threshold < 1 || total < threshold || total > frost.MaxParticipants {
		return nil, fmt.Errorf("%w: need 1 <= threshold <= parties <= %d, got %d of %d",
			ErrInvalidKeyMaterial, frost.MaxParticipants, threshold, total)
	}
	return frost.NewWithHasher(curve, threshold, total, &frost.TaprootHasher{})
}

func assemble(threshold, total int, shares []*frost.KeyShare, pub *frost.PublicKeyPackage) (*KeyMaterial, error) {
	km := &KeyMaterial{
		Threshold: uint16(threshold),
		Total:     uint16(total),
		Public:    pub,
		Shares:    make(map[ParticipantID]*frost.KeyShare, len(shares)),
	}
	for _, s := range shares {
		id, err := IDFromScalar(s.ID)
		if err != nil {
			return nil, err
		}
		km.Shares[id] = s
	}
	if err := km.Validate(); err != nil {
		return nil, err
	}
	return km, nil
}
