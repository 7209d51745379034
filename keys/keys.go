package keys

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/f3rmion/frosttap/frost"
	"github.com/f3rmion/frosttap/group"
	"github.com/f3rmion/frosttap/secp"
	"github.com/f3rmion/frosttap/taproot"
)

var curve group.Group = &secp.Secp256k1{}

// Group returns the curve every key bundle lives on.
func Group() group.Group { return curve }

// KeyMaterial is one FROST key set: the public key package plus every
// participant's key share. It is immutable once loaded and safe to share
// between goroutines for reading.
type KeyMaterial struct {
	Threshold uint16
	Total     uint16
	Public    *frost.PublicKeyPackage
	Shares    map[ParticipantID]*frost.KeyShare
}

// Validate checks the invariants every operation relies on:
// 1 <= Threshold <= Total == len(Shares), share identifiers match their
// keys, and all shares agree with the public key package.
func (km *KeyMaterial) Validate() error {
	if km.Threshold < 1 {
		return fmt.Errorf("%w: threshold must be at least 1", ErrInvalidKeyMaterial)
	}
	if km.Total < km.Threshold {
		return fmt.Errorf("%w: total %d below threshold %d", ErrInvalidKeyMaterial, km.Total, km.Threshold)
	}
	if len(km.Shares) != int(km.Total) {
		return fmt.Errorf("%w: %d shares for %d participants", ErrInvalidKeyMaterial, len(km.Shares), km.Total)
	}
	if km.Public == nil || km.Public.GroupKey == nil || km.Public.GroupKey.IsIdentity() {
		return fmt.Errorf("%w: missing group key", ErrInvalidKeyMaterial)
	}

	for id, share := range km.Shares {
		if id == 0 {
			return fmt.Errorf("%w: zero participant identifier", ErrInvalidKeyMaterial)
		}
		if share == nil || share.ID == nil || share.SecretKey == nil || share.PublicKey == nil || share.GroupKey == nil {
			return fmt.Errorf("%w: incomplete share for participant %s", ErrInvalidKeyMaterial, id)
		}
		if !share.ID.Equal(id.Scalar(curve)) {
			return fmt.Errorf("%w: share identifier does not match participant %s", ErrInvalidKeyMaterial, id)
		}
		if !share.GroupKey.Equal(km.Public.GroupKey) {
			return fmt.Errorf("%w: participant %s has a different group key", ErrInvalidKeyMaterial, id)
		}
		derived := curve.NewPoint().ScalarMult(share.SecretKey, curve.Generator())
		if !derived.Equal(share.PublicKey) {
			return fmt.Errorf("%w: participant %s signing share does not match its verifying share", ErrInvalidKeyMaterial, id)
		}
		vs, ok := km.Public.VerifyingShare(share.ID)
		if !ok || !vs.Equal(share.PublicKey) {
			return fmt.Errorf("%w: public package disagrees on participant %s", ErrInvalidKeyMaterial, id)
		}
	}
	return nil
}

// Participants returns all participant identifiers in ascending order.
func (km *KeyMaterial) Participants() []ParticipantID {
	ids := make([]ParticipantID, 0, len(km.Shares))
	for id := range km.Shares {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Share returns the key share of participant id.
func (km *KeyMaterial) Share(id ParticipantID) (*frost.KeyShare, bool) {
	s, ok := km.Shares[id]
	return s, ok
}

// FROST returns a FROST instance configured for this key set with
// BIP-340 compatible hashing.
func (km *KeyMaterial) FROST() (*frost.FROST, error) {
	return frost.NewWithHasher(curve, int(km.Threshold), int(km.Total), &frost.TaprootHasher{})
}

// GroupPublicKey returns the untweaked group key as a btcec key.
func (km *KeyMaterial) GroupPublicKey() (*btcec.PublicKey, error) {
	pk, err := btcec.ParsePubKey(km.Public.GroupKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublicKey, err)
	}
	return pk, nil
}

// OutputKey returns the Taproot output key Q committed to by the group
// address.
func (km *KeyMaterial) OutputKey() (*btcec.PublicKey, error) {
	pk, err := km.GroupPublicKey()
	if err != nil {
		return nil, err
	}
	return taproot.TweakedKey(pk), nil
}

// Address returns the key-path-only P2TR address of the group on the
// network described by params.
func (km *KeyMaterial) Address(params *chaincfg.Params) (*btcutil.AddressTaproot, error) {
	q, err := km.OutputKey()
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(q), params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublicKey, err)
	}
	return addr, nil
}
