package keys

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/f3rmion/frosttap/frost"
	"github.com/f3rmion/frosttap/group"
)

type hexBytes []byte

func (h hexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

func (h *hexBytes) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*h = raw
	return nil
}

type bundleJSON struct {
	Threshold   uint16                           `json:"threshold"`
	Total       uint16                           `json:"total"`
	Public      publicJSON                       `json:"public"`
	KeyPackages map[ParticipantID]keyPackageJSON `json:"key_packages"`
}

type publicJSON struct {
	VerifyingKey    hexBytes                   `json:"verifying_key"`
	VerifyingShares map[ParticipantID]hexBytes `json:"verifying_shares"`
}

type keyPackageJSON struct {
	Identifier     ParticipantID `json:"identifier"`
	SigningShare   hexBytes      `json:"signing_share"`
	VerifyingShare hexBytes      `json:"verifying_share"`
	VerifyingKey   hexBytes      `json:"verifying_key"`
}

// MarshalJSON encodes the bundle with hex scalars and SEC1 compressed
// points.
func (km *KeyMaterial) MarshalJSON() ([]byte, error) {
	out := bundleJSON{
		Threshold: km.Threshold,
		Total:     km.Total,
		Public: publicJSON{
			VerifyingKey:    km.Public.GroupKey.Bytes(),
			VerifyingShares: make(map[ParticipantID]hexBytes, len(km.Shares)),
		},
		KeyPackages: make(map[ParticipantID]keyPackageJSON, len(km.Shares)),
	}
	for id, share := range km.Shares {
		vs, ok := km.Public.VerifyingShare(share.ID)
		if !ok {
			return nil, fmt.Errorf("%w: no verifying share for participant %s", ErrInvalidKeyMaterial, id)
		}
		out.Public.VerifyingShares[id] = vs.Bytes()
		out.KeyPackages[id] = keyPackageJSON{
			Identifier:     id,
			SigningShare:   share.SecretKey.Bytes(),
			VerifyingShare: share.PublicKey.Bytes(),
			VerifyingKey:   share.GroupKey.Bytes(),
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a bundle written by MarshalJSON.
func (km *KeyMaterial) UnmarshalJSON(data []byte) error {
	var in bundleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyJSON, err)
	}

	groupKey, err := decodePoint(in.Public.VerifyingKey)
	if err != nil {
		return fmt.Errorf("%w: verifying key: %v", ErrKeyJSON, err)
	}
	pub := &frost.PublicKeyPackage{GroupKey: groupKey}
	for id, raw := range in.Public.VerifyingShares {
		y, err := decodePoint(raw)
		if err != nil {
			return fmt.Errorf("%w: verifying share of participant %s: %v", ErrKeyJSON, id, err)
		}
		pub.SetVerifyingShare(id.Scalar(curve), y)
	}

	shares := make(map[ParticipantID]*frost.KeyShare, len(in.KeyPackages))
	for id, kp := range in.KeyPackages {
		if kp.Identifier != id {
			return fmt.Errorf("%w: key package %s carries identifier %s", ErrKeyJSON, id, kp.Identifier)
		}
		if len(kp.SigningShare) != 32 {
			return fmt.Errorf("%w: signing share of participant %s must be 32 bytes", ErrKeyJSON, id)
		}
		secret, _ := curve.NewScalar().SetBytes(kp.SigningShare)
		public, err := decodePoint(kp.VerifyingShare)
		if err != nil {
			return fmt.Errorf("%w: verifying share of participant %s: %v", ErrKeyJSON, id, err)
		}
		gk, err := decodePoint(kp.VerifyingKey)
		if err != nil {
			return fmt.Errorf("%w: verifying key of participant %s: %v", ErrKeyJSON, id, err)
		}
		shares[id] = &frost.KeyShare{
			ID:        id.Scalar(curve),
			SecretKey: secret,
			PublicKey: public,
			GroupKey:  gk,
		}
	}

	decoded := KeyMaterial{
		Threshold: in.Threshold,
		Total:     in.Total,
		Public:    pub,
		Shares:    shares,
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*km = decoded
	return nil
}

func decodePoint(raw []byte) (group.Point, error) {
	return curve.NewPoint().SetBytes(raw)
}

// Load reads and validates a key bundle from path.
func Load(path string) (*KeyMaterial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFile, err)
	}
	km := &KeyMaterial{}
	if err := km.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return km, nil
}

// Save writes km to path with owner-only permissions. The file holds every
// signing share in the clear.
func (km *KeyMaterial) Save(path string) error {
	data, err := json.MarshalIndent(km, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFile, err)
	}
	return nil
}
