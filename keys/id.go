package keys

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/f3rmion/frosttap/group"
)

// ParticipantID identifies one key-share holder. Valid identifiers are
// non-zero; they order participants deterministically.
type ParticipantID uint16

// Scalar returns the FROST identifier scalar for id.
func (id ParticipantID) Scalar(g group.Group) group.Scalar {
	s := g.NewScalar()
	s.SetBytes(id.bytes())
	return s
}

func (id ParticipantID) bytes() []byte {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint16(buf[30:], uint16(id))
	return buf
}

func (id ParticipantID) String() string {
	return strconv.Itoa(int(id))
}

// MarshalText encodes id as the hex of its 32-byte scalar form, the key
// format used in key bundles.
func (id ParticipantID) MarshalText() ([]byte, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: zero participant identifier", ErrInvalidKeyMaterial)
	}
	return []byte(hex.EncodeToString(id.bytes())), nil
}

// UnmarshalText decodes the format written by MarshalText.
func (id *ParticipantID) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("%w: participant identifier: %v", ErrKeyJSON, err)
	}
	parsed, err := idFromBytes(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// IDFromScalar recovers the participant identifier encoded in s.
func IDFromScalar(s group.Scalar) (ParticipantID, error) {
	return idFromBytes(s.Bytes())
}

func idFromBytes(raw []byte) (ParticipantID, error) {
	if len(raw) != 32 {
		return 0, fmt.Errorf("%w: identifier must be 32 bytes, got %d", ErrKeyJSON, len(raw))
	}
	for _, b := range raw[:30] {
		if b != 0 {
			return 0, fmt.Errorf("%w: identifier out of range", ErrKeyJSON)
		}
	}
	id := ParticipantID(binary.BigEndian.Uint16(raw[30:]))
	if id == 0 {
		return 0, fmt.Errorf("%w: zero participant identifier", ErrKeyJSON)
	}
	return id, nil
}
