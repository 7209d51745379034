package frost

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/f3rmion/frosttap/group"
)

// MaxParticipants bounds n so identifiers fit in two bytes.
const MaxParticipants = 1<<16 - 1

// FROST is a t-of-n configuration over one group and hash suite. It holds
// no secrets and is safe for concurrent use.
type FROST struct {
	group     group.Group
	hasher    Hasher
	threshold int
	total     int
}

// KeyShare is what participant ID holds after key generation: its signing
// share s_i, the verifying share Y_i = s_i·G and the group key Y.
type KeyShare struct {
	ID        group.Scalar
	SecretKey group.Scalar
	PublicKey group.Point
	GroupKey  group.Point
}

// Signature is (R, z) with z·G = R + c·Y.
type Signature struct {
	R group.Point
	Z group.Scalar
}

// New is NewWithHasher with [SHA256Hasher].
func New(g group.Group, threshold, total int) (*FROST, error) {
	return NewWithHasher(g, threshold, total, &SHA256Hasher{})
}

// NewWithHasher configures t-of-n FROST over g. Any threshold signers out
// of total can sign; fewer learn nothing about the key.
func NewWithHasher(g group.Group, threshold, total int, h Hasher) (*FROST, error) {
	if threshold < 1 {
		return nil, errors.New("threshold must be at least 1")
	}
	if total < threshold {
		return nil, errors.New("total must be >= threshold")
	}
	if total > MaxParticipants {
		return nil, fmt.Errorf("total must be <= %d", MaxParticipants)
	}
	if h == nil {
		return nil, errors.New("hasher is required")
	}

	return &FROST{
		group:     g,
		hasher:    h,
		threshold: threshold,
		total:     total,
	}, nil
}

// Group returns the underlying group.
func (f *FROST) Group() group.Group { return f.group }

// Threshold returns t.
func (f *FROST) Threshold() int { return f.threshold }

// Total returns n.
func (f *FROST) Total() int { return f.total }

// Identifier returns the scalar form of participant number n.
func (f *FROST) Identifier(n int) group.Scalar {
	return f.scalarFromInt(n)
}

func (f *FROST) scalarFromInt(n int) group.Scalar {
	var buf [32]byte
	binary.BigEndian.PutUint16(buf[30:], uint16(n))
	s := f.group.NewScalar()
	s.SetBytes(buf[:])
	return s
}

// evalPolynomial computes Σ a_k·x^k by Horner's rule.
func (f *FROST) evalPolynomial(coeffs []group.Scalar, x group.Scalar) group.Scalar {
	acc := f.group.NewScalar().Set(coeffs[len(coeffs)-1])
	for k := len(coeffs) - 2; k >= 0; k-- {
		acc = f.group.NewScalar().Mul(acc, x)
		acc = f.group.NewScalar().Add(acc, coeffs[k])
	}
	return acc
}

// idKey is the map key used for per-participant lookups.
func idKey(id group.Scalar) string {
	return string(id.Bytes())
}
