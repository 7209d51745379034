package group

import "io"

// Group is the prime-order group FROST runs over. frosttap uses the
// secp256k1 implementation in package secp; the frost package only ever
// talks to this interface.
type Group interface {
	// NewScalar returns zero.
	NewScalar() Scalar
	// NewPoint returns the identity.
	NewPoint() Point
	// Generator returns the base point G.
	Generator() Point
	// RandomScalar draws a uniform non-zero scalar from r.
	RandomScalar(r io.Reader) (Scalar, error)
	// HashToScalar maps the concatenation of data to a scalar.
	HashToScalar(data ...[]byte) (Scalar, error)
	// Order returns n as big-endian bytes.
	Order() []byte
}

// Scalar is an integer mod n.
//
// Arithmetic writes its result into the receiver and returns the receiver,
// so g.NewScalar().Mul(a, b) allocates once and operands are never
// modified.
type Scalar interface {
	Add(a, b Scalar) Scalar
	Sub(a, b Scalar) Scalar
	Mul(a, b Scalar) Scalar
	Negate(a Scalar) Scalar
	// Invert fails for zero.
	Invert(a Scalar) (Scalar, error)
	Set(a Scalar) Scalar
	// Bytes is the fixed-width big-endian encoding.
	Bytes() []byte
	// SetBytes decodes b into the receiver.
	SetBytes(b []byte) (Scalar, error)
	Equal(b Scalar) bool
	IsZero() bool
}

// Point is a group element. It follows the same receiver convention as
// Scalar.
type Point interface {
	Add(a, b Point) Point
	Sub(a, b Point) Point
	Negate(a Point) Point
	// ScalarMult sets the receiver to s·p.
	ScalarMult(s Scalar, p Point) Point
	Set(a Point) Point
	// Bytes is the canonical compressed encoding.
	Bytes() []byte
	// SetBytes decodes b and rejects encodings of points not on the curve.
	SetBytes(b []byte) (Point, error)
	Equal(b Point) bool
	IsIdentity() bool
}

// ParityPoint is a Point with an x-only form. BIP-340 identifies a point
// by its x-coordinate and always means the even-y one, so signing code
// needs to know which of the two it holds.
type ParityPoint interface {
	Point
	// IsOddY reports whether y is odd. False for the identity.
	IsOddY() bool
	// XBytes returns x as 32 big-endian bytes.
	XBytes() []byte
}
