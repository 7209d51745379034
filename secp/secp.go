package secp

import (
	"crypto/sha256"
	"errors"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/secp256k1"
	"github.com/consensys/gnark-crypto/ecc/secp256k1/fp"
	"github.com/consensys/gnark-crypto/ecc/secp256k1/fr"
	"github.com/f3rmion/frosttap/group"
)

// CompressedSize is the length of a SEC1 compressed point encoding.
const CompressedSize = 33

var (
	errInvalidEncoding = errors.New("secp: invalid point encoding")
	errNotOnCurve      = errors.New("secp: x-coordinate is not on the curve")
	errZeroInverse     = errors.New("secp: cannot invert zero scalar")
)

// Scalar is an integer modulo the secp256k1 group order n.
// It implements [group.Scalar] on top of gnark-crypto's fr.Element.
type Scalar struct {
	inner fr.Element
}

// Add sets s to a + b (mod n) and returns s.
func (s *Scalar) Add(a, b group.Scalar) group.Scalar {
	s.inner.Add(&a.(*Scalar).inner, &b.(*Scalar).inner)
	return s
}

// Sub sets s to a - b (mod n) and returns s.
func (s *Scalar) Sub(a, b group.Scalar) group.Scalar {
	s.inner.Sub(&a.(*Scalar).inner, &b.(*Scalar).inner)
	return s
}

// Mul sets s to a * b (mod n) and returns s.
func (s *Scalar) Mul(a, b group.Scalar) group.Scalar {
	s.inner.Mul(&a.(*Scalar).inner, &b.(*Scalar).inner)
	return s
}

// Negate sets s to -a (mod n) and returns s.
func (s *Scalar) Negate(a group.Scalar) group.Scalar {
	s.inner.Neg(&a.(*Scalar).inner)
	return s
}

// Invert sets s to a^(-1) (mod n) and returns s.
func (s *Scalar) Invert(a group.Scalar) (group.Scalar, error) {
	aScalar := a.(*Scalar)
	if aScalar.IsZero() {
		return nil, errZeroInverse
	}
	s.inner.Inverse(&aScalar.inner)
	return s, nil
}

// Set copies a into s and returns s.
func (s *Scalar) Set(a group.Scalar) group.Scalar {
	s.inner.Set(&a.(*Scalar).inner)
	return s
}

// Bytes returns the 32-byte big-endian encoding of s.
func (s *Scalar) Bytes() []byte {
	b := s.inner.Bytes()
	return b[:]
}

// SetBytes sets s from a big-endian byte slice and returns s.
// Values of any length are reduced modulo n.
func (s *Scalar) SetBytes(data []byte) (group.Scalar, error) {
	s.inner.SetBytes(data)
	return s, nil
}

// Equal reports whether s and b hold the same value.
func (s *Scalar) Equal(b group.Scalar) bool {
	return s.inner.Equal(&b.(*Scalar).inner)
}

// IsZero reports whether s is zero.
func (s *Scalar) IsZero() bool {
	return s.inner.IsZero()
}

func (s *Scalar) bigInt() *big.Int {
	return s.inner.BigInt(new(big.Int))
}

// Point is a secp256k1 curve point in affine coordinates. The point at
// infinity is stored as (0, 0), which is never on the curve.
type Point struct {
	inner secp256k1.G1Affine
}

// Add sets p to a + b and returns p.
func (p *Point) Add(a, b group.Point) group.Point {
	p.inner.Add(&a.(*Point).inner, &b.(*Point).inner)
	return p
}

// Sub sets p to a - b and returns p.
func (p *Point) Sub(a, b group.Point) group.Point {
	p.inner.Sub(&a.(*Point).inner, &b.(*Point).inner)
	return p
}

// Negate sets p to -a and returns p.
func (p *Point) Negate(a group.Point) group.Point {
	aPoint := a.(*Point)
	if aPoint.IsIdentity() {
		p.inner.SetInfinity()
		return p
	}
	p.inner.Neg(&aPoint.inner)
	return p
}

// ScalarMult sets p to s * q and returns p.
func (p *Point) ScalarMult(s group.Scalar, q group.Point) group.Point {
	scalar := s.(*Scalar)
	qPoint := q.(*Point)
	if scalar.IsZero() || qPoint.IsIdentity() {
		p.inner.SetInfinity()
		return p
	}
	p.inner.ScalarMultiplication(&qPoint.inner, scalar.bigInt())
	return p
}

// Set copies a into p and returns p.
func (p *Point) Set(a group.Point) group.Point {
	p.inner.Set(&a.(*Point).inner)
	return p
}

// Bytes returns the 33-byte SEC1 compressed encoding of p.
// The identity encodes as 33 zero bytes, which SetBytes rejects.
func (p *Point) Bytes() []byte {
	out := make([]byte, CompressedSize)
	if p.IsIdentity() {
		return out
	}
	out[0] = 0x02
	if p.IsOddY() {
		out[0] = 0x03
	}
	x := p.inner.X.Bytes()
	copy(out[1:], x[:])
	return out
}

// SetBytes decodes a SEC1 compressed point into p and returns p.
func (p *Point) SetBytes(data []byte) (group.Point, error) {
	if len(data) != CompressedSize || (data[0] != 0x02 && data[0] != 0x03) {
		return nil, errInvalidEncoding
	}
	var x, y fp.Element
	if err := x.SetBytesCanonical(data[1:]); err != nil {
		return nil, errInvalidEncoding
	}

	// y^2 = x^3 + 7
	var rhs, seven fp.Element
	seven.SetUint64(7)
	rhs.Square(&x).Mul(&rhs, &x).Add(&rhs, &seven)
	if y.Sqrt(&rhs) == nil {
		return nil, errNotOnCurve
	}
	yb := y.Bytes()
	if (yb[fp.Bytes-1]&1 == 1) != (data[0] == 0x03) {
		y.Neg(&y)
	}

	p.inner.X = x
	p.inner.Y = y
	return p, nil
}

// Equal reports whether p and b are the same point.
func (p *Point) Equal(b group.Point) bool {
	return p.inner.Equal(&b.(*Point).inner)
}

// IsIdentity reports whether p is the point at infinity.
func (p *Point) IsIdentity() bool {
	return p.inner.IsInfinity()
}

// IsOddY implements [group.ParityPoint].
func (p *Point) IsOddY() bool {
	if p.IsIdentity() {
		return false
	}
	y := p.inner.Y.Bytes()
	return y[fp.Bytes-1]&1 == 1
}

// XBytes implements [group.ParityPoint].
func (p *Point) XBytes() []byte {
	x := p.inner.X.Bytes()
	return x[:]
}

// Secp256k1 implements [group.Group] for the secp256k1 curve used by
// Bitcoin. It is a zero-sized type; use &Secp256k1{} or new(Secp256k1).
type Secp256k1 struct{}

// NewScalar returns a new zero scalar.
func (g *Secp256k1) NewScalar() group.Scalar {
	return &Scalar{}
}

// NewPoint returns a new point set to the identity.
func (g *Secp256k1) NewPoint() group.Point {
	var p Point
	p.inner.SetInfinity()
	return &p
}

// Generator returns the standard base point G.
func (g *Secp256k1) Generator() group.Point {
	_, gen := secp256k1.Generators()
	return &Point{inner: gen}
}

// RandomScalar reads 32 bytes at a time from r until it obtains a non-zero
// value below n.
func (g *Secp256k1) RandomScalar(r io.Reader) (group.Scalar, error) {
	var buf [fr.Bytes]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		s := &Scalar{}
		if err := s.inner.SetBytesCanonical(buf[:]); err != nil {
			continue
		}
		if !s.IsZero() {
			return s, nil
		}
	}
}

// HashToScalar hashes the concatenated data with SHA-256 and reduces the
// digest modulo n.
func (g *Secp256k1) HashToScalar(data ...[]byte) (group.Scalar, error) {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	s := &Scalar{}
	s.inner.SetBytes(h.Sum(nil))
	return s, nil
}

// Order returns n as a big-endian byte slice.
func (g *Secp256k1) Order() []byte {
	return fr.Modulus().Bytes()
}
