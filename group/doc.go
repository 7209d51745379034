// Package group abstracts the curve arithmetic FROST needs: scalars mod
// the group order, group elements and a factory tying them together.
//
// Values are mutated through their receiver:
//
//	// a + b·c
//	bc := g.NewScalar().Mul(b, c)
//	sum := g.NewScalar().Add(a, bc)
//
// Decoding never panics; malformed input is reported through the error of
// SetBytes. Implementations reduce every scalar result mod n and refuse
// points that are off the curve.
package group
