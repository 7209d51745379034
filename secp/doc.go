// Package secp provides a secp256k1 implementation of the [group.Group]
// interface for use with FROST threshold signatures over Bitcoin keys.
//
// The package wraps gnark-crypto's ecc/secp256k1 arithmetic. Scalars live
// in fr (integers modulo the group order n) and points are affine
// G1Affine values. Points encode as 33-byte SEC1 compressed strings, the
// same encoding btcec uses for public keys, so a point produced here can
// be handed to btcec.ParsePubKey unchanged.
//
// # Usage
//
//	g := &secp.Secp256k1{}
//	f, err := frost.New(g, threshold, total)
//
// [Point] also implements [group.ParityPoint], which the Taproot signing
// path uses to normalise keys and nonces to even y.
package secp
