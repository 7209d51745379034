// Package taproot binds FROST signatures to Bitcoin BIP-341 key-path
// spends: internal and output key derivation, the SIGHASH_DEFAULT
// signature hash of a single-input spend, witness assembly and BIP-340
// verification, plus the small amount of transaction construction the
// spend flow needs.
package taproot
