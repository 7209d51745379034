// Package spend ties key material, a chain backend and a signing
// ceremony together to pay out of a group-controlled Taproot output.
package spend
