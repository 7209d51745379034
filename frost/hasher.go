package frost

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/f3rmion/frosttap/group"
)

// Hasher is the hash suite of a FROST instance. Every function must be
// domain separated from the others.
type Hasher interface {
	// H1 derives a signer's binding factor rho_i from H4(msg), H5(commitment
	// list) and the signer identifier.
	H1(g group.Group, msgHash, commitHash, signerID []byte) group.Scalar
	// H2 is the Schnorr challenge over R, the group key Y and msg.
	H2(g group.Group, R, Y, msg []byte) group.Scalar
	// H3 turns a random seed and the signer's secret share into a nonce.
	H3(g group.Group, seed, secret []byte) group.Scalar
	// H4 compresses the message.
	H4(g group.Group, msg []byte) []byte
	// H5 compresses the encoded commitment list.
	H5(g group.Group, encCommitList []byte) []byte
}

func toScalar(g group.Group, digest []byte) group.Scalar {
	s := g.NewScalar()
	s.SetBytes(digest) // reduces mod n
	return s
}

// SHA256Hasher prefixes each input with a short label and hashes with
// plain SHA-256. Its challenge is not BIP-340 compatible; use it for
// generic Schnorr over any group.
type SHA256Hasher struct{}

func sha256Concat(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func (*SHA256Hasher) H1(g group.Group, msgHash, commitHash, signerID []byte) group.Scalar {
	return toScalar(g, sha256Concat([]byte("rho"), msgHash, commitHash, signerID))
}

func (*SHA256Hasher) H2(g group.Group, R, Y, msg []byte) group.Scalar {
	return toScalar(g, sha256Concat(R, Y, msg))
}

func (*SHA256Hasher) H3(g group.Group, seed, secret []byte) group.Scalar {
	return toScalar(g, sha256Concat([]byte("nonce"), seed, secret))
}

func (*SHA256Hasher) H4(_ group.Group, msg []byte) []byte {
	return sha256Concat([]byte("msg"), msg)
}

func (*SHA256Hasher) H5(_ group.Group, encCommitList []byte) []byte {
	return sha256Concat([]byte("com"), encCommitList)
}

// TaprootHasher uses BIP-340 tagged hashes. H2 is exactly the BIP-340
// challenge, so with x-only R and Y the aggregate verifies as an ordinary
// Schnorr signature.
type TaprootHasher struct{}

const tagPrefix = "FROST-secp256k1-SHA256-TR-v1/"

var (
	tagRho   = []byte(tagPrefix + "rho")
	tagNonce = []byte(tagPrefix + "nonce")
	tagMsg   = []byte(tagPrefix + "msg")
	tagCom   = []byte(tagPrefix + "com")
)

func tagged(tag []byte, parts ...[]byte) []byte {
	digest := chainhash.TaggedHash(tag, parts...)
	return digest[:]
}

func (*TaprootHasher) H1(g group.Group, msgHash, commitHash, signerID []byte) group.Scalar {
	return toScalar(g, tagged(tagRho, msgHash, commitHash, signerID))
}

func (*TaprootHasher) H2(g group.Group, R, Y, msg []byte) group.Scalar {
	return toScalar(g, tagged(chainhash.TagBIP0340Challenge, R, Y, msg))
}

func (*TaprootHasher) H3(g group.Group, seed, secret []byte) group.Scalar {
	return toScalar(g, tagged(tagNonce, seed, secret))
}

func (*TaprootHasher) H4(_ group.Group, msg []byte) []byte {
	return tagged(tagMsg, msg)
}

func (*TaprootHasher) H5(_ group.Group, encCommitList []byte) []byte {
	return tagged(tagCom, encCommitList)
}
