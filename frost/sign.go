package frost

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/f3rmion/frosttap/group"
)

// ErrInvalidShare is wrapped by every [ShareError].
var ErrInvalidShare = errors.New("invalid signature share")

// ShareError identifies the participant whose signature share failed
// verification during aggregation.
type ShareError struct {
	ID group.Scalar
}

func (e *ShareError) Error() string {
	return fmt.Sprintf("frost: invalid signature share from participant %x", e.ID.Bytes())
}

func (e *ShareError) Unwrap() error { return ErrInvalidShare }

// SigningNonce holds a participant's nonce pair for signing.
type SigningNonce struct {
	ID group.Scalar
	D  group.Scalar // hiding nonce
	E  group.Scalar // binding nonce
}

// SigningCommitment is broadcast in round 1 of signing.
type SigningCommitment struct {
	ID           group.Scalar
	HidingPoint  group.Point // D * G
	BindingPoint group.Point // E * G
}

// SignatureShare is a participant's share of the signature.
type SignatureShare struct {
	ID group.Scalar
	Z  group.Scalar
}

// SigningPackage is the set of commitments chosen for one signing
// operation together with the message being signed. Commitments are kept
// sorted by identifier so every participant derives the same binding
// factors.
type SigningPackage struct {
	Commitments []*SigningCommitment
	Message     []byte
}

// NewSigningPackage validates and sorts the commitments and copies the
// message.
func NewSigningPackage(commitments []*SigningCommitment, message []byte) (*SigningPackage, error) {
	if len(commitments) == 0 {
		return nil, errors.New("no commitments provided")
	}

	for _, c := range commitments {
		if c == nil || c.ID == nil || c.HidingPoint == nil || c.BindingPoint == nil {
			return nil, errors.New("incomplete commitment")
		}
		if c.ID.IsZero() {
			return nil, errors.New("commitment with zero identifier")
		}
		if c.HidingPoint.IsIdentity() || c.BindingPoint.IsIdentity() {
			return nil, fmt.Errorf("identity commitment from participant %x", c.ID.Bytes())
		}
	}

	sorted := make([]*SigningCommitment, len(commitments))
	copy(sorted, commitments)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].ID.Bytes(), sorted[j].ID.Bytes()) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID.Equal(sorted[i-1].ID) {
			return nil, fmt.Errorf("duplicate commitment from participant %x", sorted[i].ID.Bytes())
		}
	}

	msg := make([]byte, len(message))
	copy(msg, message)

	return &SigningPackage{Commitments: sorted, Message: msg}, nil
}

// Commitment returns the commitment of participant id, if present.
func (p *SigningPackage) Commitment(id group.Scalar) (*SigningCommitment, bool) {
	for _, c := range p.Commitments {
		if c.ID.Equal(id) {
			return c, true
		}
	}
	return nil, false
}

// SignRound1 generates nonces and commitment for signing.
//
// Nonces are derived from fresh randomness read from r and the signer's
// secret share, so a weak r alone does not expose the nonce.
func (f *FROST) SignRound1(r io.Reader, share *KeyShare) (*SigningNonce, *SigningCommitment, error) {
	d, err := f.generateNonce(r, share.SecretKey)
	if err != nil {
		return nil, nil, err
	}
	e, err := f.generateNonce(r, share.SecretKey)
	if err != nil {
		return nil, nil, err
	}

	nonce := &SigningNonce{
		ID: share.ID,
		D:  d,
		E:  e,
	}

	commitment := &SigningCommitment{
		ID:           share.ID,
		HidingPoint:  f.group.NewPoint().ScalarMult(d, f.group.Generator()),
		BindingPoint: f.group.NewPoint().ScalarMult(e, f.group.Generator()),
	}

	return nonce, commitment, nil
}

func (f *FROST) generateNonce(r io.Reader, secret group.Scalar) (group.Scalar, error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}
	k := f.hasher.H3(f.group, seed, secret.Bytes())
	if k.IsZero() {
		return nil, errors.New("derived zero nonce")
	}
	return k, nil
}

// SignRound2 generates a signature share over pkg.Message.
func (f *FROST) SignRound2(share *KeyShare, nonce *SigningNonce, pkg *SigningPackage) (*SignatureShare, error) {
	if err := f.checkSigner(share, nonce, pkg); err != nil {
		return nil, err
	}

	R, bindingFactors := f.groupCommitment(pkg)

	// Compute challenge c = H2(R, GroupKey, message)
	c := f.hasher.H2(f.group, R.Bytes(), share.GroupKey.Bytes(), pkg.Message)

	lambda, err := f.lagrangeCoefficient(share.ID, pkg.Commitments)
	if err != nil {
		return nil, err
	}

	// z_i = d + rho * e + lambda * s * c
	myRho := bindingFactors[idKey(share.ID)]
	z := f.group.NewScalar().Mul(myRho, nonce.E)
	z = f.group.NewScalar().Add(nonce.D, z)
	lambdaSC := f.group.NewScalar().Mul(lambda, share.SecretKey)
	lambdaSC = f.group.NewScalar().Mul(lambdaSC, c)
	z = f.group.NewScalar().Add(z, lambdaSC)

	return &SignatureShare{
		ID: share.ID,
		Z:  z,
	}, nil
}

// VerifyShare checks one signature share against the signer's verifying
// share from pub.
func (f *FROST) VerifyShare(sigShare *SignatureShare, pkg *SigningPackage, pub *PublicKeyPackage) error {
	if err := checkShare(sigShare); err != nil {
		return err
	}
	comm, ok := pkg.Commitment(sigShare.ID)
	if !ok {
		return &ShareError{ID: sigShare.ID}
	}
	Yi, ok := pub.VerifyingShare(sigShare.ID)
	if !ok {
		return &ShareError{ID: sigShare.ID}
	}

	R, bindingFactors := f.groupCommitment(pkg)
	c := f.hasher.H2(f.group, R.Bytes(), pub.GroupKey.Bytes(), pkg.Message)
	lambda, err := f.lagrangeCoefficient(sigShare.ID, pkg.Commitments)
	if err != nil {
		return err
	}

	// z_i*G == D_i + rho_i*E_i + c*lambda_i*Y_i
	Ri := f.commitmentShare(comm, bindingFactors[idKey(comm.ID)])
	cl := f.group.NewScalar().Mul(c, lambda)
	rhs := f.group.NewPoint().Add(Ri, f.group.NewPoint().ScalarMult(cl, Yi))
	lhs := f.group.NewPoint().ScalarMult(sigShare.Z, f.group.Generator())
	if !lhs.Equal(rhs) {
		return &ShareError{ID: sigShare.ID}
	}
	return nil
}

// Aggregate combines signature shares into a final signature. When pub is
// non-nil every share is verified first and the first invalid one is
// reported as a [ShareError].
func (f *FROST) Aggregate(pkg *SigningPackage, shares []*SignatureShare, pub *PublicKeyPackage) (*Signature, error) {
	if err := checkShares(pkg, shares); err != nil {
		return nil, err
	}
	if pub != nil {
		for _, s := range shares {
			if err := f.VerifyShare(s, pkg, pub); err != nil {
				return nil, err
			}
		}
	}

	R, _ := f.groupCommitment(pkg)

	// Sum all z shares
	z := f.group.NewScalar()
	for _, s := range shares {
		z = f.group.NewScalar().Add(z, s.Z)
	}

	return &Signature{R: R, Z: z}, nil
}

// Verify checks a FROST signature.
func (f *FROST) Verify(message []byte, sig *Signature, groupKey group.Point) bool {
	c := f.hasher.H2(f.group, sig.R.Bytes(), groupKey.Bytes(), message)

	// Check: z*G == R + c*Y
	lhs := f.group.NewPoint().ScalarMult(sig.Z, f.group.Generator())

	cY := f.group.NewPoint().ScalarMult(c, groupKey)
	rhs := f.group.NewPoint().Add(sig.R, cY)

	return lhs.Equal(rhs)
}

func (f *FROST) checkSigner(share *KeyShare, nonce *SigningNonce, pkg *SigningPackage) error {
	if nonce == nil || !nonce.ID.Equal(share.ID) {
		return errors.New("nonce does not belong to this signer")
	}
	comm, ok := pkg.Commitment(share.ID)
	if !ok {
		return errors.New("own commitment not found in signing package")
	}
	if !f.group.NewPoint().ScalarMult(nonce.D, f.group.Generator()).Equal(comm.HidingPoint) ||
		!f.group.NewPoint().ScalarMult(nonce.E, f.group.Generator()).Equal(comm.BindingPoint) {
		return errors.New("signing package commitment does not match nonce")
	}
	return nil
}

func checkShare(s *SignatureShare) error {
	if s == nil || s.ID == nil {
		return errors.New("incomplete signature share")
	}
	if s.Z == nil {
		return &ShareError{ID: s.ID}
	}
	return nil
}

func checkShares(pkg *SigningPackage, shares []*SignatureShare) error {
	if len(shares) == 0 {
		return errors.New("no signature shares provided")
	}
	if len(shares) != len(pkg.Commitments) {
		return errors.New("number of shares must match number of commitments")
	}
	seen := make(map[string]bool, len(shares))
	for _, s := range shares {
		if err := checkShare(s); err != nil {
			return err
		}
		if _, ok := pkg.Commitment(s.ID); !ok {
			return &ShareError{ID: s.ID}
		}
		if seen[idKey(s.ID)] {
			return fmt.Errorf("duplicate signature share from participant %x", s.ID.Bytes())
		}
		seen[idKey(s.ID)] = true
	}
	return nil
}

// groupCommitment returns R = sum(D_i + rho_i * E_i) and the binding
// factors keyed by identifier.
func (f *FROST) groupCommitment(pkg *SigningPackage) (group.Point, map[string]group.Scalar) {
	bindingFactors := f.computeBindingFactors(pkg)
	R := f.group.NewPoint()
	for _, comm := range pkg.Commitments {
		R = f.group.NewPoint().Add(R, f.commitmentShare(comm, bindingFactors[idKey(comm.ID)]))
	}
	return R, bindingFactors
}

func (f *FROST) commitmentShare(comm *SigningCommitment, rho group.Scalar) group.Point {
	rhoE := f.group.NewPoint().ScalarMult(rho, comm.BindingPoint)
	return f.group.NewPoint().Add(comm.HidingPoint, rhoE)
}

func (f *FROST) computeBindingFactors(pkg *SigningPackage) map[string]group.Scalar {
	factors := make(map[string]group.Scalar)

	var commBytes []byte
	for _, c := range pkg.Commitments {
		commBytes = append(commBytes, c.ID.Bytes()...)
		commBytes = append(commBytes, c.HidingPoint.Bytes()...)
		commBytes = append(commBytes, c.BindingPoint.Bytes()...)
	}
	msgHash := f.hasher.H4(f.group, pkg.Message)
	commHash := f.hasher.H5(f.group, commBytes)

	for _, c := range pkg.Commitments {
		factors[idKey(c.ID)] = f.hasher.H1(f.group, msgHash, commHash, c.ID.Bytes())
	}

	return factors
}

func (f *FROST) lagrangeCoefficient(id group.Scalar, commitments []*SigningCommitment) (group.Scalar, error) {
	num := f.scalarFromInt(1)
	den := f.scalarFromInt(1)

	for _, c := range commitments {
		if c.ID.Equal(id) {
			continue
		}
		// num *= c.ID
		num = f.group.NewScalar().Mul(num, c.ID)
		// den *= (c.ID - id)
		diff := f.group.NewScalar().Sub(c.ID, id)
		den = f.group.NewScalar().Mul(den, diff)
	}

	denInv, err := f.group.NewScalar().Invert(den)
	if err != nil {
		return nil, fmt.Errorf("lagrange coefficient: %w", err)
	}
	return f.group.NewScalar().Mul(num, denInv), nil
}
