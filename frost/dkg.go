package frost

import (
	"errors"
	"fmt"
	"io"

	"github.com/f3rmion/frosttap/group"
)

// ErrBadDealing is returned when a private DKG share does not match the
// sender's public polynomial commitment.
var ErrBadDealing = errors.New("dkg share does not match sender commitment")

// Round1Data is the public part of one participant's dealing: Feldman
// commitments C_k = a_k·G to its polynomial coefficients.
type Round1Data struct {
	ID          group.Scalar
	Commitments []group.Point
}

// Round1PrivateData carries f_from(to) from one participant to another.
// It must travel over a confidential channel.
type Round1PrivateData struct {
	FromID group.Scalar
	ToID   group.Scalar
	Share  group.Scalar
}

// Participant is the secret DKG state of one party. Discard it once
// Finalize has produced the key share.
type Participant struct {
	id       group.Scalar
	poly     []group.Scalar
	commits  []group.Point
	received map[string]group.Scalar
}

// NewParticipant samples a degree t-1 polynomial for participant number
// id (1..n) and commits to it.
func (f *FROST) NewParticipant(r io.Reader, id int) (*Participant, error) {
	if id < 1 || id > f.total {
		return nil, fmt.Errorf("participant ID must be between 1 and %d, got %d", f.total, id)
	}

	p := &Participant{
		id:       f.scalarFromInt(id),
		poly:     make([]group.Scalar, f.threshold),
		commits:  make([]group.Point, f.threshold),
		received: make(map[string]group.Scalar, f.total-1),
	}
	for k := range p.poly {
		a, err := f.group.RandomScalar(r)
		if err != nil {
			return nil, err
		}
		p.poly[k] = a
		p.commits[k] = f.group.NewPoint().ScalarMult(a, f.group.Generator())
	}
	return p, nil
}

// Round1Broadcast returns p's public commitments.
func (p *Participant) Round1Broadcast() *Round1Data {
	return &Round1Data{ID: p.id, Commitments: p.commits}
}

// Round1PrivateSend evaluates p's polynomial at recipient.
func (f *FROST) Round1PrivateSend(p *Participant, recipient int) *Round1PrivateData {
	to := f.scalarFromInt(recipient)
	return &Round1PrivateData{
		FromID: p.id,
		ToID:   to,
		Share:  f.evalPolynomial(p.poly, to),
	}
}

// Round2ReceiveShare checks data against the sender's commitments,
// share·G == Σ C_k·to^k, and stores it. Each sender may deal only once.
func (f *FROST) Round2ReceiveShare(p *Participant, data *Round1PrivateData, senderCommitments []group.Point) error {
	if !data.ToID.Equal(p.id) {
		return errors.New("share addressed to another participant")
	}
	want := f.evalCommitment(senderCommitments, data.ToID)
	got := f.group.NewPoint().ScalarMult(data.Share, f.group.Generator())
	if !got.Equal(want) {
		return fmt.Errorf("%w: participant %x", ErrBadDealing, data.FromID.Bytes())
	}

	key := idKey(data.FromID)
	if _, dup := p.received[key]; dup {
		return fmt.Errorf("duplicate share from participant %x", data.FromID.Bytes())
	}
	p.received[key] = data.Share
	return nil
}

// Finalize sums p's own evaluation with the n-1 received shares into
// its signing share.
func (f *FROST) Finalize(p *Participant, allBroadcasts []*Round1Data) (*KeyShare, error) {
	if err := f.checkBroadcasts(allBroadcasts); err != nil {
		return nil, err
	}
	if len(p.received) != f.total-1 {
		return nil, fmt.Errorf("expected %d shares, received %d", f.total-1, len(p.received))
	}

	secret := f.evalPolynomial(p.poly, p.id)
	for _, s := range p.received {
		secret = f.group.NewScalar().Add(secret, s)
	}

	return &KeyShare{
		ID:        p.id,
		SecretKey: secret,
		PublicKey: f.group.NewPoint().ScalarMult(secret, f.group.Generator()),
		GroupKey:  f.dkgGroupKey(allBroadcasts),
	}, nil
}

// VerifyingShare computes Y_id = Σ_j Σ_k C_{j,k}·id^k from public data
// only, so anyone holding the broadcasts can check a participant's share.
func (f *FROST) VerifyingShare(allBroadcasts []*Round1Data, id group.Scalar) group.Point {
	y := f.group.NewPoint()
	for _, b := range allBroadcasts {
		y = f.group.NewPoint().Add(y, f.evalCommitment(b.Commitments, id))
	}
	return y
}

// PublicKeyPackage derives the group key and all n verifying shares from
// the DKG broadcasts.
func (f *FROST) PublicKeyPackage(allBroadcasts []*Round1Data) (*PublicKeyPackage, error) {
	if err := f.checkBroadcasts(allBroadcasts); err != nil {
		return nil, err
	}
	pub := &PublicKeyPackage{GroupKey: f.dkgGroupKey(allBroadcasts)}
	for i := 1; i <= f.total; i++ {
		id := f.scalarFromInt(i)
		pub.SetVerifyingShare(id, f.VerifyingShare(allBroadcasts, id))
	}
	return pub, nil
}

// dkgGroupKey is Σ_j C_{j,0}.
func (f *FROST) dkgGroupKey(allBroadcasts []*Round1Data) group.Point {
	y := f.group.NewPoint()
	for _, b := range allBroadcasts {
		y = f.group.NewPoint().Add(y, b.Commitments[0])
	}
	return y
}

// evalCommitment evaluates a committed polynomial in the exponent at x.
func (f *FROST) evalCommitment(commits []group.Point, x group.Scalar) group.Point {
	acc := f.group.NewPoint()
	pow := f.scalarFromInt(1)
	for _, c := range commits {
		acc = f.group.NewPoint().Add(acc, f.group.NewPoint().ScalarMult(pow, c))
		pow = f.group.NewScalar().Mul(pow, x)
	}
	return acc
}

func (f *FROST) checkBroadcasts(allBroadcasts []*Round1Data) error {
	if len(allBroadcasts) != f.total {
		return fmt.Errorf("expected %d broadcasts, got %d", f.total, len(allBroadcasts))
	}
	seen := make(map[string]bool, len(allBroadcasts))
	for _, b := range allBroadcasts {
		if b == nil || b.ID == nil {
			return errors.New("incomplete broadcast")
		}
		if seen[idKey(b.ID)] {
			return fmt.Errorf("duplicate broadcast from participant %x", b.ID.Bytes())
		}
		seen[idKey(b.ID)] = true
		if len(b.Commitments) != f.threshold {
			return fmt.Errorf("participant %x committed to %d coefficients, want %d",
				b.ID.Bytes(), len(b.Commitments), f.threshold)
		}
	}
	return nil
}
