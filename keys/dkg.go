package keys

import (
	"errors"
	"fmt"
	"io"

	"github.com/f3rmion/frosttap/frost"
)

// dkgParticipant tracks one participant through the two DKG rounds.
type dkgParticipant struct {
	id        ParticipantID
	frost     *frost.FROST
	state     *frost.Participant
	keyShare  *frost.KeyShare
	finalized bool
}

// dkgRound1 holds everything a participant emits in round 1.
type dkgRound1 struct {
	broadcast     *frost.Round1Data
	privateShares map[ParticipantID]*frost.Round1PrivateData
}

func (p *dkgParticipant) generateRound1(rng io.Reader, all []ParticipantID) (*dkgRound1, error) {
	if p.state != nil {
		return nil, errors.New("round 1 already generated")
	}

	state, err := p.frost.NewParticipant(rng, int(p.id))
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", p.id, err)
	}
	p.state = state

	out := &dkgRound1{
		broadcast:     state.Round1Broadcast(),
		privateShares: make(map[ParticipantID]*frost.Round1PrivateData, len(all)-1),
	}
	for _, recipient := range all {
		if recipient == p.id {
			continue
		}
		out.privateShares[recipient] = p.frost.Round1PrivateSend(state, int(recipient))
	}
	return out, nil
}

// processRound1 verifies every private share addressed to p against the
// sender's broadcast and derives p's final key share.
func (p *dkgParticipant) processRound1(broadcasts []*frost.Round1Data, shares []*frost.Round1PrivateData) error {
	if p.state == nil {
		return errors.New("must generate round 1 before processing it")
	}
	if p.finalized {
		return errors.New("DKG already finalized")
	}

	byID := make(map[string]*frost.Round1Data, len(broadcasts))
	for _, b := range broadcasts {
		key := string(b.ID.Bytes())
		if _, exists := byID[key]; exists {
			return errors.New("duplicate broadcast from participant")
		}
		byID[key] = b
	}

	for _, share := range shares {
		sender, ok := byID[string(share.FromID.Bytes())]
		if !ok {
			return errors.New("missing broadcast from sender of private share")
		}
		if err := p.frost.Round2ReceiveShare(p.state, share, sender.Commitments); err != nil {
			return fmt.Errorf("participant %s: %w", p.id, err)
		}
	}

	ks, err := p.frost.Finalize(p.state, broadcasts)
	if err != nil {
		return fmt.Errorf("participant %s: finalize: %w", p.id, err)
	}
	p.keyShare = ks
	p.finalized = true
	p.state = nil
	return nil
}

// GenerateDKG runs the FROST distributed key generation for all n
// participants inside this process and returns the resulting key material.
// No party ever holds the group secret.
func GenerateDKG(r io.Reader, threshold, total int) (*KeyMaterial, error) {
	f, err := newFROST(threshold, total)
	if err != nil {
		return nil, err
	}

	ids := make([]ParticipantID, total)
	participants := make([]*dkgParticipant, total)
	for i := range ids {
		ids[i] = ParticipantID(i + 1)
		participants[i] = &dkgParticipant{id: ids[i], frost: f}
	}

	broadcasts := make([]*frost.Round1Data, total)
	inbox := make(map[ParticipantID][]*frost.Round1PrivateData, total)
	for i, p := range participants {
		out, err := p.generateRound1(r, ids)
		if err != nil {
			return nil, fmt.Errorf("dkg round 1: %w", err)
		}
		broadcasts[i] = out.broadcast
		for to, share := range out.privateShares {
			inbox[to] = append(inbox[to], share)
		}
	}

	shares := make([]*frost.KeyShare, total)
	for i, p := range participants {
		if err := p.processRound1(broadcasts, inbox[p.id]); err != nil {
			return nil, fmt.Errorf("dkg round 2: %w", err)
		}
		shares[i] = p.keyShare
	}

	pub, err := f.PublicKeyPackage(broadcasts)
	if err != nil {
		return nil, fmt.Errorf("dkg public package: %w", err)
	}
	return assemble(threshold, total, shares, pub)
}
