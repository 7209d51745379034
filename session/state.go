package session

import (
	"maps"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/f3rmion/frosttap/frost"
	"github.com/f3rmion/frosttap/keys"
)

// SigningState is the state of one Signer. The set of states is closed:
// Idle, CollectingCommitments, CollectingShares, Complete and Failed.
//
// Transitions only move forward:
//
//	Idle -> CollectingCommitments -> CollectingShares -> Complete
//
// and any non-terminal state may move to Failed.
type SigningState interface {
	String() string
	signingState()
}

// Idle is the initial state.
type Idle struct{}

// CollectingCommitments is entered by InitiateRound1.
type CollectingCommitments struct {
	SessionID   SessionID
	UnsignedTx  *wire.MsgTx
	Commitments map[keys.ParticipantID]*frost.SigningCommitment
	Deadline    time.Time
}

// CollectingShares is entered by AdvanceToRound2.
type CollectingShares struct {
	SessionID  SessionID
	UnsignedTx *wire.MsgTx
	Package    *frost.SigningPackage
	Shares     map[keys.ParticipantID]*frost.SignatureShare
	Deadline   time.Time
	// Signed is set once this signer has produced its own share.
	Signed bool
}

// Complete is terminal: the ceremony produced SignedTx.
type Complete struct {
	SessionID SessionID
	SignedTx  *wire.MsgTx
}

// Failed is terminal: the ceremony was aborted with Err.
type Failed struct {
	SessionID SessionID
	Err       error
}

func (Idle) signingState()                  {}
func (CollectingCommitments) signingState() {}
func (CollectingShares) signingState()      {}
func (Complete) signingState()              {}
func (Failed) signingState()                {}

func (Idle) String() string                  { return "Idle" }
func (CollectingCommitments) String() string { return "CollectingCommitments" }
func (CollectingShares) String() string      { return "CollectingShares" }
func (Complete) String() string              { return "Complete" }
func (Failed) String() string                { return "Failed" }

func isTerminal(s SigningState) bool {
	switch s.(type) {
	case Complete, Failed:
		return true
	}
	return false
}

// snapshot returns a copy of s whose maps are not shared with the signer.
func snapshot(s SigningState) SigningState {
	switch st := s.(type) {
	case CollectingCommitments:
		st.Commitments = maps.Clone(st.Commitments)
		return st
	case CollectingShares:
		st.Shares = maps.Clone(st.Shares)
		return st
	}
	return s
}
