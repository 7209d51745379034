package session

import (
	"github.com/f3rmion/frosttap/frost"
	"github.com/f3rmion/frosttap/keys"
)

// SessionID identifies one signing ceremony.
type SessionID uint64

// Message is a protocol message exchanged between Signers. The set of
// messages is closed: *NonceCommitment and *SignatureShare.
type Message interface {
	SessionID() SessionID
	Sender() keys.ParticipantID
	message()
}

// NonceCommitment is broadcast in round 1.
type NonceCommitment struct {
	Session    SessionID
	From       keys.ParticipantID
	Commitment *frost.SigningCommitment
}

// SignatureShare is broadcast in round 2.
type SignatureShare struct {
	Session SessionID
	From    keys.ParticipantID
	Share   *frost.SignatureShare
}

func (m *NonceCommitment) SessionID() SessionID       { return m.Session }
func (m *NonceCommitment) Sender() keys.ParticipantID { return m.From }
func (*NonceCommitment) message()                     {}

func (m *SignatureShare) SessionID() SessionID       { return m.Session }
func (m *SignatureShare) Sender() keys.ParticipantID { return m.From }
func (*SignatureShare) message()                     {}
