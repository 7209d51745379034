package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/f3rmion/frosttap/frost"
	"github.com/f3rmion/frosttap/keys"
	"github.com/f3rmion/frosttap/transport"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testKeys(t *testing.T, threshold, total int) *keys.KeyMaterial {
	t.Helper()
	var seed [32]byte
	seed[0], seed[1] = byte(threshold), byte(total)
	km, err := keys.Generate(keys.NewSeededReader(seed), threshold, total)
	require.NoError(t, err)
	return km
}

func testTx() *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 7}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1_000, []byte{0x51}))
	return tx
}

type signerSet struct {
	km      *keys.KeyMaterial
	tr      *transport.InMemory[Message]
	signers map[keys.ParticipantID]*Signer
	reg     metrics.Registry
}

func newSignerSet(t *testing.T, threshold, total int) *signerSet {
	t.Helper()
	km := testKeys(t, threshold, total)
	set := &signerSet{
		km:      km,
		tr:      transport.NewInMemory[Message](km.Participants()),
		signers: make(map[keys.ParticipantID]*Signer),
		reg:     metrics.NewRegistry(),
	}
	cfg := SignerConfig{Logger: zaptest.NewLogger(t), Metrics: set.reg}
	for _, id := range km.Participants() {
		s, err := NewSigner(id, km, set.tr, cfg)
		require.NoError(t, err)
		set.signers[id] = s
	}
	return set
}

// deliver drains the queue into the addressed signers and counts the
// accepted messages.
func (set *signerSet) deliver(t *testing.T) int {
	t.Helper()
	accepted := 0
	for {
		env, ok, err := set.tr.Receive(context.Background())
		require.NoError(t, err)
		if !ok {
			return accepted
		}
		if set.signers[env.To].ProcessMessage(env.Msg) {
			accepted++
		}
	}
}

func TestNewSignerUnknownParticipant(t *testing.T) {
	km := testKeys(t, 2, 3)
	_, err := NewSigner(9, km, transport.NewInMemory[Message](km.Participants()), SignerConfig{})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestSignerLifecycle(t *testing.T) {
	ctx := context.Background()
	set := newSignerSet(t, 2, 3)
	s1, s2 := set.signers[1], set.signers[2]
	const sid SessionID = 42

	assert.IsType(t, Idle{}, s1.State())
	assert.True(t, s1.Deadline().IsZero())

	n1, err := s1.InitiateRound1(ctx, sid, testTx())
	require.NoError(t, err)
	n2, err := s2.InitiateRound1(ctx, sid, testTx())
	require.NoError(t, err)

	st, ok := s1.State().(CollectingCommitments)
	require.True(t, ok)
	assert.Equal(t, sid, st.SessionID)
	assert.False(t, s1.Deadline().IsZero())

	_, err = s1.InitiateRound1(ctx, sid, testTx())
	assert.ErrorIs(t, err, ErrInvalidState)

	// Two broadcasts to three participants; signer 3 is still Idle.
	assert.Equal(t, 4, set.deliver(t))
	require.Len(t, s1.Commitments(), 2)
	// The registry is shared: s1 and s2 each accepted both commitments.
	assert.EqualValues(t, 4, set.reg.Get("frost.messages.processed.nonce_commitment").(metrics.Counter).Count())

	comms := []*frost.SigningCommitment{s1.Commitments()[1], s1.Commitments()[2]}
	pkg, err := frost.NewSigningPackage(comms, make([]byte, 32))
	require.NoError(t, err)

	require.NoError(t, s1.AdvanceToRound2(pkg))
	require.NoError(t, s2.AdvanceToRound2(pkg))
	assert.ErrorIs(t, s1.AdvanceToRound2(pkg), ErrInvalidState)

	require.NoError(t, s1.SignAndBroadcastShare(ctx, n1))
	assert.ErrorIs(t, s1.SignAndBroadcastShare(ctx, n1), ErrInvalidState)
	require.NoError(t, s2.SignAndBroadcastShare(ctx, n2))

	set.deliver(t)
	require.Len(t, s1.Shares(), 2)
	assert.True(t, s1.State().(CollectingShares).Signed)

	signed := testTx()
	s1.Complete(signed)
	done, ok := s1.State().(Complete)
	require.True(t, ok)
	assert.Equal(t, sid, done.SessionID)
	assert.Same(t, signed, done.SignedTx)

	// Terminal states stay put.
	s1.Fail(errors.New("late failure"))
	assert.IsType(t, Complete{}, s1.State())
}

func TestSignerDoesNotShareInputTx(t *testing.T) {
	set := newSignerSet(t, 1, 1)
	tx := testTx()

	_, err := set.signers[1].InitiateRound1(context.Background(), 1, tx)
	require.NoError(t, err)
	tx.TxOut[0].Value = 5

	st := set.signers[1].State().(CollectingCommitments)
	assert.Equal(t, int64(1_000), st.UnsignedTx.TxOut[0].Value)
}

func TestInitiateRound1Guards(t *testing.T) {
	set := newSignerSet(t, 2, 3)

	_, err := set.signers[1].InitiateRound1(context.Background(), 1, nil)
	assert.ErrorIs(t, err, ErrInternal)
	assert.IsType(t, Idle{}, set.signers[1].State())

	require.NoError(t, set.tr.Close())
	_, err = set.signers[2].InitiateRound1(context.Background(), 1, testTx())
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, transport.ErrClosed)

	failed, ok := set.signers[2].State().(Failed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, ErrTransport)
}

func TestInitiateRound1Race(t *testing.T) {
	set := newSignerSet(t, 2, 3)
	s := set.signers[1]

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.InitiateRound1(context.Background(), 7, testTx())
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 3, set.tr.Len())
}

func TestProcessMessageDiscards(t *testing.T) {
	ctx := context.Background()
	set := newSignerSet(t, 2, 3)
	s1 := set.signers[1]

	assert.False(t, s1.ProcessMessage(&NonceCommitment{Session: 1}), "idle signer accepted a message")

	_, err := s1.InitiateRound1(ctx, 1, testTx())
	require.NoError(t, err)
	_, err = set.signers[3].InitiateRound1(ctx, 2, testTx())
	require.NoError(t, err)

	var own, other *NonceCommitment
	for {
		env, ok, err := set.tr.Receive(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		if env.To != 1 {
			continue
		}
		m := env.Msg.(*NonceCommitment)
		if m.From == 1 {
			own = m
		} else {
			other = m
		}
	}
	require.NotNil(t, own)
	require.NotNil(t, other)

	var nilCommitment *NonceCommitment
	cases := []struct {
		name string
		msg  Message
	}{
		{"Nil", nil},
		{"TypedNil", nilCommitment},
		{"OtherSession", other},
		{"WrongKind", &SignatureShare{Session: 1, From: 2, Share: &frost.SignatureShare{}}},
		{"NoPayload", &NonceCommitment{Session: 1, From: 2}},
		{"UnknownSender", &NonceCommitment{Session: 1, From: 9, Commitment: own.Commitment}},
		{"MismatchedSender", &NonceCommitment{Session: 1, From: 2, Commitment: own.Commitment}},
		{"IdentityHiding", &NonceCommitment{Session: 1, From: 1, Commitment: &frost.SigningCommitment{
			ID: own.Commitment.ID, HidingPoint: keys.Group().NewPoint(), BindingPoint: own.Commitment.BindingPoint,
		}}},
		{"NilBinding", &NonceCommitment{Session: 1, From: 1, Commitment: &frost.SigningCommitment{
			ID: own.Commitment.ID, HidingPoint: own.Commitment.HidingPoint,
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, s1.ProcessMessage(tc.msg))
		})
	}

	assert.True(t, s1.ProcessMessage(own))
	assert.False(t, s1.ProcessMessage(own), "duplicate accepted")
	assert.Len(t, s1.Commitments(), 1)
}

func TestProcessMessageRejectsNonMemberShare(t *testing.T) {
	ctx := context.Background()
	set := newSignerSet(t, 2, 3)

	nonces := make(map[keys.ParticipantID]*frost.SigningNonce)
	for _, id := range set.km.Participants() {
		n, err := set.signers[id].InitiateRound1(ctx, 5, testTx())
		require.NoError(t, err)
		nonces[id] = n
	}
	set.deliver(t)

	all := set.signers[1].Commitments()
	pkg, err := frost.NewSigningPackage([]*frost.SigningCommitment{all[1], all[2]}, make([]byte, 32))
	require.NoError(t, err)
	require.NoError(t, set.signers[1].AdvanceToRound2(pkg))
	assert.ErrorIs(t, set.signers[3].AdvanceToRound2(pkg), ErrInvalidState)

	// A share from participant 3, signed over its own view of the package.
	f, err := set.km.FROST()
	require.NoError(t, err)
	own, _ := set.km.Share(3)
	pkg3, err := frost.NewSigningPackage([]*frost.SigningCommitment{all[1], all[3]}, make([]byte, 32))
	require.NoError(t, err)
	z, err := f.SignRound2WithTweak(own, nonces[3], pkg3, nil)
	require.NoError(t, err)

	assert.False(t, set.signers[1].ProcessMessage(&SignatureShare{Session: 5, From: 3, Share: z}))

	empty := &frost.SignatureShare{ID: all[2].ID}
	assert.False(t, set.signers[1].ProcessMessage(&SignatureShare{Session: 5, From: 2, Share: empty}))
	assert.Empty(t, set.signers[1].Shares())
}

func TestCompleteOutsideShareRound(t *testing.T) {
	ctx := context.Background()
	set := newSignerSet(t, 2, 3)

	idle := set.signers[1]
	idle.Complete(testTx())
	assert.IsType(t, Idle{}, idle.State())

	collecting := set.signers[2]
	_, err := collecting.InitiateRound1(ctx, 3, testTx())
	require.NoError(t, err)
	collecting.Complete(testTx())
	assert.IsType(t, CollectingCommitments{}, collecting.State())

	failed := set.signers[3]
	_, err = failed.InitiateRound1(ctx, 3, testTx())
	require.NoError(t, err)
	cause := errors.New("peer vanished")
	failed.Fail(cause)
	failed.Complete(testTx())
	st, ok := failed.State().(Failed)
	require.True(t, ok)
	assert.ErrorIs(t, st.Err, cause)
}

func TestStateString(t *testing.T) {
	for _, st := range []SigningState{Idle{}, CollectingCommitments{}, CollectingShares{}, Complete{}, Failed{}} {
		assert.NotEmpty(t, st.String())
	}
	assert.True(t, isTerminal(Complete{}))
	assert.True(t, isTerminal(Failed{}))
	assert.False(t, isTerminal(CollectingShares{}))
}
