package frost

import (
	"crypto/rand"
	"errors"
	"fmt"
	"testing"

	"github.com/f3rmion/frosttap/secp"
)

// runDKG runs a complete in-process DKG and returns every key share
// together with the round 1 broadcasts.
func runDKG(t *testing.T, f *FROST) ([]*KeyShare, []*Round1Data) {
	t.Helper()
	total := f.Total()

	participants := make([]*Participant, total)
	for i := 0; i < total; i++ {
		p, err := f.NewParticipant(rand.Reader, i+1)
		if err != nil {
			t.Fatalf("failed to create participant %d: %v", i+1, err)
		}
		participants[i] = p
	}

	broadcasts := make([]*Round1Data, total)
	for i, p := range participants {
		broadcasts[i] = p.Round1Broadcast()
	}

	for i, sender := range participants {
		for j := 0; j < total; j++ {
			if i == j {
				continue // don't send to self
			}
			privateData := f.Round1PrivateSend(sender, j+1)
			if err := f.Round2ReceiveShare(participants[j], privateData, broadcasts[i].Commitments); err != nil {
				t.Fatalf("participant %d failed to verify share from %d: %v", j+1, i+1, err)
			}
		}
	}

	keyShares := make([]*KeyShare, total)
	for i, p := range participants {
		ks, err := f.Finalize(p, broadcasts)
		if err != nil {
			t.Fatalf("participant %d failed to finalize: %v", i+1, err)
		}
		keyShares[i] = ks
	}
	return keyShares, broadcasts
}

// signWith runs both signing rounds for the given signers.
func signWith(t *testing.T, f *FROST, signers []*KeyShare, message []byte) (*SigningPackage, []*SignatureShare) {
	t.Helper()

	nonces := make([]*SigningNonce, len(signers))
	commitments := make([]*SigningCommitment, len(signers))
	for i, ks := range signers {
		n, c, err := f.SignRound1(rand.Reader, ks)
		if err != nil {
			t.Fatalf("signer %d failed round 1: %v", i+1, err)
		}
		nonces[i] = n
		commitments[i] = c
	}

	pkg, err := NewSigningPackage(commitments, message)
	if err != nil {
		t.Fatal(err)
	}

	sigShares := make([]*SignatureShare, len(signers))
	for i, ks := range signers {
		ss, err := f.SignRound2(ks, nonces[i], pkg)
		if err != nil {
			t.Fatalf("signer %d failed round 2: %v", i+1, err)
		}
		sigShares[i] = ss
	}
	return pkg, sigShares
}

func TestDKGAndSign(t *testing.T) {
	g := &secp.Secp256k1{}
	threshold := 2
	total := 3

	f, err := New(g, threshold, total)
	if err != nil {
		t.Fatal(err)
	}

	keyShares, broadcasts := runDKG(t, f)

	// Verify all participants have the same group key
	for i := 1; i < total; i++ {
		if !keyShares[i].GroupKey.Equal(keyShares[0].GroupKey) {
			t.Error("participants have different group keys")
		}
	}

	t.Run("VerifyingShares", func(t *testing.T) {
		pub, err := f.PublicKeyPackage(broadcasts)
		if err != nil {
			t.Fatal(err)
		}
		if !pub.GroupKey.Equal(keyShares[0].GroupKey) {
			t.Error("public key package has a different group key")
		}
		for _, ks := range keyShares {
			y, ok := pub.VerifyingShare(ks.ID)
			if !ok {
				t.Fatalf("missing verifying share for %x", ks.ID.Bytes())
			}
			if !y.Equal(ks.PublicKey) {
				t.Errorf("verifying share for %x does not match key share", ks.ID.Bytes())
			}
		}
	})

	t.Run("Sign", func(t *testing.T) {
		message := []byte("hello FROST")

		pkg, sigShares := signWith(t, f, keyShares[:threshold], message)

		pub, _ := NewPublicKeyPackage(keyShares)
		sig, err := f.Aggregate(pkg, sigShares, pub)
		if err != nil {
			t.Fatalf("failed to aggregate signature: %v", err)
		}

		if !f.Verify(message, sig, keyShares[0].GroupKey) {
			t.Error("signature verification failed")
		}
		if f.Verify([]byte("wrong message"), sig, keyShares[0].GroupKey) {
			t.Error("signature should not verify with wrong message")
		}
	})
}

func TestSigningWithDifferentSignerSubsets(t *testing.T) {
	g := &secp.Secp256k1{}

	f, err := New(g, 2, 4)
	if err != nil {
		t.Fatal(err)
	}

	keyShares, pub, err := f.GenerateWithDealer(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	message := []byte("test message")

	subsets := [][]int{
		{0, 1},
		{0, 2},
		{0, 3},
		{1, 2},
		{1, 3},
		{2, 3},
		{0, 1, 2},
		{3, 1, 0}, // out of order
		{0, 1, 2, 3},
	}

	for _, subset := range subsets {
		t.Run(subsetName(subset), func(t *testing.T) {
			signers := make([]*KeyShare, len(subset))
			for i, idx := range subset {
				signers[i] = keyShares[idx]
			}

			pkg, sigShares := signWith(t, f, signers, message)

			sig, err := f.Aggregate(pkg, sigShares, pub)
			if err != nil {
				t.Fatal(err)
			}

			if !f.Verify(message, sig, pub.GroupKey) {
				t.Error("signature verification failed")
			}
		})
	}
}

func subsetName(subset []int) string {
	name := "signers"
	for _, idx := range subset {
		name += fmt.Sprintf("_%d", idx+1)
	}
	return name
}

func TestSigningWithDifferentThresholds(t *testing.T) {
	g := &secp.Secp256k1{}

	configs := []struct {
		threshold int
		total     int
	}{
		{1, 1},
		{1, 3},
		{2, 3},
		{2, 5},
		{3, 5},
		{3, 7},
	}

	for _, cfg := range configs {
		name := fmt.Sprintf("%d_of_%d", cfg.threshold, cfg.total)
		t.Run(name, func(t *testing.T) {
			f, err := New(g, cfg.threshold, cfg.total)
			if err != nil {
				t.Fatal(err)
			}

			keyShares, _ := runDKG(t, f)

			// Sign with exactly threshold signers
			message := []byte("threshold signing test")
			pkg, sigShares := signWith(t, f, keyShares[:cfg.threshold], message)

			sig, err := f.Aggregate(pkg, sigShares, nil)
			if err != nil {
				t.Fatal(err)
			}

			if !f.Verify(message, sig, keyShares[0].GroupKey) {
				t.Error("signature verification failed")
			}
		})
	}
}

func TestSignatureVerificationFailures(t *testing.T) {
	g := &secp.Secp256k1{}
	f, _ := New(g, 2, 3)

	keyShares, _, _ := f.GenerateWithDealer(rand.Reader)

	message := []byte("original message")
	signers := keyShares[:2]

	pkg, sigShares := signWith(t, f, signers, message)
	sig, _ := f.Aggregate(pkg, sigShares, nil)

	if !f.Verify(message, sig, keyShares[0].GroupKey) {
		t.Fatal("valid signature should verify")
	}

	t.Run("WrongMessage", func(t *testing.T) {
		if f.Verify([]byte("wrong message"), sig, keyShares[0].GroupKey) {
			t.Error("signature should not verify with wrong message")
		}
	})

	t.Run("WrongGroupKey", func(t *testing.T) {
		other, _ := g.RandomScalar(rand.Reader)
		wrongGroupKey := g.NewPoint().ScalarMult(other, g.Generator())

		if f.Verify(message, sig, wrongGroupKey) {
			t.Error("signature should not verify with wrong group key")
		}
	})

	t.Run("TamperedSignatureR", func(t *testing.T) {
		tamperedR := g.NewPoint().Add(sig.R, g.Generator())
		tamperedSig := &Signature{R: tamperedR, Z: sig.Z}

		if f.Verify(message, tamperedSig, keyShares[0].GroupKey) {
			t.Error("signature should not verify with tampered R")
		}
	})

	t.Run("TamperedSignatureZ", func(t *testing.T) {
		one, _ := g.NewScalar().SetBytes([]byte{1})
		tamperedSig := &Signature{R: sig.R, Z: g.NewScalar().Add(sig.Z, one)}

		if f.Verify(message, tamperedSig, keyShares[0].GroupKey) {
			t.Error("signature should not verify with tampered Z")
		}
	})

	t.Run("EmptyMessage", func(t *testing.T) {
		emptyMsg := []byte{}

		pkg, sigShares := signWith(t, f, signers, emptyMsg)
		emptySig, _ := f.Aggregate(pkg, sigShares, nil)

		if !f.Verify(emptyMsg, emptySig, keyShares[0].GroupKey) {
			t.Error("empty message signature should verify")
		}
		if f.Verify(emptyMsg, sig, keyShares[0].GroupKey) {
			t.Error("original signature should not verify with empty message")
		}
	})
}

func TestAggregateRejectsInvalidShare(t *testing.T) {
	g := &secp.Secp256k1{}
	f, _ := New(g, 2, 3)
	keyShares, pub, _ := f.GenerateWithDealer(rand.Reader)

	pkg, sigShares := signWith(t, f, keyShares[:2], []byte("blame"))

	one, _ := g.NewScalar().SetBytes([]byte{1})
	sigShares[1] = &SignatureShare{ID: sigShares[1].ID, Z: g.NewScalar().Add(sigShares[1].Z, one)}

	_, err := f.Aggregate(pkg, sigShares, pub)
	var shareErr *ShareError
	if !errors.As(err, &shareErr) {
		t.Fatalf("expected ShareError, got %v", err)
	}
	if !shareErr.ID.Equal(keyShares[1].ID) {
		t.Errorf("blamed %x, want %x", shareErr.ID.Bytes(), keyShares[1].ID.Bytes())
	}
	if !errors.Is(err, ErrInvalidShare) {
		t.Error("ShareError should wrap ErrInvalidShare")
	}
}

func TestSignRound2Checks(t *testing.T) {
	g := &secp.Secp256k1{}
	f, _ := New(g, 2, 3)
	keyShares, _, _ := f.GenerateWithDealer(rand.Reader)

	n1, c1, _ := f.SignRound1(rand.Reader, keyShares[0])
	_, c2, _ := f.SignRound1(rand.Reader, keyShares[1])
	n3, _, _ := f.SignRound1(rand.Reader, keyShares[2])
	pkg, err := NewSigningPackage([]*SigningCommitment{c1, c2}, []byte("m"))
	if err != nil {
		t.Fatal(err)
	}

	t.Run("NotInPackage", func(t *testing.T) {
		if _, err := f.SignRound2(keyShares[2], n3, pkg); err == nil {
			t.Error("expected error for signer outside the package")
		}
	})

	t.Run("ForeignNonce", func(t *testing.T) {
		if _, err := f.SignRound2(keyShares[1], n1, pkg); err == nil {
			t.Error("expected error for another signer's nonce")
		}
	})

	t.Run("StaleNonce", func(t *testing.T) {
		stale, _, _ := f.SignRound1(rand.Reader, keyShares[0])
		if _, err := f.SignRound2(keyShares[0], stale, pkg); err == nil {
			t.Error("expected error for nonce not matching the commitment")
		}
	})
}

func TestSigningPackage(t *testing.T) {
	g := &secp.Secp256k1{}
	f, _ := New(g, 2, 3)
	keyShares, _, _ := f.GenerateWithDealer(rand.Reader)

	_, c1, _ := f.SignRound1(rand.Reader, keyShares[0])
	_, c2, _ := f.SignRound1(rand.Reader, keyShares[1])
	_, c3, _ := f.SignRound1(rand.Reader, keyShares[2])

	t.Run("Sorted", func(t *testing.T) {
		pkg, err := NewSigningPackage([]*SigningCommitment{c3, c1, c2}, []byte("m"))
		if err != nil {
			t.Fatal(err)
		}
		for i, want := range []*SigningCommitment{c1, c2, c3} {
			if !pkg.Commitments[i].ID.Equal(want.ID) {
				t.Fatalf("commitment %d out of order", i)
			}
		}
	})

	t.Run("MessageCopied", func(t *testing.T) {
		msg := []byte("mutable")
		pkg, _ := NewSigningPackage([]*SigningCommitment{c1}, msg)
		msg[0] = 'X'
		if string(pkg.Message) != "mutable" {
			t.Error("package message should not alias the caller's slice")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if _, err := NewSigningPackage(nil, []byte("m")); err == nil {
			t.Error("expected error for empty package")
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		if _, err := NewSigningPackage([]*SigningCommitment{c1, c2, c1}, []byte("m")); err == nil {
			t.Error("expected error for duplicate commitment")
		}
	})

	t.Run("Identity", func(t *testing.T) {
		bad := &SigningCommitment{ID: c1.ID, HidingPoint: g.NewPoint(), BindingPoint: c1.BindingPoint}
		if _, err := NewSigningPackage([]*SigningCommitment{bad}, []byte("m")); err == nil {
			t.Error("expected error for identity commitment")
		}
	})

	t.Run("Incomplete", func(t *testing.T) {
		for _, comms := range [][]*SigningCommitment{
			{c1, nil, c2},
			{c2, {HidingPoint: c1.HidingPoint, BindingPoint: c1.BindingPoint}},
			{c3, {ID: c1.ID, BindingPoint: c1.BindingPoint}},
		} {
			if _, err := NewSigningPackage(comms, []byte("m")); err == nil {
				t.Error("expected error for incomplete commitment")
			}
		}
	})
}

func TestThresholdValidation(t *testing.T) {
	g := &secp.Secp256k1{}

	t.Run("ThresholdTooLow", func(t *testing.T) {
		if _, err := New(g, 0, 3); err == nil {
			t.Error("expected error for threshold < 1")
		}
	})

	t.Run("TotalLessThanThreshold", func(t *testing.T) {
		if _, err := New(g, 3, 2); err == nil {
			t.Error("expected error for total < threshold")
		}
	})

	t.Run("NilHasher", func(t *testing.T) {
		if _, err := NewWithHasher(g, 2, 3, nil); err == nil {
			t.Error("expected error for nil hasher")
		}
	})

	t.Run("ParticipantOutOfRange", func(t *testing.T) {
		f, _ := New(g, 2, 3)
		if _, err := f.NewParticipant(rand.Reader, 4); err == nil {
			t.Error("expected error for participant ID > total")
		}
	})
}

func TestTaprootHasher(t *testing.T) {
	g := &secp.Secp256k1{}
	threshold := 2
	total := 3

	f, err := NewWithHasher(g, threshold, total, &TaprootHasher{})
	if err != nil {
		t.Fatal(err)
	}

	keyShares, _ := runDKG(t, f)

	message := []byte("test message with tagged hashes")
	pkg, sigShares := signWith(t, f, keyShares[:threshold], message)

	sig, err := f.Aggregate(pkg, sigShares, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !f.Verify(message, sig, keyShares[0].GroupKey) {
		t.Error("signature verification failed with tagged hasher")
	}

	// A signature from the tagged hasher doesn't verify with the SHA-256 hasher
	f2, _ := New(g, threshold, total)
	if f2.Verify(message, sig, keyShares[0].GroupKey) {
		t.Error("tagged signature should not verify with sha256 hasher")
	}
}

func TestDKGRejectsBadDealing(t *testing.T) {
	g := &secp.Secp256k1{}
	f, err := New(g, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := f.NewParticipant(rand.Reader, 1)
	p2, _ := f.NewParticipant(rand.Reader, 2)
	commits := p1.Round1Broadcast().Commitments

	t.Run("TamperedShare", func(t *testing.T) {
		data := f.Round1PrivateSend(p1, 2)
		data.Share = g.NewScalar().Add(data.Share, f.Identifier(1))
		err := f.Round2ReceiveShare(p2, data, commits)
		if !errors.Is(err, ErrBadDealing) {
			t.Errorf("expected ErrBadDealing, got %v", err)
		}
	})

	t.Run("WrongRecipient", func(t *testing.T) {
		data := f.Round1PrivateSend(p1, 3)
		if err := f.Round2ReceiveShare(p2, data, commits); err == nil {
			t.Error("accepted a share addressed to participant 3")
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		data := f.Round1PrivateSend(p1, 2)
		if err := f.Round2ReceiveShare(p2, data, commits); err != nil {
			t.Fatal(err)
		}
		if err := f.Round2ReceiveShare(p2, data, commits); err == nil {
			t.Error("accepted the same dealing twice")
		}
	})
}
