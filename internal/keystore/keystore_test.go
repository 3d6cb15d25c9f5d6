package keystore_test

import (
	"errors"
	"testing"

	"parlor/internal/crypto"
	"parlor/internal/domain"
	"parlor/internal/keystore"
)

func TestSessionKey_StoreLookup(t *testing.T) {
	s := keystore.Open(t.TempDir(), "pass")
	key, _ := crypto.GenerateSessionKey()

	if err := s.StoreSessionKey("lobby", 0, key); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := s.Lookup("lobby", 0)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != key {
		t.Fatal("lookup returned a different key")
	}
}

func TestSessionKey_IdempotentAndConflict(t *testing.T) {
	s := keystore.Open(t.TempDir(), "pass")
	key, _ := crypto.GenerateSessionKey()
	other, _ := crypto.GenerateSessionKey()

	if err := s.StoreSessionKey("lobby", 2, key); err != nil {
		t.Fatalf("store: %v", err)
	}
	// Redelivered event: same key, no error.
	if err := s.StoreSessionKey("lobby", 2, key); err != nil {
		t.Fatalf("idempotent store: %v", err)
	}
	// A different key for an occupied slot is tampering.
	if err := s.StoreSessionKey("lobby", 2, other); !errors.Is(err, domain.ErrKeyConflict) {
		t.Fatalf("err = %v, want ErrKeyConflict", err)
	}
}

func TestSessionKey_Unavailable(t *testing.T) {
	s := keystore.Open(t.TempDir(), "pass")
	if _, err := s.Lookup("lobby", 5); !errors.Is(err, domain.ErrKeyUnavailable) {
		t.Fatalf("err = %v, want ErrKeyUnavailable", err)
	}
}

func TestLatestEpoch(t *testing.T) {
	s := keystore.Open(t.TempDir(), "pass")
	if _, _, err := s.LatestEpoch("lobby"); !errors.Is(err, domain.ErrKeyUnavailable) {
		t.Fatalf("err = %v, want ErrKeyUnavailable on empty room", err)
	}
	k1, _ := crypto.GenerateSessionKey()
	k2, _ := crypto.GenerateSessionKey()
	_ = s.StoreSessionKey("lobby", 1, k1)
	_ = s.StoreSessionKey("lobby", 4, k2)

	epoch, key, err := s.LatestEpoch("lobby")
	if err != nil || epoch != 4 || key != k2 {
		t.Fatalf("latest = (%d, err=%v), want epoch 4", epoch, err)
	}
}

// An unreadable store must not masquerade as "no key yet": that would send
// callers into a pointless key-event retry loop instead of surfacing the
// real problem.
func TestLatestEpoch_UnreadableStoreIsNotKeyAbsence(t *testing.T) {
	dir := t.TempDir()
	key, _ := crypto.GenerateSessionKey()
	s := keystore.Open(dir, "pass")
	if err := s.StoreSessionKey("lobby", 0, key); err != nil {
		t.Fatalf("store: %v", err)
	}

	wrong := keystore.Open(dir, "not the passphrase")
	_, _, err := wrong.LatestEpoch("lobby")
	if err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
	if errors.Is(err, domain.ErrKeyUnavailable) {
		t.Fatalf("err = %v, must not be ErrKeyUnavailable", err)
	}
}

func TestNextCounter_Monotonic(t *testing.T) {
	s := keystore.Open(t.TempDir(), "pass")
	for want := uint64(0); want < 3; want++ {
		n, err := s.NextCounter("lobby")
		if err != nil {
			t.Fatalf("counter: %v", err)
		}
		if n != want {
			t.Fatalf("counter = %d, want %d", n, want)
		}
	}
}

func TestForgetRoom(t *testing.T) {
	s := keystore.Open(t.TempDir(), "pass")
	key, _ := crypto.GenerateSessionKey()
	_ = s.StoreSessionKey("lobby", 0, key)
	_ = s.StoreSessionKey("attic", 0, key)

	if err := s.ForgetRoom("lobby"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := s.Lookup("lobby", 0); !errors.Is(err, domain.ErrKeyUnavailable) {
		t.Fatalf("err = %v, want ErrKeyUnavailable after forget", err)
	}
	// Other rooms are untouched.
	if _, err := s.Lookup("attic", 0); err != nil {
		t.Fatalf("attic lookup: %v", err)
	}
}

func TestSessionKey_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key, _ := crypto.GenerateSessionKey()

	s := keystore.Open(dir, "pass")
	if err := s.StoreSessionKey("lobby", 3, key); err != nil {
		t.Fatalf("store: %v", err)
	}

	reopened := keystore.Open(dir, "pass")
	got, err := reopened.Lookup("lobby", 3)
	if err != nil {
		t.Fatalf("lookup after reopen: %v", err)
	}
	if got != key {
		t.Fatal("key changed across reopen")
	}
}

func TestIdentity_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s := keystore.Open(dir, "pass")

	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	id := domain.Identity{Pub: pub, Priv: priv}

	if err := s.SaveIdentity("correct horse", id); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	got, err := s.LoadIdentity("correct horse")
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if got != id {
		t.Fatal("identity mismatch after load")
	}
	if _, err := s.LoadIdentity("wrong"); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
}
