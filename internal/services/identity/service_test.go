package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"parlor/internal/domain"
	"parlor/internal/keystore"
)

type recordingRelay struct {
	domain.RelayClient
	user domain.Username
	pub  domain.X25519Public
}

func (r *recordingRelay) RegisterKey(ctx context.Context, user domain.Username, pub domain.X25519Public) error {
	r.user, r.pub = user, pub
	return nil
}

const goodPassphrase = "Correct-Horse-Battery-1!"

func TestGenerateRejectsWeakPassphrases(t *testing.T) {
	svc := New(keystore.Open(t.TempDir(), ""), nil)
	for _, weak := range []string{
		"",
		"short1!A",
		"alllowercase1!",
		"ALLUPPERCASE1!",
		"NoDigitsHere!",
		"NoSymbolsHere1",
	} {
		_, _, err := svc.Generate(weak)
		require.ErrorIs(t, err, ErrWeakPassphrase, "passphrase %q", weak)
	}
}

func TestGenerateAndLoadRoundTrip(t *testing.T) {
	svc := New(keystore.Open(t.TempDir(), goodPassphrase), nil)

	id, fp, err := svc.Generate(goodPassphrase)
	require.NoError(t, err)
	require.Len(t, string(fp), 20)

	loaded, err := svc.Load(goodPassphrase)
	require.NoError(t, err)
	require.Equal(t, id, loaded)

	fp2, err := svc.Fingerprint(goodPassphrase)
	require.NoError(t, err)
	require.Equal(t, fp, fp2)
}

func TestRegisterPublishesPublicHalfOnly(t *testing.T) {
	relay := &recordingRelay{}
	svc := New(keystore.Open(t.TempDir(), goodPassphrase), relay)

	id, fp, err := svc.Generate(goodPassphrase)
	require.NoError(t, err)

	got, err := svc.Register(context.Background(), goodPassphrase, "alice")
	require.NoError(t, err)
	require.Equal(t, fp, got)
	require.Equal(t, domain.Username("alice"), relay.user)
	require.Equal(t, id.Pub, relay.pub)
}
