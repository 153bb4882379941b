package mesh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintStable(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	require.Equal(t, id.Fingerprint(), id.Fingerprint())
}

func TestVerifyPeerRejectsBadSignature(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	other, err := NewIdentity()
	require.NoError(t, err)

	sig := other.Sign([]byte("hello"))
	err = verifyPeer(id.Public, id.Fingerprint(), []byte("hello"), sig)
	require.Error(t, err)
}

func TestVerifyPeerAcceptsValidSignature(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	sig := id.Sign([]byte("hello"))
	require.NoError(t, verifyPeer(id.Public, id.Fingerprint(), []byte("hello"), sig))
}

func TestTrustStoreFirstContactCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")

	ts, err := LoadTrustStore(path)
	require.NoError(t, err)

	require.NoError(t, ts.Verify("peer-a", "fp-1"))
	require.NoError(t, ts.Verify("peer-a", "fp-1"))
	require.Error(t, ts.Verify("peer-a", "fp-2"))

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestLoadOrCreateIdentityPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity", "ed25519.key")

	id1, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)

	info, statErr := os.Stat(path)
	require.NoError(t, statErr)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	id2, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	require.Equal(t, id1.Fingerprint(), id2.Fingerprint())
}

func TestTrustStoreReloadsPersistedFingerprints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")

	ts1, err := LoadTrustStore(path)
	require.NoError(t, err)
	require.NoError(t, ts1.Verify("peer-a", "fp-1"))

	ts2, err := LoadTrustStore(path)
	require.NoError(t, err)
	require.Error(t, ts2.Verify("peer-a", "fp-2"))
}
