package mesh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// Identity is this node's static ed25519 keypair.
type Identity struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// NewIdentity generates a fresh ed25519 keypair.
func NewIdentity() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, jerr.Wrap(jerr.Server, "mesh", "NewIdentity", err)
	}
	return &Identity{Public: pub, private: priv}, nil
}

// LoadOrCreateIdentity loads the ed25519 private key persisted at path (§6:
// "identity/ed25519.key — mesh identity private key (0600 perms)"),
// generating and persisting a fresh one if none exists yet.
func LoadOrCreateIdentity(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) != ed25519.PrivateKeySize {
			return nil, jerr.New(jerr.Invariant, "mesh", "LoadOrCreateIdentity", "identity key file has unexpected size")
		}
		priv := ed25519.PrivateKey(data)
		pub, ok := priv.Public().(ed25519.PublicKey)
		if !ok {
			return nil, jerr.New(jerr.Invariant, "mesh", "LoadOrCreateIdentity", "identity key does not derive a valid public key")
		}
		return &Identity{Public: pub, private: priv}, nil
	case os.IsNotExist(err):
		id, genErr := NewIdentity()
		if genErr != nil {
			return nil, genErr
		}
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o700); mkErr != nil {
			return nil, jerr.Wrap(jerr.Backend, "mesh", "LoadOrCreateIdentity", mkErr)
		}
		if writeErr := os.WriteFile(path, id.private, 0o600); writeErr != nil {
			return nil, jerr.Wrap(jerr.Backend, "mesh", "LoadOrCreateIdentity", writeErr)
		}
		return id, nil
	default:
		return nil, jerr.Wrap(jerr.Backend, "mesh", "LoadOrCreateIdentity", err)
	}
}

// Sign produces a detached signature over msg using the node's private key.
func (id *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(id.private, msg)
}

// Fingerprint renders the public key as a stable, human-shareable string.
func (id *Identity) Fingerprint() string {
	return fingerprintOf(id.Public)
}

func fingerprintOf(pub ed25519.PublicKey) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(pub)
}

// verifyPeer checks that sig over msg was produced by the holder of pub,
// and that pub's fingerprint matches expectedFingerprint.
func verifyPeer(pub ed25519.PublicKey, expectedFingerprint string, msg, sig []byte) error {
	if fingerprintOf(pub) != expectedFingerprint {
		return jerr.New(jerr.Auth, "mesh", "verifyPeer", "public key does not match expected fingerprint")
	}
	if !ed25519.Verify(pub, msg, sig) {
		return jerr.New(jerr.Auth, "mesh", "verifyPeer", "handshake signature verification failed")
	}
	return nil
}

// TrustStore persists known peer fingerprints to disk (trust-on-first-use):
// the first handshake with a given peer id caches its fingerprint; every
// later handshake must match the cached value.
type TrustStore struct {
	path string

	mu    sync.Mutex
	peers map[string]string // peer id -> fingerprint
}

// LoadTrustStore reads (or initializes) the trust cache at path.
func LoadTrustStore(path string) (*TrustStore, error) {
	ts := &TrustStore{path: path, peers: map[string]string{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ts, nil
	}
	if err != nil {
		return nil, jerr.Wrap(jerr.Backend, "mesh", "LoadTrustStore", err)
	}
	if err := json.Unmarshal(data, &ts.peers); err != nil {
		return nil, jerr.Wrap(jerr.Backend, "mesh", "LoadTrustStore", err)
	}
	return ts, nil
}

// Verify checks peerID's fingerprint against the cache. On first contact
// the fingerprint is cached and persisted; on later contact a mismatch is
// an Auth error.
func (ts *TrustStore) Verify(peerID, fingerprint string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	known, ok := ts.peers[peerID]
	if !ok {
		ts.peers[peerID] = fingerprint
		return ts.persistLocked()
	}
	if known != fingerprint {
		return jerr.New(jerr.Auth, "mesh", "Verify", "peer fingerprint changed since first contact: "+peerID)
	}
	return nil
}

func (ts *TrustStore) persistLocked() error {
	if ts.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(ts.path), 0o700); err != nil {
		return jerr.Wrap(jerr.Backend, "mesh", "persist", err)
	}
	data, err := json.MarshalIndent(ts.peers, "", "  ")
	if err != nil {
		return jerr.Wrap(jerr.Backend, "mesh", "persist", err)
	}
	return os.WriteFile(ts.path, data, 0o600)
}
