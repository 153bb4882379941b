package mesh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// maxHandshakeFrame bounds the length-prefixed handshake frame so a
// misbehaving peer can't force an unbounded allocation.
const maxHandshakeFrame = 4096

// handshakeMsg is exchanged, once in each direction, over the raw
// connection before it is handed to yamux. Each side signs a nonce it
// generated itself, so a valid signature shows the peer holds the private
// key; it does not bind the exchange to this connection.
type handshakeMsg struct {
	ID        string `json:"id"`
	Public    []byte `json:"public"`
	Nonce     []byte `json:"nonce"`
	Signature []byte `json:"signature"`
}

// Session is one multiplexed, authenticated connection to a peer. Every
// mesh message is sent on its own yamux stream, opened for that message.
type Session struct {
	PeerID      string
	Fingerprint string
	yamux       *yamux.Session
}

func yamuxConfig() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.EnableKeepAlive = true
	cfg.KeepAliveInterval = 30 * time.Second
	return cfg
}

// DialPeer opens a TCP connection to addr, performs the static-identity
// handshake as the initiating side, and multiplexes it with yamux.
func DialPeer(ctx context.Context, addr, selfID string, self *Identity, trust *TrustStore) (*Session, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, jerr.Wrap(jerr.PeerUnreachable, "mesh", "DialPeer", err)
	}

	peerID, fingerprint, err := handshake(conn, selfID, self, trust, true)
	if err != nil {
		conn.Close()
		return nil, err
	}

	sess, err := yamux.Client(conn, yamuxConfig())
	if err != nil {
		conn.Close()
		return nil, jerr.Wrap(jerr.PeerUnreachable, "mesh", "DialPeer", err)
	}
	return &Session{PeerID: peerID, Fingerprint: fingerprint, yamux: sess}, nil
}

// AcceptPeer performs the handshake as the responding side over an
// already-accepted connection and multiplexes it with yamux.
func AcceptPeer(conn net.Conn, selfID string, self *Identity, trust *TrustStore) (*Session, error) {
	peerID, fingerprint, err := handshake(conn, selfID, self, trust, false)
	if err != nil {
		conn.Close()
		return nil, err
	}

	sess, err := yamux.Server(conn, yamuxConfig())
	if err != nil {
		conn.Close()
		return nil, jerr.Wrap(jerr.PeerUnreachable, "mesh", "AcceptPeer", err)
	}
	return &Session{PeerID: peerID, Fingerprint: fingerprint, yamux: sess}, nil
}

// handshake exchanges signed nonces over conn and verifies the peer
// against the trust store. The initiating side writes first to avoid a
// symmetric deadlock.
func handshake(conn net.Conn, selfID string, self *Identity, trust *TrustStore, initiator bool) (string, string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", jerr.Wrap(jerr.Server, "mesh", "handshake", err)
	}
	ours := handshakeMsg{
		ID:        selfID,
		Public:    self.Public,
		Nonce:     nonce,
		Signature: self.Sign(nonce),
	}

	var theirs handshakeMsg
	var err error
	if initiator {
		err = writeFrame(conn, ours)
		if err == nil {
			theirs, err = readFrame(conn)
		}
	} else {
		theirs, err = readFrame(conn)
		if err == nil {
			err = writeFrame(conn, ours)
		}
	}
	if err != nil {
		return "", "", err
	}

	pub := ed25519.PublicKey(theirs.Public)
	fingerprint := fingerprintOf(pub)
	if err := verifyPeer(pub, fingerprint, theirs.Nonce, theirs.Signature); err != nil {
		return "", "", err
	}
	if trust != nil {
		if err := trust.Verify(theirs.ID, fingerprint); err != nil {
			return "", "", err
		}
	}
	return theirs.ID, fingerprint, nil
}

func writeFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return jerr.Wrap(jerr.Server, "mesh", "writeFrame", err)
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return jerr.Wrap(jerr.PeerUnreachable, "mesh", "writeFrame", err)
	}
	if _, err := w.Write(body); err != nil {
		return jerr.Wrap(jerr.PeerUnreachable, "mesh", "writeFrame", err)
	}
	return nil
}

func readFrame(r io.Reader) (handshakeMsg, error) {
	var out handshakeMsg
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return out, jerr.Wrap(jerr.PeerUnreachable, "mesh", "readFrame", err)
	}
	n := binary.BigEndian.Uint32(header)
	if n > maxHandshakeFrame {
		return out, jerr.New(jerr.BadArgs, "mesh", "readFrame", "handshake frame too large")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return out, jerr.Wrap(jerr.PeerUnreachable, "mesh", "readFrame", err)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, jerr.Wrap(jerr.BadArgs, "mesh", "readFrame", err)
	}
	return out, nil
}

// OpenStream opens a new logical stream over the session; Mesh opens one
// per outbound message.
func (s *Session) OpenStream() (net.Conn, error) {
	stream, err := s.yamux.OpenStream()
	if err != nil {
		return nil, jerr.Wrap(jerr.PeerUnreachable, "mesh", "OpenStream", err)
	}
	return stream, nil
}

// AcceptStream blocks for the next stream the peer opens.
func (s *Session) AcceptStream() (net.Conn, error) {
	stream, err := s.yamux.AcceptStream()
	if err != nil {
		return nil, jerr.Wrap(jerr.PeerUnreachable, "mesh", "AcceptStream", err)
	}
	return stream, nil
}

// Close tears down the multiplexed connection.
func (s *Session) Close() error {
	return s.yamux.Close()
}
