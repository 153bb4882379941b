package mesh

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// sendRetries / sendRetryBackoff bound how hard Send tries before
// surfacing PeerUnreachable.
const (
	sendRetries      = 3
	sendRetryBackoff = 200 * time.Millisecond
)

// subscription is an internal registration for Subscribe.
type subscription struct {
	filter Filter
	ch     chan PeerMessage
}

// PeerMessage pairs an inbound Message with the peer id it arrived from.
type PeerMessage struct {
	PeerID  string
	Message Message
}

// Mesh owns this node's identity, its known peers, and the authenticated
// sessions used to exchange Messages with them.
type Mesh struct {
	selfID string
	ident  *Identity
	trust  *TrustStore
	log    *slog.Logger

	mu             sync.Mutex
	peers          map[string]*PeerRecord
	sessions       map[string]*Session
	sendSeq        map[string]uint64 // per-peer outbound sequence counter
	seen           map[string]uint64 // per-sender highest sequence seen (dedup)
	subscriptions  []*subscription
	broadcastSent  uint64
	broadcastFails uint64
}

// New builds a Mesh identified by selfID with the given static identity.
func New(selfID string, ident *Identity, trust *TrustStore, log *slog.Logger) *Mesh {
	if log == nil {
		log = slog.Default()
	}
	return &Mesh{
		selfID:   selfID,
		ident:    ident,
		trust:    trust,
		log:      log,
		peers:    make(map[string]*PeerRecord),
		sessions: make(map[string]*Session),
		sendSeq:  make(map[string]uint64),
		seen:     make(map[string]uint64),
	}
}

// Announce advertises this node's identity and capabilities to every peer
// with an attached session by broadcasting a Discovery message.
func (m *Mesh) Announce(ctx context.Context, capabilities []string, address string) error {
	payload, err := json.Marshal(SelfAnnouncement{
		ID:           m.selfID,
		Capabilities: capabilities,
		Fingerprint:  m.ident.Fingerprint(),
		Address:      address,
	})
	if err != nil {
		return jerr.Wrap(jerr.Server, "mesh", "Announce", err)
	}
	m.Broadcast(ctx, Message{Kind: KindDiscovery, Payload: payload})
	return nil
}

// Discover returns a snapshot of every peer currently known to the mesh,
// regardless of discovery method.
func (m *Mesh) Discover() []PeerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PeerRecord, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, *p)
	}
	return out
}

// AddPeer registers or refreshes a discovered peer. Called by discovery
// backends (multicast, DNS-SRV, ...).
func (m *Mesh) AddPeer(rec PeerRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.LastSeen = time.Now()
	m.peers[rec.ID] = &rec
}

// AttachSession registers an already-established authenticated session
// for peerID, used by both the dialing and accepting sides.
func (m *Mesh) AttachSession(peerID string, session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[peerID] = session
}

// Send delivers message to peerID in order relative to this sender's other
// Sends, retrying with backoff before failing with PeerUnreachable.
func (m *Mesh) Send(ctx context.Context, peerID string, message Message) error {
	m.mu.Lock()
	session, ok := m.sessions[peerID]
	m.sendSeq[peerID]++
	message.SenderID = m.selfID
	message.Sequence = m.sendSeq[peerID]
	message.Timestamp = time.Now()
	m.mu.Unlock()

	if !ok {
		return jerr.New(jerr.PeerUnreachable, "mesh", "Send", "no session for peer: "+peerID)
	}

	var lastErr error
	for attempt := 0; attempt < sendRetries; attempt++ {
		if err := m.sendOnce(session, message); err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return jerr.Wrap(jerr.Cancelled, "mesh", "Send", ctx.Err())
			case <-time.After(sendRetryBackoff):
			}
			continue
		}
		return nil
	}
	return jerr.Wrap(jerr.PeerUnreachable, "mesh", "Send", lastErr)
}

func (m *Mesh) sendOnce(session *Session, message Message) error {
	stream, err := session.OpenStream()
	if err != nil {
		return err
	}
	defer stream.Close()
	return json.NewEncoder(stream).Encode(message)
}

// Broadcast sends message to every known session. It is best-effort: no
// per-peer error reaches the caller, only the broadcastFails counter.
func (m *Mesh) Broadcast(ctx context.Context, message Message) {
	m.mu.Lock()
	peerIDs := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		peerIDs = append(peerIDs, id)
	}
	m.mu.Unlock()

	for _, id := range peerIDs {
		m.mu.Lock()
		m.broadcastSent++
		m.mu.Unlock()
		if err := m.Send(ctx, id, message); err != nil {
			m.mu.Lock()
			m.broadcastFails++
			m.mu.Unlock()
			m.log.Warn("mesh: broadcast to peer failed", "peer_id", id, "error", err)
		}
	}
}

// BroadcastCounters reports best-effort broadcast delivery counts.
func (m *Mesh) BroadcastCounters() (sent, failed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broadcastSent, m.broadcastFails
}

// Subscribe registers a channel that receives every inbound message
// matching filter (nil matches everything). The returned channel is
// closed when ctx is done.
func (m *Mesh) Subscribe(ctx context.Context, filter Filter) <-chan PeerMessage {
	sub := &subscription{filter: filter, ch: make(chan PeerMessage, 64)}
	m.mu.Lock()
	m.subscriptions = append(m.subscriptions, sub)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subscriptions {
			if s == sub {
				m.subscriptions = append(m.subscriptions[:i], m.subscriptions[i+1:]...)
				break
			}
		}
		close(sub.ch)
	}()
	return sub.ch
}

// deliver dedups by (SenderID, Sequence) and fans the message out to every
// matching subscription. It is called by the per-session receive loop.
func (m *Mesh) deliver(peerID string, msg Message) {
	m.mu.Lock()
	highest := m.seen[msg.SenderID]
	if msg.Sequence != 0 && msg.Sequence <= highest {
		m.mu.Unlock()
		return // duplicate or out-of-order replay
	}
	if msg.Sequence > highest {
		m.seen[msg.SenderID] = msg.Sequence
	}
	subs := append([]*subscription{}, m.subscriptions...)
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.filter != nil && !sub.filter(peerID, msg) {
			continue
		}
		select {
		case sub.ch <- PeerMessage{PeerID: peerID, Message: msg}:
		default:
			m.log.Warn("mesh: dropping message for slow subscriber", "peer_id", peerID)
		}
	}
}

// ReceiveLoop reads messages from session's accepted streams until ctx is
// cancelled or the session errors, dispatching each to deliver.
func (m *Mesh) ReceiveLoop(ctx context.Context, session *Session) error {
	for {
		stream, err := session.AcceptStream()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return jerr.Wrap(jerr.PeerUnreachable, "mesh", "ReceiveLoop", err)
		}
		go m.handleStream(session.PeerID, stream)
	}
}

func (m *Mesh) handleStream(peerID string, stream net.Conn) {
	defer stream.Close()
	var msg Message
	if err := json.NewDecoder(stream).Decode(&msg); err != nil {
		m.log.Warn("mesh: malformed message from peer", "peer_id", peerID, "error", err)
		return
	}
	m.deliver(peerID, msg)
}
