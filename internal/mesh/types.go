// Package mesh implements the Agent Mesh (C8): peer discovery and
// authenticated message passing between Jarvis nodes over a single
// multiplexed, connection-oriented TCP transport per peer pair. The
// handshake authenticates each peer; the connection itself is not
// encrypted.
package mesh

import (
	"encoding/json"
	"time"
)

// MessageKind classifies a Message's Payload.
type MessageKind string

const (
	KindDiscovery     MessageKind = "Discovery"
	KindHeartbeat     MessageKind = "Heartbeat"
	KindTaskDispatch  MessageKind = "TaskDispatch"
	KindTaskResult    MessageKind = "TaskResult"
	KindMetricsSample MessageKind = "MetricsSample"
	KindAlert         MessageKind = "Alert"
)

// Message is the wire envelope exchanged between peers. Duplicate
// detection is by (SenderID, Sequence); ordering within one sender's
// stream is FIFO.
type Message struct {
	Kind      MessageKind     `json:"kind"`
	SenderID  string          `json:"sender_id"`
	Sequence  uint64          `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// PeerRecord is the mesh's view of a known remote node.
type PeerRecord struct {
	ID           string
	Address      string
	Fingerprint  string
	Capabilities []string
	LastSeen     time.Time
	RTT          time.Duration
}

// SelfAnnouncement is what announce() advertises about this node.
type SelfAnnouncement struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
	Fingerprint  string   `json:"fingerprint"`
	Address      string   `json:"address"`
}

// Subscription filter predicate; a nil filter matches everything.
type Filter func(peerID string, msg Message) bool
