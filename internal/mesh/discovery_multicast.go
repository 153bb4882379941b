package mesh

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// multicastAnnounceInterval is how often this node re-announces itself on
// the local multicast group.
const multicastAnnounceInterval = 10 * time.Second

// multicastDatagram is the payload sent on the multicast group; it carries
// only discovery metadata, never message content.
type multicastDatagram struct {
	SelfAnnouncement
}

// MulticastDiscovery periodically announces this node and listens for
// announcements from other nodes on the same local network segment,
// feeding discoveries into mesh.AddPeer.
type MulticastDiscovery struct {
	mesh      *Mesh
	groupAddr *net.UDPAddr
}

// NewMulticastDiscovery builds a discovery backend bound to groupAddr
// (e.g. "239.211.0.1:9131", an address in the administratively-scoped
// multicast range).
func NewMulticastDiscovery(m *Mesh, group string) (*MulticastDiscovery, error) {
	addr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, jerr.Wrap(jerr.BadArgs, "mesh", "NewMulticastDiscovery", err)
	}
	return &MulticastDiscovery{mesh: m, groupAddr: addr}, nil
}

// Run blocks until ctx is cancelled, announcing on a timer and handling
// inbound announcements concurrently.
func (d *MulticastDiscovery) Run(ctx context.Context, self SelfAnnouncement) error {
	conn, err := net.ListenMulticastUDP("udp4", nil, d.groupAddr)
	if err != nil {
		return jerr.Wrap(jerr.Backend, "mesh", "MulticastDiscovery.Run", err)
	}
	defer conn.Close()

	go d.announceLoop(ctx, self)

	buf := make([]byte, 4096)
	for {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		d.handleDatagram(buf[:n], self.ID)
	}
}

func (d *MulticastDiscovery) handleDatagram(data []byte, selfID string) {
	var dg multicastDatagram
	if err := json.Unmarshal(data, &dg); err != nil {
		return
	}
	if dg.ID == "" || dg.ID == selfID {
		return
	}
	d.mesh.AddPeer(PeerRecord{
		ID:           dg.ID,
		Address:      dg.Address,
		Fingerprint:  dg.Fingerprint,
		Capabilities: dg.Capabilities,
	})
}

func (d *MulticastDiscovery) announceLoop(ctx context.Context, self SelfAnnouncement) {
	ticker := time.NewTicker(multicastAnnounceInterval)
	defer ticker.Stop()

	send := func() {
		conn, err := net.DialUDP("udp4", nil, d.groupAddr)
		if err != nil {
			return
		}
		defer conn.Close()
		body, err := json.Marshal(multicastDatagram{self})
		if err != nil {
			return
		}
		_, _ = conn.Write(body)
	}

	send()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}
