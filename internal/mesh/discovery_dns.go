package mesh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// dnsDiscoveryInterval is how often the SRV record set is re-queried.
const dnsDiscoveryInterval = 30 * time.Second

// DNSDiscovery resolves peers via DNS SRV records, the second required
// discovery method alongside local multicast (§4.8).
type DNSDiscovery struct {
	mesh     *Mesh
	service  string // fully qualified SRV query name, e.g. "_jarvis._tcp.mesh.example.com."
	resolver string // resolver address, e.g. "127.0.0.1:53"
	client   *dns.Client
}

// NewDNSDiscovery builds a discovery backend that queries service against
// resolver.
func NewDNSDiscovery(m *Mesh, service, resolver string) *DNSDiscovery {
	return &DNSDiscovery{
		mesh:     m,
		service:  service,
		resolver: resolver,
		client:   new(dns.Client),
	}
}

// Run blocks until ctx is cancelled, re-resolving the SRV record set on a
// timer and feeding discoveries into mesh.AddPeer.
func (d *DNSDiscovery) Run(ctx context.Context) error {
	if err := d.resolveOnce(); err != nil {
		return err
	}
	ticker := time.NewTicker(dnsDiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = d.resolveOnce()
		}
	}
}

func (d *DNSDiscovery) resolveOnce() error {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(d.service), dns.TypeSRV)

	resp, _, err := d.client.Exchange(msg, d.resolver)
	if err != nil {
		return jerr.Wrap(jerr.Backend, "mesh", "DNSDiscovery.resolveOnce", err)
	}

	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		target := strings.TrimSuffix(srv.Target, ".")
		peerID := target
		d.mesh.AddPeer(PeerRecord{
			ID:      peerID,
			Address: fmt.Sprintf("%s:%d", target, srv.Port),
		})
	}
	return nil
}
