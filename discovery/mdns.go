// Package discovery finds and remembers other collabtext agents on the
// local network, for the DISCOVERY module's LAN peer-mesh mode. Grounded
// on the teacher's agent/main.go startDiscovery, which registers an
// mDNS service and browses for others but only logs what it finds; this
// package turns that browse loop into a Peer feed a caller can dial.
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/grandcat/zeroconf"
)

// ServiceName is the mDNS service type collabtext agents advertise and
// browse for, matching the teacher's hardcoded "_collabtext._tcp".
const ServiceName = "_collabtext._tcp"

// Peer is one agent discovered on the LAN.
type Peer struct {
	Instance string
	Addr     string
	Port     int
}

// Advertise registers this agent's websocket port on the LAN via mDNS
// under serviceName and keeps the registration alive until ctx is
// cancelled, mirroring the teacher's zeroconf.Register call.
func Advertise(ctx context.Context, serviceName string, port int) error {
	host, err := os.Hostname()
	if err != nil {
		host = "agent"
	}
	server, err := zeroconf.Register(
		fmt.Sprintf("CollabText-%s", host),
		serviceName,
		"local.",
		port,
		[]string{"txtv=0", "lo=1", "la=2"},
		nil,
	)
	if err != nil {
		return fmt.Errorf("discovery: register mdns service: %w", err)
	}
	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()
	return nil
}

// Browse resolves peers advertising serviceName until ctx is cancelled,
// calling onPeer for each one found. Unlike the teacher's one-shot
// 15-second browse, Browse is meant to run for the agent's whole
// lifetime so that peers that join later are still discovered.
func Browse(ctx context.Context, serviceName string, onPeer func(Peer)) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("discovery: new mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			addr := peerAddr(entry)
			if addr == "" {
				log.Printf("discovery: peer %s has no usable address", entry.Instance)
				continue
			}
			onPeer(Peer{Instance: entry.Instance, Addr: addr, Port: entry.Port})
		}
	}()

	if err := resolver.Browse(ctx, serviceName, "local.", entries); err != nil {
		return fmt.Errorf("discovery: browse mdns: %w", err)
	}
	<-ctx.Done()
	return nil
}

// peerAddr prefers an IPv4 address, falling back to IPv6, the same
// preference order implied by the teacher logging entry.AddrIPv4[0].
func peerAddr(entry *zeroconf.ServiceEntry) string {
	if len(entry.AddrIPv4) > 0 {
		return entry.AddrIPv4[0].String()
	}
	if len(entry.AddrIPv6) > 0 {
		return entry.AddrIPv6[0].String()
	}
	return ""
}

// dialAddr formats a Peer's host:port for net/http or net.Dial.
func dialAddr(p Peer) string {
	return net.JoinHostPort(p.Addr, fmt.Sprintf("%d", p.Port))
}
