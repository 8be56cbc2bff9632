package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/zeroconf/v2"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dexie-space/splash/internal/metrics"
)

// mdnsServiceName is the DNS-SD service type used for LAN discovery. A
// fixed name for all Splash nodes; authorization or network isolation
// beyond this is out of scope for the kernel.
const mdnsServiceName = "_splash._udp"

const mdnsConnectTimeout = 5 * time.Second

// StartMDNS advertises this host on the LAN and dials peers it
// discovers there. This supplements, but never replaces, the DHT and
// introducer seed paths — the kernel never treats any single discovery
// source as authoritative. Failures are logged and non-fatal. m is
// optional; when nil, discovery dials are simply not recorded.
func StartMDNS(ctx context.Context, h host.Host, log *slog.Logger, m *metrics.Metrics) {
	port := tcpListenPort(h)
	if port == 0 {
		log.Warn("mdns: no tcp listen address to advertise")
		return
	}

	server, err := zeroconf.Register(h.ID().String(), mdnsServiceName, "local.", port, nil, nil)
	if err != nil {
		log.Warn("mdns: register failed", "err", err)
		return
	}
	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	go func() {
		for entry := range entries {
			dialDiscoveredPeer(ctx, h, entry, log, m)
		}
	}()

	go func() {
		if err := zeroconf.Browse(ctx, mdnsServiceName, "local.", entries); err != nil {
			log.Warn("mdns: browse failed", "err", err)
		}
	}()
}

func tcpListenPort(h host.Host) int {
	for _, a := range h.Addrs() {
		v, err := a.ValueForProtocol(ma.P_TCP)
		if err != nil {
			continue
		}
		if port, err := strconv.Atoi(v); err == nil && port != 0 {
			return port
		}
	}
	return 0
}

func dialDiscoveredPeer(ctx context.Context, h host.Host, entry *zeroconf.ServiceEntry, log *slog.Logger, m *metrics.Metrics) {
	if entry == nil || entry.Instance == h.ID().String() {
		return
	}
	pid, err := peer.Decode(entry.Instance)
	if err != nil || pid == h.ID() {
		return
	}

	info := peer.AddrInfo{ID: pid}
	addAddrs := func(ips []net.IP, proto string) {
		for _, ip := range ips {
			addr, err := ma.NewMultiaddr(fmt.Sprintf("/%s/%s/tcp/%d", proto, ip.String(), entry.Port))
			if err != nil {
				continue
			}
			info.Addrs = append(info.Addrs, addr)
		}
	}
	addAddrs(entry.AddrIPv4, "ip4")
	addAddrs(entry.AddrIPv6, "ip6")
	if len(info.Addrs) == 0 {
		return
	}

	connectCtx, cancel := context.WithTimeout(ctx, mdnsConnectTimeout)
	defer cancel()
	if err := h.Connect(connectCtx, info); err != nil {
		log.Debug("mdns: dial failed", "peer", pid.String(), "err", err)
		recordMDNSDiscovery(m, "failed")
		return
	}
	recordMDNSDiscovery(m, "connected")
}

func recordMDNSDiscovery(m *metrics.Metrics, result string) {
	if m == nil {
		return
	}
	m.MDNSDiscoveredTotal.WithLabelValues(result).Inc()
}
