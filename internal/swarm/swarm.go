// Package swarm builds the composite networking behaviour of a splash
// node: a libp2p host running TCP, QUIC and WebSocket transports over
// a noise-secured, multiplexed connection, with an embedded Kademlia
// DHT under the custom protocol "/splash/kad/1". Gossip is layered on
// top by the caller, since go-libp2p-pubsub takes the
// already-constructed host rather than being itself a host option.
package swarm

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ws "github.com/libp2p/go-libp2p/p2p/transport/websocket"
)

// defaultListenAddrs binds tcp/0 on all interfaces, v4 and v6 where
// available, the fallback used when no listen addresses are configured.
var defaultListenAddrs = []string{
	"/ip4/0.0.0.0/tcp/0",
	"/ip6/::/tcp/0",
}

// Swarm bundles the host and its embedded Kademlia instance — the
// single root handle the node kernel holds, reaching sub-behaviours by
// accessor rather than owning any manual cyclic graph.
type Swarm struct {
	Host host.Host
	DHT  *dht.IpfsDHT
}

// New constructs the host with identify + Kademlia + the transport
// stack, in server mode so the node answers DHT queries from others.
func New(ctx context.Context, priv crypto.PrivKey, listenAddrs []string) (*Swarm, error) {
	addrs := listenAddrs
	if len(addrs) == 0 {
		addrs = defaultListenAddrs
	}

	var kad *dht.IpfsDHT

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(addrs...),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.Transport(ws.New),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Routing(func(h host.Host) (routing.PeerRouting, error) {
			var err error
			kad, err = dht.New(ctx, h,
				dht.Mode(dht.ModeServer),
				dht.V1ProtocolOverride(protocol.ID(KadProtocolID)),
			)
			return kad, err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("swarm: create libp2p host: %w", err)
	}
	if kad == nil {
		h.Close()
		return nil, fmt.Errorf("swarm: dht was not constructed")
	}

	return &Swarm{Host: h, DHT: kad}, nil
}

// Close shuts down the DHT and then the host.
func (s *Swarm) Close() error {
	if s.DHT != nil {
		_ = s.DHT.Close()
	}
	return s.Host.Close()
}
