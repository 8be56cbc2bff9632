package swarm

import (
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	ma "github.com/multiformats/go-multiaddr"
)

// AddAddress records addr for p in the host's peerstore (the source of
// truth the DHT dials from) and offers p to the Kademlia routing table
// directly. Both are best-effort; a peer the routing table has no room
// for is simply not added, which is not an error at this layer.
func AddAddress(h host.Host, kad *dht.IpfsDHT, p peer.ID, addr ma.Multiaddr) {
	h.Peerstore().AddAddr(p, addr, peerstore.RecentlyConnectedAddrTTL)
	if kad == nil {
		return
	}
	if rt := kad.RoutingTable(); rt != nil {
		_, _ = rt.TryAddPeer(p, false, false)
	}
}
