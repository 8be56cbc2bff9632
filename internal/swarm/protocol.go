package swarm

// Protocol identifiers placed on the wire.
const (
	// KadProtocolID is the custom Kademlia protocol, overriding the
	// library's default "/<prefix>/kad/<version>" composition so the
	// exact string below is what peers negotiate.
	KadProtocolID = "/splash/kad/1"

	// GossipTopic is the single fixed pub/sub topic every offer flows through.
	GossipTopic = "/splash/offers/1"

	// identifyProtocolIDWant documents the identify protocol id splash
	// nodes are meant to negotiate. go-libp2p does not expose a
	// supported host option to override the built-in identify
	// service's wire protocol string (unlike Kademlia's explicit
	// V1ProtocolOverride); see DESIGN.md for the resulting, deliberate
	// deviation.
	identifyProtocolIDWant = "/splash/id/1"
)
