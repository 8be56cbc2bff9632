// Package node implements the kernel's event/command dispatcher: the
// single cooperative task that owns the swarm, drives startup, and
// bridges network events and external commands onto the event bus.
//
// All mutation of peer counts, the external-address set, and the
// Kademlia routing table happens inside the Run goroutine. Producer
// goroutines (event-bus subscriptions, the gossip read loop) only ever
// send onto the internal fan-in channel; seed dials and mDNS discovery
// act on the host alone. None of them touch node state directly.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/protocol/identify"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dexie-space/splash/internal/eventbus"
	"github.com/dexie-space/splash/internal/gossip"
	"github.com/dexie-space/splash/internal/identity"
	"github.com/dexie-space/splash/internal/introducer"
	"github.com/dexie-space/splash/internal/metrics"
	"github.com/dexie-space/splash/internal/offer"
	"github.com/dexie-space/splash/internal/swarm"
)

// houseKeepingInterval is the routing-table refresh cadence.
const houseKeepingInterval = 60 * time.Second

// dialTimeout bounds each individual seed dial attempt and each gossip publish.
const dialTimeout = 10 * time.Second

// externalAddrConfirmations is how many distinct peers must report the
// same observed address before the kernel treats it as external.
const externalAddrConfirmations = 2

// Config holds the kernel's startup options.
type Config struct {
	ListenAddrs  []string
	KnownPeers   []string
	IdentityPath string
	Testnet      bool

	// EventBufferSize sizes each event-bus subscriber's buffer. 0 uses eventbus.DefaultCapacity.
	EventBufferSize int

	// Metrics is optional; when nil, the kernel simply skips recording.
	Metrics *metrics.Metrics
}

// BroadcastOffer is the command channel's single variant.
type BroadcastOffer struct {
	Text string
}

// Node is the kernel: it owns the swarm and runs as one cooperative task.
type Node struct {
	cfg Config
	log *slog.Logger

	swarm  *swarm.Swarm
	router *gossip.Router
	bus    *eventbus.Bus

	resolver *introducer.Resolver

	peerCount int
	observed  map[string]map[peer.ID]struct{}
	external  map[string]struct{}

	bootstrapping bool
}

// internalEventKind tags the fan-in channel's tagged union.
type internalEventKind int

const (
	evConnected internalEventKind = iota
	evDisconnected
	evNewListenAddr
	evIdentifyCompleted
	evGossipMessage
)

type internalEvent struct {
	kind internalEventKind

	peerID peer.ID
	addr   ma.Multiaddr

	listenAddrs  []ma.Multiaddr
	observedAddr ma.Multiaddr

	msgData []byte
	msgFrom peer.ID
}

// New constructs a Node. It does not yet touch the network; call Run
// to execute the startup sequence and enter the main loop.
func New(cfg Config, log *slog.Logger) *Node {
	if log == nil {
		log = slog.Default()
	}
	n := &Node{
		cfg:      cfg,
		log:      log,
		bus:      eventbus.New(cfg.EventBufferSize),
		resolver: introducer.New(),
		observed: make(map[string]map[peer.ID]struct{}),
		external: make(map[string]struct{}),
	}
	if cfg.Metrics != nil {
		n.bus.OnDrop = cfg.Metrics.EventBusDroppedTotal.Inc
		n.bus.OnSubscriberChange = func(count int) {
			cfg.Metrics.EventBusSubscribers.Set(float64(count))
		}
	}
	return n
}

// Events subscribes to the node's event bus.
func (n *Node) Events() (<-chan eventbus.Event, func()) {
	return n.bus.Subscribe()
}

// PeerCount returns the current connected-peer count. Safe to call
// only after Run has returned Initialized, and only for diagnostics —
// it is not synchronized against the main loop by design, matching the
// single-writer model; callers needing a consistent read should listen
// to the event bus instead.
func (n *Node) PeerCount() int { return n.peerCount }

// Run executes the kernel's startup sequence and then the main select
// loop until ctx is canceled or cmds is closed.
func (n *Node) Run(ctx context.Context, cmds <-chan BroadcastOffer) error {
	// 1. Obtain the private key.
	priv, err := identity.LoadOrCreate(n.cfg.IdentityPath)
	if err != nil {
		return fmt.Errorf("node: fatal startup: %w", err)
	}

	// 2 & 3. Build the swarm and bind listen addresses (defaulting happens inside swarm.New).
	sw, err := swarm.New(ctx, priv, n.cfg.ListenAddrs)
	if err != nil {
		return fmt.Errorf("node: fatal startup: %w", err)
	}
	n.swarm = sw
	defer sw.Close()

	router, err := gossip.New(ctx, sw.Host)
	if err != nil {
		return fmt.Errorf("node: fatal startup: %w", err)
	}
	n.router = router

	// 4. Subscribe to the single gossip topic.
	if err := router.Subscribe(); err != nil {
		return fmt.Errorf("node: fatal startup: %w", err)
	}
	defer router.Close()

	internal := make(chan internalEvent, 256)
	subCtx, cancelSubs := context.WithCancel(ctx)
	defer cancelSubs()

	if err := n.wireSwarmEvents(subCtx, internal); err != nil {
		return fmt.Errorf("node: fatal startup: %w", err)
	}
	go n.readGossipLoop(subCtx, internal)

	// 5. Seed the DHT: dial known_peers, or fall back to the introducer.
	n.seed(ctx)

	// Supplemental LAN discovery (never authoritative).
	swarm.StartMDNS(subCtx, sw.Host, n.log, n.cfg.Metrics)

	localID := sw.Host.ID()

	// 6. Emit Initialized exactly once, before any other event.
	n.bus.Publish(eventbus.Event{Kind: eventbus.Initialized, PeerID: localID.String()})
	n.log.Info("node initialized", "peer_id", localID.String())

	// 7. Enter the main select loop.
	ticker := time.NewTicker(houseKeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd, ok := <-cmds:
			if !ok {
				return nil // graceful shutdown: command channel closed.
			}
			n.handleBroadcast(ctx, cmd.Text)

		case ev := <-internal:
			n.handleSwarmEvent(ctx, ev)

		case <-ticker.C:
			n.houseKeeping(ctx)
		}
	}
}

// seed implements startup step 5: dial every known peer, or resolve
// the introducer when none were supplied.
func (n *Node) seed(ctx context.Context) {
	addrs := n.cfg.KnownPeers
	if len(addrs) == 0 {
		resolved, err := n.resolver.Resolve(ctx, n.cfg.Testnet)
		if err != nil {
			n.log.Warn("introducer resolution failed", "err", err)
		}
		for _, a := range resolved {
			addrs = append(addrs, a.String())
		}
	}

	for _, raw := range addrs {
		maddr, err := ma.NewMultiaddr(raw)
		if err != nil {
			n.log.Warn("bad seed address", "addr", raw, "err", err)
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			n.log.Warn("bad seed address", "addr", raw, "err", err)
			continue
		}
		swarm.AddAddress(n.swarm.Host, n.swarm.DHT, info.ID, maddr)

		go func(info peer.AddrInfo) {
			dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
			defer cancel()
			if err := n.swarm.Host.Connect(dialCtx, info); err != nil {
				n.log.Warn("dial failed", "peer", info.ID.String(), "err", err)
			}
		}(*info)
	}

	if len(addrs) > 0 {
		if err := n.swarm.DHT.Bootstrap(ctx); err != nil {
			n.log.Warn("initial dht bootstrap failed", "err", err)
		}
	}
}

// handleBroadcast validates and publishes a BroadcastOffer command,
// emitting the matching outcome event and metric.
func (n *Node) handleBroadcast(ctx context.Context, text string) {
	if !offer.IsValid(text) {
		n.bus.Publish(eventbus.Event{Kind: eventbus.OfferBroadcastFailed, Reason: "invalid offer"})
		n.recordBroadcast("rejected")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := n.router.Publish(pubCtx, text); err != nil {
		n.bus.Publish(eventbus.Event{Kind: eventbus.OfferBroadcastFailed, Reason: err.Error()})
		n.recordBroadcast("error")
		return
	}
	n.bus.Publish(eventbus.Event{Kind: eventbus.OfferBroadcasted, Text: text})
	n.recordBroadcast("ok")
}

func (n *Node) recordBroadcast(result string) {
	if n.cfg.Metrics == nil {
		return
	}
	n.cfg.Metrics.OffersBroadcastTotal.WithLabelValues(result).Inc()
}

// handleSwarmEvent is the single mutation point for peer counts, the
// external-address set, and the routing table.
func (n *Node) handleSwarmEvent(ctx context.Context, ev internalEvent) {
	switch ev.kind {
	case evNewListenAddr:
		n.bus.Publish(eventbus.Event{Kind: eventbus.NewListenAddress, Addr: ev.addr.String()})

	case evConnected:
		n.peerCount++
		if ev.addr != nil {
			swarm.AddAddress(n.swarm.Host, n.swarm.DHT, ev.peerID, ev.addr)
		}
		n.bus.Publish(eventbus.Event{Kind: eventbus.PeerConnected, PeerID: ev.peerID.String()})
		n.recordPeerCount()

	case evDisconnected:
		if n.peerCount > 0 {
			n.peerCount--
		}
		n.bus.Publish(eventbus.Event{Kind: eventbus.PeerDisconnected, PeerID: ev.peerID.String()})
		n.recordPeerCount()

	case evIdentifyCompleted:
		n.handleIdentify(ev)

	case evGossipMessage:
		if ev.msgFrom == n.swarm.Host.ID() {
			return
		}
		n.bus.Publish(eventbus.Event{Kind: eventbus.OfferReceived, Text: string(ev.msgData)})
		if n.cfg.Metrics != nil {
			n.cfg.Metrics.OffersReceivedTotal.Inc()
		}
	}
}

func (n *Node) recordPeerCount() {
	if n.cfg.Metrics == nil {
		return
	}
	n.cfg.Metrics.PeerCount.WithLabelValues("all").Set(float64(n.peerCount))
}

// handleIdentify offers every listen address the remote reports to the
// DHT, and promotes an observed address to "external" once enough
// distinct peers agree on it.
func (n *Node) handleIdentify(ev internalEvent) {
	for _, addr := range ev.listenAddrs {
		swarm.AddAddress(n.swarm.Host, n.swarm.DHT, ev.peerID, addr)
	}

	if ev.observedAddr == nil {
		return
	}
	key := ev.observedAddr.String()
	if _, confirmed := n.external[key]; confirmed {
		return
	}
	reporters, ok := n.observed[key]
	if !ok {
		reporters = make(map[peer.ID]struct{})
		n.observed[key] = reporters
	}
	reporters[ev.peerID] = struct{}{}
	if len(reporters) >= externalAddrConfirmations {
		n.external[key] = struct{}{}
		delete(n.observed, key)
		n.log.Info("external address confirmed", "addr", key)
	}
}

// houseKeeping re-bootstraps the DHT on a timer, if it isn't already
// mid-bootstrap and we have at least one peer, and refreshes the
// gossip mesh size gauge.
func (n *Node) houseKeeping(ctx context.Context) {
	if n.cfg.Metrics != nil {
		n.cfg.Metrics.GossipPeers.WithLabelValues(swarm.GossipTopic).Set(float64(len(n.router.ListPeers())))
	}

	if n.bootstrapping || n.peerCount == 0 {
		return
	}
	n.bootstrapping = true
	go func() {
		defer func() { n.bootstrapping = false }()
		if err := n.swarm.DHT.Bootstrap(ctx); err != nil {
			n.log.Warn("periodic dht bootstrap failed", "err", err)
		}
	}()
}

// wireSwarmEvents subscribes to the libp2p event bus and the network
// notifiee interface, forwarding everything onto the single fan-in
// channel the main loop selects over.
func (n *Node) wireSwarmEvents(ctx context.Context, out chan<- internalEvent) error {
	h := n.swarm.Host

	connSub, err := h.EventBus().Subscribe(new(event.EvtPeerConnectednessChanged))
	if err != nil {
		return fmt.Errorf("subscribe connectedness events: %w", err)
	}
	go forwardConnectedness(ctx, h, connSub, out)

	addrSub, err := h.EventBus().Subscribe(new(event.EvtLocalAddressesUpdated))
	if err != nil {
		return fmt.Errorf("subscribe local address events: %w", err)
	}
	go forwardListenAddrs(ctx, addrSub, out)

	idSub, err := h.EventBus().Subscribe(new(identify.EvtPeerIdentificationCompleted))
	if err != nil {
		return fmt.Errorf("subscribe identify events: %w", err)
	}
	go forwardIdentify(ctx, idSub, out)

	return nil
}

func forwardConnectedness(ctx context.Context, h host.Host, sub event.Subscription, out chan<- internalEvent) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			e := raw.(event.EvtPeerConnectednessChanged)
			switch e.Connectedness {
			case network.Connected:
				var addr ma.Multiaddr
				conns := h.Network().ConnsToPeer(e.Peer)
				if len(conns) > 0 {
					addr = conns[0].RemoteMultiaddr()
				}
				send(ctx, out, internalEvent{kind: evConnected, peerID: e.Peer, addr: addr})
			case network.NotConnected:
				send(ctx, out, internalEvent{kind: evDisconnected, peerID: e.Peer})
			}
		}
	}
}

func forwardListenAddrs(ctx context.Context, sub event.Subscription, out chan<- internalEvent) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			e := raw.(event.EvtLocalAddressesUpdated)
			for _, a := range e.Current {
				if a.Action == event.Added {
					send(ctx, out, internalEvent{kind: evNewListenAddr, addr: a.Address})
				}
			}
		}
	}
}

func forwardIdentify(ctx context.Context, sub event.Subscription, out chan<- internalEvent) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			e := raw.(identify.EvtPeerIdentificationCompleted)
			send(ctx, out, internalEvent{
				kind:         evIdentifyCompleted,
				peerID:       e.Peer,
				listenAddrs:  e.ListenAddrs,
				observedAddr: e.ObservedAddr,
			})
		}
	}
}

// readGossipLoop forwards validated messages from the subscription
// onto the fan-in channel. The validator (internal/gossip) has already
// rejected anything that fails the offer shape predicate by the time
// Next returns, so every message reaching here is a candidate OfferReceived.
func (n *Node) readGossipLoop(ctx context.Context, out chan<- internalEvent) {
	for {
		msg, err := n.router.Next(ctx)
		if err != nil {
			return // context canceled or subscription closed.
		}
		send(ctx, out, internalEvent{kind: evGossipMessage, msgData: msg.Data, msgFrom: msg.ReceivedFrom})
	}
}

func send(ctx context.Context, out chan<- internalEvent, ev internalEvent) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
