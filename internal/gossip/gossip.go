// Package gossip implements the offer pub/sub topic: strict message
// signing, a message-id function equal to the offer digest (so
// identical offers collapse to one delivery), and a validator hook
// that gates messages on the offer shape predicate before they ever
// reach the mesh or the kernel's event bus.
package gossip

import (
	"context"
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pubsub_pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dexie-space/splash/internal/offer"
	"github.com/dexie-space/splash/internal/swarm"
)

// Router owns the single gossip topic every offer flows through.
type Router struct {
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

// New creates a GossipSub instance in strict-signing mode with the
// offer-digest message-id function. It does not subscribe to any
// topic; call Subscribe once at startup.
func New(ctx context.Context, h host.Host) (*Router, error) {
	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageIdFn(messageIDFn),
		pubsub.WithMessageSignaturePolicy(pubsub.StrictSign),
	)
	if err != nil {
		return nil, fmt.Errorf("gossip: create gossipsub: %w", err)
	}
	return &Router{ps: ps}, nil
}

// messageIDFn derives a message's gossip id from the offer digest of its data.
func messageIDFn(pmsg *pubsub_pb.Message) string {
	d := offer.Compute(string(pmsg.GetData()))
	return string(d[:])
}

// Subscribe joins the single fixed splash topic, registers the
// validator hook, and subscribes. It must be called exactly once.
func (r *Router) Subscribe() error {
	topic, err := r.ps.Join(swarm.GossipTopic)
	if err != nil {
		return fmt.Errorf("gossip: join topic: %w", err)
	}

	if err := r.ps.RegisterTopicValidator(swarm.GossipTopic, validate); err != nil {
		return fmt.Errorf("gossip: register validator: %w", err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("gossip: subscribe: %w", err)
	}

	r.topic = topic
	r.sub = sub
	return nil
}

// validate is the topic validator hook: accept iff the message data
// has the shape of a valid offer, else reject. Rejected messages are
// dropped by the library before mesh forwarding and before Next()
// ever returns them to the kernel.
func validate(_ context.Context, _ peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
	if !offer.IsValid(string(msg.GetData())) {
		return pubsub.ValidationReject
	}
	return pubsub.ValidationAccept
}

// Publish broadcasts text to the topic as raw UTF-8 bytes, with no
// wrapping and no length prefix.
func (r *Router) Publish(ctx context.Context, text string) error {
	if r.topic == nil {
		return fmt.Errorf("gossip: publish before subscribe")
	}
	return r.topic.Publish(ctx, []byte(text))
}

// Next blocks until the next validated message arrives, or ctx is done.
func (r *Router) Next(ctx context.Context) (*pubsub.Message, error) {
	if r.sub == nil {
		return nil, fmt.Errorf("gossip: next before subscribe")
	}
	return r.sub.Next(ctx)
}

// ListPeers returns the peers currently meshed on the splash topic.
func (r *Router) ListPeers() []peer.ID {
	return r.ps.ListPeers(swarm.GossipTopic)
}

// Close cancels the subscription and closes the topic handle.
func (r *Router) Close() {
	if r.sub != nil {
		r.sub.Cancel()
	}
	if r.topic != nil {
		_ = r.topic.Close()
	}
}
