package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInOrder(t *testing.T) {
	b := New(4)
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Publish(Event{Kind: Initialized, PeerID: "p1"})
	b.Publish(Event{Kind: PeerConnected, PeerID: "p2"})

	first := <-ch
	second := <-ch
	require.Equal(t, Initialized, first.Kind)
	require.Equal(t, PeerConnected, second.Kind)
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	b := New(2)
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Publish(Event{Kind: Initialized, PeerID: "1"})
	b.Publish(Event{Kind: PeerConnected, PeerID: "2"})
	b.Publish(Event{Kind: PeerDisconnected, PeerID: "3"})

	// The oldest (Initialized/"1") should have been evicted.
	first := <-ch
	second := <-ch
	require.Equal(t, PeerConnected, first.Kind)
	require.Equal(t, PeerDisconnected, second.Kind)

	select {
	case <-ch:
		t.Fatal("expected no third event")
	default:
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New(1)
	_, unsubscribe := b.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(Event{Kind: OfferReceived, Text: "offer1xxxxxxxxxxxxxxxxxxxx"})
		}
		close(done)
	}()

	select {
	case <-done:
	default:
	}
	<-done
}

func TestOnDropFiresOnEviction(t *testing.T) {
	b := New(1)
	drops := 0
	b.OnDrop = func() { drops++ }
	_, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Publish(Event{Kind: Initialized})
	b.Publish(Event{Kind: PeerConnected})
	require.Equal(t, 1, drops)
}

func TestOnSubscriberChangeTracksCount(t *testing.T) {
	b := New(4)
	var counts []int
	b.OnSubscriberChange = func(n int) { counts = append(counts, n) }

	_, unsubscribe1 := b.Subscribe()
	_, unsubscribe2 := b.Subscribe()
	unsubscribe1()
	unsubscribe2()

	require.Equal(t, []int{1, 2, 1, 0}, counts)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(4)
	ch, unsubscribe := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())
	unsubscribe()
	require.Equal(t, 0, b.SubscriberCount())

	b.Publish(Event{Kind: Initialized})
	select {
	case <-ch:
		t.Fatal("unsubscribed channel should not receive further events")
	default:
	}
}
