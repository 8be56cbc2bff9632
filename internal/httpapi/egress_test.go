package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dexie-space/splash/internal/eventbus"
)

func TestEgressPostsOfferReceivedEvents(t *testing.T) {
	received := make(chan submitRequest, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- req
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan eventbus.Event, 4)
	go Egress(ctx, events, ts.URL, nil)

	events <- eventbus.Event{Kind: eventbus.PeerConnected, PeerID: "ignored"}
	events <- eventbus.Event{Kind: eventbus.OfferReceived, Text: "offer1qpzry"}

	select {
	case req := <-received:
		if req.Offer != "offer1qpzry" {
			t.Errorf("Offer = %q", req.Offer)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not called")
	}
}

func TestFormatEventCoversEveryKind(t *testing.T) {
	kinds := []eventbus.Kind{
		eventbus.Initialized,
		eventbus.NewListenAddress,
		eventbus.PeerConnected,
		eventbus.PeerDisconnected,
		eventbus.OfferReceived,
		eventbus.OfferBroadcasted,
		eventbus.OfferBroadcastFailed,
	}
	for _, k := range kinds {
		if got := formatEvent(eventbus.Event{Kind: k}); got == "" {
			t.Errorf("formatEvent(%v) returned empty string", k)
		}
	}
}
