package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dexie-space/splash/internal/eventbus"
)

// webhookTimeout bounds each individual egress POST.
const webhookTimeout = 10 * time.Second

// Egress forwards every OfferReceived event to a configured webhook
// URL as a POST with a JSON body {"offer": text}, mirroring the
// ingress endpoint's wire format. A failed delivery is logged and
// dropped; egress never blocks the node's event loop since it only
// ever reads from its own subscriber channel.
func Egress(ctx context.Context, events <-chan eventbus.Event, webhookURL string, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	client := &http.Client{Timeout: webhookTimeout}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Kind != eventbus.OfferReceived {
				continue
			}
			if err := postOffer(ctx, client, webhookURL, e.Text); err != nil {
				log.Warn("offer hook delivery failed", "err", err)
			}
		}
	}
}

func postOffer(ctx context.Context, client *http.Client, url, text string) error {
	reqCtx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	body, err := json.Marshal(submitRequest{Offer: text})
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// StdoutSink writes a one-line record of every bus event to stdout,
// the alternative egress path for operators running without a webhook.
func StdoutSink(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintln(os.Stdout, formatEvent(e))
		}
	}
}

func formatEvent(e eventbus.Event) string {
	switch e.Kind {
	case eventbus.Initialized:
		return fmt.Sprintf("initialized peer_id=%s", e.PeerID)
	case eventbus.NewListenAddress:
		return fmt.Sprintf("listening addr=%s", e.Addr)
	case eventbus.PeerConnected:
		return fmt.Sprintf("peer_connected peer_id=%s", e.PeerID)
	case eventbus.PeerDisconnected:
		return fmt.Sprintf("peer_disconnected peer_id=%s", e.PeerID)
	case eventbus.OfferReceived:
		return fmt.Sprintf("offer_received %s", e.Text)
	case eventbus.OfferBroadcasted:
		return fmt.Sprintf("offer_broadcasted %s", e.Text)
	case eventbus.OfferBroadcastFailed:
		return fmt.Sprintf("offer_broadcast_failed reason=%q", e.Reason)
	default:
		return fmt.Sprintf("unknown_event kind=%d", e.Kind)
	}
}
