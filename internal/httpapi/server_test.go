package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dexie-space/splash/internal/node"
)

func TestSubmitForwardsOfferAsBroadcastCommand(t *testing.T) {
	cmds := make(chan node.BroadcastOffer, 1)
	srv, err := NewSubmissionServer("127.0.0.1:0", cmds, nil, nil)
	if err != nil {
		t.Fatalf("NewSubmissionServer: %v", err)
	}
	defer srv.Close()

	body, err := json.Marshal(submitRequest{Offer: "offer1qpzry"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := http.Post("http://"+srv.Addr()+"/", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	select {
	case cmd := <-cmds:
		if cmd.Text != "offer1qpzry" {
			t.Errorf("cmd.Text = %q", cmd.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command was not forwarded")
	}
}

func TestSubmitRejectsMalformedJSON(t *testing.T) {
	cmds := make(chan node.BroadcastOffer, 1)
	srv, err := NewSubmissionServer("127.0.0.1:0", cmds, nil, nil)
	if err != nil {
		t.Fatalf("NewSubmissionServer: %v", err)
	}
	defer srv.Close()

	resp, err := http.Post("http://"+srv.Addr()+"/", "application/json", bytes.NewBufferString("not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	select {
	case cmd := <-cmds:
		t.Fatalf("unexpected command forwarded: %+v", cmd)
	default:
	}
}

func TestSubmitRejectsOversizedBody(t *testing.T) {
	cmds := make(chan node.BroadcastOffer, 1)
	srv, err := NewSubmissionServer("127.0.0.1:0", cmds, nil, nil)
	if err != nil {
		t.Fatalf("NewSubmissionServer: %v", err)
	}
	defer srv.Close()

	big := bytes.Repeat([]byte("a"), maxOfferBodySize+1)
	body := append([]byte(`{"offer":"`), big...)
	body = append(body, []byte(`"}`)...)

	resp, err := http.Post("http://"+srv.Addr()+"/", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
