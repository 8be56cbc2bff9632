// Package httpapi implements the kernel's HTTP ingress and egress
// surfaces: a submission endpoint that turns a POSTed offer into a
// BroadcastOffer command, and a metrics endpoint serving the
// Prometheus registry, each as a stdlib http.ServeMux behind a single
// http.Server with fixed read/write timeouts.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dexie-space/splash/internal/metrics"
	"github.com/dexie-space/splash/internal/node"
)

// maxOfferBodySize bounds the submission endpoint's JSON request body.
const maxOfferBodySize = 1 << 20 // 1 MB, matching offer.MaxLength with headroom.

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// Server serves POST / (offer submission) and, when metrics is
// non-nil, GET /metrics.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	log        *slog.Logger
}

// NewSubmissionServer binds addr and serves offer submissions onto cmds.
func NewSubmissionServer(addr string, cmds chan<- node.BroadcastOffer, m *metrics.Metrics, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("httpapi: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /", rateLimit(handleSubmit(cmds, log)))
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	s := &Server{
		httpServer: &http.Server{
			Handler:      mux,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		listener: listener,
		log:      log,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("httpapi server error", "err", err)
		}
	}()

	log.Info("offer submission listening", "addr", addr)
	return s, nil
}

// NewMetricsServer binds addr and serves only the Prometheus metrics endpoint.
func NewMetricsServer(addr string, m *metrics.Metrics, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("httpapi: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())

	s := &Server{
		httpServer: &http.Server{
			Handler:      mux,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		listener: listener,
		log:      log,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "err", err)
		}
	}()

	log.Info("metrics listening", "addr", addr)
	return s, nil
}

// Addr returns the bound listen address, useful when addr was ":0".
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close gracefully shuts the server down.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// submitRequest is the ingress wire format: {"offer": "offer1..."}.
type submitRequest struct {
	Offer string `json:"offer"`
}

func handleSubmit(cmds chan<- node.BroadcastOffer, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxOfferBodySize))
		if err := dec.Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		select {
		case cmds <- node.BroadcastOffer{Text: req.Offer}:
		case <-r.Context().Done():
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
