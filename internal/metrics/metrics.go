// Package metrics exposes the kernel's observable state as Prometheus
// collectors on an isolated registry, so multiple instances in one
// process never collide on global metric registration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Splash Prometheus collector. Uses an isolated
// prometheus.Registry so these metrics never collide with the default
// global registry; each test gets its own Metrics instance.
type Metrics struct {
	Registry *prometheus.Registry

	PeerCount *prometheus.GaugeVec

	OffersBroadcastTotal *prometheus.CounterVec
	OffersReceivedTotal  prometheus.Counter

	EventBusSubscribers  prometheus.Gauge
	EventBusDroppedTotal prometheus.Counter

	GossipPeers *prometheus.GaugeVec

	MDNSDiscoveredTotal *prometheus.CounterVec

	BuildInfo *prometheus.GaugeVec
}

// New creates a Metrics instance with every collector registered on a
// fresh registry. version and goVersion are recorded as labels on the
// splash_info gauge.
func New(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		PeerCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "splash_connected_peers",
				Help: "Number of currently connected libp2p peers.",
			},
			[]string{"transport"},
		),

		OffersBroadcastTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splash_offers_broadcast_total",
				Help: "Total offers submitted for broadcast, by outcome.",
			},
			[]string{"result"},
		),
		OffersReceivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "splash_offers_received_total",
				Help: "Total validated offers received from the gossip mesh.",
			},
		),

		EventBusSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "splash_eventbus_subscribers",
				Help: "Number of current event bus subscribers.",
			},
		),
		EventBusDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "splash_eventbus_dropped_total",
				Help: "Total events evicted from a subscriber buffer before delivery.",
			},
		),

		GossipPeers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "splash_gossip_mesh_peers",
				Help: "Number of peers meshed on the offers topic.",
			},
			[]string{"topic"},
		),

		MDNSDiscoveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splash_mdns_discovered_total",
				Help: "Total mDNS discovery events by result.",
			},
			[]string{"result"},
		),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "splash_info",
				Help: "Build information for the running splash instance.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.PeerCount,
		m.OffersBroadcastTotal,
		m.OffersReceivedTotal,
		m.EventBusSubscribers,
		m.EventBusDroppedTotal,
		m.GossipPeers,
		m.MDNSDiscoveredTotal,
		m.BuildInfo,
	)

	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	return m
}

// Handler returns an http.Handler that serves the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
