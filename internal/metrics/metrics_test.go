package metrics

import "testing"

func TestNewMetrics(t *testing.T) {
	m := New("0.1.0", "go1.26.0")
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Registry == nil {
		t.Fatal("Registry is nil")
	}
}

func TestMetricsIsolation(t *testing.T) {
	m1 := New("0.1.0", "go1.26.0")
	m2 := New("0.2.0", "go1.26.0")

	m1.OffersReceivedTotal.Inc()

	families, err := m2.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "splash_offers_received_total" {
			for _, metric := range f.GetMetric() {
				if metric.GetCounter().GetValue() != 0 {
					t.Error("m2 registry saw m1 counter value; registries are not isolated")
				}
			}
		}
	}
}

func TestMetricsFamiliesPresent(t *testing.T) {
	m := New("test", "go1.26.0")

	m.PeerCount.WithLabelValues("tcp").Set(3)
	m.OffersBroadcastTotal.WithLabelValues("ok").Inc()
	m.OffersReceivedTotal.Inc()
	m.EventBusSubscribers.Set(2)
	m.EventBusDroppedTotal.Inc()
	m.GossipPeers.WithLabelValues("/splash/offers/1").Set(1)
	m.MDNSDiscoveredTotal.WithLabelValues("connected").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	expected := map[string]bool{
		"splash_connected_peers":         false,
		"splash_offers_broadcast_total":  false,
		"splash_offers_received_total":   false,
		"splash_eventbus_subscribers":    false,
		"splash_eventbus_dropped_total":  false,
		"splash_gossip_mesh_peers":       false,
		"splash_mdns_discovered_total":   false,
		"splash_info":                    false,
	}

	for _, f := range families {
		if _, ok := expected[f.GetName()]; ok {
			expected[f.GetName()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric family %q not found in gathered output", name)
		}
	}
}

func TestMetricsBuildInfo(t *testing.T) {
	m := New("1.2.3", "go1.26.0")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	for _, f := range families {
		if f.GetName() != "splash_info" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "version" && l.GetValue() != "1.2.3" {
					t.Errorf("version label = %q, want 1.2.3", l.GetValue())
				}
			}
		}
	}
}
