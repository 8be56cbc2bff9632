package config

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// Config is the unified configuration for a splash node, loaded from
// YAML. CLI flags take precedence over anything set here.
type Config struct {
	Version   int             `yaml:"version,omitempty"`
	Identity  IdentityConfig  `yaml:"identity"`
	Network   NetworkConfig   `yaml:"network"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
	HTTPAPI   HTTPAPIConfig   `yaml:"http_api,omitempty"`
}

// IdentityConfig holds identity-related configuration.
type IdentityConfig struct {
	KeyFile string `yaml:"key_file"`
}

// NetworkConfig holds listen addressing, seed peers, and the testnet toggle.
type NetworkConfig struct {
	ListenAddresses []string `yaml:"listen_addresses"`
	KnownPeers      []string `yaml:"known_peers,omitempty"`
	Testnet         bool     `yaml:"testnet,omitempty"`
}

// TelemetryConfig holds observability settings. Disabled by default (opt-in).
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// MetricsConfig controls Prometheus metrics exposure.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"` // default: "127.0.0.1:9090"
}

// HTTPAPIConfig controls the HTTP offer-submission ingress and the
// offer-received egress webhook.
type HTTPAPIConfig struct {
	ListenOfferSubmission string `yaml:"listen_offer_submission,omitempty"`
	OfferHook             string `yaml:"offer_hook,omitempty"`
}
