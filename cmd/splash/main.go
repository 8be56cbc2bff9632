// Command splash runs the offer-relay kernel: a libp2p host that
// gossips offers over a fixed topic, answers Kademlia DHT queries
// under its own protocol ID, and exposes an HTTP ingress/egress pair
// for local wallet processes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dexie-space/splash/internal/config"
	"github.com/dexie-space/splash/internal/httpapi"
	"github.com/dexie-space/splash/internal/metrics"
	"github.com/dexie-space/splash/internal/node"
)

// Set via -ldflags at build time:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=$(git rev-parse --short HEAD)" -o splash ./cmd/splash
var (
	version = "dev"
	commit  = "unknown"
)

// osExit wraps os.Exit so tests can intercept process termination.
var osExit = os.Exit

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	osExit(1)
}

// stringSlice collects repeated occurrences of a flag into a slice,
// e.g. -k addr1 -k addr2.
type stringSlice []string

func (s *stringSlice) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// configFlagUsage names the default config directory in the --config
// flag's help text, falling back to a generic description if the
// home directory can't be resolved at flag-registration time.
func configFlagUsage() string {
	dir, err := config.DefaultConfigDir()
	if err != nil {
		return "path to a splash.yaml config file"
	}
	return fmt.Sprintf("path to a splash.yaml config file (default: discovered in ., %s, or /etc/splash)", dir)
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	var (
		knownPeers    stringSlice
		listenAddrs   stringSlice
		identityFile  string
		testnet       bool
		offerHook     string
		listenSubmit  string
		listenMetrics string
		configPath    string
		showVersion   bool
	)

	fs := flag.NewFlagSet("splash", flag.ContinueOnError)
	fs.Var(&knownPeers, "k", "known peer multiaddr (repeatable)")
	fs.Var(&knownPeers, "known-peer", "known peer multiaddr (repeatable)")
	fs.Var(&listenAddrs, "l", "listen multiaddr (repeatable)")
	fs.Var(&listenAddrs, "listen-address", "listen multiaddr (repeatable)")
	fs.StringVar(&identityFile, "i", "", "path to the node's persisted identity key")
	fs.StringVar(&identityFile, "identity-file", "", "path to the node's persisted identity key")
	fs.BoolVar(&testnet, "t", false, "use the testnet introducer")
	fs.BoolVar(&testnet, "testnet", false, "use the testnet introducer")
	fs.StringVar(&offerHook, "offer-hook", "", "webhook URL to POST received offers to")
	fs.StringVar(&listenSubmit, "listen-offer-submission", "", "address to serve offer submission on (empty disables it)")
	fs.StringVar(&listenMetrics, "listen-metrics", "", "address to serve Prometheus metrics on (empty disables it)")
	fs.StringVar(&configPath, "config", "", configFlagUsage())
	fs.BoolVar(&showVersion, "V", false, "print version and exit")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		osExit(2)
		return
	}

	if showVersion {
		fmt.Printf("splash %s (%s)\n", version, commit)
		fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return
	}

	cfg := node.Config{
		ListenAddrs:  listenAddrs,
		KnownPeers:   knownPeers,
		IdentityPath: identityFile,
		Testnet:      testnet,
	}

	resolvedConfigPath, err := config.FindConfigFile(configPath)
	switch {
	case err == nil:
		fileCfg, err := config.Load(resolvedConfigPath)
		if err != nil {
			fatal("splash: %v", err)
		}
		config.ResolveConfigPaths(fileCfg, filepath.Dir(resolvedConfigPath))

		if identityFile == "" {
			if err := config.Validate(fileCfg); err != nil {
				fatal("splash: %s: %v", resolvedConfigPath, err)
			}
		}

		if len(cfg.ListenAddrs) == 0 {
			cfg.ListenAddrs = fileCfg.Network.ListenAddresses
		}
		if len(cfg.KnownPeers) == 0 {
			cfg.KnownPeers = fileCfg.Network.KnownPeers
		}
		if cfg.IdentityPath == "" {
			cfg.IdentityPath = fileCfg.Identity.KeyFile
		}
		if !cfg.Testnet {
			cfg.Testnet = fileCfg.Network.Testnet
		}
		if listenMetrics == "" && fileCfg.Telemetry.Metrics.Enabled {
			listenMetrics = fileCfg.Telemetry.Metrics.ListenAddress
			if listenMetrics == "" {
				listenMetrics = "127.0.0.1:9090"
			}
		}
		if offerHook == "" {
			offerHook = fileCfg.HTTPAPI.OfferHook
		}
		if listenSubmit == "" {
			listenSubmit = fileCfg.HTTPAPI.ListenOfferSubmission
		}

	case configPath != "":
		// An explicit --config was given and isn't usable.
		fatal("splash: %v", err)

	case !errors.Is(err, config.ErrConfigNotFound):
		fatal("splash: %v", err)

	default:
		// No config file anywhere on the search path: flags-only mode.
	}

	var m *metrics.Metrics
	if listenMetrics != "" {
		m = metrics.New(version, runtime.Version())
		cfg.Metrics = m
	}

	n := node.New(cfg, slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmds := make(chan node.BroadcastOffer)

	var g errgroup.Group

	g.Go(func() error {
		// Whatever ends Run (a fatal startup error or shutdown) stops
		// every other task too, so g.Wait returns Run's error.
		defer cancel()
		return n.Run(ctx, cmds)
	})

	if listenSubmit != "" {
		srv, err := httpapi.NewSubmissionServer(listenSubmit, cmds, m, slog.Default())
		if err != nil {
			fatal("splash: %v", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}

	if listenMetrics != "" && listenMetrics != listenSubmit {
		metricsSrv, err := httpapi.NewMetricsServer(listenMetrics, m, slog.Default())
		if err != nil {
			fatal("splash: %v", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return metricsSrv.Close()
		})
	}

	// Subscribing only now means the egress/stdout sink can miss events
	// n.Run emits before this line runs (e.g. Initialized) — acceptable
	// given the bus is already lossy by design, but worth noting.
	events, unsubscribe := n.Events()
	defer unsubscribe()

	if offerHook != "" {
		g.Go(func() error {
			httpapi.Egress(ctx, events, offerHook, slog.Default())
			return nil
		})
	} else {
		g.Go(func() error {
			httpapi.StdoutSink(ctx, events)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fatal("splash: %v", err)
	}
}
