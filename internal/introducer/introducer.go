// Package introducer implements the DNS-based seed resolver: when a
// node is given no known_peers, it resolves a well-known TXT record
// into a set of seed multiaddresses. A lookup failure is a warning,
// never fatal — a node with no seeds may still be dialed by others.
package introducer

import (
	"context"
	"fmt"
	"net"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
)

const (
	// MainnetName is the introducer TXT record for the production network.
	MainnetName = "_dnsaddr.splash.dexie.space"

	// TestnetName is the introducer TXT record for the test network.
	TestnetName = "_dnsaddr.testnet11.splash.dexie.space"

	// dnsaddrPrefix is stripped from each TXT value before parsing, per
	// the `dnsaddr=` convention used by libp2p-style DNS introducers.
	dnsaddrPrefix = "dnsaddr="
)

// LookupTXTFunc resolves the TXT records of a DNS name. It matches the
// signature of (*net.Resolver).LookupTXT so tests can stub it (S3).
type LookupTXTFunc func(ctx context.Context, name string) ([]string, error)

// Resolver resolves the introducer DNS name into seed multiaddresses.
type Resolver struct {
	LookupTXT LookupTXTFunc
}

// New returns a Resolver backed by the system's default DNS resolver.
func New() *Resolver {
	return &Resolver{LookupTXT: net.DefaultResolver.LookupTXT}
}

// Name returns the introducer DNS name for the given network.
func Name(testnet bool) string {
	if testnet {
		return TestnetName
	}
	return MainnetName
}

// Resolve looks up the introducer TXT record for the selected network
// and parses each value into a multiaddress, stripping an optional
// "dnsaddr=" prefix. Malformed values are skipped individually; a
// lookup failure yields an empty set and an error the caller should
// log as a Warning rather than treat as fatal.
func (r *Resolver) Resolve(ctx context.Context, testnet bool) ([]ma.Multiaddr, error) {
	name := Name(testnet)

	records, err := r.LookupTXT(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("introducer: resolve %s: %w", name, err)
	}

	addrs := make([]ma.Multiaddr, 0, len(records))
	for _, rec := range records {
		val := strings.TrimPrefix(rec, dnsaddrPrefix)
		addr, err := ma.NewMultiaddr(val)
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
