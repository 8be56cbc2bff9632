// Package identity manages the node's long-lived secp256k1 key pair:
// load it from a file, generate and persist one if absent, or hand
// back an ephemeral key when no path is configured. Failures here are
// fatal at startup — a node cannot run without a stable peer identity.
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// ErrInsecurePermissions is returned when an identity file on disk is
// readable or writable by users other than its owner.
var ErrInsecurePermissions = errors.New("identity file has insecure permissions")

// LoadOrCreate loads the node's identity from path, creating one if absent:
//
//   - path == "": a fresh secp256k1 key is generated and returned
//     without being persisted (ephemeral identity).
//   - path exists: its bytes are unmarshaled as a private key using
//     go-libp2p's canonical protobuf envelope.
//   - path does not exist: a fresh key is generated, marshaled with
//     the same envelope, and written to path with mode 0600.
func LoadOrCreate(path string) (crypto.PrivKey, error) {
	if path == "" {
		priv, _, err := crypto.GenerateSecp256k1Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("identity: generate ephemeral key: %w", err)
		}
		return priv, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := checkPermissions(path); err != nil {
			return nil, err
		}
		priv, err := crypto.UnmarshalPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("identity: unmarshal key from %s: %w", path, err)
		}
		return priv, nil

	case os.IsNotExist(err):
		priv, _, genErr := crypto.GenerateSecp256k1Key(rand.Reader)
		if genErr != nil {
			return nil, fmt.Errorf("identity: generate key: %w", genErr)
		}
		if err := Persist(path, priv); err != nil {
			return nil, err
		}
		return priv, nil

	default:
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}
}

// Persist marshals priv with go-libp2p's canonical envelope and writes
// it to path with mode 0600, the same format LoadOrCreate reads back.
func Persist(path string, priv crypto.PrivKey) error {
	data, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("identity: marshal key: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("identity: write %s: %w", path, err)
	}
	return nil
}

// PeerID derives the stable, network-visible PeerId from priv's public half.
func PeerID(priv crypto.PrivKey) (peer.ID, error) {
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("identity: derive peer id: %w", err)
	}
	return id, nil
}

// checkPermissions refuses to load an identity file that is readable
// or writable by anyone other than its owner.
func checkPermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("identity: stat %s: %w", path, err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return fmt.Errorf("%w: %s has mode %04o, expected 0600 (fix with: chmod 600 %s)",
			ErrInsecurePermissions, path, mode, path)
	}
	return nil
}
