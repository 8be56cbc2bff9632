package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateEphemeralWhenNoPath(t *testing.T) {
	priv, err := LoadOrCreate("")
	require.NoError(t, err)
	require.NotNil(t, priv)
	require.Equal(t, crypto.Secp256k1, priv.Type())
}

func TestLoadOrCreatePersistsNewKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.key")

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	priv, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.NotNil(t, priv)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadOrCreateReturnsStableIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.key")

	priv1, err := LoadOrCreate(path)
	require.NoError(t, err)
	id1, err := PeerID(priv1)
	require.NoError(t, err)

	priv2, err := LoadOrCreate(path)
	require.NoError(t, err)
	id2, err := PeerID(priv2)
	require.NoError(t, err)

	require.Equal(t, id1, id2)
}

func TestLoadOrCreateRejectsInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.key")

	priv, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.NoError(t, os.Chmod(path, 0644))

	_, err = LoadOrCreate(path)
	require.ErrorIs(t, err, ErrInsecurePermissions)
	_ = priv
}
