package sshkeys

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestEnsureKeyPairGeneratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "id_ed25519")

	pub1, err := EnsureKeyPair(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pub1, "ssh-ed25519 "))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = ssh.ParsePrivateKey(raw)
	require.NoError(t, err)

	pub2, err := EnsureKeyPair(path)
	require.NoError(t, err)
	assert.Equal(t, pub1, pub2)

	pub3, err := RegenerateKeyPair(path)
	require.NoError(t, err)
	assert.NotEqual(t, pub1, pub3)
}
