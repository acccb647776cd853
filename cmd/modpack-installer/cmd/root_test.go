package cmd

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	require.NoError(t, initLogging("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	_, ok := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, ok)

	require.NoError(t, initLogging("info", ""))
	_, ok = log.StandardLogger().Formatter.(*log.TextFormatter)
	assert.True(t, ok)

	assert.Error(t, initLogging("loud", "text"))
	assert.Error(t, initLogging("info", "xml"))
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"providers"},
		{"search"},
		{"versions"},
		{"details"},
		{"install"},
		{"installed"},
		{"installed", "clear"},
		{"targets", "add"},
		{"targets", "list"},
		{"targets", "remove"},
		{"token", "set"},
		{"keys", "show"},
		{"keys", "regenerate"},
	} {
		c, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], c.Name())
	}
}
