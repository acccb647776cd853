package sshexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, Quote("plain"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))
	assert.Equal(t, `'$(rm -rf /)'`, Quote("$(rm -rf /)"))
}

func TestRunCommandMissingKey(t *testing.T) {
	r := &Runner{Host: "127.0.0.1", User: "mc", KeyPath: t.TempDir() + "/absent"}
	_, _, err := r.RunCommand(context.Background(), "true")
	assert.ErrorContains(t, err, "read ssh key")
}
