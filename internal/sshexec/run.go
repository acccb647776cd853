package sshexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// DefaultKeyPath is where the app-managed private key lives unless configured otherwise.
const DefaultKeyPath = "./ssh/id_ed25519"

// Runner executes shell commands on one host over SSH with the app's key.
type Runner struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	ConnectTimeout time.Duration
}

func (r *Runner) addr() string {
	port := r.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(port))
}

func (r *Runner) config() (*ssh.ClientConfig, error) {
	keyPath := r.KeyPath
	if strings.TrimSpace(keyPath) == "" {
		keyPath = DefaultKeyPath
	}
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	timeout := r.ConnectTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ssh.ClientConfig{
		User: r.User,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		// Managed hosts are provisioned by us and their keys are not pinned.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}, nil
}

// RunCommand runs a single command and returns stdout, stderr, and error.
func (r *Runner) RunCommand(ctx context.Context, command string) (stdout, stderr string, err error) {
	return r.RunWithStdin(ctx, command, nil)
}

// RunWithStdin runs command feeding stdin to it (used to write files remotely).
func (r *Runner) RunWithStdin(ctx context.Context, command string, stdin io.Reader) (stdout, stderr string, err error) {
	cfg, err := r.config()
	if err != nil {
		return "", "", err
	}
	client, err := ssh.Dial("tcp", r.addr(), cfg)
	if err != nil {
		return "", "", fmt.Errorf("ssh dial %s: %w", r.addr(), err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf
	if stdin != nil {
		session.Stdin = stdin
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = client.Close()
		return outBuf.String(), errBuf.String(), ctx.Err()
	case runErr := <-done:
		if runErr != nil {
			return outBuf.String(), errBuf.String(), fmt.Errorf("%w: %s", runErr, strings.TrimSpace(errBuf.String()))
		}
		return outBuf.String(), errBuf.String(), nil
	}
}

// Quote wraps s in single quotes for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
