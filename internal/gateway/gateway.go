// Package gateway is the remote filesystem and process control surface the
// install pipeline drives. Remote operations may complete asynchronously; the
// interface makes no transactional guarantee.
package gateway

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
)

// ErrNotFound is returned when a path does not exist.
var ErrNotFound = errors.New("path not found")

// Entry is one row of a directory listing.
type Entry struct {
	Name        string `json:"name"`
	IsFile      bool   `json:"is_file"`
	IsDirectory bool   `json:"is_directory"`
}

// FS is the file surface of a managed server. Paths are absolute from the server root.
type FS interface {
	ListDirectory(ctx context.Context, dir string) ([]Entry, error)
	ReadFile(ctx context.Context, p string) ([]byte, error)
	WriteFile(ctx context.Context, p string, content []byte) error
	DeleteFiles(ctx context.Context, dir string, names []string) error
	Move(ctx context.Context, from, to string) error
	Decompress(ctx context.Context, dir, archive string) error
	PullURL(ctx context.Context, rawURL, dir string) error
	CreateDirectory(ctx context.Context, p string) error
	Exists(ctx context.Context, p string) (bool, error)
}

// State is the coarse run state of a server process.
type State string

const (
	StateRunning  State = "running"
	StateStarting State = "starting"
	StateStopping State = "stopping"
	StateOffline  State = "offline"
)

// Signal is a power action.
type Signal string

const (
	SignalStart   Signal = "start"
	SignalStop    Signal = "stop"
	SignalRestart Signal = "restart"
	SignalKill    Signal = "kill"
)

// Power controls the server process and its install profile.
type Power interface {
	SetPower(ctx context.Context, s Signal) error
	State(ctx context.Context) (State, error)
	CurrentProfile(ctx context.Context) (string, error)
	SetProfile(ctx context.Context, profile string, env map[string]string) error
	Reinstall(ctx context.Context) error
}

// Backuper snapshots the server before destructive operations.
type Backuper interface {
	Backup(ctx context.Context, name string) error
}

// Clean normalises p to an absolute slash path.
func Clean(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

// Join joins elements below dir and cleans the result.
func Join(dir string, elem ...string) string {
	return Clean(path.Join(append([]string{dir}, elem...)...))
}

// BaseNameFromURL returns the URL-decoded last path segment of rawURL, without
// query string. It returns "" when the URL has no usable file name.
func BaseNameFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.EscapedPath()
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	b := path.Base(p)
	if b == "." || b == "/" || b == "" {
		return ""
	}
	return b
}
