package gateway

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// Op records one call made against a Memory gateway.
type Op struct {
	Name   string
	Path   string
	Target string
}

// Memory is an in-process server filesystem. It backs dry runs and tests:
// PullURL serves registered URLs, Decompress expands registered archive
// contents, and every call is recorded in Ops.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool

	// URLs maps a download URL to the bytes PullURL stores.
	URLs map[string][]byte
	// Archives maps archive bytes to the relative paths it expands to.
	Archives map[string]map[string][]byte
	// Fail, when set, can make any operation fail before it runs.
	Fail func(op Op) error

	Ops []Op

	state       State
	profile     string
	env         map[string]string
	Signals     []Signal
	Reinstalls  int
	Backups     []string
	StopsOnKill bool
}

func NewMemory() *Memory {
	return &Memory{
		files:       map[string][]byte{},
		dirs:        map[string]bool{"/": true},
		URLs:        map[string][]byte{},
		Archives:    map[string]map[string][]byte{},
		state:       StateRunning,
		StopsOnKill: true,
	}
}

func (m *Memory) record(name, p, target string) error {
	op := Op{Name: name, Path: p, Target: target}
	m.Ops = append(m.Ops, op)
	if m.Fail != nil {
		return m.Fail(op)
	}
	return nil
}

func (m *Memory) mkdirAll(dir string) {
	for d := Clean(dir); ; d = path.Dir(d) {
		m.dirs[d] = true
		if d == "/" {
			return
		}
	}
}

func (m *Memory) put(p string, content []byte) {
	p = Clean(p)
	m.mkdirAll(path.Dir(p))
	m.files[p] = append([]byte(nil), content...)
}

// Put seeds a file, creating parent directories.
func (m *Memory) Put(p string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(p, content)
}

// Mkdir seeds a directory.
func (m *Memory) Mkdir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAll(p)
}

// File returns a stored file's content.
func (m *Memory) File(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[Clean(p)]
	return b, ok
}

// Paths returns every stored file path, sorted.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// OpsNamed returns the recorded operations with the given name.
func (m *Memory) OpsNamed(name string) []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Op
	for _, op := range m.Ops {
		if op.Name == name {
			out = append(out, op)
		}
	}
	return out
}

func under(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/")
}

// ListDirectory includes "." and ".." like the daemons it stands in for.
func (m *Memory) ListDirectory(_ context.Context, dir string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = Clean(dir)
	if err := m.record("list", dir, ""); err != nil {
		return nil, err
	}
	if !m.dirs[dir] {
		return nil, fmt.Errorf("list %s: %w", dir, ErrNotFound)
	}
	seen := map[string]Entry{}
	for p := range m.files {
		if path.Dir(p) == dir {
			seen[path.Base(p)] = Entry{Name: path.Base(p), IsFile: true}
		}
	}
	for d := range m.dirs {
		if d != dir && path.Dir(d) == dir {
			seen[path.Base(d)] = Entry{Name: path.Base(d), IsDirectory: true}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := []Entry{{Name: ".", IsDirectory: true}, {Name: "..", IsDirectory: true}}
	for _, n := range names {
		out = append(out, seen[n])
	}
	return out, nil
}

func (m *Memory) ReadFile(_ context.Context, p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = Clean(p)
	if err := m.record("read", p, ""); err != nil {
		return nil, err
	}
	b, ok := m.files[p]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", p, ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) WriteFile(_ context.Context, p string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = Clean(p)
	if err := m.record("write", p, ""); err != nil {
		return err
	}
	m.put(p, content)
	return nil
}

func (m *Memory) remove(p string) {
	for f := range m.files {
		if under(f, p) {
			delete(m.files, f)
		}
	}
	if p == "/" {
		m.dirs = map[string]bool{"/": true}
		return
	}
	for d := range m.dirs {
		if under(d, p) {
			delete(m.dirs, d)
		}
	}
}

// DeleteFiles removes names below dir. Missing names are ignored.
func (m *Memory) DeleteFiles(_ context.Context, dir string, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = Clean(dir)
	for _, n := range names {
		p := Join(dir, n)
		if err := m.record("delete", p, ""); err != nil {
			return err
		}
		m.remove(p)
	}
	return nil
}

// Move renames a file or directory; moving a directory onto an existing one merges them.
func (m *Memory) Move(_ context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, to = Clean(from), Clean(to)
	if err := m.record("move", from, to); err != nil {
		return err
	}
	if b, ok := m.files[from]; ok {
		delete(m.files, from)
		m.put(to, b)
		return nil
	}
	if !m.dirs[from] {
		return fmt.Errorf("move %s: %w", from, ErrNotFound)
	}
	moved := map[string][]byte{}
	for f, b := range m.files {
		if under(f, from) {
			moved[to+strings.TrimPrefix(f, from)] = b
		}
	}
	var dirs []string
	for d := range m.dirs {
		if under(d, from) {
			dirs = append(dirs, to+strings.TrimPrefix(d, from))
		}
	}
	m.remove(from)
	for _, d := range dirs {
		m.mkdirAll(d)
	}
	for f, b := range moved {
		m.put(f, b)
	}
	return nil
}

// Decompress expands the archive registered for the file's content into dir.
func (m *Memory) Decompress(_ context.Context, dir, archive string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = Clean(dir)
	p := Join(dir, archive)
	if err := m.record("decompress", p, ""); err != nil {
		return err
	}
	content, ok := m.files[p]
	if !ok {
		return fmt.Errorf("decompress %s: %w", p, ErrNotFound)
	}
	entries, ok := m.Archives[string(content)]
	if !ok {
		return fmt.Errorf("decompress %s: unknown archive", p)
	}
	for rel, b := range entries {
		if strings.HasSuffix(rel, "/") {
			m.mkdirAll(Join(dir, rel))
			continue
		}
		m.put(Join(dir, rel), b)
	}
	return nil
}

func (m *Memory) PullURL(_ context.Context, rawURL, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = Clean(dir)
	if err := m.record("pull", rawURL, dir); err != nil {
		return err
	}
	b, ok := m.URLs[rawURL]
	if !ok {
		return fmt.Errorf("pull %s: %w", rawURL, ErrNotFound)
	}
	name := BaseNameFromURL(rawURL)
	if name == "" {
		name = "download"
	}
	m.put(Join(dir, name), b)
	return nil
}

func (m *Memory) CreateDirectory(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = Clean(p)
	if err := m.record("mkdir", p, ""); err != nil {
		return err
	}
	m.mkdirAll(p)
	return nil
}

func (m *Memory) Exists(_ context.Context, p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = Clean(p)
	if err := m.record("exists", p, ""); err != nil {
		return false, err
	}
	_, isFile := m.files[p]
	return isFile || m.dirs[p], nil
}

// SetPower records the signal. Kill and stop take the server offline
// immediately unless StopsOnKill is false.
func (m *Memory) SetPower(_ context.Context, s Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("power", string(s), ""); err != nil {
		return err
	}
	m.Signals = append(m.Signals, s)
	switch s {
	case SignalKill, SignalStop:
		if m.StopsOnKill {
			m.state = StateOffline
		}
	case SignalStart, SignalRestart:
		m.state = StateRunning
	}
	return nil
}

func (m *Memory) State(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("state", "", ""); err != nil {
		return "", err
	}
	return m.state, nil
}

func (m *Memory) CurrentProfile(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile, nil
}

// SetProfile replaces the active profile; a nil env keeps the previous environment.
func (m *Memory) SetProfile(_ context.Context, profile string, env map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("profile", profile, ""); err != nil {
		return err
	}
	m.profile = profile
	if env != nil {
		m.env = env
	}
	return nil
}

// Env returns the environment set by the last SetProfile carrying one.
func (m *Memory) Env() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.env
}

func (m *Memory) Reinstall(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("reinstall", "", ""); err != nil {
		return err
	}
	m.Reinstalls++
	return nil
}

func (m *Memory) Backup(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("backup", name, ""); err != nil {
		return err
	}
	m.Backups = append(m.Backups, name)
	return nil
}

var (
	_ FS       = (*Memory)(nil)
	_ Power    = (*Memory)(nil)
	_ Backuper = (*Memory)(nil)
)
