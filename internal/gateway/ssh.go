package gateway

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gorcon/rcon"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/example/modpack-installer/internal/sshexec"
)

// exitNotFound is the status our guard snippets use for missing paths.
const exitNotFound = 44

// profileDir holds one EnvironmentFile per unit; the units source it.
const profileDir = "/etc/modpack-installer"

// SSH drives a server whose files live under Root on a host reachable over SSH.
// Commands run as RunAs through sudo and the process is a systemd Unit.
type SSH struct {
	Runner *sshexec.Runner
	Root   string
	RunAs  string
	Unit   string

	// RCON, when set, receives save-all before the server is stopped.
	RCONAddr     string
	RCONPassword string
}

// resolve maps a server path to a host path under Root.
func (g *SSH) resolve(p string) (string, error) {
	rel := strings.TrimPrefix(Clean(p), "/")
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid path %q", p)
		}
	}
	full := path.Join(g.Root, rel)
	base := path.Clean(g.Root)
	if full != base && !strings.HasPrefix(full, base+"/") {
		return "", fmt.Errorf("invalid path %q", p)
	}
	return full, nil
}

func (g *SSH) sudo(cmd string) string {
	if g.RunAs == "" {
		return "sudo sh -c " + sshexec.Quote(cmd)
	}
	return fmt.Sprintf("sudo -u %s sh -c %s", sshexec.Quote(g.RunAs), sshexec.Quote(cmd))
}

func (g *SSH) run(ctx context.Context, op, cmd string) (string, error) {
	stdout, _, err := g.Runner.RunCommand(ctx, g.sudo(cmd))
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitStatus() == exitNotFound {
			return stdout, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return stdout, fmt.Errorf("%s: %w", op, err)
	}
	return stdout, nil
}

func (g *SSH) ListDirectory(ctx context.Context, dir string) ([]Entry, error) {
	full, err := g.resolve(dir)
	if err != nil {
		return nil, err
	}
	q := sshexec.Quote(full)
	// GNU find: name|type(d/f/l...).
	cmd := fmt.Sprintf("[ -d %s ] || exit %d; find %s -maxdepth 1 -mindepth 1 -printf '%%f|%%y\\n'", q, exitNotFound, q)
	stdout, err := g.run(ctx, "list "+dir, cmd)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		name, typ, ok := strings.Cut(strings.TrimSpace(line), "|")
		if !ok || name == "" {
			continue
		}
		entries = append(entries, Entry{Name: name, IsDirectory: typ == "d", IsFile: typ == "f"})
	}
	return entries, nil
}

func (g *SSH) ReadFile(ctx context.Context, p string) ([]byte, error) {
	full, err := g.resolve(p)
	if err != nil {
		return nil, err
	}
	q := sshexec.Quote(full)
	stdout, err := g.run(ctx, "read "+p, fmt.Sprintf("[ -f %s ] || exit %d; cat %s", q, exitNotFound, q))
	if err != nil {
		return nil, err
	}
	return []byte(stdout), nil
}

func (g *SSH) WriteFile(ctx context.Context, p string, content []byte) error {
	full, err := g.resolve(p)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("mkdir -p %s && tee %s > /dev/null", sshexec.Quote(path.Dir(full)), sshexec.Quote(full))
	if _, _, err := g.Runner.RunWithStdin(ctx, g.sudo(cmd), strings.NewReader(string(content))); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (g *SSH) DeleteFiles(ctx context.Context, dir string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	targets := make([]string, 0, len(names))
	for _, n := range names {
		full, err := g.resolve(Join(dir, n))
		if err != nil {
			return err
		}
		if full == path.Clean(g.Root) {
			return fmt.Errorf("refusing to delete server root")
		}
		targets = append(targets, sshexec.Quote(full))
	}
	_, err := g.run(ctx, "delete in "+dir, "rm -rf -- "+strings.Join(targets, " "))
	return err
}

// Move renames from to to. Directories moved onto existing ones are merged.
func (g *SSH) Move(ctx context.Context, from, to string) error {
	src, err := g.resolve(from)
	if err != nil {
		return err
	}
	dst, err := g.resolve(to)
	if err != nil {
		return err
	}
	s, d := sshexec.Quote(src), sshexec.Quote(dst)
	cmd := fmt.Sprintf("[ -e %s ] || exit %d; mkdir -p %s; if [ -d %s ] && [ -d %s ]; then cp -a %s/. %s/ && rm -rf %s; else mv -f -- %s %s; fi",
		s, exitNotFound, sshexec.Quote(path.Dir(dst)), s, d, s, d, s, s, d)
	_, err = g.run(ctx, "move "+from, cmd)
	return err
}

// extractCommand picks the extractor for archive by extension.
func extractCommand(archive string) (string, error) {
	a := sshexec.Quote(archive)
	lower := strings.ToLower(archive)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return "unzip -o -q " + a, nil
	case strings.HasSuffix(lower, ".tar"), strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"),
		strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tar.xz"):
		return "tar xf " + a, nil
	case strings.HasSuffix(lower, ".gz"):
		return "gunzip -kf " + a, nil
	case strings.HasSuffix(lower, ".bz2"):
		return "bunzip2 -kf " + a, nil
	case strings.HasSuffix(lower, ".xz"):
		return "unxz -kf " + a, nil
	case strings.HasSuffix(lower, ".7z"):
		return "7z x -y " + a, nil
	case strings.HasSuffix(lower, ".rar"):
		return "unrar x -o+ " + a, nil
	}
	return "", fmt.Errorf("no extractor for %s", archive)
}

func (g *SSH) Decompress(ctx context.Context, dir, archive string) error {
	full, err := g.resolve(dir)
	if err != nil {
		return err
	}
	extract, err := extractCommand(archive)
	if err != nil {
		return err
	}
	_, err = g.run(ctx, "decompress "+archive, fmt.Sprintf("cd %s && %s", sshexec.Quote(full), extract))
	return err
}

func (g *SSH) PullURL(ctx context.Context, rawURL, dir string) error {
	full, err := g.resolve(dir)
	if err != nil {
		return err
	}
	name := BaseNameFromURL(rawURL)
	if name == "" {
		name = "download"
	}
	u, n := sshexec.Quote(rawURL), sshexec.Quote(name)
	cmd := fmt.Sprintf("mkdir -p %s && cd %s && (curl -fsSL -o %s %s || wget -q -O %s %s)",
		sshexec.Quote(full), sshexec.Quote(full), n, u, n, u)
	_, err = g.run(ctx, "pull "+rawURL, cmd)
	return err
}

func (g *SSH) CreateDirectory(ctx context.Context, p string) error {
	full, err := g.resolve(p)
	if err != nil {
		return err
	}
	_, err = g.run(ctx, "mkdir "+p, "mkdir -p "+sshexec.Quote(full))
	return err
}

func (g *SSH) Exists(ctx context.Context, p string) (bool, error) {
	full, err := g.resolve(p)
	if err != nil {
		return false, err
	}
	_, err = g.run(ctx, "exists "+p, fmt.Sprintf("[ -e %s ] || exit %d", sshexec.Quote(full), exitNotFound))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// saveWorld flushes chunks through RCON before the process goes down.
func (g *SSH) saveWorld() {
	if g.RCONAddr == "" {
		return
	}
	client, err := rcon.Dial(g.RCONAddr, g.RCONPassword)
	if err != nil {
		log.WithError(err).WithField("addr", g.RCONAddr).Warn("rcon unavailable, skipping save-all")
		return
	}
	defer client.Close()
	if _, err := client.Execute("save-all"); err != nil {
		log.WithError(err).Warn("rcon save-all failed")
	}
}

func (g *SSH) SetPower(ctx context.Context, s Signal) error {
	unit := sshexec.Quote(g.Unit)
	var cmd string
	switch s {
	case SignalStart, SignalStop, SignalRestart:
		cmd = "sudo systemctl " + string(s) + " " + unit
	case SignalKill:
		cmd = "sudo systemctl kill -s KILL " + unit
	default:
		return fmt.Errorf("unknown power signal %q", s)
	}
	if s == SignalStop || s == SignalKill {
		g.saveWorld()
	}
	if _, _, err := g.Runner.RunCommand(ctx, cmd); err != nil {
		return fmt.Errorf("power %s: %w", s, err)
	}
	return nil
}

// State maps systemctl is-active output. The command exits non-zero for
// inactive units, so only the printed state is trusted.
func (g *SSH) State(ctx context.Context) (State, error) {
	stdout, _, err := g.Runner.RunCommand(ctx, "systemctl is-active "+sshexec.Quote(g.Unit))
	switch strings.TrimSpace(stdout) {
	case "active", "reloading":
		return StateRunning, nil
	case "activating":
		return StateStarting, nil
	case "deactivating":
		return StateStopping, nil
	case "inactive", "failed":
		return StateOffline, nil
	}
	if err != nil {
		return "", fmt.Errorf("state: %w", err)
	}
	return StateOffline, nil
}

func (g *SSH) profileFile() string {
	return path.Join(profileDir, g.Unit+".env")
}

func (g *SSH) CurrentProfile(ctx context.Context) (string, error) {
	stdout, _, err := g.Runner.RunCommand(ctx, "sudo cat "+sshexec.Quote(g.profileFile())+" 2>/dev/null || true")
	if err != nil {
		return "", fmt.Errorf("read profile: %w", err)
	}
	for _, line := range strings.Split(stdout, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "PROFILE="); ok {
			return strings.Trim(v, `"`), nil
		}
	}
	return "", nil
}

// SetProfile rewrites the unit's environment file. A nil env keeps the
// previous variables and only swaps the profile.
func (g *SSH) SetProfile(ctx context.Context, profile string, env map[string]string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PROFILE=%q\n", profile)
	for k, v := range env {
		fmt.Fprintf(&sb, "%s=%q\n", k, v)
	}
	file := sshexec.Quote(g.profileFile())
	var cmd string
	if env == nil {
		cmd = fmt.Sprintf("sudo mkdir -p %s && (sudo grep -v '^PROFILE=' %s 2>/dev/null; cat) | sudo tee %s.new > /dev/null && sudo mv %s.new %s",
			sshexec.Quote(profileDir), file, file, file, file)
	} else {
		cmd = fmt.Sprintf("sudo mkdir -p %s && sudo tee %s > /dev/null", sshexec.Quote(profileDir), file)
	}
	if _, _, err := g.Runner.RunWithStdin(ctx, cmd, strings.NewReader(sb.String())); err != nil {
		return fmt.Errorf("set profile %s: %w", profile, err)
	}
	return nil
}

// Reinstall starts the installer unit, which reads the same environment file.
func (g *SSH) Reinstall(ctx context.Context) error {
	if _, _, err := g.Runner.RunCommand(ctx, "sudo systemctl start --no-block "+sshexec.Quote(g.Unit+"-installer")); err != nil {
		return fmt.Errorf("reinstall: %w", err)
	}
	return nil
}

// Backup archives the server directory into
// <parent>/.modpack-backups/<root name>/<name>.tar.gz, outside the root so a
// wipe leaves it alone.
func (g *SSH) Backup(ctx context.Context, name string) error {
	dir, archive := g.backupPath(name)
	root := path.Clean(g.Root)
	cmd := fmt.Sprintf("mkdir -p %s && tar czf %s -C %s %s",
		sshexec.Quote(dir), sshexec.Quote(archive), sshexec.Quote(path.Dir(root)), sshexec.Quote(path.Base(root)))
	_, err := g.run(ctx, "backup", cmd)
	return err
}

func (g *SSH) backupPath(name string) (dir, archive string) {
	root := path.Clean(g.Root)
	dir = path.Join(path.Dir(root), ".modpack-backups", path.Base(root))
	return dir, path.Join(dir, path.Base(name)+".tar.gz")
}

var (
	_ FS       = (*SSH)(nil)
	_ Power    = (*SSH)(nil)
	_ Backuper = (*SSH)(nil)
)
