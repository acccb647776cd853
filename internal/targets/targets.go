// Package targets is the registry of servers modpacks are installed on.
package targets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/example/modpack-installer/internal/db"
	"github.com/example/modpack-installer/internal/gateway"
	"github.com/example/modpack-installer/internal/installer"
	"github.com/example/modpack-installer/internal/sshexec"
)

// Store is the subset of DB operations used by the targets package.
type Store interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Target is a Minecraft server reachable over SSH and run by a systemd unit.
type Target struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Host              string    `json:"host"`
	Port              int       `json:"port"`
	SSHUser           string    `json:"ssh_user"`
	RootDir           string    `json:"root_dir"`
	Unit              string    `json:"unit"`
	RunAs             string    `json:"run_as,omitempty"`
	RCONPort          int       `json:"rcon_port,omitempty"`
	RCONPassword      string    `json:"-"`
	ProfilesSupported bool      `json:"profiles_supported"`
	CreatedAt         time.Time `json:"created_at"`
}

var (
	nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,62}$`)
	unitRegex = regexp.MustCompile(`^[a-zA-Z0-9@._-]+$`)
	hostRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)
)

// Validate checks user-supplied fields and fills defaults.
func Validate(t *Target) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Host = strings.TrimSpace(t.Host)
	if !nameRegex.MatchString(t.Name) {
		return errors.New("name must be 1-63 letters, digits, dots, dashes or underscores")
	}
	if t.Host == "" {
		return errors.New("host is required")
	}
	if net.ParseIP(t.Host) == nil && !hostRegex.MatchString(t.Host) {
		return fmt.Errorf("invalid host: %s", t.Host)
	}
	if t.Port == 0 {
		t.Port = 22
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("invalid port: %d", t.Port)
	}
	if t.SSHUser == "" {
		return errors.New("ssh_user is required")
	}
	if !path.IsAbs(t.RootDir) || path.Clean(t.RootDir) == "/" {
		return errors.New("root_dir must be an absolute path below /")
	}
	t.RootDir = path.Clean(t.RootDir)
	if t.Unit == "" {
		t.Unit = "minecraft"
	}
	if !unitRegex.MatchString(t.Unit) {
		return fmt.Errorf("invalid unit: %s", t.Unit)
	}
	if t.RCONPort < 0 || t.RCONPort > 65535 {
		return fmt.Errorf("invalid rcon_port: %d", t.RCONPort)
	}
	return nil
}

// Create validates and inserts a target.
func Create(ctx context.Context, s Store, t Target) (*Target, error) {
	if err := Validate(&t); err != nil {
		return nil, err
	}
	t.CreatedAt = db.Now()
	res, err := s.ExecContext(ctx, `
		INSERT INTO targets (name, host, port, ssh_user, root_dir, unit, run_as, rcon_port, rcon_password, profiles_supported, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Name, t.Host, t.Port, t.SSHUser, t.RootDir, t.Unit, t.RunAs, t.RCONPort, t.RCONPassword, t.ProfilesSupported, t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const selectColumns = `SELECT id, name, host, port, ssh_user, root_dir, unit, run_as, rcon_port, rcon_password, profiles_supported, created_at FROM targets`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*Target, error) {
	var t Target
	if err := row.Scan(&t.ID, &t.Name, &t.Host, &t.Port, &t.SSHUser, &t.RootDir, &t.Unit, &t.RunAs,
		&t.RCONPort, &t.RCONPassword, &t.ProfilesSupported, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func Get(ctx context.Context, s Store, id int64) (*Target, error) {
	return scan(s.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
}

// Resolve looks a target up by numeric id or by name.
func Resolve(ctx context.Context, s Store, ref string) (*Target, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return Get(ctx, s, id)
	}
	return scan(s.QueryRowContext(ctx, selectColumns+` WHERE name = ?`, ref))
}

func List(ctx context.Context, s Store) ([]Target, error) {
	rows, err := s.QueryContext(ctx, selectColumns+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Target{}
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func Delete(ctx context.Context, s Store, id int64) error {
	res, err := s.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// Gateway returns the SSH gateway for t, authenticating with the key at keyPath.
func (t Target) Gateway(keyPath string) *gateway.SSH {
	g := &gateway.SSH{
		Runner: &sshexec.Runner{
			Host:    t.Host,
			Port:    t.Port,
			User:    t.SSHUser,
			KeyPath: keyPath,
		},
		Root:  t.RootDir,
		RunAs: t.RunAs,
		Unit:  t.Unit,
	}
	if t.RCONPort > 0 {
		g.RCONAddr = net.JoinHostPort(t.Host, strconv.Itoa(t.RCONPort))
		g.RCONPassword = t.RCONPassword
	}
	return g
}

// InstallTarget wires t's gateway into an installer target.
func (t Target) InstallTarget(keyPath string) installer.Target {
	g := t.Gateway(keyPath)
	return installer.Target{FS: g, Power: g, Backup: g, ProfilesSupported: t.ProfilesSupported}
}
