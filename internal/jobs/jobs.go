// Package jobs queues install runs and keeps their history and step logs.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/modpack-installer/internal/db"
	"github.com/example/modpack-installer/internal/installer"
	"github.com/example/modpack-installer/internal/modpack"
)

// Store describes the DB operations required by the jobs package.
type Store interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// InstallStatus represents the current install state.
type InstallStatus string

const (
	StatusQueued  InstallStatus = "queued"
	StatusRunning InstallStatus = "running"
	StatusSuccess InstallStatus = "success"
	StatusFailed  InstallStatus = "failed"
)

// JobStatus represents job state in jobs table.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

const jobTypeInstall = "install_modpack"

// InstallRequest is the API-level payload for a new install.
type InstallRequest struct {
	TargetID       int64            `json:"target_id"`
	Provider       modpack.Provider `json:"provider"`
	ModpackID      string           `json:"modpack_id"`
	VersionID      string           `json:"version_id"`
	DeleteExisting bool             `json:"delete_existing"`
}

func (r InstallRequest) installerRequest() installer.Request {
	return installer.Request{
		Provider:       r.Provider,
		ModpackID:      r.ModpackID,
		VersionID:      r.VersionID,
		DeleteExisting: r.DeleteExisting,
	}
}

// Install is one row of install history.
type Install struct {
	ID             int64            `json:"id"`
	RunID          string           `json:"run_id"`
	TargetID       int64            `json:"target_id"`
	Provider       modpack.Provider `json:"provider"`
	ModpackID      string           `json:"modpack_id"`
	VersionID      string           `json:"version_id"`
	DeleteExisting bool             `json:"delete_existing"`
	Status         InstallStatus    `json:"status"`
	Reason         *string          `json:"reason,omitempty"`
	Format         *string          `json:"format,omitempty"`
	ManifestHash   *string          `json:"manifest_hash,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// StepLog is a persisted installer.Step.
type StepLog struct {
	TS     time.Time            `json:"ts"`
	Name   string               `json:"name"`
	Status installer.StepStatus `json:"status"`
	Detail string               `json:"detail"`
}

// Job represents an internal job in the queue.
type Job struct {
	ID          int64
	Type        string
	PayloadJSON string
	Status      JobStatus
	InstallID   *int64
	RunAfter    time.Time
	LastError   *string
	Attempts    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func newInstall(req InstallRequest, status InstallStatus) *Install {
	now := db.Now()
	return &Install{
		RunID:          uuid.NewString(),
		TargetID:       req.TargetID,
		Provider:       req.Provider,
		ModpackID:      req.ModpackID,
		VersionID:      req.VersionID,
		DeleteExisting: req.DeleteExisting,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func insertInstall(ctx context.Context, tx *sql.Tx, inst *Install) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO installs (run_id, target_id, provider, modpack_id, version_id, delete_existing, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inst.RunID, inst.TargetID, string(inst.Provider), inst.ModpackID, inst.VersionID, inst.DeleteExisting,
		string(inst.Status), inst.CreatedAt, inst.UpdatedAt)
	if err != nil {
		return err
	}
	inst.ID, err = res.LastInsertId()
	return err
}

// EnqueueInstall inserts an install and its job in one transaction.
func EnqueueInstall(ctx context.Context, s Store, req InstallRequest) (*Install, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	inst := newInstall(req, StatusQueued)
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertInstall(ctx, tx, inst); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (type, payload_json, status, install_id, run_after, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, jobTypeInstall, string(raw), string(JobQueued), inst.ID, inst.CreatedAt, inst.CreatedAt, inst.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// RecordInstall inserts the history row of an install run outside the queue.
func RecordInstall(ctx context.Context, s Store, req InstallRequest) (*Install, error) {
	inst := newInstall(req, StatusRunning)
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		return insertInstall(ctx, tx, inst)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Execute runs an install and persists its steps and outcome. Bookkeeping
// writes outlive ctx so a cancelled install still ends as failed rather than
// staying running.
func Execute(ctx context.Context, s Store, ins *installer.Installer, t installer.Target, installID int64, req installer.Request, onStep func(installer.Step)) *installer.Result {
	bookkeeping := context.WithoutCancel(ctx)
	setStatus(bookkeeping, s, installID, StatusRunning)
	res := ins.Install(ctx, t, req, func(step installer.Step) {
		AppendStep(bookkeeping, s, installID, step)
		if onStep != nil {
			onStep(step)
		}
	})
	if !res.Success && res.Reason == "" && ctx.Err() != nil {
		res.Reason = ctx.Err().Error()
	}
	finish(bookkeeping, s, installID, res)
	return res
}

// FailInterrupted marks installs left running by a previous process as failed
// and releases their jobs, so their targets accept new installs.
func FailInterrupted(ctx context.Context, s Store) (int64, error) {
	now := db.Now()
	var n int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE installs SET status = ?, reason = ?, updated_at = ? WHERE status = ?
		`, string(StatusFailed), reasonInterrupted, now, string(StatusRunning))
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		_, err = tx.ExecContext(ctx, `
			UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE status = ?
		`, string(JobFailed), reasonInterrupted, now, string(JobRunning))
		return err
	})
	return n, err
}

const reasonInterrupted = "interrupted before completion"

// AppendStep writes a step log line for an install.
func AppendStep(ctx context.Context, s Store, installID int64, step installer.Step) {
	_, _ = s.ExecContext(ctx, `
		INSERT INTO install_steps (install_id, ts, name, status, detail)
		VALUES (?, ?, ?, ?, ?)
	`, installID, db.Now(), step.Name, string(step.Status), step.Detail)
}

func setStatus(ctx context.Context, s Store, installID int64, status InstallStatus) {
	_, _ = s.ExecContext(ctx, `UPDATE installs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), db.Now(), installID)
}

// finish stores the outcome of an install run.
func finish(ctx context.Context, s Store, installID int64, res *installer.Result) {
	status := StatusSuccess
	if !res.Success {
		status = StatusFailed
	}
	_, _ = s.ExecContext(ctx, `
		UPDATE installs
		SET status = ?, reason = ?, format = ?, manifest_hash = ?, updated_at = ?
		WHERE id = ?
	`, string(status), nullable(res.Reason), nullable(res.Format), nullable(res.ManifestHash), db.Now(), installID)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const installColumns = `SELECT id, run_id, target_id, provider, modpack_id, version_id, delete_existing, status, reason, format, manifest_hash, created_at, updated_at FROM installs`

type scanner interface {
	Scan(dest ...any) error
}

func scanInstall(row scanner) (*Install, error) {
	var i Install
	var provider, status string
	var reason, format, hash sql.NullString
	if err := row.Scan(&i.ID, &i.RunID, &i.TargetID, &provider, &i.ModpackID, &i.VersionID, &i.DeleteExisting,
		&status, &reason, &format, &hash, &i.CreatedAt, &i.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	i.Provider, i.Status = modpack.Provider(provider), InstallStatus(status)
	if reason.Valid {
		i.Reason = &reason.String
	}
	if format.Valid {
		i.Format = &format.String
	}
	if hash.Valid {
		i.ManifestHash = &hash.String
	}
	return &i, nil
}

func GetInstall(ctx context.Context, s Store, id int64) (*Install, error) {
	return scanInstall(s.QueryRowContext(ctx, installColumns+` WHERE id = ?`, id))
}

// ListInstalls returns the most recent installs, optionally for one target (targetID > 0).
func ListInstalls(ctx context.Context, s Store, targetID int64, limit int) ([]Install, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := installColumns + ` ORDER BY id DESC LIMIT ?`
	args := []any{limit}
	if targetID > 0 {
		query = installColumns + ` WHERE target_id = ? ORDER BY id DESC LIMIT ?`
		args = []any{targetID, limit}
	}
	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Install{}
	for rows.Next() {
		i, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// Steps returns the step log of an install in order.
func Steps(ctx context.Context, s Store, installID int64) ([]StepLog, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT ts, name, status, detail FROM install_steps WHERE install_id = ? ORDER BY id
	`, installID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StepLog{}
	for rows.Next() {
		var l StepLog
		var status string
		if err := rows.Scan(&l.TS, &l.Name, &status, &l.Detail); err != nil {
			return nil, err
		}
		l.Status = installer.StepStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}
