package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/db"
	"github.com/example/modpack-installer/internal/installer"
	"github.com/example/modpack-installer/internal/targets"
)

// TargetFunc opens the installer target for a registered target id.
type TargetFunc func(ctx context.Context, targetID int64) (installer.Target, error)

// SSHTargets resolves targets from the registry and connects with the key at keyPath.
func SSHTargets(s targets.Store, keyPath string) TargetFunc {
	return func(ctx context.Context, targetID int64) (installer.Target, error) {
		t, err := targets.Get(ctx, s, targetID)
		if err != nil {
			return installer.Target{}, fmt.Errorf("target %d: %w", targetID, err)
		}
		return t.InstallTarget(keyPath), nil
	}
}

// Worker polls the jobs table and runs queued installs.
type Worker struct {
	DB           Store
	Installer    *installer.Installer
	Targets      TargetFunc
	PollInterval time.Duration
	StopCh       chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(s Store, ins *installer.Installer, tf TargetFunc) *Worker {
	return &Worker{
		DB:           s,
		Installer:    ins,
		Targets:      tf,
		PollInterval: 5 * time.Second,
		StopCh:       make(chan struct{}),
	}
}

// Start fails installs interrupted by a previous run, then begins the worker
// loop in a separate goroutine.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	if n, err := FailInterrupted(ctx, w.DB); err != nil {
		log.WithError(err).Error("fail interrupted installs")
	} else if n > 0 {
		log.WithField("count", n).Warn("marked interrupted installs as failed")
	}

	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.StopCh:
				return
			default:
			}
			if err := w.ProcessNext(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
				log.WithError(err).Error("install worker")
			}
			select {
			case <-w.StopCh:
				return
			case <-time.After(w.PollInterval):
			}
		}
	}()
}

// Stop cancels the in-flight install, if any, and returns once its outcome
// has been written.
func (w *Worker) Stop() {
	close(w.StopCh)
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		<-w.done
	}
}

// ProcessNext locks and runs a single queued job. Jobs whose target already
// has a running install wait for a later poll. It returns sql.ErrNoRows when
// nothing is runnable.
func (w *Worker) ProcessNext(ctx context.Context) error {
	var job Job
	var installID sql.NullInt64

	err := w.DB.WithTx(ctx, func(tx *sql.Tx) error {
		// The worker is single-process, so select-then-update inside one
		// transaction is enough to claim a job.
		row := tx.QueryRowContext(ctx, `
			SELECT j.id, j.type, j.payload_json, j.status, j.install_id, j.run_after, j.last_error, j.attempts, j.created_at, j.updated_at
			FROM jobs j
			JOIN installs i ON i.id = j.install_id
			WHERE j.status = ? AND j.run_after <= ?
			  AND NOT EXISTS (
				SELECT 1 FROM installs r WHERE r.target_id = i.target_id AND r.status = ?
			  )
			ORDER BY j.id
			LIMIT 1
		`, string(JobQueued), db.Now(), string(StatusRunning))

		var lastErr sql.NullString
		if err := row.Scan(
			&job.ID,
			&job.Type,
			&job.PayloadJSON,
			&job.Status,
			&installID,
			&job.RunAfter,
			&lastErr,
			&job.Attempts,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return err
		}
		if lastErr.Valid {
			job.LastError = &lastErr.String
		}
		if installID.Valid {
			job.InstallID = &installID.Int64
		}

		job.Status = JobRunning
		job.Attempts++
		job.UpdatedAt = db.Now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE jobs SET status = ?, attempts = ?, updated_at = ? WHERE id = ?
		`, string(job.Status), job.Attempts, job.UpdatedAt, job.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE installs SET status = ?, updated_at = ? WHERE id = ?`,
			string(StatusRunning), job.UpdatedAt, installID)
		return err
	})
	if err != nil {
		return err
	}

	// The install is long running; it runs outside of the transaction.
	err = w.run(ctx, &job)

	finalStatus := JobDone
	var lastError *string
	if err != nil {
		msg := err.Error()
		lastError = &msg
		finalStatus = JobFailed
	}
	_, _ = w.DB.ExecContext(context.WithoutCancel(ctx), `
		UPDATE jobs SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, string(finalStatus), lastError, db.Now(), job.ID)

	return err
}

func (w *Worker) run(ctx context.Context, job *Job) error {
	if job.Type != jobTypeInstall || job.InstallID == nil {
		return fmt.Errorf("job %d: unsupported job type %q", job.ID, job.Type)
	}
	installID := *job.InstallID
	logger := log.WithFields(log.Fields{"job": job.ID, "install": installID})

	var req InstallRequest
	if err := json.Unmarshal([]byte(job.PayloadJSON), &req); err != nil {
		setStatus(context.WithoutCancel(ctx), w.DB, installID, StatusFailed)
		return fmt.Errorf("decode job payload: %w", err)
	}
	t, err := w.Targets(ctx, req.TargetID)
	if err != nil {
		finish(context.WithoutCancel(ctx), w.DB, installID, &installer.Result{Reason: err.Error()})
		return err
	}

	logger.Info("install started")
	res := Execute(ctx, w.DB, w.Installer, t, installID, req.installerRequest(), nil)
	if !res.Success {
		logger.WithField("reason", res.Reason).Warn("install failed")
		return errors.New(res.Reason)
	}
	logger.Info("install completed")
	return nil
}
