package installer

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/gateway"
)

const (
	DefaultInstallerProfile = "Minecraft Modpack Installer"
	DefaultRuntimeProfile   = "Minecraft Modpack Runtime"
)

// Profile strategy step names.
const (
	StepPowerOff       = "power_off"
	StepWaitOffline    = "wait_offline"
	StepInstallProfile = "installer_profile"
	StepReinstall      = "reinstall"
	StepRestoreProfile = "restore_profile"
)

// ProfileInstaller delegates the install to the host's installer profile:
// the server is stopped, switched to an installer profile that receives the
// modpack as environment, reinstalled, then switched back.
type ProfileInstaller struct {
	Power            gateway.Power
	FS               gateway.FS
	InstallerProfile string
	RuntimeProfile   string
	Timings          Timings
	OnStep           func(Step)
}

func (p *ProfileInstaller) Run(ctx context.Context, req Request) *Result {
	r := &run{
		ctx: ctx,
		p:   &Pipeline{Timings: p.Timings, OnStep: p.OnStep},
		fs:  p.FS,
		res: &Result{Format: "profile"},
		logger: log.WithFields(log.Fields{
			"provider": req.Provider,
			"modpack":  req.ModpackID,
			"version":  req.VersionID,
			"strategy": "profile",
		}),
	}

	previous, err := p.Power.CurrentProfile(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("read current profile")
	}

	if err := p.Power.SetPower(ctx, gateway.SignalKill); err != nil {
		r.step(StepPowerOff, StatusFailed, err.Error())
	} else {
		r.step(StepPowerOff, StatusCompleted, string(gateway.SignalKill))
	}
	p.waitOffline(r)

	if req.DeleteExisting {
		r.wipe()
	} else {
		r.clearMods()
	}

	installer := p.InstallerProfile
	if installer == "" {
		installer = DefaultInstallerProfile
	}
	env := map[string]string{
		"MODPACK_PROVIDER":   string(req.Provider),
		"MODPACK_ID":         req.ModpackID,
		"MODPACK_VERSION_ID": req.VersionID,
	}
	if err := p.Power.SetProfile(ctx, installer, env); err != nil {
		return r.fail(StepInstallProfile, fmt.Errorf("set profile %s: %w", installer, err))
	}
	r.step(StepInstallProfile, StatusCompleted, installer)

	runtime := p.RuntimeProfile
	if runtime == "" {
		runtime = previous
	}
	if runtime == "" {
		runtime = DefaultRuntimeProfile
	}
	defer func() {
		if err := p.Power.SetProfile(ctx, runtime, nil); err != nil {
			r.step(StepRestoreProfile, StatusFailed, fmt.Sprintf("set profile %s: %v", runtime, err))
			return
		}
		r.step(StepRestoreProfile, StatusCompleted, runtime)
	}()

	if err := p.Power.Reinstall(ctx); err != nil {
		return r.fail(StepReinstall, fmt.Errorf("reinstall: %w", err))
	}
	if err := sleep(ctx, p.Timings.ReinstallSettle); err != nil {
		return r.fail(StepReinstall, err)
	}
	r.step(StepReinstall, StatusCompleted, "installer started")

	r.res.Success = true
	return r.res
}

// waitOffline polls State until the server is offline. A timeout is only a warning.
func (p *ProfileInstaller) waitOffline(r *run) {
	deadline := time.Now().Add(p.Timings.OfflineTimeout)
	for {
		st, err := p.Power.State(r.ctx)
		if err == nil && st == gateway.StateOffline {
			r.step(StepWaitOffline, StatusCompleted, string(st))
			return
		}
		if !time.Now().Before(deadline) {
			r.step(StepWaitOffline, StatusFailed, fmt.Sprintf("server not offline after %s, continuing", p.Timings.OfflineTimeout))
			return
		}
		if err := sleep(r.ctx, p.Timings.OfflinePoll); err != nil {
			r.step(StepWaitOffline, StatusFailed, err.Error())
			return
		}
	}
}
