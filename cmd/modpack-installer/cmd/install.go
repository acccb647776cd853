package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/example/modpack-installer/internal/installer"
	"github.com/example/modpack-installer/internal/jobs"
	"github.com/example/modpack-installer/internal/modpack"
	"github.com/example/modpack-installer/internal/targets"
)

var (
	deleteExisting bool
	queueInstall   bool
)

var installCmd = &cobra.Command{
	Use:   "install <target> <provider> <modpack-id> <version-id>",
	Short: "Install a modpack version onto a registered server",
	Long: `Install runs the install pipeline against the target and shows every step
as it completes. With --queue the install is handed to the worker of a
running "serve" process instead.`,
	Args: cobra.ExactArgs(4),
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	p, err := modpack.ParseProvider(args[1])
	if err != nil {
		return err
	}
	d, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	t, err := targets.Resolve(ctx, d, args[0])
	if err != nil {
		return fmt.Errorf("target %s: %w", args[0], err)
	}
	req := jobs.InstallRequest{
		TargetID:       t.ID,
		Provider:       p,
		ModpackID:      args[2],
		VersionID:      args[3],
		DeleteExisting: deleteExisting,
	}

	cf := newCurseForge(ctx, d)
	ins := newInstaller(newCatalog(cf), cf)
	target := t.InstallTarget(globalConfig.SSH.KeyPath)
	if !ins.UsesProfile(target) && !ins.CanInstall(ctx, p, req.ModpackID, req.VersionID) {
		return fmt.Errorf("%s %s version %s has no direct download", p, req.ModpackID, req.VersionID)
	}

	if queueInstall {
		inst, err := jobs.EnqueueInstall(ctx, d, req)
		if err != nil {
			return err
		}
		fmt.Printf("queued install %d (run %s) on %s\n", inst.ID, inst.RunID, t.Name)
		return nil
	}

	inst, err := jobs.RecordInstall(ctx, d, req)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"install": inst.ID, "target": t.Name}).Info("install started")

	writer := uilive.New()
	writer.Start()
	var lines []string
	onStep := func(s installer.Step) {
		line := fmt.Sprintf("[%-9s] %s", s.Status, s.Name)
		if s.Detail != "" {
			line += ": " + s.Detail
		}
		lines = append(lines, line)
		fmt.Fprintln(writer, strings.Join(lines, "\n"))
		_ = writer.Flush()
	}
	res := jobs.Execute(ctx, d, ins, target, inst.ID, installer.Request{
		Provider:       req.Provider,
		ModpackID:      req.ModpackID,
		VersionID:      req.VersionID,
		DeleteExisting: req.DeleteExisting,
	}, onStep)
	writer.Stop()

	if !res.Success {
		if res.Reason == "" {
			return errors.New("install failed")
		}
		return errors.New(res.Reason)
	}
	fmt.Printf("installed %s %s on %s (format %s)\n", req.ModpackID, req.VersionID, t.Name, res.Format)
	return nil
}

func init() {
	installCmd.Flags().BoolVar(&deleteExisting, "delete-existing", false, "Wipe the server root before installing")
	installCmd.Flags().BoolVar(&queueInstall, "queue", false, "Enqueue the install for the serve worker instead of running it now")
	rootCmd.AddCommand(installCmd)
}
