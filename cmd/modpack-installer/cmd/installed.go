package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/modpack-installer/internal/targets"
	"github.com/example/modpack-installer/internal/tracker"
)

var installedCmd = &cobra.Command{
	Use:   "installed <target>",
	Short: "Show the modpack installed on a server and whether an update exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		t, err := targets.Resolve(ctx, d, args[0])
		if err != nil {
			return fmt.Errorf("target %s: %w", args[0], err)
		}
		fs := t.Gateway(globalConfig.SSH.KeyPath)
		rec := tracker.Get(ctx, fs)
		if rec == nil {
			fmt.Printf("no modpack recorded on %s\n", t.Name)
			return nil
		}
		when := "at an unknown time"
		if !rec.InstalledAt.IsZero() {
			when = rec.InstalledAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%s %s (%s/%s), installed %s\n", rec.ModpackName, rec.VersionName,
			rec.Provider, rec.ModpackID, when)

		latest := newCatalog(newCurseForge(ctx, d)).LatestVersion(ctx, rec.Provider, rec.ModpackID)
		switch {
		case latest == nil:
			fmt.Println("latest version unknown")
		case tracker.HasUpdate(ctx, fs, latest.ID):
			fmt.Printf("update available: %s (%s)\n", latest.Name, latest.ID)
		default:
			fmt.Println("up to date")
		}
		return nil
	},
}

var installedClearCmd = &cobra.Command{
	Use:   "clear <target>",
	Short: "Forget the recorded install on a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		t, err := targets.Resolve(ctx, d, args[0])
		if err != nil {
			return fmt.Errorf("target %s: %w", args[0], err)
		}
		if err := tracker.Clear(ctx, t.Gateway(globalConfig.SSH.KeyPath)); err != nil {
			return err
		}
		fmt.Printf("install record cleared on %s\n", t.Name)
		return nil
	},
}

func init() {
	installedCmd.AddCommand(installedClearCmd)
	rootCmd.AddCommand(installedCmd)
}
