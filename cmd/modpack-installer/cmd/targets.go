package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/modpack-installer/internal/targets"
)

var newTarget targets.Target

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage the servers modpacks are installed onto",
}

var targetsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		t := newTarget
		t.Name = args[0]
		created, err := targets.Create(ctx, d, t)
		if err != nil {
			return err
		}
		fmt.Printf("target %d %s added (%s@%s:%d %s)\n", created.ID, created.Name,
			created.SSHUser, created.Host, created.Port, created.RootDir)
		return nil
	},
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		list, err := targets.List(ctx, d)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tHOST\tROOT\tUNIT\tPROFILES")
		for _, t := range list {
			fmt.Fprintf(tw, "%d\t%s\t%s@%s:%d\t%s\t%s\t%t\n", t.ID, t.Name, t.SSHUser, t.Host, t.Port, t.RootDir, t.Unit, t.ProfilesSupported)
		}
		return tw.Flush()
	},
}

var targetsRemoveCmd = &cobra.Command{
	Use:   "remove <target>",
	Short: "Unregister a server",
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
		return targets.Delete(ctx, d, t.ID)
	},
}

func init() {
	f := targetsAddCmd.Flags()
	f.StringVar(&newTarget.Host, "host", "", "SSH host")
	f.IntVar(&newTarget.Port, "port", 22, "SSH port")
	f.StringVar(&newTarget.SSHUser, "user", "", "SSH user")
	f.StringVar(&newTarget.RootDir, "root", "", "Absolute server root directory")
	f.StringVar(&newTarget.Unit, "unit", "minecraft", "systemd unit running the server")
	f.StringVar(&newTarget.RunAs, "run-as", "", "Run file operations as this user via sudo")
	f.IntVar(&newTarget.RCONPort, "rcon-port", 0, "RCON port used to save the world before stopping")
	f.StringVar(&newTarget.RCONPassword, "rcon-password", "", "RCON password")
	f.BoolVar(&newTarget.ProfilesSupported, "profiles", false, "The server supports installer profiles")
	_ = targetsAddCmd.MarkFlagRequired("host")
	_ = targetsAddCmd.MarkFlagRequired("user")
	_ = targetsAddCmd.MarkFlagRequired("root")

	targetsCmd.AddCommand(targetsAddCmd, targetsListCmd, targetsRemoveCmd)
	rootCmd.AddCommand(targetsCmd)
}
