package cmd

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/example/modpack-installer/internal/jobs"
	"github.com/example/modpack-installer/internal/server"
	"github.com/example/modpack-installer/internal/sshkeys"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the install worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		pub, err := sshkeys.EnsureKeyPair(globalConfig.SSH.KeyPath)
		if err != nil {
			return err
		}
		log.WithField("public_key", pub).Info("ssh key ready, authorize it on every target")

		cf := newCurseForge(ctx, d)
		cat := newCatalog(cf)
		tf := jobs.SSHTargets(d, globalConfig.SSH.KeyPath)

		ins := newInstaller(cat, cf)
		worker := jobs.NewWorker(d, ins, tf)
		worker.Start()
		defer worker.Stop()

		addr := globalConfig.ListenAddr
		if listenAddr != "" {
			addr = listenAddr
		}
		srv := server.New(d, globalConfig, cat, cf, ins, tf)
		err = srv.ListenAndServe(ctx, addr)
		log.Info("shutting down")
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address, overrides listen_addr")
	rootCmd.AddCommand(serveCmd)
}
