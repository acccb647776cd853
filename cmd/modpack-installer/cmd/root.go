package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/modpack-installer/internal/config"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

var (
	logLevel  string
	logFormat string
)

// globalConfig holds the loaded configuration
var globalConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "modpack-installer",
	Short: "Browse Minecraft modpack catalogs and install packs onto servers",
	Long: `modpack-installer searches Modrinth, CurseForge, ATLauncher, FeedTheBeast,
Technic and VoidsWrath, and installs a chosen modpack version onto a
Minecraft server reachable over SSH.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is ./config.{yaml,toml,json})")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Logging level (trace, debug, info, warn, error), overrides config")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Logging format (text, json), overrides config")
}

func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.New(), cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := initLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	globalConfig = cfg
	log.WithField("config", cfgFile).Debug("configuration loaded")
	return nil
}

func initLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	log.SetOutput(os.Stderr)
	return nil
}
