package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/s7dip/internal/collector"
	"github.com/tturner/s7dip/internal/config"
	"github.com/tturner/s7dip/internal/errors"
	"github.com/tturner/s7dip/internal/logging"
	"github.com/tturner/s7dip/internal/s7client"
)

type pollFlags struct {
	configPath string
	database   string
	quickStart bool
	logFile    string
	verbose    bool
	debug      bool
}

func newPollCmd() *cobra.Command {
	flags := &pollFlags{}

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll configured targets into a local database",
		Long: `Connect to the PLC from the config file and read every poll target
on the configured interval, storing samples in a SQLite database.
Runs until interrupted.`,
		Example: `  # Poll using s7dip.yaml
  s7dip poll --config s7dip.yaml

  # Create a default config on first run
  s7dip poll --quick-start`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runPoll(flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "s7dip.yaml", "Config file (default \"s7dip.yaml\")")
	cmd.Flags().StringVar(&flags.database, "database", "", "SQLite database path (overrides config)")
	cmd.Flags().BoolVar(&flags.quickStart, "quick-start", false, "Auto-generate default config if missing")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Log file path (default: stdout/stderr only)")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Enable verbose output")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug output")

	return cmd
}

func runPoll(flags *pollFlags) error {
	cfg, err := config.LoadConfig(flags.configPath, flags.quickStart)
	if err != nil {
		return err
	}

	level := logging.LogLevel(config.ParseLogLevel(cfg.Logging.Level))
	switch {
	case flags.debug:
		level = logging.LogLevelDebug
	case flags.verbose:
		level = logging.LogLevelVerbose
	}
	logFile := flags.logFile
	if logFile == "" {
		logFile = cfg.Logging.LogFile
	}
	logger, err := logging.NewLogger(level, logFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	dbPath := flags.database
	if dbPath == "" {
		dbPath = cfg.Poll.Database
	}
	if dbPath == "" {
		dbPath = "s7dip.db"
	}
	store, err := collector.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.LogStartup(cfg.Device.IP, cfg.Device.Port, cfg.Device.Rack, cfg.Device.Slot, cfg.Device.PDUSize, flags.configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := s7client.NewClient(time.Duration(cfg.Device.TimeoutMs) * time.Millisecond)
	if err := client.Connect(ctx, cfg.Device.IP, cfg.Device.Port, cfg.Device.Rack, cfg.Device.Slot, cfg.Device.PDUSize); err != nil {
		return errors.WrapNetworkError(err, cfg.Device.IP, cfg.Device.Port)
	}
	defer client.Disconnect()

	poller := collector.NewPoller(client, store, logger, cfg)
	logger.Info("Polling %d target(s) every %dms into %s", poller.TargetCount(), cfg.Poll.IntervalMs, dbPath)

	if err := poller.Run(ctx); err != nil && err != context.Canceled {
		return err
	}

	count, err := store.Count(context.Background())
	if err == nil {
		fmt.Fprintf(os.Stdout, "stored %d sample(s) in %s\n", count, dbPath)
	}
	return nil
}
