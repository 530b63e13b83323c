package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/s7dip/internal/config"
)

type validateConfigFlags struct {
	configPath string
}

func newValidateConfigCmd() *cobra.Command {
	flags := &validateConfigFlags{}

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Validate a config file",
		Example: `  s7dip validate-config --config s7dip.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.configPath == "" && len(args) > 0 {
				flags.configPath = args[0]
			}
			cfg, err := config.LoadConfig(flags.configPath, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s is valid: device %s:%d, %d target(s)\n",
				flags.configPath, cfg.Device.IP, cfg.Device.Port, len(cfg.Targets))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "s7dip.yaml", "Config file (default \"s7dip.yaml\")")

	return cmd
}
