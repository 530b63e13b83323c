package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/s7dip/internal/errors"
	"github.com/tturner/s7dip/internal/logging"
	"github.com/tturner/s7dip/internal/s7client"
)

// deviceFlags are the connection flags shared by read, write, and poll.
type deviceFlags struct {
	ip        string
	port      int
	rack      uint8
	slot      uint8
	pduSize   uint16
	timeoutMs int
	logFile   string
	verbose   bool
	debug     bool
}

func addDeviceFlags(cmd *cobra.Command, flags *deviceFlags) {
	cmd.Flags().StringVar(&flags.ip, "ip", "", "PLC IP address (required)")
	cmd.Flags().IntVar(&flags.port, "port", 102, "ISO-on-TCP port (default 102)")
	cmd.Flags().Uint8Var(&flags.rack, "rack", 0, "CPU rack number")
	cmd.Flags().Uint8Var(&flags.slot, "slot", 2, "CPU slot number")
	cmd.Flags().Uint16Var(&flags.pduSize, "pdu", 480, "Requested PDU size (PLC may grant less)")
	cmd.Flags().IntVar(&flags.timeoutMs, "timeout-ms", 5000, "Dial and exchange timeout in milliseconds")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Log file path (default: stdout/stderr only)")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Enable verbose output")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug output")
}

func (f *deviceFlags) logLevel() logging.LogLevel {
	switch {
	case f.debug:
		return logging.LogLevelDebug
	case f.verbose:
		return logging.LogLevelVerbose
	default:
		return logging.LogLevelInfo
	}
}

func (f *deviceFlags) newLogger() (*logging.Logger, error) {
	return logging.NewLogger(f.logLevel(), f.logFile)
}

// connectClient dials and negotiates with the PLC described by the flags.
func connectClient(ctx context.Context, f *deviceFlags, logger *logging.Logger) (*s7client.Client, error) {
	logger.LogStartup(f.ip, f.port, f.rack, f.slot, f.pduSize, "")

	client := s7client.NewClient(time.Duration(f.timeoutMs) * time.Millisecond)
	if err := client.Connect(ctx, f.ip, f.port, f.rack, f.slot, f.pduSize); err != nil {
		return nil, errors.WrapNetworkError(err, f.ip, f.port)
	}

	logger.Verbose("Negotiated PDU size: %d", client.PDULength())
	return client, nil
}
