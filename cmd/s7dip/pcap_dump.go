package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/s7dip/internal/pcap"
)

type pcapDumpFlags struct {
	inputFile   string
	maxEntries  int
	showPayload bool
	refsOnly    bool
}

func newPcapDumpCmd() *cobra.Command {
	flags := &pcapDumpFlags{}

	cmd := &cobra.Command{
		Use:   "pcap-dump",
		Short: "Dump S7 frames from a PCAP",
		Long: `Dump S7comm frames extracted from port 102 traffic in a PCAP file.

This is intended for targeted investigation of captured PLC sessions.`,
		Example: `  # Dump the first 10 S7 frames
  s7dip pcap-dump --input captures/plc.pcap --max 10

  # Include a framed hex dump of each frame
  s7dip pcap-dump --input captures/plc.pcap --payload`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.inputFile == "" && len(args) > 0 {
				flags.inputFile = args[0]
			}
			if flags.inputFile == "" {
				return missingFlagError(cmd, "--input")
			}
			return runPcapDump(flags)
		},
	}

	cmd.Flags().StringVar(&flags.inputFile, "input", "", "Input PCAP file (required)")
	cmd.Flags().IntVar(&flags.maxEntries, "max", 10, "Maximum number of frames to dump (0 = all)")
	cmd.Flags().BoolVar(&flags.showPayload, "payload", false, "Include an annotated hex dump of each frame")
	cmd.Flags().BoolVar(&flags.refsOnly, "refs", false, "Print only PDU references (for pairing requests and responses)")

	return cmd
}

func runPcapDump(flags *pcapDumpFlags) error {
	packets, err := pcap.ExtractS7FromPCAP(flags.inputFile)
	if err != nil {
		return err
	}

	if len(packets) == 0 {
		fmt.Fprintln(os.Stdout, "no S7 frames found")
		return nil
	}

	shown := 0
	for _, pkt := range packets {
		if flags.maxEntries > 0 && shown >= flags.maxEntries {
			break
		}
		shown++

		if flags.refsOnly {
			fmt.Fprintf(os.Stdout, "ref=%d %s\n", pkt.PDURef, pkt.Description)
			continue
		}

		fmt.Fprintf(os.Stdout, "[%s] %s:%d -> %s:%d  %s (ref=%d, %d bytes)\n",
			pkt.Timestamp.Format("15:04:05.000"),
			pkt.SrcIP, pkt.SrcPort, pkt.DstIP, pkt.DstPort,
			pkt.Description, pkt.PDURef, len(pkt.FullFrame))

		if flags.showPayload {
			fmt.Fprintln(os.Stdout, pcap.FormatPacketHex(pkt.FullFrame, true))
		}
	}

	fmt.Fprintf(os.Stdout, "%d of %d frame(s) shown\n", shown, len(packets))
	return nil
}
