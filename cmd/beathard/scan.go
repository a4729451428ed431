package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/beathard/internal/supervisor"
	"golang.org/x/term"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List nearby BH- sensors",
	Long: `Scan for BH- motion sensors and list them with their limb assignment.

The scan stops after --duration or once 8 sensors have been found,
whichever comes first.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (defaults to radio.scan_budget)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	if scanDuration > 0 {
		cfg.Radio.ScanBudget = scanDuration
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := supervisor.New(adapterFactory(logger, cfg.Radio.QueueSize), nil, cfg.ManagerOptions(), logger)
	defer func() { _ = m.Cleanup(context.Background()) }()

	out := cmd.OutOrStdout()
	if scanFormat == "table" && isTerminal(os.Stdout) {
		fmt.Fprintf(out, "Scanning for sensors (%s)...\n", cfg.Radio.ScanBudget)
	}

	results, err := m.Scan(ctx)
	if err != nil {
		return err
	}

	if scanFormat == "json" {
		return writeScanJSON(out, results)
	}
	return writeScanTable(out, results)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func writeScanJSON(w io.Writer, results []supervisor.ScanResult) error {
	if results == nil {
		results = []supervisor.ScanResult{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func writeScanTable(w io.Writer, results []supervisor.ScanResult) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "No sensors discovered")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tLIMB\tCONNECTABLE\tRSSI")
	fmt.Fprintln(tw, strings.Repeat("-", 72))
	for _, r := range results {
		connectable := "no"
		if r.IsConnectable {
			connectable = "yes"
		}
		// colour goes last so escape codes never skew the column widths
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Address, r.LimbName, connectable, rssiColor(r.RSSI).Sprintf("%d dBm", r.RSSI))
	}
	return tw.Flush()
}

func rssiColor(rssi int) *color.Color {
	switch {
	case rssi >= -60:
		return color.New(color.FgGreen)
	case rssi >= -80:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
