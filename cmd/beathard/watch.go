package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/stats"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <device-id> [device-id...]",
	Short: "Connect sensors and print strikes as they land",
	Long: `Connect one or more sensors for a single competitor and print every
classified strike and new personal record until interrupted.

Device IDs are sensor addresses as listed by 'beathard scan'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var (
	watchFighterID   uint32
	watchFighterName string
	watchWeight      float64
	watchRaw         bool
)

func init() {
	watchCmd.Flags().Uint32Var(&watchFighterID, "fighter-id", 1, "Competitor id")
	watchCmd.Flags().StringVar(&watchFighterName, "fighter-name", "", "Competitor name (defaults to 'Fighter <id>')")
	watchCmd.Flags().Float64Var(&watchWeight, "weight", 70, "Competitor weight in kg")
	watchCmd.Flags().BoolVar(&watchRaw, "raw", false, "Connect without a competitor (no strike classification)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchWeight <= 0 {
		return fmt.Errorf("invalid weight %.1f: must be positive", watchWeight)
	}

	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := newEventPrinter(cmd.OutOrStdout())
	a, err := newApp(ctx, cfg, logger, false, map[string]broadcast.Publisher{"console": printer})
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	var competitor *detection.Competitor
	if !watchRaw {
		name := watchFighterName
		if name == "" {
			name = fmt.Sprintf("Fighter %d", watchFighterID)
		}
		competitor = &detection.Competitor{ID: watchFighterID, Name: name, Weight: watchWeight}
	}

	for _, id := range args {
		if err := a.manager.Connect(ctx, id, competitor); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s. Press Ctrl+C to stop.\n", strings.Join(args, ", "))
	<-ctx.Done()

	if err := a.manager.DisconnectAll(); err != nil {
		logger.WithError(err).Warn("Disconnect reported errors")
	}
	return nil
}

// eventPrinter writes one line per broadcast message.
type eventPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newEventPrinter(out io.Writer) *eventPrinter {
	return &eventPrinter{out: out}
}

func (p *eventPrinter) Publish(_ context.Context, msg broadcast.Message) error {
	line := formatMessage(msg)
	if line == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.out, line)
	return err
}

var (
	slapColor   = color.New(color.FgCyan, color.Bold)
	kickColor   = color.New(color.FgMagenta, color.Bold)
	recordColor = color.New(color.FgYellow, color.Bold)
	dimColor    = color.New(color.Faint)
)

func formatMessage(msg broadcast.Message) string {
	ts := dimColor.Sprint(time.UnixMilli(msg.Timestamp).Format("15:04:05.000"))

	switch msg.Kind {
	case broadcast.KindCombatEvent:
		if msg.Event == nil {
			return ""
		}
		ev := msg.Event
		c := slapColor
		if ev.EventType == detection.LowKick {
			c = kickColor
		}
		return fmt.Sprintf("%s %s %-14s %-12s force %7.1f N  vel %5.2f m/s  acc %6.1f m/s²  conf %.2f",
			ts, c.Sprintf("%-8s", strings.ToUpper(string(ev.EventType))), ev.LimbName, ev.CompetitorName,
			ev.Force, ev.Velocity, ev.Acceleration, ev.Confidence)

	case broadcast.KindNewRecord:
		if msg.Stats == nil {
			return ""
		}
		return fmt.Sprintf("%s %s %s: %s", ts, recordColor.Sprint("NEW RECORD"), msg.Stats.CompetitorName, recordSummary(msg.Stats, msg.Records))

	case broadcast.KindStatsReset:
		return fmt.Sprintf("%s records reset", ts)

	default:
		return ""
	}
}

func recordSummary(rec *stats.Record, broken []stats.Kind) string {
	parts := make([]string, 0, len(broken))
	for _, k := range broken {
		switch k {
		case stats.Force:
			parts = append(parts, fmt.Sprintf("force %.1f N", rec.MaxForce))
		case stats.Velocity:
			parts = append(parts, fmt.Sprintf("velocity %.2f m/s", rec.MaxVelocity))
		case stats.Acceleration:
			parts = append(parts, fmt.Sprintf("acceleration %.1f m/s²", rec.MaxAcceleration))
		}
	}
	return strings.Join(parts, ", ")
}
