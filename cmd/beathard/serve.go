package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/srg/beathard/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and dashboard WebSocket",
	Long: `Run the HTTP control API and the /ws broadcast endpoint.

Events are also published to MQTT, Redis streams and the SQLite journal
when those sinks are enabled in the config file.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().String("static", "", "Directory served for unmatched routes (overrides server.static_dir)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dir, _ := cmd.Flags().GetString("static"); dir != "" {
		cfg.Server.StaticDir = dir
	}

	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, true, nil)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	var events server.EventLog
	if a.journal != nil {
		events = a.journal
	}

	srv := server.New(a.manager, a.hub, events, server.Options{
		Addr:      cfg.Server.Addr,
		StaticDir: cfg.Server.StaticDir,
	}, logger)
	return srv.Run(ctx)
}
