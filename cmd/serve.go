package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitegen/internal/build"
	"github.com/conneroisu/sitegen/internal/config"
	"github.com/conneroisu/sitegen/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the development server with live reload",
	Long: `Build the site, serve the output directory over HTTP, and rebuild on
every source change, reloading connected browsers automatically.

A broken page never stops the server: the last good output keeps being
served and the error is reported on the console.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8000, "port to serve on")
	serveCmd.Flags().String("host", "localhost", "host to bind to")
	serveCmd.Flags().Bool("no-open", false, "don't open a browser tab")
	serveCmd.Flags().Duration("debounce", 300*time.Millisecond, "quiescence window for change detection")

	bindFlags(serveCmd.Flags(), map[string]string{
		"server.port":    "port",
		"server.host":    "host",
		"watch.debounce": "debounce",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if noOpen, _ := cmd.Flags().GetBool("no-open"); noOpen || viper.GetBool("server.no_open") {
		cfg.Server.Open = false
	}

	log := newLogger()
	builder := build.New(cfg, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial full build. Per-entry failures are reported and served
	// around; only a fatal error (bad input root) stops dev mode.
	report, err := builder.Build(ctx, build.FullScope())
	if err != nil {
		return err
	}
	for _, f := range report.Failed {
		log.Error(f.Err, "entry failed in initial build", "path", f.Path)
	}

	srv, err := server.New(cfg, builder, log)
	if err != nil {
		return err
	}

	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
