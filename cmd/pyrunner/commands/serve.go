package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/internal/app"
	"github.com/teranos/pyrunner/logger"
	"github.com/teranos/pyrunner/server"
)

// ServeCmd starts the editor backend server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the pyrunner server for editor front ends",
	Long: `Launch the pyrunner server. Each WebSocket connection on /ws gets its own
persistent Python session; /lsp serves completions to LSP clients and /api
exposes execute, complete, reset and status as JSON.`,
	RunE: runServe,
}

var servePort int

func init() {
	ServeCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Get verbosity flag - default to 1 (Info) for server
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	adapter, engine, err := app.NewAdapter(cfg, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to create completion engine")
	}
	defer engine.Close(context.Background())

	srv, err := server.New(server.Options{
		Config:     cfg,
		Adapter:    adapter,
		NewSession: app.SessionFactory(cfg, logger.ComponentLogger("interp")),
		Logger:     logger.ComponentLogger("server"),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	printStartupBanner(verbosity, cfg)

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(cfg.Server.Port)
	}()

	// Wait for shutdown signal (Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		// Server failed to start or stopped unexpectedly
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		// First Ctrl+C - graceful shutdown
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		// Wait for either shutdown completion or second Ctrl+C
		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
