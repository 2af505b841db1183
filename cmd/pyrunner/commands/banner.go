package commands

import (
	"github.com/pterm/pterm"

	"github.com/teranos/pyrunner/config"
	"github.com/teranos/pyrunner/logger"
	"github.com/teranos/pyrunner/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity int, cfg *config.Config) {
	versionInfo := version.Get()
	port := cfg.Server.Port

	pterm.Println()
	pterm.Println(pterm.LightCyan("   ┌─────────────────────────────────────────┐"))
	pterm.Println(pterm.LightCyan("   │  ") + pterm.Bold.Sprint("pyrunner") + pterm.LightCyan("  Python runner for editors      │"))
	pterm.Println(pterm.LightCyan("   └─────────────────────────────────────────┘"))
	pterm.Println()

	pterm.Printf("%s %s (commit %s)\n", pterm.Green("Version:  "), versionInfo.Version, versionInfo.CommitHash)
	pterm.Printf("%s %s\n", pterm.Green("Python:   "), cfg.Python.Command)
	pterm.Printf("%s %s\n", pterm.Green("Engine:   "), cfg.Completion.Engine)
	pterm.Printf("%s %s\n", pterm.Green("Verbosity:"), logger.LevelName(verbosity))
	pterm.Println()

	pterm.Printf("%s ws://localhost:%d/ws\n", pterm.Yellow("Run protocol:"), port)
	pterm.Printf("%s ws://localhost:%d/lsp\n", pterm.Yellow("LSP:         "), port)
	pterm.Printf("%s http://localhost:%d/api/\n", pterm.Yellow("JSON API:    "), port)
	pterm.Println()
	pterm.Info.Println("Press Ctrl+C to stop")
	pterm.Println()
}
