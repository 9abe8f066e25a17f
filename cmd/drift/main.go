package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/halvext/drift/internal/config"
	"github.com/halvext/drift/internal/db"
	"github.com/halvext/drift/internal/engine"
	"github.com/halvext/drift/internal/inference"
	"github.com/halvext/drift/internal/mcp"
	"github.com/halvext/drift/internal/scheduler"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"record-search": true, "record-page": true, "close-session": true,
	"get": true, "history": true, "summary": true,
	"status": true, "reset": true, "web": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       _      _  __ _
    __| |_ __(_)/ _| |_
   / _` + "`" + ` | '__| | |_| __|
  | (_| | |  | |  _| |_
   \__,_|_|  |_|_|  \__|

  Behavioral profile synthesis engine

  Usage: drift <command> [options]
         drift --help

  MCP server mode requires piped input.`)
}

// newInferenceService builds the child-process runner when one is
// configured. A nil service means the heuristic rungs handle everything.
func newInferenceService(cfg *config.Config) inference.Service {
	if cfg.InferenceCommand == "" {
		return nil
	}
	timeout := inference.DefaultTimeout
	if cfg.InferenceTimeoutSecs > 0 {
		timeout = time.Duration(cfg.InferenceTimeoutSecs) * time.Second
	}
	return inference.NewRunner(cfg.InferenceCommand, cfg.InferenceArgs, timeout)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".drift")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	// Stdout carries JSON (CLI) or the MCP stream; logs go to stderr.
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "drift",
	})

	eng := engine.New(database, cfg, newInferenceService(cfg), logger)
	defer eng.Close()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(database, cfg, eng)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'drift --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default). The poller keeps deferred enrichment
	// moving for as long as the server is up.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.StartPoller(ctx, scheduler.DefaultPollInterval)

	if err := mcp.Run(database, cfg, eng, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
