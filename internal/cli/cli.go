package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mph-llm-experiments/acalls/internal/config"
	"github.com/mph-llm-experiments/acalls/internal/model"
	"github.com/mph-llm-experiments/acalls/internal/service"
	"github.com/mph-llm-experiments/acalls/internal/ui"
)

// Run executes the CLI with the given config and arguments.
func Run(cfg *config.Config, args []string) error {
	remaining, err := ParseGlobalFlags(args)
	if err != nil {
		return err
	}

	// Reload config if --config flag was provided
	if globalFlags.Config != "" {
		newCfg, err := config.Load(globalFlags.Config)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = newCfg
	}

	// --api wins over the config file and ACALLS_API_URL
	if globalFlags.API != "" {
		cfg.APIURL = globalFlags.API
	}

	if globalFlags.NoColor {
		os.Setenv("NO_COLOR", "1")
	}

	closeLog, err := setupLogging(cfg, len(remaining) > 0 && remaining[0] == "serve")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// If no arguments, launch TUI
	if len(remaining) == 0 {
		return runTUI(ctx, cfg)
	}

	// Create root command
	root := &Command{
		Name:  "acalls",
		Usage: "acalls <command> [options]",
		Description: `Browse and archive call activity from the activity service.
Run without a command to open the interactive viewer.

Commands:
  list       List activities grouped by day
  show       Show call details
  archive    Archive a call
  unarchive  Unarchive a call
  toggle     Flip the archived state of a call
  reset      Unarchive every call
  serve      Run a local in-memory activity service

Global Options:
  --config PATH  Use specific config file
  --api URL      Activity service base URL
  --open ID      Open the viewer on a call's details
  --json         Output in JSON format
  --yaml         Output in YAML format
  --no-color     Disable color output
  --quiet, -q    Minimal output
  --debug        Write a debug log (log_file or acalls-debug.log)`,
	}

	root.Subcommands = append(root.Subcommands,
		listCommand(ctx, cfg),
		showCommand(ctx, cfg),
		archiveCommand(ctx, cfg, "archive", true),
		archiveCommand(ctx, cfg, "unarchive", false),
		toggleCommand(ctx, cfg),
		resetCommand(ctx, cfg),
		serveCommand(ctx),
	)

	return root.Execute(remaining)
}

func runTUI(ctx context.Context, cfg *config.Config) error {
	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	m := ui.NewModel(svc, ui.Options{
		Context:        ctx,
		Location:       loc,
		Timeout:        cfg.Timeout.Duration,
		NotifyDuration: cfg.NotifyDuration.Duration,
		Width:          cfg.Width,
		OpenID:         model.ActivityID(globalFlags.Open),
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func newService(cfg *config.Config) (*service.Client, error) {
	return service.NewClient(cfg.APIURL, service.WithTimeout(cfg.Timeout.Duration))
}

// setupLogging routes the standard logger. The TUI owns the terminal, so logs
// go to a file when debugging is on and are dropped otherwise; serve logs to
// stderr.
func setupLogging(cfg *config.Config, serving bool) (func(), error) {
	path := cfg.LogFile
	if path == "" && globalFlags.Debug {
		path = "acalls-debug.log"
	}

	if path != "" {
		f, err := tea.LogToFile(path, "acalls")
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return func() { f.Close() }, nil
	}

	if serving {
		log.SetOutput(stderr)
	} else {
		log.SetOutput(io.Discard)
	}
	return func() {}, nil
}
