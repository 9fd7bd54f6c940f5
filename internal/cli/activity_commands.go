package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/mph-llm-experiments/acalls/internal/config"
	"github.com/mph-llm-experiments/acalls/internal/fakeapi"
	"github.com/mph-llm-experiments/acalls/internal/feed"
	"github.com/mph-llm-experiments/acalls/internal/model"
	"github.com/mph-llm-experiments/acalls/internal/parser"
	"github.com/mph-llm-experiments/acalls/internal/service"
)

type dateGroupOutput struct {
	Date       string           `json:"date" yaml:"date"`
	Invalid    bool             `json:"invalid,omitempty" yaml:"invalid,omitempty"`
	Activities []model.Activity `json:"activities" yaml:"activities"`
}

func listCommand(ctx context.Context, cfg *config.Config) *Command {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	archived := fs.Bool("archived", false, "Show archived calls instead of active ones")

	return &Command{
		Name:        "list",
		Usage:       "acalls list [--archived]",
		Description: "List activities grouped by day, newest first",
		Flags:       fs,
		Run: func(cmd *Command, args []string) error {
			svc, err := newService(cfg)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			activities, err := svc.ListActivities(ctx)
			if err != nil {
				return err
			}
			groups := feed.Build(activities, *archived, loc)

			out := make([]dateGroupOutput, 0, len(groups))
			for _, g := range groups {
				out = append(out, dateGroupOutput{Date: g.Label, Invalid: !g.Valid(), Activities: g.Activities})
			}
			if printed, err := printStructured(out); printed {
				return err
			}

			if len(groups) == 0 {
				if *archived {
					fmt.Fprintln(stdout, "No archived activities.")
				} else {
					fmt.Fprintln(stdout, "No active activities.")
				}
				return nil
			}

			for i, g := range groups {
				if i > 0 {
					fmt.Fprintln(stdout)
				}
				fmt.Fprintln(stdout, feed.Separator(g.Label, cfg.Width))
				for _, a := range g.Activities {
					from := a.From
					if ansi.StringWidth(from) > 20 {
						from = ansi.Truncate(from, 20, "…")
					}
					summary := a.Summary()
					if ansi.StringWidth(summary) > 34 {
						summary = ansi.Truncate(summary, 34, "…")
					}
					fmt.Fprintf(stdout, "%-8s %s %-20s %-34s %s\n",
						a.ID, a.Icon().Glyph(), from, summary, feed.FormatTime(a.CreatedAt, loc))
				}
			}
			return nil
		},
	}
}

func showCommand(ctx context.Context, cfg *config.Config) *Command {
	return &Command{
		Name:        "show",
		Usage:       "acalls show <id>",
		Description: "Show call details",
		Run: func(cmd *Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: acalls show <id>")
			}

			svc, err := newService(cfg)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			activity, err := svc.GetActivity(ctx, model.ActivityID(args[0]))
			if errors.Is(err, service.ErrNotFound) {
				return fmt.Errorf("activity not found: %s", args[0])
			}
			if err != nil {
				return err
			}

			if printed, err := printStructured(activity); printed {
				return err
			}

			archived := "No"
			if activity.IsArchived {
				archived = "Yes"
			}

			// Text output
			fmt.Fprintf(stdout, "# Call Details (#%s) %s %s\n\n", activity.ID, activity.Icon().Glyph(), activity.Icon())
			fmt.Fprintf(stdout, "  From:        %s\n", activity.From)
			fmt.Fprintf(stdout, "  To:          %s\n", activity.To)
			fmt.Fprintf(stdout, "  Via:         %s\n", activity.Via)
			fmt.Fprintf(stdout, "  Direction:   %s\n", activity.Direction)
			fmt.Fprintf(stdout, "  Call Type:   %s\n", activity.CallType)
			fmt.Fprintf(stdout, "  Duration:    %s\n", feed.FormatDuration(activity.Duration))
			fmt.Fprintf(stdout, "  Created At:  %s\n", feed.FormatDateTime(activity.CreatedAt, loc))
			fmt.Fprintf(stdout, "  Archived:    %s\n", archived)
			return nil
		},
	}
}

func archiveCommand(ctx context.Context, cfg *config.Config, name string, archive bool) *Command {
	verb := "Archived"
	if !archive {
		verb = "Unarchived"
	}

	return &Command{
		Name:        name,
		Usage:       fmt.Sprintf("acalls %s <id>", name),
		Description: fmt.Sprintf("%s a call", strings.TrimSuffix(verb, "d")),
		Run: func(cmd *Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: acalls %s <id>", name)
			}

			svc, err := newService(cfg)
			if err != nil {
				return err
			}

			activity, err := svc.SetArchived(ctx, model.ActivityID(args[0]), archive)
			if errors.Is(err, service.ErrNotFound) {
				return fmt.Errorf("activity not found: %s", args[0])
			}
			if err != nil {
				return err
			}
			return reportUpdated(verb, activity)
		},
	}
}

func toggleCommand(ctx context.Context, cfg *config.Config) *Command {
	return &Command{
		Name:        "toggle",
		Usage:       "acalls toggle <id>",
		Description: "Flip the archived state of a call",
		Run: func(cmd *Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: acalls toggle <id>")
			}

			svc, err := newService(cfg)
			if err != nil {
				return err
			}

			current, err := svc.GetActivity(ctx, model.ActivityID(args[0]))
			if errors.Is(err, service.ErrNotFound) {
				return fmt.Errorf("activity not found: %s", args[0])
			}
			if err != nil {
				return err
			}

			if _, err := service.ToggleArchived(ctx, svc, current); err != nil {
				return err
			}
			// read back, the service is the source of truth
			updated, err := svc.GetActivity(ctx, current.ID)
			if err != nil {
				return err
			}

			verb := "Unarchived"
			if updated.IsArchived {
				verb = "Archived"
			}
			return reportUpdated(verb, updated)
		},
	}
}

func reportUpdated(verb string, activity model.Activity) error {
	if printed, err := printStructured(activity); printed {
		return err
	}
	if !globalFlags.Quiet {
		fmt.Fprintf(stdout, "%s activity %s (%s → %s)\n", verb, activity.ID, activity.From, activity.To)
	}
	return nil
}

func resetCommand(ctx context.Context, cfg *config.Config) *Command {
	return &Command{
		Name:        "reset",
		Usage:       "acalls reset",
		Description: "Unarchive every call",
		Run: func(cmd *Command, args []string) error {
			svc, err := newService(cfg)
			if err != nil {
				return err
			}
			if err := svc.ResetActivities(ctx); err != nil {
				return err
			}

			if printed, err := printStructured(map[string]bool{"reset": true}); printed {
				return err
			}
			if !globalFlags.Quiet {
				fmt.Fprintln(stdout, "Archived calls reset successfully!")
			}
			return nil
		},
	}
}

func serveCommand(ctx context.Context) *Command {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "Listen address")
	seedPath := fs.String("seed", "", "YAML or JSON file of activities to start from")
	statePath := fs.String("state", "", "File that keeps the activities across restarts")

	return &Command{
		Name:        "serve",
		Usage:       "acalls serve [--addr :8080] [--seed FILE] [--state FILE]",
		Description: "Run a local in-memory activity service",
		Flags:       fs,
		Run: func(cmd *Command, args []string) error {
			seed := fakeapi.DefaultSeed(time.Now())
			if *seedPath != "" {
				loaded, err := parser.ParseActivityFile(*seedPath)
				if err != nil {
					return fmt.Errorf("failed to load seed: %w", err)
				}
				seed = loaded
			}

			store := fakeapi.NewStore(seed)
			if *statePath != "" {
				opened, err := fakeapi.OpenStore(*statePath, seed)
				if err != nil {
					return err
				}
				store = opened
			}

			if !globalFlags.Quiet {
				fmt.Fprintf(stdout, "Serving activities on %s (Ctrl+C to stop)\n", *addr)
			}
			return fakeapi.NewServer(store).ListenAndServe(ctx, *addr)
		},
	}
}
