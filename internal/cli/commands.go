package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output streams; tests replace them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Command represents a CLI command.
type Command struct {
	Name        string
	Usage       string
	Description string
	Flags       *flag.FlagSet
	Run         func(cmd *Command, args []string) error
	Subcommands []*Command
}

// Execute runs the command, dispatching to subcommands if appropriate.
func (c *Command) Execute(args []string) error {
	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		if args[0] == "help" {
			c.PrintUsage()
			return nil
		}
		for _, sub := range c.Subcommands {
			if sub.Name == args[0] {
				return sub.Execute(args[1:])
			}
		}
		return fmt.Errorf("unknown command %q (see '%s help')", args[0], c.Name)
	}

	// Parse flags - reorder args so flags come before positional args
	if c.Flags != nil {
		c.Flags.SetOutput(stderr)
		reordered := reorderFlagsFirst(args, c.Flags)
		if err := c.Flags.Parse(reordered); err != nil {
			return err
		}
		args = c.Flags.Args()
	}

	if c.Run != nil {
		return c.Run(c, args)
	}

	c.PrintUsage()
	return nil
}

// PrintUsage prints command usage to stderr.
func (c *Command) PrintUsage() {
	fmt.Fprintf(stderr, "Usage: %s\n\n", c.Usage)
	if c.Description != "" {
		fmt.Fprintf(stderr, "%s\n\n", c.Description)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(stderr, "Commands:\n")
		maxLen := 0
		for _, sub := range c.Subcommands {
			if len(sub.Name) > maxLen {
				maxLen = len(sub.Name)
			}
		}
		for _, sub := range c.Subcommands {
			desc := sub.Description
			if idx := strings.Index(desc, "\n"); idx >= 0 {
				desc = desc[:idx]
			}
			fmt.Fprintf(stderr, "  %-*s  %s\n", maxLen+2, sub.Name, desc)
		}
		fmt.Fprintln(stderr)
	}

	if c.Flags != nil {
		fmt.Fprintf(stderr, "Flags:\n")
		c.Flags.SetOutput(stderr)
		c.Flags.PrintDefaults()
	}
}

// reorderFlagsFirst moves flag arguments before positional arguments so that
// Go's flag.Parse (which stops at the first non-flag arg) can find them all.
func reorderFlagsFirst(args []string, fs *flag.FlagSet) []string {
	var flags, positional []string
	i := 0
	for i < len(args) {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				i++
				continue
			}
			f := fs.Lookup(name)
			if f != nil && isBoolFlag(f) {
				i++
				continue
			}
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
		i++
	}
	return append(flags, positional...)
}

func isBoolFlag(f *flag.Flag) bool {
	type boolFlagger interface {
		IsBoolFlag() bool
	}
	if bf, ok := f.Value.(boolFlagger); ok {
		return bf.IsBoolFlag()
	}
	return false
}

// GlobalFlags holds global CLI flags.
type GlobalFlags struct {
	Config  string
	API     string
	Open    string
	NoColor bool
	JSON    bool
	YAML    bool
	Quiet   bool
	Debug   bool
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the current global flags.
func GetGlobalFlags() *GlobalFlags {
	return &globalFlags
}

// ParseGlobalFlags extracts global flags from args, returning remaining args.
func ParseGlobalFlags(args []string) ([]string, error) {
	valueFlags := map[string]*string{
		"--config": &globalFlags.Config,
		"--api":    &globalFlags.API,
		"--open":   &globalFlags.Open,
	}
	boolFlags := map[string]*bool{
		"--no-color": &globalFlags.NoColor,
		"--json":     &globalFlags.JSON,
		"--yaml":     &globalFlags.YAML,
		"--quiet":    &globalFlags.Quiet,
		"-q":         &globalFlags.Quiet,
		"--debug":    &globalFlags.Debug,
	}

	var remaining []string
	i := 0
	for i < len(args) {
		arg := args[i]

		// Flags that take a value
		if dst, ok := valueFlags[arg]; ok {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("flag %s requires a value", arg)
			}
			*dst = args[i+1]
			i += 2
			continue
		}

		// --flag=value syntax
		if name, value, found := strings.Cut(arg, "="); found {
			if dst, ok := valueFlags[name]; ok {
				*dst = value
				i++
				continue
			}
		}

		if dst, ok := boolFlags[arg]; ok {
			*dst = true
			i++
			continue
		}

		remaining = append(remaining, arg)
		i++
	}

	if globalFlags.JSON && globalFlags.YAML {
		return nil, fmt.Errorf("--json and --yaml are mutually exclusive")
	}
	return remaining, nil
}

// printStructured writes v as JSON or YAML when one of those outputs was
// requested. It reports whether it printed anything.
func printStructured(v any) (bool, error) {
	switch {
	case globalFlags.JSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
		return true, nil
	case globalFlags.YAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("failed to marshal YAML: %w", err)
		}
		fmt.Fprint(stdout, string(data))
		return true, nil
	}
	return false, nil
}
