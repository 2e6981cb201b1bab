// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information, set by ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies a top-level subcommand.
type Command int

const (
	CmdRun Command = iota
	CmdToggle
	CmdAsk
	CmdChat
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[string]Command{
	"run":     CmdRun,
	"toggle":  CmdToggle,
	"ask":     CmdAsk,
	"chat":    CmdChat,
	"status":  CmdStatus,
	"config":  CmdConfig,
	"version": CmdVersion,
	"help":    CmdHelp,
}

func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return "unknown"
}

// Args holds everything parsed from the command line.
type Args struct {
	// Global flags.
	ConfigPath string
	Model      string
	Endpoint   string
	Verbose    bool

	// ask
	Query     string
	NoStream  bool
	RawOutput bool

	// toggle
	Combo string

	// config
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	Positional []string
}

// ErrUsage marks an error that should be followed by the usage text.
var ErrUsage = errors.New("usage")

func usageError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, a...))
}

// =============================================================================
// PARSING
// =============================================================================

// Parse interprets argv (without the program name). Global flags are
// accepted before or after the command.
func Parse(argv []string) (Command, Args, error) {
	var args Args
	rest, cmdOverride, err := extractGlobals(argv, &args)
	if err != nil {
		return CmdHelp, args, err
	}

	cmd := CmdRun
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		c, ok := commandNames[rest[0]]
		if !ok {
			return CmdHelp, args, usageError("unknown command %q", rest[0])
		}
		cmd = c
		rest = rest[1:]
	}
	if cmdOverride != nil {
		return *cmdOverride, args, nil
	}

	p := NewArgParser(rest, "no-stream", "raw")
	args.Positional = p.PositionalFrom(0)

	switch cmd {
	case CmdAsk:
		args.Query = strings.Join(args.Positional, " ")
		args.NoStream = p.BoolFlag("no-stream")
		args.RawOutput = p.BoolFlag("raw")
	case CmdToggle:
		args.Combo = p.Flag("combo")
	case CmdConfig:
		args.Subcommand = p.Subcommand()
		if args.Subcommand == "" {
			args.Subcommand = "show"
		}
		args.ConfigKey = p.Positional(1)
		args.ConfigVal = strings.Join(p.PositionalFrom(2), " ")
	case CmdHelp:
		if p.PositionalCount() > 0 {
			args.Subcommand = p.Positional(0)
		}
	}
	return cmd, args, nil
}

// extractGlobals removes global flags from argv. --help and --version
// short-circuit whatever command follows.
func extractGlobals(argv []string, args *Args) ([]string, *Command, error) {
	var rest []string
	var override *Command
	set := func(c Command) {
		if override == nil {
			override = &c
		}
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if arg == "--" {
			rest = append(rest, argv[i:]...)
			break
		}

		name, value, inline := strings.Cut(arg, "=")
		takeValue := func() (string, error) {
			if inline {
				return value, nil
			}
			if i+1 >= len(argv) {
				return "", usageError("flag %s requires a value", name)
			}
			i++
			return argv[i], nil
		}

		var err error
		switch name {
		case "--config":
			args.ConfigPath, err = takeValue()
		case "--model", "-m":
			args.Model, err = takeValue()
		case "--endpoint":
			args.Endpoint, err = takeValue()
		case "--verbose", "-v":
			args.Verbose = true
		case "--help", "-h":
			set(CmdHelp)
		case "--version":
			set(CmdVersion)
		default:
			rest = append(rest, arg)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return rest, override, nil
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `summon - a hotkey-summoned chat window for a local model

Usage:
  summon [command] [flags]

Commands:
  run                       Start the launcher (default)
  toggle [--combo KEYS]     Show or hide a running launcher
  ask "prompt"              One-shot question, answer on stdout
      --no-stream           Wait for the whole answer
      --raw                 Print the answer without markdown rendering
  chat                      Interactive chat in the terminal
  status                    Server, model and hotkey status
  config [show]             Print the effective configuration
  config get KEY            Print one setting
  config set KEY VALUE      Change a setting in the config file
  config keys               List settable keys
  config path               Print the config file path
  version                   Print version information
  help                      Show this help

Global flags:
  --config PATH             Use this config file
  -m, --model NAME          Override model.name
  --endpoint URL            Override model.endpoint
  -v, --verbose             Debug logging
  -h, --help                Show this help
  --version                 Print version information

Environment:
  SUMMON_HOME               Config directory (default ~/.summon)
  SUMMON_MODEL, SUMMON_ENDPOINT, SUMMON_HOTKEY, SUMMON_LOG_LEVEL
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version and build information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "summon %s\n", Version)
	fmt.Fprintf(w, "  commit:  %s\n", GitCommit)
	fmt.Fprintf(w, "  built:   %s\n", BuildDate)
	fmt.Fprintf(w, "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
