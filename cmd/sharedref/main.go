package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/sharedref/config"
	"github.com/wippyai/sharedref/handle"
	"github.com/wippyai/sharedref/host"
	"github.com/wippyai/sharedref/resource"
	"github.com/wippyai/sharedref/script"
)

// command holds the mode selected on the command line.
type command struct {
	scenario    string
	script      string
	list        bool
	interactive bool
	printConfig bool
}

func main() {
	var (
		configFile   = flag.String("config", "sharedref.yaml", "Path to config file (optional)")
		scenarioName = flag.String("scenario", "", "Built-in or configured scenario to run, or \"all\"")
		scriptFile   = flag.String("script", "", "Path to a scenario YAML file")
		list         = flag.Bool("list", false, "List host functions and exit")
		interactive  = flag.Bool("i", false, "Interactive mode with TUI")
		printConfig  = flag.Bool("print-config", false, "Print the effective configuration and exit")
		verbose      = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Logger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	handle.SetLogger(logger.Named("handle"))
	resource.SetLogger(logger.Named("resource"))
	host.SetLogger(logger.Named("host"))

	code := dispatch(cfg, logger, command{
		scenario:    *scenarioName,
		script:      *scriptFile,
		list:        *list,
		interactive: *interactive,
		printConfig: *printConfig,
	})
	_ = logger.Sync()
	os.Exit(code)
}

// dispatch runs the selected command and returns the exit code.
func dispatch(cfg *config.Config, logger *zap.Logger, cmd command) int {
	switch {
	case cmd.printConfig:
		out, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Print(out)

	case cmd.list:
		listFunctions()

	case cmd.interactive:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i needs a terminal")
			return 1
		}
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}

	case cmd.scenario != "" || cmd.script != "":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := run(ctx, cfg, logger, cmd.scenario, cmd.script); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}

	default:
		fmt.Fprintln(os.Stderr, "Usage: sharedref -scenario <name|all> [-config file] [-v]")
		fmt.Fprintln(os.Stderr, "       sharedref -script <file.yaml>")
		fmt.Fprintln(os.Stderr, "       sharedref -list")
		fmt.Fprintln(os.Stderr, "       sharedref -print-config")
		fmt.Fprintln(os.Stderr, "       sharedref -i  (interactive mode)")
		return 1
	}
	return 0
}

func listFunctions() {
	h := host.New(resource.NewTable())
	fmt.Printf("Host module %q:\n", host.ModuleName)
	for _, f := range h.Functions() {
		fmt.Printf("  %s\n", host.Signature(f))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, name, file string) error {
	scripts, err := collect(cfg, name, file)
	if err != nil {
		return err
	}

	runner := script.NewRunner(logger.Named("script"), cfg.HandleOptions()...)
	failed := 0
	for _, s := range scripts {
		fmt.Printf("=== %s\n", s.Name)
		if s.Description != "" {
			fmt.Printf("    %s\n", s.Description)
		}

		report, err := runner.Run(ctx, s)
		if report != nil {
			for _, line := range report.Lines {
				fmt.Printf("    %s\n", line)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed++
			fmt.Printf("--- FAIL %s: %v\n", s.Name, err)
			continue
		}
		fmt.Printf("--- PASS %s (retired %d, %s count)\n", s.Name, report.Retired, report.Mode)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenario(s) failed", failed, len(scripts))
	}
	return nil
}

// collect resolves the scenarios selected on the command line. Configured
// scenarios shadow built-in ones of the same name.
func collect(cfg *config.Config, name, file string) ([]*script.Script, error) {
	var scripts []*script.Script
	if file != "" {
		s, err := script.Load(file)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	if name == "" {
		return scripts, nil
	}

	available, err := script.Builtin()
	if err != nil {
		return nil, err
	}
	if cfg.Scenarios.Dir != "" {
		extra, err := script.LoadDir(cfg.Scenarios.Dir)
		if err != nil {
			return nil, err
		}
		available = merge(available, extra)
	}

	if name == "all" {
		return append(scripts, available...), nil
	}
	for _, s := range available {
		if s.Name == name {
			return append(scripts, s), nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found", name)
}

func merge(base, extra []*script.Script) []*script.Script {
	byName := make(map[string]int, len(base))
	for i, s := range base {
		byName[s.Name] = i
	}
	for _, s := range extra {
		if i, ok := byName[s.Name]; ok {
			base[i] = s
			continue
		}
		byName[s.Name] = len(base)
		base = append(base, s)
	}
	return base
}
