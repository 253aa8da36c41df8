// echorepl is an interactive shell over one echobuf store.
//
// Usage:
//
//	echorepl [-C dir] [-c config] [--backend name] [--data-dir dir]
//
// The store stays open for the whole session, so the in-memory backends
// ("memory", "datastore", the default here) keep slots between commands.
// Every echobuf command is available; arguments are split on whitespace,
// so pass payloads containing spaces with --hex.
//
// Commands (in REPL):
//
//	<echobuf command> [args]   Run a command, e.g. "create echo --owner 01 --capacity 4"
//	help                       Show this help
//	exit / quit / q            Exit
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/echobuf/internal/cli"
	"github.com/calvinalkan/echobuf/internal/config"
	"github.com/calvinalkan/echobuf/internal/logging"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("echorepl", flag.ContinueOnError)
	workDir := fs.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := fs.StringP("config", "c", "", "Use specified config `file`")
	backend := fs.String("backend", "", "Storage backend (default datastore)")
	dataDir := fs.String("data-dir", "", "Data directory for file and badger backends")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *workDir,
		ConfigPath:      *configPath,
		BackendOverride: *backend,
		DataDirOverride: *dataDir,
		DefaultBackend:  config.BackendDatastore,
		Env:             env,
	})
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	defer func() { _ = logger.Close() }()

	r := &REPL{session: cli.NewSession(&cfg, logger.Logger)}

	runErr := r.Run()

	return errors.Join(runErr, r.session.Close())
}

// REPL is the interactive command loop.
type REPL struct {
	session *cli.Session
	liner   *liner.State
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".echorepl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	defer r.saveHistory()

	cfg := r.session.Config()
	fmt.Printf("echorepl - echobuf shell (backend=%s)\n", cfg.Backend)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	o := cli.NewIO(os.Stdout, os.Stderr)
	ctx := context.Background()

	for {
		line, err := r.liner.Prompt("echobuf> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		args := strings.Fields(line)

		switch args[0] {
		case "exit", "quit", "q":
			fmt.Println("Bye!")

			return nil
		case "help", "?":
			printHelp()
		default:
			r.session.Exec(ctx, o, args)
		}
	}
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = r.liner.WriteHistory(f)
			_ = f.Close()
		}
	}
}

// completer provides tab completion for command names.
func (r *REPL) completer(line string) []string {
	names := []string{"help", "exit", "quit"}
	for _, cmd := range r.session.Commands() {
		names = append(names, cmd.Name())
	}

	var completions []string

	for _, name := range names {
		if strings.HasPrefix(name, line) {
			completions = append(completions, name)
		}
	}

	return completions
}

func printHelp() {
	fmt.Println("Commands:")
	cli.PrintCommands(os.Stdout)
	fmt.Println("  help           Show this help")
	fmt.Println("  exit / quit    Exit")
	fmt.Println()
	fmt.Println(`Run "<command> --help" for command flags.`)
}
