package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/echobuf/internal/config"
	"github.com/calvinalkan/echobuf/internal/logging"
)

type globalFlags struct {
	workDir    string
	configPath string
	backend    string
	dataDir    string
	help       bool
}

func newGlobalFlagSet(flags *globalFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("echobuf", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(&strings.Builder{})
	fs.StringVarP(&flags.workDir, "cwd", "C", "", "Run as if started in `dir`")
	fs.StringVarP(&flags.configPath, "config", "c", "", "Use specified config `file`")
	fs.StringVar(&flags.backend, "backend", "", "Storage backend: file, badger, datastore or memory")
	fs.StringVar(&flags.dataDir, "data-dir", "", "Data directory for file and badger backends")
	fs.BoolVarP(&flags.help, "help", "h", false, "Show help")

	return fs
}

// Run is the main entry point. Returns exit code.
//
// Signals received on sigCh cancel the context passed to the command.
func Run(_ io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	var flags globalFlags

	fs := newGlobalFlagSet(&flags)

	if len(args) > 0 {
		args = args[1:]
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, fs)

			return 0
		}

		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, fs)

		return 1
	}

	rest := fs.Args()
	if flags.help || len(rest) == 0 {
		printUsage(out, fs)

		return 0
	}

	if fs.Changed("data-dir") && flags.dataDir == "" {
		fprintln(errOut, "error:", config.ErrDataDirEmpty)
		fprintln(errOut)
		printUsage(errOut, fs)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: flags.workDir,
		ConfigPath:      flags.configPath,
		BackendOverride: flags.backend,
		DataDirOverride: flags.dataDir,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	logger, err := logging.New(cfg.Log, errOut)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	defer func() { _ = logger.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	session := NewSession(&cfg, logger.Logger)

	code := session.Exec(ctx, NewIO(out, errOut), rest)

	if err := session.Close(); err != nil {
		fprintln(errOut, "error:", err)

		if code == 0 {
			code = 1
		}
	}

	return code
}

// PrintCommands writes one help line per command.
func PrintCommands(w io.Writer) {
	for _, cmd := range NewSession(&config.Config{}, nil).Commands() {
		fprintln(w, cmd.HelpLine())
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fprintln(w, `echobuf - deterministic-address buffer store

Usage: echobuf [global flags] <command> [args]

Commands:`)
	PrintCommands(w)
	fprintln(w)
	fprintln(w, "Global flags:")
	_, _ = fmt.Fprint(w, fs.FlagUsages())
	fprintln(w)
	fprintln(w, `Run "echobuf <command> --help" for command flags.`)
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
