package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/echobuf/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			execPrintConfig(o, cfg)

			return nil
		},
	}
}

func execPrintConfig(o *IO, cfg *config.Config) {
	o.Println("effective_cwd=" + cfg.EffectiveCwd)
	o.Println("backend=" + cfg.Backend)
	o.Println("data_dir=" + cfg.DataDirAbs)

	if cfg.MaxCapacity != 0 {
		o.Println(fmt.Sprintf("max_capacity=%d", cfg.MaxCapacity))
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.Namespaces)) {
		o.Println("namespace." + name + "=" + cfg.Namespaces[name])
	}

	o.Println("log.level=" + cfg.Log.Level)
	o.Println("log.format=" + cfg.Log.Format)

	if cfg.Log.File != "" {
		o.Println("log.file=" + cfg.Log.File)
	}

	o.Println("")
	o.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		o.Println("(defaults only)")

		return
	}

	if cfg.Sources.Global != "" {
		o.Println("global_config=" + cfg.Sources.Global)
	}

	if cfg.Sources.Project != "" {
		o.Println("project_config=" + cfg.Sources.Project)
	}
}
