// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/loadstone/loadstone/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("loadstone", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Loadstone - A mod dependency-resolution and load-orchestration engine.

Usage:
  loadstone [options] [MODS_PATH]

Arguments:
  MODS_PATH
    Root directory containing one subdirectory per mod, each with a mod.hcl manifest.

Options:
`)
		flagSet.PrintDefaults()
	}

	modsFlag := flagSet.String("mods", "", "Path to the mod root directory.")
	mFlag := flagSet.String("m", "", "Path to the mod root directory (shorthand).")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	metricsPortFlag := flagSet.Int("metrics-port", 0, "Port for the Prometheus metrics listener. 0 is disabled.")
	watchFlag := flagSet.Bool("watch", false, "Watch manifests and reload mods on change.")
	scanWorkersFlag := flagSet.Int("scan-workers", 0, "Number of concurrent manifest parsers. 0 uses the default.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *modsFlag != "" {
		path = *modsFlag
	} else if *mFlag != "" {
		path = *mFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		slog.Debug("No mods path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		ModsPath:    path,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		MetricsPort: *metricsPortFlag,
		Watch:       *watchFlag,
		ScanWorkers: *scanWorkersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
