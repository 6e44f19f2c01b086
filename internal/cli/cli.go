package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/stackform/internal/app"
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
	flagSet := flag.NewFlagSet("stackform", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Stackform - A declarative infrastructure description synthesizer.

Usage:
  stackform [options] [STACK_PATH]

Arguments:
  STACK_PATH
    Path to a single .hcl stack file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	stackFlag := flagSet.String("stack", "", "Path to the stack file or directory.")
	sFlag := flagSet.String("s", "", "Path to the stack file or directory (shorthand).")
	schemasFlag := flagSet.String("schemas", "schemas", "Path to the directory containing schema manifests.")
	defaultsFlag := flagSet.String("defaults", "", "Path to a YAML file of per-tier attribute defaults.")
	tierFlag := flagSet.String("tier", "development", "Environment tier to resolve defaults for.")
	outFlag := flagSet.String("out", "", "Write the synthesized blocks to a file instead of stdout.")
	formatFlag := flagSet.String("format", "hcl", "Output format for synthesized blocks. Options: 'hcl' or 'json'.")
	treeFlag := flagSet.Bool("tree", false, "Print a tree view of the synthesized blocks.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *stackFlag != "" {
		path = *stackFlag
	} else if *sFlag != "" {
		path = *sFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	format := strings.ToLower(*formatFlag)
	if format != "hcl" && format != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid format: must be 'hcl' or 'json'"}
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
		SchemasPath:  *schemasFlag,
		StackPath:    path,
		DefaultsPath: *defaultsFlag,
		Tier:         strings.ToLower(*tierFlag),
		OutPath:      *outFlag,
		Format:       format,
		Tree:         *treeFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
