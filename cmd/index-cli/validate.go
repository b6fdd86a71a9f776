package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/index-py/index-cli/bootstrap"
	"github.com/index-py/index-cli/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and check the toolchain",
	Long: `Validate the index-cli configuration.

Checks:
  - YAML syntax is valid
  - Values are in range (port, log level, log format)
  - uvicorn and gunicorn are on PATH (reported, not required)

Examples:
  index-cli validate
  index-cli validate --config deploy/index.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
	skipMark  = "\033[33m-\033[0m"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "  %s Config file not found, using environment and defaults\n", skipMark)
	} else {
		fmt.Fprintf(out, "  %s Config file exists\n", checkMark)
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	fmt.Fprintf(out, "  %s Application: %s\n", checkMark, cfg.Server.App)
	fmt.Fprintf(out, "  %s Bind: %s\n", checkMark, cfg.Server.Bind())
	fmt.Fprintf(out, "  %s Log level: %s\n", checkMark, cfg.Server.LogLevel)
	fmt.Fprintf(out, "  %s Pid file: %s\n", checkMark, cfg.Gunicorn.PIDFile)

	for _, bin := range []string{cfg.Uvicorn.Binary, cfg.Gunicorn.Binary} {
		if path, ok := bootstrap.LookupBinary(bin); ok {
			fmt.Fprintf(out, "  %s %s: %s\n", checkMark, bin, path)
		} else {
			fmt.Fprintf(out, "  %s %s: not found on PATH\n", skipMark, bin)
		}
	}

	fmt.Fprintln(out, "\nConfiguration is valid.")
	return nil
}
