package main

import (
	"github.com/index-py/index-cli/ports"
	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec -- <command...>",
	Short: "Run a shell command in the foreground",
	Long: `Run a command through the configured shell (exec.shell, default /bin/sh).

The arguments are joined with spaces and passed to "<shell> -c". The
command runs in the foreground and can read the terminal. Ctrl-C or SIGTERM
stops it, and index-cli exits with the command's exit code.

Examples:
  index-cli exec -- alembic upgrade head
  index-cli exec -- 'pytest -x && echo done'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	code, err := a.Runner.Run(cmd.Context(), ports.RunSpec{
		Shell: a.Config.Exec.Shell,
		Args:  args,
		Dir:   a.Dir,
	})
	if err != nil {
		return err
	}
	a.Metrics.ChildExited("exec", code)
	return exitWith(code)
}
