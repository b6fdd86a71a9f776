package main

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [application]",
	Short: "Run the application under uvicorn in the foreground",
	Long: `Run the ASGI application under uvicorn.

The application is a "module:attribute" reference; it defaults to
server.app from the configuration (main:app). The working directory is
put in front of PYTHONPATH so the module is importable.

Examples:
  index-cli serve
  index-cli serve api.main:app
  INDEX_AUTORELOAD=true index-cli serve`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	var application string
	if len(args) > 0 {
		application = args[0]
	}

	code, err := a.Launcher.Serve(cmd.Context(), application)
	if err != nil {
		return err
	}
	return exitWith(code)
}
