package main

import (
	"errors"
	"strconv"

	"github.com/index-py/index-cli/core/formatter"
	"github.com/index-py/index-cli/domain/gunicorn"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyOutput string
)

var gunicornHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent control actions",
	Long: `List the newest entries of the control journal (journal.dsn).

Every start, incr, decr, stop and reload is recorded with the master pid,
the signals delivered and the outcome.

Examples:
  index-cli gunicorn history
  index-cli gunicorn history --limit 5 --output json`,
	Args: cobra.NoArgs,
	RunE: runGunicornHistory,
}

func init() {
	gunicornCmd.AddCommand(gunicornHistoryCmd)

	gunicornHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of entries (0 = all)")
	gunicornHistoryCmd.Flags().StringVarP(&historyOutput, "output", "o", "table", "output format: table, json, yaml")
}

var historyResource = formatter.Resource{
	Name:    "history",
	Columns: []string{"time", "action", "pid", "signals", "detail", "error"},
}

func runGunicornHistory(cmd *cobra.Command, args []string) error {
	f, err := formatter.Get(historyOutput)
	if err != nil {
		return err
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if a.Journal == nil {
		return errors.New("control journal is disabled (journal.enabled)")
	}

	entries, err := a.Journal.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	opts := formatter.Options{MaxWidth: 60}
	if historyOutput != "table" {
		opts.Columns = append([]string{"id"}, historyResource.Columns...)
	}
	return f.FormatList(cmd.OutOrStdout(), historyResource, historyRecords(entries), opts)
}

// historyRecords flattens journal entries for the formatters.
func historyRecords(entries []gunicorn.Entry) []map[string]any {
	records := make([]map[string]any, len(entries))
	for i, e := range entries {
		pid := ""
		if e.PID > 0 {
			pid = strconv.Itoa(e.PID)
		}
		records[i] = map[string]any{
			"id":      e.ID,
			"time":    e.At,
			"action":  string(e.Action),
			"pid":     pid,
			"signals": e.SignalNames(),
			"detail":  e.Detail,
			"error":   e.Error,
		}
	}
	return records
}
