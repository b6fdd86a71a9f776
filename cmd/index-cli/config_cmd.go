package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/index-py/index-cli/config"
	"github.com/index-py/index-cli/core/formatter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and INDEX_* overrides are applied.

Examples:
  index-cli config show
  index-cli config show --output yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().StringVarP(&configOutput, "output", "o", "table", "output format: table, json, yaml")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	f, err := formatter.Get(configOutput)
	if err != nil {
		return err
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}

	record, err := configRecord(cfg)
	if err != nil {
		return err
	}
	res := formatter.Resource{Name: "config", Columns: slices.Sorted(maps.Keys(record))}
	return f.FormatRecord(cmd.OutOrStdout(), res, record, formatter.Options{})
}

// configRecord flattens cfg into dotted keys ("server.port") using its YAML names.
func configRecord(cfg *config.Config) (map[string]any, error) {
	effective := *cfg
	enabled := cfg.Journal.IsEnabled()
	effective.Journal.Enabled = &enabled

	data, err := yaml.Marshal(effective)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	record := make(map[string]any)
	flatten("", tree, record)
	return record, nil
}

func flatten(prefix string, tree map[string]any, out map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}
