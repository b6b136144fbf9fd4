package cmd

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pgquery/cli/internal/config"
	"pgquery/cli/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change pgquery settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(cmd)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(cmd)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting to the config file",
	Long: fmt.Sprintf(`The set command writes one key to the config file, keeping the others.

Keys: %v`, config.Keys),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Set(cfgFile, args[0], args[1])
		if err != nil {
			return err
		}
		pterm.Success.Printfln("%s saved to %s", args[0], path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path(cfgFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func showConfig(cmd *cobra.Command) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	file := cfg.File
	if file == "" {
		file = "(none)"
	}
	data := pterm.TableData{
		{"Key", "Value"},
		{"server", logging.Mask(cfg.Server)},
		{"email", cfg.Email},
		{"query_tool", strconv.FormatBool(cfg.QueryTool)},
		{"poll_fallback", cfg.PollFallback.String()},
		{"timeout", cfg.Timeout.String()},
		{"log_level", cfg.LogLevel},
		{"target.server_group_id", strconv.Itoa(cfg.Target.ServerGroupID)},
		{"target.server_id", strconv.Itoa(cfg.Target.ServerID)},
		{"target.database_id", strconv.Itoa(cfg.Target.DatabaseID)},
		{"pending_ttl", cfg.PendingTTL.String()},
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", file)
	return nil
}
