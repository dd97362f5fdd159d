package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/autovol/internal/config"
)

var configOpts struct {
	force bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
	Long: `Inspect and create the autovol configuration files.

autovol reads ~/.config/autovol/config.toml and autovold reads
~/.config/autovol/autovold.toml. Both are optional.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the effective CLI and daemon configuration, with defaults applied, as TOML.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [FILE]",
	Short: "Check a daemon configuration file",
	Long: `Check a daemon configuration file without starting the daemon.
Defaults to the file autovold would load.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default configuration files",
	Long:  `Write the default CLI and daemon configuration files. Existing files are kept unless --force is given.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration and data file locations",
	RunE:  runConfigPath,
}

func init() {
	configInitCmd.Flags().BoolVar(&configOpts.force, "force", false,
		"Overwrite existing files")

	configCmd.AddCommand(configShowCmd, configValidateCmd, configInitCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	daemonCfg, err := config.LoadDaemonConfig(globalOpts.daemonConfig)
	if err != nil {
		return err
	}

	doc := struct {
		CLI    *config.Config       `toml:"autovol"`
		Daemon *config.DaemonConfig `toml:"autovold"`
	}{cfg, daemonCfg}

	enc := toml.NewEncoder(os.Stdout)
	enc.SetIndentTables(true)
	return enc.Encode(doc)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := globalOpts.daemonConfig
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		var err error
		if path, err = config.DaemonConfigPath(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s does not exist", path)
	}

	if _, err := config.LoadDaemonConfig(path); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", path)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cliPath := globalOpts.configPath
	if cliPath == "" {
		cliPath = config.ConfigPath()
	}
	daemonPath := globalOpts.daemonConfig
	if daemonPath == "" {
		var err error
		if daemonPath, err = config.DaemonConfigPath(); err != nil {
			return err
		}
	}

	if writeAllowed(cliPath) {
		if err := config.DefaultConfig().Save(cliPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", cliPath, err)
		}
		fmt.Printf("Wrote %s\n", cliPath)
	}
	if writeAllowed(daemonPath) {
		if err := config.SaveDaemonConfig(config.DefaultDaemonConfig(), daemonPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", daemonPath, err)
		}
		fmt.Printf("Wrote %s\n", daemonPath)
	}
	return nil
}

// writeAllowed reports whether path may be written, printing why not.
func writeAllowed(path string) bool {
	if configOpts.force {
		return true
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Kept existing %s (use --force to overwrite)\n", path)
		return false
	}
	return true
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	daemonPath, err := config.DaemonConfigPath()
	if err != nil {
		return err
	}

	fmt.Printf("CLI config:    %s\n", config.ConfigPath())
	fmt.Printf("Daemon config: %s\n", daemonPath)
	fmt.Printf("Data dir:      %s\n", config.DataPath())
	fmt.Printf("History:       %s\n", historyFilePath())
	return nil
}
