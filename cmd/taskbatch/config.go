package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskbatch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify taskbatch configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the user config file.

Configuration is stored at ~/.config/taskbatch/config.yaml
Project-specific overrides can be placed in .taskbatch.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	switch len(args) {
	case 0:
		settings, err := config.Settings()
		if err != nil {
			return err
		}
		for _, k := range config.Keys() {
			fmt.Fprintf(out, "%s: %s\n", k, config.Display(k, settings[k]))
		}
		if p := config.GetProjectConfigPath(); p != "" {
			fmt.Fprintf(out, "\n%s %s\n", color.HiBlackString("project config:"), p)
		}
		return nil
	case 1:
		v, err := config.Lookup(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, config.Display(args[0], v))
		return nil
	default:
		if err := config.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s = %s (%s)\n", color.GreenString("✓"), args[0],
			config.Display(args[0], args[1]), config.GetUserConfigPath())
		return nil
	}
}
