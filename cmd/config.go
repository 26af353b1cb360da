package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/exec-relocations/ijss-cli/internal/config"
)

var (
	configInitPath  string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config.yaml populated with the default values",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !configInitForce {
			if _, err := os.Stat(configInitPath); err == nil {
				return eris.Errorf("%s already exists, use --force to overwrite", configInitPath)
			}
		}

		if err := config.WriteDefault(configInitPath); err != nil {
			return err
		}

		cmd.Printf("Wrote %s\n", configInitPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "config.yaml", "destination path")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
