package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harun/mnemo/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a default configuration file",
	RunE:  runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".mnemo", "mnemo.json")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		return err
	}

	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
