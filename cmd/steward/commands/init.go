package commands

import (
	"fmt"
	"os"

	"steward/internal/config"

	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Steward configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()

	dirs := []string{
		config.ConfigDir(),
		cfg.HistoryDir(),
		config.StateDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Steward initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("History: %s\n", cfg.HistoryDir())
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to add your API keys\n", configPath)
	fmt.Printf("2. Run 'steward chat' from a project directory\n")

	return nil
}
