package commands

import (
	"os"
	"testing"

	"steward/internal/config"
)

func TestInitCommand_CreatesConfigAndDirs(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit error: %v", err)
	}

	configPath := config.ConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected config file at %s: %v", configPath, err)
	}

	cfg := config.DefaultConfig()
	if _, err := os.Stat(cfg.HistoryDir()); err != nil {
		t.Fatalf("expected history dir at %s: %v", cfg.HistoryDir(), err)
	}
	if _, err := os.Stat(config.StateDir()); err != nil {
		t.Fatalf("expected state dir at %s: %v", config.StateDir(), err)
	}
}

func TestInitCommand_DoesNotOverwriteExistingConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("first runInit error: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Agent.Model = "custom/model"
	if err := config.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("second runInit error: %v", err)
	}
	cfg, err = config.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Agent.Model != "custom/model" {
		t.Fatalf("init overwrote existing config, model = %s", cfg.Agent.Model)
	}
}
