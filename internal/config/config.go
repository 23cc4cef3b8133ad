package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Exec      ExecConfig      `mapstructure:"exec"`
	History   HistoryConfig   `mapstructure:"history"`
	Tools     []ToolServer    `mapstructure:"tools"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Log       LogConfig       `mapstructure:"log"`
}

// AgentConfig model and conversation-loop parameters
type AgentConfig struct {
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxToolIterations int     `mapstructure:"max_tool_iterations"`
}

// ApprovalConfig default trust posture for a fresh session
type ApprovalConfig struct {
	Policy string `mapstructure:"policy"`
}

// SandboxConfig workspace containment settings
type SandboxConfig struct {
	// WorkspaceMode is cwd (default), home, or path.
	WorkspaceMode string `mapstructure:"workspace_mode"`
	Workspace     string `mapstructure:"workspace"`
	// AdditionalWritable lists extra roots file mutations may touch.
	AdditionalWritable []string `mapstructure:"additional_writable"`
}

// ExecConfig shell execution settings
type ExecConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	KillGraceSeconds int `mapstructure:"kill_grace_seconds"`
}

// HistoryConfig session history settings
type HistoryConfig struct {
	// Dir overrides where session logs live; empty means <config dir>/history.
	Dir              string `mapstructure:"dir"`
	CompactThreshold int    `mapstructure:"compact_threshold"`
}

// ToolServer one external tool server registration
type ToolServer struct {
	Name           string            `mapstructure:"name"`
	Command        string            `mapstructure:"command"`
	Args           []string          `mapstructure:"args"`
	Env            map[string]string `mapstructure:"env"`
	Trusted        bool              `mapstructure:"trusted"`
	Tier           string            `mapstructure:"tier"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
}

// ProvidersConfig LLM provider settings
type ProvidersConfig struct {
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	Claude     ProviderConfig `mapstructure:"claude"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
	DeepSeek   ProviderConfig `mapstructure:"deepseek"`
	Ollama     ProviderConfig `mapstructure:"ollama"`
}

// ProviderConfig single provider settings
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:             "anthropic/claude-sonnet-4-5",
			MaxTokens:         8192,
			Temperature:       0.7,
			MaxToolIterations: 20,
		},
		Approval: ApprovalConfig{
			Policy: "suggest",
		},
		Sandbox: SandboxConfig{
			WorkspaceMode:      "cwd",
			AdditionalWritable: []string{},
		},
		Exec: ExecConfig{
			TimeoutSeconds:   60,
			KillGraceSeconds: 3,
		},
		History: HistoryConfig{
			CompactThreshold: 50,
		},
		Providers: ProvidersConfig{},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the steward config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".steward")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from an explicit path, creating it with defaults if
// missing.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("STEWARD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo saves config to an explicit path
func SaveTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks value ranges and fills in defaults for omitted fields.
func (c *Config) Validate() error {
	a := &c.Agent

	if a.MaxToolIterations < 0 {
		return fmt.Errorf("agent.max_tool_iterations must not be negative, got %d", a.MaxToolIterations)
	}
	if a.MaxToolIterations == 0 {
		a.MaxToolIterations = 20
	}
	if a.Temperature < 0 || a.Temperature > 2.0 {
		return fmt.Errorf("agent.temperature must be between 0 and 2.0, got %f", a.Temperature)
	}
	if a.MaxTokens <= 0 {
		return fmt.Errorf("agent.max_tokens must be > 0, got %d", a.MaxTokens)
	}

	pol := strings.ToLower(strings.TrimSpace(c.Approval.Policy))
	switch pol {
	case "":
		c.Approval.Policy = "suggest"
	case "suggest", "auto-edit", "full-auto":
		c.Approval.Policy = pol
	default:
		return fmt.Errorf("approval.policy must be one of suggest, auto-edit, full-auto; got %q", c.Approval.Policy)
	}

	mode := strings.ToLower(strings.TrimSpace(c.Sandbox.WorkspaceMode))
	switch mode {
	case "":
		c.Sandbox.WorkspaceMode = "cwd"
	case "cwd", "home", "path":
		c.Sandbox.WorkspaceMode = mode
	default:
		return fmt.Errorf("sandbox.workspace_mode must be one of cwd, home, path; got %q", c.Sandbox.WorkspaceMode)
	}
	if c.Sandbox.WorkspaceMode == "path" && strings.TrimSpace(c.Sandbox.Workspace) == "" {
		return fmt.Errorf("sandbox.workspace is required when workspace_mode is \"path\"")
	}

	if c.Exec.TimeoutSeconds < 0 {
		return fmt.Errorf("exec.timeout_seconds must not be negative, got %d", c.Exec.TimeoutSeconds)
	}
	if c.Exec.TimeoutSeconds == 0 {
		c.Exec.TimeoutSeconds = 60
	}
	if c.Exec.KillGraceSeconds < 0 {
		return fmt.Errorf("exec.kill_grace_seconds must not be negative, got %d", c.Exec.KillGraceSeconds)
	}
	if c.Exec.KillGraceSeconds == 0 {
		c.Exec.KillGraceSeconds = 3
	}

	if c.History.CompactThreshold < 0 {
		return fmt.Errorf("history.compact_threshold must not be negative, got %d", c.History.CompactThreshold)
	}
	if c.History.CompactThreshold == 0 {
		c.History.CompactThreshold = 50
	}

	seen := make(map[string]bool, len(c.Tools))
	for i := range c.Tools {
		t := &c.Tools[i]
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("tools[%d].name must not be empty", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate tool server name %q", name)
		}
		seen[name] = true
		if strings.TrimSpace(t.Command) == "" {
			return fmt.Errorf("tools[%d] (%s): command must not be empty", i, name)
		}
		tier := strings.ToLower(strings.TrimSpace(t.Tier))
		switch tier {
		case "", "read-only", "file-write", "shell-exec":
			t.Tier = tier
		default:
			return fmt.Errorf("tools[%d] (%s): tier must be read-only, file-write, or shell-exec; got %q", i, name, t.Tier)
		}
		if t.TimeoutSeconds < 0 {
			return fmt.Errorf("tools[%d] (%s): timeout_seconds must not be negative", i, name)
		}
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// HistoryDir returns where session logs live.
func (c *Config) HistoryDir() string {
	if dir := strings.TrimSpace(c.History.Dir); dir != "" {
		return expandHome(dir)
	}
	return filepath.Join(ConfigDir(), "history")
}

// StateDir returns where runtime state (engine state, metrics) lives.
func StateDir() string {
	return filepath.Join(ConfigDir(), "state")
}

// WorkspacePath returns the expanded workspace path
func (c *Config) WorkspacePath() string {
	path, err := c.WorkspacePathChecked()
	if err != nil {
		return filepath.Join(ConfigDir(), "workspace")
	}
	return path
}

// WorkspacePathChecked returns the expanded workspace path or an error if invalid.
func (c *Config) WorkspacePathChecked() (string, error) {
	mode := strings.TrimSpace(c.Sandbox.WorkspaceMode)
	switch {
	case mode == "" || strings.EqualFold(mode, "cwd"):
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve cwd: %w", err)
		}
		return wd, nil
	case strings.EqualFold(mode, "home"):
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return homeDir, nil
	case strings.EqualFold(mode, "path"):
		if c.Sandbox.Workspace == "" {
			return "", fmt.Errorf("workspace is required when workspace_mode=path")
		}
		return expandHome(c.Sandbox.Workspace), nil
	default:
		return "", fmt.Errorf("unknown workspace_mode: %s", mode)
	}
}

func expandHome(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	rest := strings.TrimPrefix(path[1:], string(filepath.Separator))
	rest = strings.TrimPrefix(rest, "/")
	return filepath.Join(homeDir, rest)
}
