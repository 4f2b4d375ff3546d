package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "VERITY"

// configureViper points v at the config file and environment and registers
// every key of model.DefaultConfig as a default, so that env variables like
// VERITY_SERVER_ADDR resolve even when no config file mentions the key.
func configureViper(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".verity"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return registerDefaults(v, model.DefaultConfig())
}

var optionalKeys = []string{
	"http.http_proxy", "http.https_proxy", "http.no_proxy",
	"search.api_key", "search.base_url", "search.static_file",
	"llm.api_key", "llm.base_url", "llm.embedding_model",
	"memory.project_id", "memory.database_id",
}

func registerDefaults(v *viper.Viper, cfg model.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return goerr.Wrap(err, "marshal default config")
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return goerr.Wrap(err, "unmarshal default config")
	}
	setDefaults(v, "", tree)

	// omitempty keys still need a default to be visible to env lookup
	for _, key := range optionalKeys {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig decodes the merged viper state into a model.Config and fills
// provider credentials from their conventional environment variables
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, goerr.Wrap(err, "decode config")
	}
	applyEnvCredentials(&cfg, os.Getenv)
	return &cfg, nil
}

func applyEnvCredentials(cfg *model.Config, getenv func(string) string) {
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = getenv("OLLAMA_BASE_URL")
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = getenv("SERPER_API_KEY")
	}
}

// redacted returns a copy of cfg safe for display
func redacted(cfg model.Config) model.Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	cfg.LLM.APIKey = mask(cfg.LLM.APIKey)
	cfg.Search.APIKey = mask(cfg.Search.APIKey)
	return cfg
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Verity configuration",
	Long: `Manage Verity configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (VERITY_*, e.g. VERITY_SERVER_ADDR)
3. Config file (~/.verity/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration merged from defaults, config file, env vars and flags. API keys are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if file := viper.ConfigFileUsed(); file != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", file)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(redacted(*cfg))
		if err != nil {
			return goerr.Wrap(err, "marshal config")
		}
		_, err = cmd.OutOrStdout().Write(yamlData)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.verity/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return goerr.Wrap(err, "find home directory")
		}
		configPath := filepath.Join(home, ".verity", "config.yaml")
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(cmd.OutOrStdout(), "\nTo view the configuration:\n  verity config show\n")
		return nil
	},
}

const configHeader = `# Verity Configuration File
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (VERITY_*)
#   3. This config file
#   4. Built-in defaults

`

const configFooter = `
# API Keys (recommended to use environment variables instead):
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export SERPER_API_KEY=...
#   export OLLAMA_BASE_URL=http://localhost:11434
`

// writeDefaultConfig writes the commented default config to path. An
// existing file is never overwritten.
func writeDefaultConfig(path string) error {
	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return goerr.Wrap(err, "marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "create config directory", goerr.V("path", path))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return goerr.New("config file already exists: "+path, goerr.V("path", path))
		}
		return goerr.Wrap(err, "create config file", goerr.V("path", path))
	}

	content := configHeader + string(yamlData) + configFooter
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return goerr.Wrap(err, "write config file", goerr.V("path", path))
	}
	if err := f.Close(); err != nil {
		return goerr.Wrap(err, "close config file", goerr.V("path", path))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
