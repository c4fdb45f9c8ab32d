// Package config loads runtime settings from a config file, the environment and CLI flags.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"summary_review_workflow/generator"
)

// EnvPrefix is prepended to every automatically bound environment variable
// (llm.api_key -> SRW_LLM_API_KEY).
const EnvPrefix = "SRW"

// Config is the full runtime configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Server   ServerConfig   `mapstructure:"server"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Verbose  bool           `mapstructure:"verbose"`
}

// LLMConfig 模型配置。
type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WorkflowConfig controls the revision loop.
type WorkflowConfig struct {
	MaxRevisions       int    `mapstructure:"max_revisions"`
	LenientFinalReview bool   `mapstructure:"lenient_final_review"`
	LogPrompts         bool   `mapstructure:"log_prompts"`
	PromptsFile        string `mapstructure:"prompts_file"`
}

// ServerConfig 服务端监听地址、登录凭据与运行记录保留策略。
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AdminUsername   string        `mapstructure:"admin_username"`
	AdminPassword   string        `mapstructure:"admin_password"`
	UserCredentials string        `mapstructure:"user_credentials"`
	RunTTL          time.Duration `mapstructure:"run_ttl"`
	MaxRuns         int           `mapstructure:"max_runs"`
}

// PublishConfig describes where finished runs are delivered.
type PublishConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	OutputPath string `mapstructure:"output_path"`
}

// Model is one entry of the selectable model set.
type Model struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// AvailableModels is the model set offered for the deepseek provider.
var AvailableModels = []Model{
	{ID: "deepseek-chat", Label: "DeepSeek V3"},
	{ID: "deepseek-reasoner", Label: "DeepSeek R1"},
}

// IsAvailableModel reports whether id belongs to AvailableModels.
func IsAvailableModel(id string) bool {
	for _, m := range AvailableModels {
		if m.ID == id {
			return true
		}
	}
	return false
}

// explicit env names kept for compatibility with existing deployments.
var legacyEnv = map[string]string{
	"llm.api_key":             "DEEPSEEK_API_KEY",
	"llm.base_url":            "API_ENDPOINT",
	"server.admin_username":   "ADMIN_USERNAME",
	"server.admin_password":   "ADMIN_PASSWORD",
	"server.user_credentials": "USER_CREDENTIALS",
}

// New returns a viper instance with defaults and environment bindings applied.
// Callers may bind flags into it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("llm.provider", "deepseek")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("workflow.max_revisions", 3)
	v.SetDefault("workflow.lenient_final_review", true)
	v.SetDefault("workflow.log_prompts", false)
	v.SetDefault("workflow.prompts_file", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.admin_username", "")
	v.SetDefault("server.admin_password", "")
	v.SetDefault("server.user_credentials", "")
	v.SetDefault("server.run_ttl", 30*time.Minute)
	v.SetDefault("server.max_runs", 256)
	v.SetDefault("publish.webhook_url", "")
	v.SetDefault("publish.output_path", "")
	v.SetDefault("verbose", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	keys := make([]string, 0, len(legacyEnv))
	for k := range legacyEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		// prefixed name wins over the legacy one.
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacyEnv[key])
	}
	return v
}

// Load reads the optional config file at path (JSON or YAML), merges env and
// bound flags, and validates the result. An empty path searches ./config.yaml
// and ./config/config.yaml and tolerates their absence.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.LLM.Provider == "" {
		return errors.New("config: llm.provider is required")
	}
	if c.LLM.Model == "" {
		return errors.New("config: llm.model is required")
	}
	if strings.EqualFold(c.LLM.Provider, "deepseek") && !IsAvailableModel(c.LLM.Model) {
		return fmt.Errorf("config: model %q is not available for provider deepseek", c.LLM.Model)
	}
	if c.Workflow.MaxRevisions < 1 {
		return fmt.Errorf("config: workflow.max_revisions must be >= 1, got %d", c.Workflow.MaxRevisions)
	}
	if c.LLM.Timeout < 0 {
		return errors.New("config: llm.timeout must not be negative")
	}
	if c.Server.RunTTL < 0 || c.Server.MaxRuns < 0 {
		return errors.New("config: server.run_ttl and server.max_runs must not be negative")
	}
	if _, err := c.Server.Credentials(); err != nil {
		return err
	}
	return nil
}

// Settings converts the LLM section into provider settings.
func (c LLMConfig) Settings() generator.LLMSettings {
	return generator.LLMSettings{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout,
	}
}

// Credentials returns username -> password for every configured login.
// user_credentials uses the form "user:pass,user2:pass2". An empty map means auth is disabled.
func (s ServerConfig) Credentials() (map[string]string, error) {
	creds := make(map[string]string)
	if s.AdminUsername != "" || s.AdminPassword != "" {
		if s.AdminUsername == "" || s.AdminPassword == "" {
			return nil, errors.New("config: admin_username and admin_password must be set together")
		}
		creds[s.AdminUsername] = s.AdminPassword
	}
	for _, pair := range strings.Split(s.UserCredentials, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, pass, ok := strings.Cut(pair, ":")
		user = strings.TrimSpace(user)
		if !ok || user == "" || pass == "" {
			return nil, fmt.Errorf("config: malformed user credential %q", pair)
		}
		creds[user] = pass
	}
	return creds, nil
}
