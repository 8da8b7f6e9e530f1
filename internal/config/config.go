package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/efebarandurmaz/minichat/internal/llm"
)

// EnvPrefix is prepended to every config key when read from the environment,
// e.g. MINICHAT_SERVER_ADDR for server.addr.
const EnvPrefix = "MINICHAT"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Node    NodeConfig    `mapstructure:"node"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Audit   AuditConfig   `mapstructure:"audit"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`

	// Password is the shared chat password in plain text. PasswordHash, a
	// bcrypt hash, takes precedence when both are set.
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"`

	SessionSecret string `mapstructure:"session_secret"`
	SecretsFile   string `mapstructure:"secrets_file"`
	SecureCookie  bool   `mapstructure:"secure_cookie"`

	MaxInputLength     int             `mapstructure:"max_input_length"`
	MaxBodyBytes       int64           `mapstructure:"max_body_bytes"`
	RateLimit          RateLimitConfig `mapstructure:"rate_limit"`
	SessionIdleTimeout time.Duration   `mapstructure:"session_idle_timeout"`
	FrameAncestors     string          `mapstructure:"frame_ancestors"`
	ShutdownTimeout    time.Duration   `mapstructure:"shutdown_timeout"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	TokensPerMinute   int           `mapstructure:"tokens_per_minute"`
}

type NodeConfig struct {
	ScriptDir string        `mapstructure:"script_dir"`
	WorkDir   string        `mapstructure:"work_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// vendor environment variables consulted when llm.api_key / llm.base_url are
// empty, in priority order.
var (
	apiKeyEnv = map[string][]string{
		"openai":    {"AI_INTEGRATIONS_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"anthropic": {"ANTHROPIC_API_KEY"},
		"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"groq":      {"GROQ_API_KEY"},
		"together":  {"TOGETHER_API_KEY"},
		"deepseek":  {"DEEPSEEK_API_KEY"},
	}
	baseURLEnv = map[string][]string{
		"openai": {"AI_INTEGRATIONS_OPENAI_BASE_URL", "OPENAI_BASE_URL"},
		"ollama": {"OLLAMA_BASE_URL"},
	}
)

// Resolve fills an empty APIKey and BaseURL from the provider's vendor
// environment variables.
func (c LLMConfig) Resolve(getenv func(string) string) LLMConfig {
	if c.APIKey == "" {
		c.APIKey = firstEnv(getenv, apiKeyEnv[c.Provider])
	}
	if c.BaseURL == "" {
		c.BaseURL = firstEnv(getenv, baseURLEnv[c.Provider])
	}
	return c
}

// ProviderConfig converts the LLM section into factory input.
func (c LLMConfig) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:          c.Provider,
		APIKey:            c.APIKey,
		Model:             c.Model,
		BaseURL:           c.BaseURL,
		Timeout:           c.Timeout,
		MaxRetries:        c.MaxRetries,
		RetryDelay:        time.Second,
		RequestsPerMinute: c.RequestsPerMinute,
		TokensPerMinute:   c.TokensPerMinute,
	}
}

// RequestOptions returns the sampling options sent on every chat call.
func (c LLMConfig) RequestOptions() *llm.RequestOptions {
	return llm.NewRequestOptions(c.MaxTokens, c.Temperature)
}

func firstEnv(getenv func(string) string, names []string) string {
	for _, n := range names {
		if v := getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// keyless providers never need an API key.
var keyless = map[string]bool{"ollama": true, "custom": true}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider != "" && !keyless[c.LLM.Provider] && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}
	if c.LLM.Provider == "custom" && c.LLM.BaseURL == "" {
		warnings = append(warnings, "LLM provider 'custom' requires base_url (LLM_BASE_URL)")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}

	if c.Server.Password == "" && c.Server.PasswordHash == "" {
		warnings = append(warnings, "no chat password configured (server.password, server.password_hash or CHAT_PASSWORD); serve will not start")
	}
	if c.Server.MaxInputLength <= 0 {
		warnings = append(warnings, fmt.Sprintf("server max_input_length %d disables the input limit", c.Server.MaxInputLength))
	}
	if c.Server.RateLimit.Requests <= 0 || c.Server.RateLimit.Window <= 0 {
		warnings = append(warnings, "server rate_limit is disabled")
	}
	if c.Node.Timeout <= 0 {
		warnings = append(warnings, "node timeout is not positive; the 30s default applies")
	}

	return warnings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.password", "")
	v.SetDefault("server.password_hash", "")
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.secrets_file", ".minichat_secrets.json")
	v.SetDefault("server.secure_cookie", false)
	v.SetDefault("server.max_input_length", 2000)
	v.SetDefault("server.max_body_bytes", 64<<10)
	v.SetDefault("server.rate_limit.requests", 30)
	v.SetDefault("server.rate_limit.window", 60*time.Second)
	v.SetDefault("server.session_idle_timeout", 24*time.Hour)
	v.SetDefault("server.frame_ancestors", "'self'")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", llm.DefaultTemperature)
	v.SetDefault("llm.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("llm.tokens_per_minute", 0)

	v.SetDefault("node.script_dir", "minima")
	v.SetDefault("node.work_dir", "")
	v.SetDefault("node.timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.path", "stdout")
}

// compatEnv lists the unprefixed variable names also accepted per key.
var compatEnv = map[string]string{
	"llm.provider":          "LLM_PROVIDER",
	"llm.model":             "LLM_MODEL",
	"llm.base_url":          "LLM_BASE_URL",
	"llm.api_key":           "LLM_API_KEY",
	"server.session_secret": "SESSION_SECRET",
	"server.password":       "CHAT_PASSWORD",
}

// Load reads configuration from defaults, the YAML file at path and the
// environment. An empty path or a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range compatEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.LLM = cfg.LLM.Resolve(os.Getenv)

	return &cfg, nil
}
