package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/amendbot/amend/internal/generator"
)

// Config holds the process configuration. Both secrets are required at
// startup; a missing token is a fatal configuration error, not a
// per-request one.
type Config struct {
	GitHubToken string
	OpenAIKey   string

	OpenAIModel     string
	OpenAIMaxTokens int
	GeneratorMode   string

	HTTPPort string

	MaxFileBytes   int64
	SkipExtensions []string
	FetchWorkers   int
	GitHubRPS      float64
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("openai_model", "gpt-4-turbo-preview")
	v.SetDefault("openai_max_tokens", 4096)
	v.SetDefault("generator_mode", generator.ModeSingle)
	v.SetDefault("http_port", "8080")
	v.SetDefault("max_file_bytes", 256*1024)
	v.SetDefault("skip_extensions", defaultSkipExtensions)
	v.SetDefault("fetch_workers", 4)
	v.SetDefault("github_rps", 5.0)

	cfg := &Config{
		GitHubToken:     v.GetString("github_token"),
		OpenAIKey:       v.GetString("openai_api_key"),
		OpenAIModel:     v.GetString("openai_model"),
		OpenAIMaxTokens: v.GetInt("openai_max_tokens"),
		GeneratorMode:   v.GetString("generator_mode"),
		HTTPPort:        v.GetString("http_port"),
		MaxFileBytes:    v.GetInt64("max_file_bytes"),
		SkipExtensions:  v.GetStringSlice("skip_extensions"),
		FetchWorkers:    v.GetInt("fetch_workers"),
		GitHubRPS:       v.GetFloat64("github_rps"),
	}

	if cfg.GitHubToken == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN not configured")
	}
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not configured")
	}
	if cfg.GeneratorMode != generator.ModeSingle && cfg.GeneratorMode != generator.ModePlanned {
		return nil, fmt.Errorf("invalid GENERATOR_MODE %q: must be %q or %q", cfg.GeneratorMode, generator.ModeSingle, generator.ModePlanned)
	}
	if cfg.FetchWorkers < 1 {
		return nil, fmt.Errorf("FETCH_WORKERS must be at least 1")
	}
	if cfg.GitHubRPS <= 0 {
		return nil, fmt.Errorf("GITHUB_RPS must be positive")
	}

	return cfg, nil
}

// defaultSkipExtensions covers common binary formats the reader should not
// send to the AI API.
var defaultSkipExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".webp", ".bmp",
	".pdf", ".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".7z",
	".exe", ".dll", ".so", ".dylib", ".a", ".o", ".bin", ".wasm",
	".ttf", ".otf", ".woff", ".woff2", ".eot",
	".mp3", ".mp4", ".mov", ".avi", ".wav", ".flac",
	".jar", ".class", ".pyc", ".db", ".sqlite",
}
