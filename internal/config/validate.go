package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the keys a command depends on are present and sane.
// Modes: "extract", "serve", "offline" (pdf rendering, runs listing, migrate).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "extract", "serve":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if !c.Fetch.BrowserEnabled && c.Fetch.ProxyURL == "" {
			problems = append(problems, "at least one fetch strategy is required (fetch.browser_enabled or fetch.proxy_url)")
		}
		problems = append(problems, c.validateTranscribe()...)
		if c.Pipeline.MaxConcurrent < 1 || c.Pipeline.MaxConcurrent > 32 {
			problems = append(problems, "pipeline.max_concurrent must be between 1 and 32")
		}
		if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			problems = append(problems, fmt.Sprintf("server.port must be > 0 and <= 65535 (got %d)", c.Server.Port))
		}
	case "offline":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	problems = append(problems, c.validateStore()...)

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return []string{fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver)}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
	}
	return nil
}

func (c *Config) validateTranscribe() []string {
	if !c.Video.Enabled {
		return nil
	}
	switch c.Transcribe.Provider {
	case "openai", "groq":
		if c.Transcribe.Key == "" {
			return []string{"transcribe.key is required for provider " + c.Transcribe.Provider}
		}
	case "local":
		if c.Transcribe.ModelPath == "" {
			return []string{"transcribe.model_path is required for provider local"}
		}
	case "none", "":
	default:
		return []string{fmt.Sprintf("transcribe.provider %q is not supported", c.Transcribe.Provider)}
	}
	return nil
}
