package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Video      VideoConfig      `yaml:"video" mapstructure:"video"`
	Transcribe TranscribeConfig `yaml:"transcribe" mapstructure:"transcribe"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the durable recipe store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures cache keys and the optional Redis tier.
type CacheConfig struct {
	RedisURL    string   `yaml:"redis_url" mapstructure:"redis_url"`
	TTLHours    int      `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	StripParams []string `yaml:"strip_params" mapstructure:"strip_params"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// FetchConfig configures the content fetch strategies.
type FetchConfig struct {
	BrowserEnabled     bool   `yaml:"browser_enabled" mapstructure:"browser_enabled"`
	BrowserBin         string `yaml:"browser_bin" mapstructure:"browser_bin"`
	BrowserTimeoutSecs int    `yaml:"browser_timeout_secs" mapstructure:"browser_timeout_secs"`
	IdleMs             int    `yaml:"idle_ms" mapstructure:"idle_ms"`
	ProxyURL           string `yaml:"proxy_url" mapstructure:"proxy_url"`
	ProxyTimeoutSecs   int    `yaml:"proxy_timeout_secs" mapstructure:"proxy_timeout_secs"`
	ProxyRPS           int    `yaml:"proxy_rps" mapstructure:"proxy_rps"`
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
	BreakerThreshold   int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs   int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ExtractConfig configures the content matchers.
type ExtractConfig struct {
	RulesPath    string   `yaml:"rules_path" mapstructure:"rules_path"`
	MinImageSize int      `yaml:"min_image_size" mapstructure:"min_image_size"`
	ImageHosts   []string `yaml:"image_hosts" mapstructure:"image_hosts"`
}

// VideoConfig configures video download and audio extraction.
type VideoConfig struct {
	Enabled             bool   `yaml:"enabled" mapstructure:"enabled"`
	YtDlpPath           string `yaml:"ytdlp_path" mapstructure:"ytdlp_path"`
	FFmpegPath          string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath         string `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	TempDir             string `yaml:"temp_dir" mapstructure:"temp_dir"`
	MaxDownloadMB       int    `yaml:"max_download_mb" mapstructure:"max_download_mb"`
	DownloadTimeoutSecs int    `yaml:"download_timeout_secs" mapstructure:"download_timeout_secs"`
	AudioTimeoutSecs    int    `yaml:"audio_timeout_secs" mapstructure:"audio_timeout_secs"`
}

// TranscribeConfig configures speech-to-text.
type TranscribeConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	WhisperPath string `yaml:"whisper_path" mapstructure:"whisper_path"`
	ModelPath   string `yaml:"model_path" mapstructure:"model_path"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures orchestration timeouts and retries.
type PipelineConfig struct {
	RunTimeoutSecs   int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
	CacheTimeoutSecs int `yaml:"cache_timeout_secs" mapstructure:"cache_timeout_secs"`
	ParseTimeoutSecs int `yaml:"parse_timeout_secs" mapstructure:"parse_timeout_secs"`
	ParseAttempts    int `yaml:"parse_attempts" mapstructure:"parse_attempts"`
	MaxConcurrent    int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// StorageConfig configures optional S3-compatible object storage for PDFs.
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	Region          string `yaml:"region" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SignedURLMins   int    `yaml:"signed_url_mins" mapstructure:"signed_url_mins"`
}

// Enabled reports whether object storage is configured.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "recipes.db")
	v.SetDefault("cache.ttl_hours", 168)
	v.SetDefault("cache.strip_params", DefaultStripParams)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("fetch.browser_enabled", true)
	v.SetDefault("fetch.browser_timeout_secs", 30)
	v.SetDefault("fetch.idle_ms", 500)
	v.SetDefault("fetch.proxy_url", "https://api.allorigins.win/raw")
	v.SetDefault("fetch.proxy_timeout_secs", 15)
	v.SetDefault("fetch.proxy_rps", 2)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_reset_secs", 60)
	v.SetDefault("extract.min_image_size", 200)
	v.SetDefault("extract.image_hosts", []string{"scontent", "cdninstagram"})
	v.SetDefault("video.enabled", true)
	v.SetDefault("video.ytdlp_path", "yt-dlp")
	v.SetDefault("video.ffmpeg_path", "ffmpeg")
	v.SetDefault("video.ffprobe_path", "ffprobe")
	v.SetDefault("video.max_download_mb", 200)
	v.SetDefault("video.download_timeout_secs", 120)
	v.SetDefault("video.audio_timeout_secs", 60)
	v.SetDefault("transcribe.provider", "openai")
	v.SetDefault("transcribe.model", "whisper-1")
	v.SetDefault("transcribe.whisper_path", "whisper-cli")
	v.SetDefault("transcribe.timeout_secs", 120)
	v.SetDefault("pipeline.run_timeout_secs", 300)
	v.SetDefault("pipeline.cache_timeout_secs", 5)
	v.SetDefault("pipeline.parse_timeout_secs", 120)
	v.SetDefault("pipeline.parse_attempts", 2)
	v.SetDefault("pipeline.max_concurrent", 4)
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.signed_url_mins", 60)
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Keys without a default are only read from the environment once bound.
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// envOnlyKeys are the settings that have no default, usually secrets.
var envOnlyKeys = []string{
	"store.max_conns",
	"store.min_conns",
	"cache.redis_url",
	"anthropic.key",
	"fetch.browser_bin",
	"extract.rules_path",
	"video.temp_dir",
	"transcribe.key",
	"transcribe.base_url",
	"transcribe.model_path",
	"storage.endpoint",
	"storage.bucket",
	"storage.access_key_id",
	"storage.secret_access_key",
}

// DefaultStripParams lists the query parameter globs removed from source URLs
// before they are used as cache keys.
var DefaultStripParams = []string{
	"utm", "utm_*", "igshid", "igsh", "fbclid", "gclid", "mc_*",
	"ref", "ref_src", "si", "img_index",
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
