package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CLIPSCRIBE_SERVER_PORT.
const EnvPrefix = "CLIPSCRIBE"

// Config is the full runtime configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Downloader    DownloaderConfig    `mapstructure:"downloader"`
	Extractor     ExtractorConfig     `mapstructure:"extractor"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Stages        StagesConfig        `mapstructure:"stages"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Log           LogConfig           `mapstructure:"log"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" validate:"gte=0"`
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StorageConfig struct {
	MetadataDir string `mapstructure:"metadata_dir" validate:"required"`
	AudioDir    string `mapstructure:"audio_dir" validate:"required"`
	WorkDir     string `mapstructure:"work_dir" validate:"required"`
}

type DownloaderConfig struct {
	Binary         string `mapstructure:"binary" validate:"required"`
	BrowserProfile string `mapstructure:"browser_profile"`
	Format         string `mapstructure:"format" validate:"required"`
}

type ExtractorConfig struct {
	Binary string `mapstructure:"binary" validate:"required"`
}

type TranscriptionConfig struct {
	Backend  string `mapstructure:"backend" validate:"oneof=cli http"`
	Binary   string `mapstructure:"binary"`
	Model    string `mapstructure:"model" validate:"required"`
	Language string `mapstructure:"language"`
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	FP16     bool   `mapstructure:"fp16"`
}

// StagesConfig bounds each external step.
type StagesConfig struct {
	DownloadTimeout   time.Duration `mapstructure:"download_timeout" validate:"gt=0"`
	ExtractTimeout    time.Duration `mapstructure:"extract_timeout" validate:"gt=0"`
	TranscribeTimeout time.Duration `mapstructure:"transcribe_timeout" validate:"gt=0"`
}

type PipelineConfig struct {
	// MaxConcurrentRuns caps simultaneously executing runs. 0 means unlimited.
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs" validate:"gte=0"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=console json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure   bool    `mapstructure:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// Load reads configuration from an optional .env file, an optional config
// file (YAML, TOML or JSON by extension) and CLIPSCRIBE_* environment
// variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so environment variables reach Unmarshal
// even when no config file mentions them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 20*time.Minute)
	v.SetDefault("server.rate_limit_per_minute", 30)

	v.SetDefault("storage.metadata_dir", "metadata")
	v.SetDefault("storage.audio_dir", "mp3")
	v.SetDefault("storage.work_dir", ".")

	v.SetDefault("downloader.binary", "yt-dlp")
	v.SetDefault("downloader.browser_profile", "chrome")
	v.SetDefault("downloader.format", "b[ext=mp4]/b")

	v.SetDefault("extractor.binary", "ffmpeg")

	v.SetDefault("transcription.backend", "cli")
	v.SetDefault("transcription.binary", "whisper")
	v.SetDefault("transcription.model", "base")
	v.SetDefault("transcription.language", "")
	v.SetDefault("transcription.url", "")
	v.SetDefault("transcription.fp16", false)

	v.SetDefault("stages.download_timeout", 5*time.Minute)
	v.SetDefault("stages.extract_timeout", 2*time.Minute)
	v.SetDefault("stages.transcribe_timeout", 10*time.Minute)

	v.SetDefault("pipeline.max_concurrent_runs", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_rate", 1.0)
}

// ApplyDefaults fills values a config file explicitly blanked.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Storage.MetadataDir == "" {
		c.Storage.MetadataDir = "metadata"
	}
	if c.Storage.AudioDir == "" {
		c.Storage.AudioDir = "mp3"
	}
	if c.Storage.WorkDir == "" {
		c.Storage.WorkDir = "."
	}
	if c.Transcription.Backend == "" {
		c.Transcription.Backend = "cli"
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "base"
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports the first offending key.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q validation (got: %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.Transcription.Backend == "http" && c.Transcription.URL == "" {
		return fmt.Errorf("config: transcription.url is required for the http backend")
	}
	return nil
}
