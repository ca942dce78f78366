// Package config loads service and CLI configuration from an optional TOML
// file and QF_* environment variables. Environment variables win.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/quoteframe/imageprep"
	"github.com/aouyang1/quoteframe/slides"
	"github.com/pelletier/go-toml/v2"
)

const (
	FileName   = "quoteframe.toml"
	dbFileName = "quoteframe.db"
)

// Duration is a time.Duration written as a string such as "1h30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	RootPath   string `toml:"root_path"`
	ListenAddr string `toml:"listen_addr"`
	Namespace  string `toml:"namespace"`
	LogLevel   string `toml:"log_level"`
	LogFile    string `toml:"log_file"`
	ServerURL  string `toml:"server_url"`

	Image     ImageConfig     `toml:"image"`
	Generator GeneratorConfig `toml:"generator"`
	Backup    BackupConfig    `toml:"backup"`
}

type ImageConfig struct {
	MaxWidth  int `toml:"max_width"`
	MaxHeight int `toml:"max_height"`
	Quality   int `toml:"quality"`
	// MaxSourceMB and MaxSourceMegapixels bound accepted uploads.
	MaxSourceMB         int `toml:"max_source_mb"`
	MaxSourceMegapixels int `toml:"max_source_megapixels"`
}

type GeneratorConfig struct {
	APIKey     string   `toml:"api_key"`
	BaseURL    string   `toml:"base_url"`
	TextModel  string   `toml:"text_model"`
	ImageModel string   `toml:"image_model"`
	Timeout    Duration `toml:"timeout"`
}

func (g GeneratorConfig) Enabled() bool {
	return g.APIKey != ""
}

type BackupConfig struct {
	Profile  string   `toml:"aws_profile"`
	Bucket   string   `toml:"s3_bucket"`
	Key      string   `toml:"s3_key"`
	Interval Duration `toml:"interval"`
}

func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

func Default() *Config {
	img := imageprep.DefaultOptions()
	return &Config{
		RootPath:   ".",
		ListenAddr: "0.0.0.0:8080",
		Namespace:  slides.DefaultNamespace,
		LogLevel:   "info",
		ServerURL:  "http://localhost:8080",
		Image: ImageConfig{
			MaxWidth:  img.MaxWidth,
			MaxHeight: img.MaxHeight,
			Quality:   img.Quality,

			MaxSourceMB:         int(img.MaxSourceBytes >> 20),
			MaxSourceMegapixels: int(img.MaxSourcePixels / 1_000_000),
		},
		Generator: GeneratorConfig{
			BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
			TextModel:  "gemini-2.5-flash",
			ImageModel: "imagen-4.0-generate-001",
			Timeout:    Duration{2 * time.Minute},
		},
		Backup: BackupConfig{
			Key:      "quoteframe-backup.json",
			Interval: Duration{time.Hour},
		},
	}
}

// Load builds the configuration from defaults, the config file and the
// environment. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()
	if root := os.Getenv("QF_ROOT_PATH"); root != "" {
		cfg.RootPath = root
	}

	path := os.Getenv("QF_CONFIG")
	if path == "" {
		path = filepath.Join(cfg.RootPath, FileName)
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.RootPath, "QF_ROOT_PATH")
	setString(&c.ListenAddr, "QF_LISTEN_ADDR")
	setString(&c.Namespace, "QF_NAMESPACE")
	setString(&c.LogLevel, "QF_LOG_LEVEL")
	setString(&c.LogFile, "QF_LOG_FILE")
	setString(&c.ServerURL, "QF_SERVER_URL")

	setInt(&c.Image.MaxWidth, "QF_IMAGE_MAX_WIDTH")
	setInt(&c.Image.MaxHeight, "QF_IMAGE_MAX_HEIGHT")
	setInt(&c.Image.Quality, "QF_IMAGE_QUALITY")
	setInt(&c.Image.MaxSourceMB, "QF_IMAGE_MAX_SOURCE_MB")
	setInt(&c.Image.MaxSourceMegapixels, "QF_IMAGE_MAX_SOURCE_MEGAPIXELS")

	setString(&c.Generator.APIKey, "QF_GENAI_API_KEY")
	setString(&c.Generator.BaseURL, "QF_GENAI_BASE_URL")
	setString(&c.Generator.TextModel, "QF_GENAI_TEXT_MODEL")
	setString(&c.Generator.ImageModel, "QF_GENAI_IMAGE_MODEL")
	setDuration(&c.Generator.Timeout, "QF_GENAI_TIMEOUT")

	setString(&c.Backup.Profile, "QF_AWS_PROFILE")
	setString(&c.Backup.Bucket, "QF_S3_BUCKET")
	setString(&c.Backup.Key, "QF_S3_KEY")
	setDuration(&c.Backup.Interval, "QF_BACKUP_INTERVAL")
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	v := strings.TrimSpace(os.Getenv(env))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("unable to parse "+env+", using default", env, v, "default", *dst)
		return
	}
	*dst = n
}

func setDuration(dst *Duration, env string) {
	v := strings.TrimSpace(os.Getenv(env))
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("unable to parse "+env+", using default", env, v, "default", dst.Duration)
		return
	}
	dst.Duration = d
}

func (c *Config) DBPath() string {
	return filepath.Join(c.RootPath, dbFileName)
}

func (c *Config) StoreConfig() slides.Config {
	sc := slides.DefaultConfig()
	if c.Namespace != "" {
		sc.Namespace = c.Namespace
	}
	return sc
}

func (c *Config) ImageOptions() imageprep.Options {
	return imageprep.Options{
		MaxWidth:  c.Image.MaxWidth,
		MaxHeight: c.Image.MaxHeight,
		Quality:   c.Image.Quality,

		MaxSourceBytes:  int64(c.Image.MaxSourceMB) << 20,
		MaxSourcePixels: int64(c.Image.MaxSourceMegapixels) * 1_000_000,
	}
}
