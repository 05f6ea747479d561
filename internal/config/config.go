package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Models     ModelsConfig     `mapstructure:"models"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Notion     NotionConfig     `mapstructure:"notion"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	CORS            CORSConfig    `mapstructure:"cors"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// PathsConfig lays out the data directory. Relative paths below DataDir
// are resolved against it.
type PathsConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	Downloads    string `mapstructure:"downloads"`
	Transcripts  string `mapstructure:"transcripts"`
	Notes        string `mapstructure:"notes"`
	Models       string `mapstructure:"models"`
	SettingsFile string `mapstructure:"settings_file"`
}

type ToolsConfig struct {
	YTDLP         string `mapstructure:"yt_dlp"`
	FFprobe       string `mapstructure:"ffprobe"`
	Whisper       string `mapstructure:"whisper"`
	FasterWhisper string `mapstructure:"faster_whisper"`
	NvidiaSMI     string `mapstructure:"nvidia_smi"`
}

type ModelsConfig struct {
	// Device is auto, cuda or cpu.
	Device     string `mapstructure:"device"`
	Family     string `mapstructure:"family"`
	Size       string `mapstructure:"size"`
	Summarizer string `mapstructure:"summarizer"`
	// LazySummarizer is loaded by the notes stage when nothing is resident.
	LazySummarizer string `mapstructure:"lazy_summarizer"`
	// Preload loads the saved selection at startup.
	Preload bool `mapstructure:"preload"`
}

type SummarizerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PipelineConfig struct {
	Workers          int           `mapstructure:"workers"`
	QueueSize        int           `mapstructure:"queue_size"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	LogLines         int           `mapstructure:"log_lines"`
}

type NotionConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Version      string        `mapstructure:"version"`
	Token        string        `mapstructure:"token"`
	ParentPageID string        `mapstructure:"parent_page_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"url"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and common deployment knobs
	_ = v.BindEnv("paths.data_dir", "VIDNOTES_DATA_DIR")
	_ = v.BindEnv("models.device", "VIDNOTES_DEVICE")
	_ = v.BindEnv("summarizer.base_url", "SUMMARIZER_BASE_URL")
	_ = v.BindEnv("summarizer.api_key", "SUMMARIZER_API_KEY")
	_ = v.BindEnv("notion.token", "NOTION_API_KEY")
	_ = v.BindEnv("notion.parent_page_id", "NOTION_PARENT_PAGE_ID")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	_ = v.BindEnv("storage.bucket", "S3_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Paths.resolve()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("paths.data_dir", "./data")
	v.SetDefault("paths.downloads", "downloads")
	v.SetDefault("paths.transcripts", "transcripts")
	v.SetDefault("paths.notes", "notes")
	v.SetDefault("paths.models", "models")
	v.SetDefault("paths.settings_file", "config.json")

	v.SetDefault("tools.yt_dlp", "yt-dlp")
	v.SetDefault("tools.ffprobe", "ffprobe")
	v.SetDefault("tools.whisper", "whisper")
	v.SetDefault("tools.faster_whisper", "whisper-ctranslate2")
	v.SetDefault("tools.nvidia_smi", "nvidia-smi")

	v.SetDefault("models.device", "auto")
	v.SetDefault("models.family", "whisper")
	v.SetDefault("models.size", "medium")
	v.SetDefault("models.summarizer", "bart-large-cnn")
	v.SetDefault("models.lazy_summarizer", "t5-small")
	v.SetDefault("models.preload", false)

	v.SetDefault("summarizer.base_url", "http://127.0.0.1:8080")
	v.SetDefault("summarizer.timeout", "5m")

	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.queue_size", 16)
	v.SetDefault("pipeline.progress_interval", "10s")
	v.SetDefault("pipeline.log_lines", 100)

	v.SetDefault("notion.base_url", "https://api.notion.com/v1")
	v.SetDefault("notion.version", "2022-06-28")
	v.SetDefault("notion.timeout", "30s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/vidnotes.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.prefix", "vidnotes")
}

// resolve anchors relative artifact paths under DataDir.
func (p *PathsConfig) resolve() {
	for _, path := range []*string{&p.Downloads, &p.Transcripts, &p.Notes, &p.Models, &p.SettingsFile} {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(p.DataDir, *path)
		}
	}
}

// LockFile is the single-instance lock guarding the data directory.
func (p *PathsConfig) LockFile() string {
	return filepath.Join(p.DataDir, ".vidnotes.lock")
}
