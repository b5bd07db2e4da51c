package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Naming   NamingConfig   `mapstructure:"naming" yaml:"naming"`
	Lang     LangConfig     `mapstructure:"lang" yaml:"lang"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

// APIConfig points at the ViewLift-style metadata service.
type APIConfig struct {
	SiteURL    string `mapstructure:"site_url" yaml:"site_url"`
	ContentURL string `mapstructure:"content_url" yaml:"content_url"`
	VideoURL   string `mapstructure:"video_url" yaml:"video_url"`
	SiteID     string `mapstructure:"site_id" yaml:"site_id"`

	// Manifest URLs are rewritten from the CDN host the API hands out to
	// the host that actually serves the playlists.
	CDNHostFrom string `mapstructure:"cdn_host_from" yaml:"cdn_host_from"`
	CDNHostTo   string `mapstructure:"cdn_host_to" yaml:"cdn_host_to"`

	// MezzURL is the base for derived direct-file (mezzanine) URLs.
	MezzURL string `mapstructure:"mezz_url" yaml:"mezz_url"`
}

type DownloadConfig struct {
	OutDir      string  `mapstructure:"out_dir" yaml:"out_dir"`
	TempDir     string  `mapstructure:"temp_dir" yaml:"temp_dir"`
	Concurrency int     `mapstructure:"concurrency" yaml:"concurrency"`
	Attempts    int     `mapstructure:"attempts" yaml:"attempts"`
	RateLimit   float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // requests/sec, 0 = unlimited
}

type NamingConfig struct {
	Movie        string `mapstructure:"movie" yaml:"movie"`
	SeriesFolder string `mapstructure:"series_folder" yaml:"series_folder"`
	SeriesFile   string `mapstructure:"series_file" yaml:"series_file"`
	Tag          string `mapstructure:"tag" yaml:"tag"`
}

// LangConfig maps the site's language labels to container language codes.
type LangConfig struct {
	Subtitles map[string]string `mapstructure:"subtitles" yaml:"subtitles"`
	Audio     map[string]string `mapstructure:"audio" yaml:"audio"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("download.out_dir", "./downloads")
	v.SetDefault("download.temp_dir", "./downloads/.tmp")
	v.SetDefault("download.concurrency", 16)
	v.SetDefault("download.attempts", 3)
	v.SetDefault("naming.movie", "{title}.{year}.{quality}.{tag}.mkv")
	v.SetDefault("naming.series_folder", "{title}.S{season}.{tag}")
	v.SetDefault("naming.series_file", "{title}.S{season}E{episode}.{quality}.{tag}.mkv")
	v.SetDefault("naming.tag", "WEB-DL")
	v.SetDefault("log.path", "vlget.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", false)
	v.SetDefault("store.sqlite_path", "vlget.db")

	// Read config file
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	// Support environment variables
	v.SetEnvPrefix("VLGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.API.SiteURL == "" {
		return fmt.Errorf("api.site_url is required")
	}
	if c.API.VideoURL == "" {
		return fmt.Errorf("api.video_url is required")
	}
	if c.API.ContentURL == "" {
		return fmt.Errorf("api.content_url is required")
	}

	if c.Download.Concurrency <= 0 {
		c.Download.Concurrency = 16
	}
	if c.Download.Attempts <= 0 {
		c.Download.Attempts = 3
	}
	if c.Download.OutDir == "" {
		c.Download.OutDir = "./downloads"
	}
	if c.Download.TempDir == "" {
		c.Download.TempDir = "./downloads/.tmp"
	}

	return nil
}
