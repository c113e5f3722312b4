package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/eringen/pubfront"
	"github.com/eringen/pubfront/content"
)

// Config is the command line configuration, read from pubfront.yml and the
// environment. Environment variables win over the file.
type Config struct {
	SiteName        string        `mapstructure:"SITE_NAME"`
	SiteURL         string        `mapstructure:"SITE_URL"`
	SiteDescription string        `mapstructure:"SITE_DESCRIPTION"`
	SiteAuthor      string        `mapstructure:"SITE_AUTHOR"`
	SiteLogo        string        `mapstructure:"SITE_LOGO"`
	Addr            string        `mapstructure:"ADDR"`
	ProjectID       string        `mapstructure:"SANITY_PROJECT_ID"`
	Dataset         string        `mapstructure:"SANITY_DATASET"`
	APIVersion      string        `mapstructure:"SANITY_API_VERSION"`
	UseCDN          bool          `mapstructure:"SANITY_USE_CDN"`
	Token           string        `mapstructure:"SANITY_TOKEN"`
	ContentBaseURL  string        `mapstructure:"SANITY_BASE_URL"`
	DatabasePath    string        `mapstructure:"DATABASE_PATH"`
	AssetsDir       string        `mapstructure:"ASSETS_DIR"`
	RevalidateAfter time.Duration `mapstructure:"REVALIDATE_AFTER"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	RedisTTL        time.Duration `mapstructure:"REDIS_TTL"`
	SessionSecret   string        `mapstructure:"SESSION_SECRET"`
	CookieSecure    bool          `mapstructure:"COOKIE_SECURE"`
	CommentEndpoint string        `mapstructure:"COMMENT_ENDPOINT"`
	FormIdleTimeout time.Duration `mapstructure:"FORM_IDLE_TIMEOUT"`
	SubmitLimit     int           `mapstructure:"SUBMIT_LIMIT"`
	SubmitWindow    time.Duration `mapstructure:"SUBMIT_WINDOW"`
	Timezone        string        `mapstructure:"TIMEZONE"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	StaticDir       string        `mapstructure:"STATIC_DIR"`
}

var defaults = map[string]any{
	"SITE_NAME":          "Blog",
	"SITE_URL":           "http://localhost:3000",
	"SITE_DESCRIPTION":   "",
	"SITE_AUTHOR":        "",
	"SITE_LOGO":          "/public/logo.svg",
	"ADDR":               ":3000",
	"SANITY_PROJECT_ID":  "",
	"SANITY_DATASET":     "production",
	"SANITY_API_VERSION": "2021-10-21",
	"SANITY_USE_CDN":     false,
	"SANITY_TOKEN":       "",
	"SANITY_BASE_URL":    "",
	"DATABASE_PATH":      "data/content.db",
	"ASSETS_DIR":         "data/assets",
	"REVALIDATE_AFTER":   "60s",
	"REDIS_URL":          "",
	"REDIS_TTL":          "24h",
	"SESSION_SECRET":     "",
	"COOKIE_SECURE":      false,
	"COMMENT_ENDPOINT":   "",
	"FORM_IDLE_TIMEOUT":  "30m",
	"SUBMIT_LIMIT":       5,
	"SUBMIT_WINDOW":      "1m",
	"TIMEZONE":           "",
	"LOG_LEVEL":          "info",
	"STATIC_DIR":         "public",
}

// Deployments coming from the Next.js front end keep their variable names.
var envAliases = map[string]string{
	"SANITY_PROJECT_ID": "NEXT_PUBLIC_SANITY_PROJECT_ID",
	"SANITY_DATASET":    "NEXT_PUBLIC_SANITY_DATASET",
}

// loadConfig reads .env into the environment, then the config file at path
// (or pubfront.yml in the working directory when path is empty), then the
// environment.
func loadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pubfront")
		v.SetConfigType("yml")
	}
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for key, alias := range envAliases {
		if err := v.BindEnv(key, key, alias); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.ProjectID != "" && c.Dataset == "" {
		return errors.New("SANITY_DATASET is required with SANITY_PROJECT_ID")
	}
	if c.SubmitLimit < 1 {
		return errors.New("SUBMIT_LIMIT must be at least 1")
	}
	if c.RevalidateAfter <= 0 {
		return errors.New("REVALIDATE_AFTER must be positive")
	}
	if c.SubmitWindow <= 0 {
		return errors.New("SUBMIT_WINDOW must be positive")
	}
	if c.FormIdleTimeout <= 0 {
		return errors.New("FORM_IDLE_TIMEOUT must be positive")
	}
	if c.RedisTTL < 0 {
		return errors.New("REDIS_TTL must not be negative")
	}
	if _, err := c.location(); err != nil {
		return err
	}
	return nil
}

// ValidateServe adds the checks for commands that run the web server.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}
	return nil
}

func (c *Config) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

// Local reports whether content comes from the SQLite database.
func (c *Config) Local() bool {
	return c.ProjectID == ""
}

// Site converts c to the application configuration.
func (c *Config) Site() (pubfront.SiteConfig, error) {
	loc, err := c.location()
	if err != nil {
		return pubfront.SiteConfig{}, err
	}
	return pubfront.SiteConfig{
		Name:        c.SiteName,
		URL:         c.SiteURL,
		Description: c.SiteDescription,
		Author:      c.SiteAuthor,
		Logo:        c.SiteLogo,
		Addr:        c.Addr,
		Content: content.Config{
			ProjectID:  c.ProjectID,
			Dataset:    c.Dataset,
			APIVersion: c.APIVersion,
			UseCDN:     c.UseCDN,
			Token:      c.Token,
			BaseURL:    c.ContentBaseURL,
		},
		DatabasePath:    c.DatabasePath,
		AssetsDir:       c.AssetsDir,
		RevalidateAfter: c.RevalidateAfter,
		RedisURL:        c.RedisURL,
		RedisTTL:        c.RedisTTL,
		SessionSecret:   c.SessionSecret,
		CookieSecure:    c.CookieSecure,
		CommentEndpoint: c.CommentEndpoint,
		FormIdleTimeout: c.FormIdleTimeout,
		SubmitLimit:     c.SubmitLimit,
		SubmitWindow:    c.SubmitWindow,
		Location:        loc,
		LogLevel:        c.LogLevel,
	}, nil
}
