// Package config は環境変数と設定ファイルからアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	APIBaseURL   string
	MediaBaseURL string
	HTTPTimeout  time.Duration
	APIRateLimit float64
	APIRateBurst int

	// Session
	SessionFile string
	DatabaseURL string

	// Chat
	ChatSessionInterval time.Duration
	ChatMessageInterval time.Duration

	// Notification
	NoticeTTL         time.Duration
	CheckoutNoticeTTL time.Duration

	// Status server
	StatusPort string

	// Logging
	LogLevel string
}

// Load は環境変数（および存在すればguestdesk.yaml）からConfigを読み込む。
// 必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("guestdesk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.guestdesk")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = strings.TrimRight(v.GetString("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid API_BASE_URL: %w", err)
	}

	// Optional fields with defaults
	cfg.MediaBaseURL = v.GetString("MEDIA_BASE_URL")
	if cfg.MediaBaseURL == "" {
		cfg.MediaBaseURL = cfg.APIBaseURL + "/"
	}
	cfg.HTTPTimeout = v.GetDuration("HTTP_TIMEOUT")
	cfg.APIRateLimit = v.GetFloat64("API_RATE_LIMIT")
	cfg.APIRateBurst = v.GetInt("API_RATE_BURST")
	cfg.SessionFile = v.GetString("SESSION_FILE")
	cfg.DatabaseURL = v.GetString("DATABASE_URL")
	cfg.ChatSessionInterval = v.GetDuration("CHAT_SESSION_INTERVAL")
	cfg.ChatMessageInterval = v.GetDuration("CHAT_MESSAGE_INTERVAL")
	cfg.NoticeTTL = v.GetDuration("NOTICE_TTL")
	cfg.CheckoutNoticeTTL = v.GetDuration("CHECKOUT_NOTICE_TTL")
	cfg.StatusPort = v.GetString("STATUS_PORT")
	cfg.LogLevel = v.GetString("LOG_LEVEL")

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.ChatSessionInterval <= 0 {
		cfg.ChatSessionInterval = 10 * time.Second
	}
	if cfg.ChatMessageInterval <= 0 {
		cfg.ChatMessageInterval = 3 * time.Second
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("API_RATE_LIMIT", 10.0)
	v.SetDefault("API_RATE_BURST", 20)
	v.SetDefault("SESSION_FILE", defaultSessionFile())
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MEDIA_BASE_URL", "")
	v.SetDefault("CHAT_SESSION_INTERVAL", 10*time.Second)
	v.SetDefault("CHAT_MESSAGE_INTERVAL", 3*time.Second)
	v.SetDefault("NOTICE_TTL", 3*time.Second)
	v.SetDefault("CHECKOUT_NOTICE_TTL", 5*time.Second)
	v.SetDefault("STATUS_PORT", "8090")
	v.SetDefault("LOG_LEVEL", "info")
}

// defaultSessionFile はセッション保存先のデフォルトパスを返す。
func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".guestdesk-session.json"
	}
	return filepath.Join(dir, "guestdesk", "session.json")
}
