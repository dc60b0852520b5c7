package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret     string
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration

	// Frontend（メール内リンクの生成に使用）
	FrontendURL string

	// Contact
	ContactRateLimit  int
	ContactRateWindow time.Duration
	ContactEmail      string
	RecaptchaSecret   string
	RecaptchaVerify   string

	// Redis（空の場合はインメモリのレート制限にフォールバック）
	RedisURL string

	// Mail
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPass        string
	MailFrom        string
	NotifyQueueSize int

	// Worker
	PromotionSweepInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// requiredKeys は起動に必須の環境変数。
var requiredKeys = []string{"DATABASE_URL", "JWT_SECRET"}

// defaults は任意設定のデフォルト値。
var defaults = map[string]any{
	"token_ttl":                168 * time.Hour,
	"reset_token_ttl":          time.Hour,
	"frontend_url":             "https://burlingtondeals.ca",
	"contact_rate_limit":       5,
	"contact_rate_window":      time.Hour,
	"contact_email":            "contact@burlingtondeals.ca",
	"recaptcha_secret":         "",
	"recaptcha_verify_url":     "https://www.google.com/recaptcha/api/siteverify",
	"redis_url":                "",
	"smtp_host":                "",
	"smtp_port":                587,
	"smtp_user":                "",
	"smtp_pass":                "",
	"mail_from":                "no-reply@burlingtondeals.ca",
	"notify_queue_size":        100,
	"promotion_sweep_interval": time.Hour,
	"log_level":                "info",
	"server_port":              "8080",
	"cors_allowed_origin":      "https://burlingtondeals.ca",
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	var missing []string
	for _, key := range requiredKeys {
		_ = v.BindEnv(strings.ToLower(key), key)
		if strings.TrimSpace(v.GetString(strings.ToLower(key))) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg := &Config{
		DatabaseURL:            v.GetString("database_url"),
		JWTSecret:              v.GetString("jwt_secret"),
		TokenTTL:               positiveDuration(v, "token_ttl"),
		ResetTokenTTL:          positiveDuration(v, "reset_token_ttl"),
		FrontendURL:            strings.TrimRight(v.GetString("frontend_url"), "/"),
		ContactRateLimit:       positiveInt(v, "contact_rate_limit"),
		ContactRateWindow:      positiveDuration(v, "contact_rate_window"),
		ContactEmail:           v.GetString("contact_email"),
		RecaptchaSecret:        v.GetString("recaptcha_secret"),
		RecaptchaVerify:        v.GetString("recaptcha_verify_url"),
		RedisURL:               v.GetString("redis_url"),
		SMTPHost:               v.GetString("smtp_host"),
		SMTPPort:               positiveInt(v, "smtp_port"),
		SMTPUser:               v.GetString("smtp_user"),
		SMTPPass:               v.GetString("smtp_pass"),
		MailFrom:               v.GetString("mail_from"),
		NotifyQueueSize:        positiveInt(v, "notify_queue_size"),
		PromotionSweepInterval: positiveDuration(v, "promotion_sweep_interval"),
		LogLevel:               strings.ToLower(v.GetString("log_level")),
		ServerPort:             v.GetString("server_port"),
		CORSAllowedOrigin:      v.GetString("cors_allowed_origin"),
	}

	return cfg, nil
}

// MailEnabled はSMTP送信に必要な設定が揃っているかを返す。
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.MailFrom != ""
}

// positiveInt は不正値や0以下の値をデフォルト値に戻す。
func positiveInt(v *viper.Viper, key string) int {
	if i := v.GetInt(key); i > 0 {
		return i
	}
	return defaults[key].(int)
}

// positiveDuration は不正値や0以下の値をデフォルト値に戻す。
func positiveDuration(v *viper.Viper, key string) time.Duration {
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return defaults[key].(time.Duration)
}
