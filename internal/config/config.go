// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// minJWTSecretLength はJWT署名鍵の最小バイト数。
const minJWTSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// koanfタグは環境変数名を小文字にしたもの。
type Config struct {
	// Database
	DatabaseURL    string `koanf:"database_url"`
	DBMaxOpenConns int    `koanf:"db_max_open_conns"`

	// Auth
	JWTSecret    string        `koanf:"jwt_secret"`
	TokenTTL     time.Duration `koanf:"token_ttl"`
	CookieSecure bool          `koanf:"cookie_secure"`

	// Geocoding
	MapTilerAPIKey    string        `koanf:"maptiler_api_key"`
	MapTilerBaseURL   string        `koanf:"maptiler_base_url"`
	GeocodeTimeout    time.Duration `koanf:"geocode_timeout"`
	GeocodeMaxRetries int           `koanf:"geocode_max_retries"`
	GeocodeCacheTTL   time.Duration `koanf:"geocode_cache_ttl"`
	RedisURL          string        `koanf:"redis_url"`

	// Rate Limit
	RateLimitPerMinute     int `koanf:"rate_limit_per_minute"`
	AuthRateLimitPerMinute int `koanf:"auth_rate_limit_per_minute"`

	// Worker
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`

	// Server
	Port              string `koanf:"port"`
	LogLevel          string `koanf:"log_level"`
	CORSAllowedOrigin string `koanf:"cors_allowed_origin"`
}

func defaultConfig() Config {
	return Config{
		DBMaxOpenConns:         25,
		TokenTTL:               24 * time.Hour,
		MapTilerBaseURL:        "https://api.maptiler.com",
		GeocodeTimeout:         10 * time.Second,
		GeocodeMaxRetries:      3,
		GeocodeCacheTTL:        24 * time.Hour,
		RateLimitPerMinute:     120,
		AuthRateLimitPerMinute: 10,
		ReconcileInterval:      time.Hour,
		Port:                   "8080",
		LogLevel:               "info",
		CORSAllowedOrigin:      "http://localhost:3000",
	}
}

// Load は既定値の上に環境変数を重ねてConfigを読み込む。
// 必須環境変数が未設定の場合は未設定のものをまとめてエラーで返す。
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("既定値の読み込みに失敗しました: %w", err)
	}

	// 空文字の環境変数は未設定として扱い、既定値を残す
	envProvider := env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return strings.ToLower(key), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗しました: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("設定値の解釈に失敗しました: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は必須項目と値の範囲を検証する。
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.MapTilerAPIKey == "" {
		missing = append(missing, "MAPTILER_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}

	positive := map[string]bool{
		"TOKEN_TTL":                  c.TokenTTL > 0,
		"GEOCODE_TIMEOUT":            c.GeocodeTimeout > 0,
		"GEOCODE_MAX_RETRIES":        c.GeocodeMaxRetries > 0,
		"GEOCODE_CACHE_TTL":          c.GeocodeCacheTTL > 0,
		"RATE_LIMIT_PER_MINUTE":      c.RateLimitPerMinute > 0,
		"AUTH_RATE_LIMIT_PER_MINUTE": c.AuthRateLimitPerMinute > 0,
		"RECONCILE_INTERVAL":         c.ReconcileInterval > 0,
		"DB_MAX_OPEN_CONNS":          c.DBMaxOpenConns > 0,
	}
	var invalid []string
	for key, ok := range positive {
		if !ok {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return fmt.Errorf("environment variables must be positive: %v", invalid)
	}

	return nil
}
