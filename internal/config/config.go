// Package config reads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ladyboss/academy/internal/media"
	"github.com/ladyboss/academy/internal/push"
	"github.com/ladyboss/academy/internal/schedule"
)

type Config struct {
	Port            string
	DBPath          string
	LogLevel        string
	LogFormat       string
	BaseURL         string
	DefaultTimezone string
	JWTSecret       string

	DispatchInterval time.Duration
	SendTimeout      time.Duration
	SendConcurrency  int
	TriggerCooldown  time.Duration
	RunRetention     time.Duration

	APNs    push.APNsConfig
	WebPush push.WebPushConfig
	Media   media.S3Config
	// MediaBaseURL serves media keys directly when no bucket is configured.
	MediaBaseURL string
}

// Load reads dotEnvPath when it exists, then the process environment.
// Variables already set in the environment win over the file.
func Load(dotEnvPath string) (*Config, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, fmt.Errorf("load %s: %w", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", dotEnvPath, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}
	cfg := &Config{
		Port:            e.str("ACADEMY_PORT", "8080"),
		DBPath:          e.str("ACADEMY_DB_PATH", "academy.db"),
		LogLevel:        e.str("ACADEMY_LOG_LEVEL", "info"),
		LogFormat:       e.str("ACADEMY_LOG_FORMAT", "text"),
		BaseURL:         e.str("ACADEMY_BASE_URL", "http://localhost:8080"),
		DefaultTimezone: e.str("ACADEMY_DEFAULT_TIMEZONE", schedule.DefaultTimezone),
		JWTSecret:       getenv("ACADEMY_JWT_SECRET"),

		DispatchInterval: e.duration("ACADEMY_DISPATCH_INTERVAL", 5*time.Minute),
		SendTimeout:      e.duration("ACADEMY_SEND_TIMEOUT", 10*time.Second),
		SendConcurrency:  e.integer("ACADEMY_SEND_CONCURRENCY", 8),
		TriggerCooldown:  e.duration("ACADEMY_TRIGGER_COOLDOWN", time.Minute),
		RunRetention:     e.duration("ACADEMY_RUN_RETENTION", 30*24*time.Hour),

		APNs: push.APNsConfig{
			KeyID:         getenv("APNS_KEY_ID"),
			TeamID:        getenv("APNS_TEAM_ID"),
			BundleID:      getenv("APNS_BUNDLE_ID"),
			PrivateKeyPEM: strings.ReplaceAll(getenv("APNS_PRIVATE_KEY"), `\n`, "\n"),
			Sandbox:       e.boolean("APNS_SANDBOX", false),
		},
		WebPush: push.WebPushConfig{
			VAPIDPublicKey:  getenv("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: getenv("VAPID_PRIVATE_KEY"),
			Subscriber:      getenv("VAPID_SUBSCRIBER"),
		},
		Media: media.S3Config{
			Endpoint:  getenv("ACADEMY_MEDIA_ENDPOINT"),
			Bucket:    getenv("ACADEMY_MEDIA_BUCKET"),
			Region:    e.str("ACADEMY_MEDIA_REGION", "us-east-1"),
			AccessKey: getenv("ACADEMY_MEDIA_ACCESS_KEY"),
			SecretKey: getenv("ACADEMY_MEDIA_SECRET_KEY"),
			TTL:       e.duration("ACADEMY_MEDIA_URL_TTL", media.DefaultURLTTL),
		},
		MediaBaseURL: getenv("ACADEMY_MEDIA_BASE_URL"),
	}
	if len(e.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(e.errs, "; "))
	}
	if cfg.SendConcurrency < 1 {
		cfg.SendConcurrency = 1
	}
	return cfg, nil
}

type env struct {
	getenv func(string) string
	errs   []string
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}

func (e *env) integer(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (e *env) boolean(key string, def bool) bool {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return b
}
