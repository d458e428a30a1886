package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is one immutable snapshot of the service configuration.
// Values are never mutated after Load returns; a reload produces a new
// snapshot that replaces the old one in a Store.
type Settings struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Game        GameConfig        `mapstructure:"game"`
	Cooldown    CooldownConfig    `mapstructure:"cooldown"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	Environment    string `mapstructure:"environment"`
	ServiceToken   string `mapstructure:"service_token"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres | sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a redis server is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// GameConfig holds the heart economy and challenge timing.
type GameConfig struct {
	DailyHearts            int `mapstructure:"daily_hearts"`
	HeartResetHours        int `mapstructure:"heart_reset_hours"`
	ChallengeWindowMinutes int `mapstructure:"challenge_window_minutes"`
	ExpiryThresholdMinutes int `mapstructure:"expiry_threshold_minutes"`
}

func (g GameConfig) HeartResetInterval() time.Duration {
	return time.Duration(g.HeartResetHours) * time.Hour
}

func (g GameConfig) ChallengeWindow() time.Duration {
	return time.Duration(g.ChallengeWindowMinutes) * time.Minute
}

func (g GameConfig) ExpiryThreshold() time.Duration {
	return time.Duration(g.ExpiryThresholdMinutes) * time.Minute
}

// CooldownConfig is the default policy applied to cards without their own row.
type CooldownConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	WinLimit     int  `mapstructure:"win_limit"`
	LockoutHours int  `mapstructure:"lockout_hours"`
}

type CatalogConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	Path            string `mapstructure:"path"`
	ServiceToken    string `mapstructure:"service_token"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

func (c CatalogConfig) Enabled() bool { return c.BaseURL != "" }

func (c CatalogConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

type SchedulerConfig struct {
	ExpirySweepSeconds     int `mapstructure:"expiry_sweep_seconds"`
	ResolutionRetrySeconds int `mapstructure:"resolution_retry_seconds"`
	HeartResetSeconds      int `mapstructure:"heart_reset_seconds"`
	LockoutReleaseSeconds  int `mapstructure:"lockout_release_seconds"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (s SchedulerConfig) ExpirySweep() time.Duration     { return seconds(s.ExpirySweepSeconds) }
func (s SchedulerConfig) ResolutionRetry() time.Duration { return seconds(s.ResolutionRetrySeconds) }
func (s SchedulerConfig) HeartReset() time.Duration      { return seconds(s.HeartResetSeconds) }
func (s SchedulerConfig) LockoutRelease() time.Duration  { return seconds(s.LockoutReleaseSeconds) }

type LeaderboardConfig struct {
	Key             string `mapstructure:"key"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

func (l LeaderboardConfig) Interval() time.Duration {
	return time.Duration(l.IntervalSeconds) * time.Second
}

var defaults = map[string]any{
	"server.port":                        5300,
	"server.environment":                 "development",
	"server.service_token":               "",
	"server.allowed_origins":             "http://localhost:3000",
	"database.driver":                    "postgres",
	"database.dsn":                       "",
	"redis.addr":                         "",
	"redis.password":                     "",
	"redis.db":                           0,
	"game.daily_hearts":                  10,
	"game.heart_reset_hours":             24,
	"game.challenge_window_minutes":      15,
	"game.expiry_threshold_minutes":      15,
	"cooldown.enabled":                   true,
	"cooldown.win_limit":                 10,
	"cooldown.lockout_hours":             24,
	"catalog.base_url":                   "",
	"catalog.path":                       "/api/v1/catalog/changes",
	"catalog.service_token":              "",
	"catalog.interval_seconds":           60,
	"scheduler.expiry_sweep_seconds":     60,
	"scheduler.resolution_retry_seconds": 60,
	"scheduler.heart_reset_seconds":      300,
	"scheduler.lockout_release_seconds":  600,
	"leaderboard.key":                    "leaderboard:score",
	"leaderboard.interval_seconds":       30,
}

// Defaults returns the built-in snapshot, used by tests and as the base
// for every Load.
func Defaults() *Settings {
	v := viper.New()
	applyDefaults(v)
	s, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return s
}

func applyDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// New prepares a viper instance reading path (optional) and the
// environment, e.g. GAME_DAILY_HEARTS overrides game.daily_hearts.
func New(path string) *viper.Viper {
	v := viper.New()
	applyDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// Load reads the config file behind v, if any, and returns a validated
// snapshot. A missing file is not an error.
func Load(v *viper.Viper) (*Settings, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects snapshots the engine cannot run with.
func (s *Settings) Validate() error {
	switch s.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", s.Database.Driver)
	}
	if s.Game.DailyHearts < 1 {
		return fmt.Errorf("config: game.daily_hearts must be positive, got %d", s.Game.DailyHearts)
	}
	if s.Game.HeartResetHours < 1 {
		return fmt.Errorf("config: game.heart_reset_hours must be positive, got %d", s.Game.HeartResetHours)
	}
	if s.Game.ChallengeWindowMinutes < 1 || s.Game.ExpiryThresholdMinutes < 1 {
		return errors.New("config: challenge window and expiry threshold must be positive")
	}
	if s.Cooldown.WinLimit < 1 || s.Cooldown.LockoutHours < 1 {
		return errors.New("config: cooldown win_limit and lockout_hours must be positive")
	}
	for name, secs := range map[string]int{
		"scheduler.expiry_sweep_seconds":     s.Scheduler.ExpirySweepSeconds,
		"scheduler.resolution_retry_seconds": s.Scheduler.ResolutionRetrySeconds,
		"scheduler.heart_reset_seconds":      s.Scheduler.HeartResetSeconds,
		"scheduler.lockout_release_seconds":  s.Scheduler.LockoutReleaseSeconds,
		"catalog.interval_seconds":           s.Catalog.IntervalSeconds,
		"leaderboard.interval_seconds":       s.Leaderboard.IntervalSeconds,
	} {
		if secs < 1 {
			return fmt.Errorf("config: %s must be positive, got %d", name, secs)
		}
	}
	return nil
}
