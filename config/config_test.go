package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	s := Defaults()
	if s.Game.DailyHearts != 10 || s.Game.HeartResetInterval() != 24*time.Hour {
		t.Fatalf("unexpected heart defaults: %+v", s.Game)
	}
	if s.Game.ChallengeWindow() != 15*time.Minute || s.Game.ExpiryThreshold() != 15*time.Minute {
		t.Fatalf("unexpected challenge timing: %+v", s.Game)
	}
	if !s.Cooldown.Enabled || s.Cooldown.WinLimit != 10 || s.Cooldown.LockoutHours != 24 {
		t.Fatalf("unexpected cooldown defaults: %+v", s.Cooldown)
	}
	if s.Catalog.Enabled() || s.Redis.Enabled() {
		t.Fatalf("optional integrations must be off by default")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: "file::memory:"
game:
  daily_hearts: 5
cooldown:
  win_limit: 3
catalog:
  base_url: http://catalog.local
`)
	s, err := Load(New(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Database.Driver != "sqlite" || s.Game.DailyHearts != 5 || s.Cooldown.WinLimit != 3 {
		t.Fatalf("file values not applied: %+v", s)
	}
	if s.Cooldown.LockoutHours != 24 {
		t.Fatalf("unset keys must keep their default, got %d", s.Cooldown.LockoutHours)
	}
	if !s.Catalog.Enabled() || s.Catalog.Interval() != time.Minute {
		t.Fatalf("unexpected catalog settings: %+v", s.Catalog)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(New(filepath.Join(t.TempDir(), "absent.yaml")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Game.DailyHearts != 10 {
		t.Fatalf("expected defaults, got %+v", s.Game)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GAME_DAILY_HEARTS", "7")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	s, err := Load(New(""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Game.DailyHearts != 7 || !s.Redis.Enabled() {
		t.Fatalf("environment not applied: %+v %+v", s.Game, s.Redis)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"driver":   "database:\n  driver: mysql\n",
		"hearts":   "game:\n  daily_hearts: 0\n",
		"cooldown": "cooldown:\n  lockout_hours: 0\n",
		"interval": "scheduler:\n  expiry_sweep_seconds: 0\n",
	}
	for name, body := range tests {
		if _, err := Load(New(writeConfig(t, body))); err == nil {
			t.Fatalf("%s: expected a validation error", name)
		} else if !strings.HasPrefix(err.Error(), "config:") {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}

func TestStore_SwapReplacesSnapshot(t *testing.T) {
	first := Defaults()
	st := NewStore(first)

	next := Defaults()
	next.Game.DailyHearts = 3
	if prev := st.Swap(next); prev != first {
		t.Fatalf("swap must return the previous snapshot")
	}
	if st.Current().Game.DailyHearts != 3 {
		t.Fatalf("expected the new snapshot, got %+v", st.Current().Game)
	}
	if first.Game.DailyHearts != 10 {
		t.Fatalf("old snapshot must be untouched")
	}
}
