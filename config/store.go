package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Store hands out the current Settings snapshot. Readers take one
// snapshot per operation and never see a half-applied reload.
type Store struct {
	current atomic.Pointer[Settings]
}

func NewStore(s *Settings) *Store {
	st := &Store{}
	st.current.Store(s)
	return st
}

func (st *Store) Current() *Settings {
	return st.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (st *Store) Swap(next *Settings) *Settings {
	return st.current.Swap(next)
}

// Watch reloads the snapshot whenever the config file behind v changes.
// A file that fails to decode or validate is ignored and the previous
// snapshot stays active.
func Watch(v *viper.Viper, st *Store, logger *zap.Logger) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(v)
		if err != nil {
			logger.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		st.Swap(next)
		logger.Info("config reloaded",
			zap.String("file", e.Name),
			zap.Int("daily_hearts", next.Game.DailyHearts),
			zap.Int("cooldown_win_limit", next.Cooldown.WinLimit),
			zap.Int("cooldown_lockout_hours", next.Cooldown.LockoutHours),
		)
	})
	v.WatchConfig()
}
