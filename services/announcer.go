package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pvp-card-service/engine"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// FightAnnouncement is emitted once per resolved session.
type FightAnnouncement struct {
	SessionID  string         `json:"session_id"`
	ChannelID  int64          `json:"channel_id"`
	Outcome    engine.Outcome `json:"outcome"`
	ResolvedAt time.Time      `json:"resolved_at"`
}

// Announcer delivers resolved fights to the messaging layer, which renders
// them for the chat participants.
type Announcer interface {
	Announce(ctx context.Context, a FightAnnouncement) error
}

// RedisAnnouncer publishes announcements as JSON on "<prefix><channel id>".
type RedisAnnouncer struct {
	Client *redis.Client
	Prefix string
}

func NewRedisAnnouncer(client *redis.Client) *RedisAnnouncer {
	return &RedisAnnouncer{Client: client, Prefix: "fights:"}
}

func (r *RedisAnnouncer) Channel(channelID int64) string {
	return fmt.Sprintf("%s%d", r.Prefix, channelID)
}

func (r *RedisAnnouncer) Announce(ctx context.Context, a FightAnnouncement) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return r.Client.Publish(ctx, r.Channel(a.ChannelID), payload).Err()
}

// LogAnnouncer writes announcements to the log only.
type LogAnnouncer struct {
	Logger *zap.Logger
}

func (l LogAnnouncer) Announce(_ context.Context, a FightAnnouncement) error {
	l.Logger.Info("fight resolved",
		zap.String("session_id", a.SessionID),
		zap.Int64("channel_id", a.ChannelID),
		zap.String("result", string(a.Outcome.Result)),
		zap.Int64("winner_id", a.Outcome.WinnerID),
		zap.Int("challenger_total", a.Outcome.Challenger.Total),
		zap.Int("opponent_total", a.Outcome.Opponent.Total),
	)
	return nil
}

// MultiAnnouncer fans out to every announcer and joins their errors.
type MultiAnnouncer []Announcer

func (m MultiAnnouncer) Announce(ctx context.Context, a FightAnnouncement) error {
	var errs []error
	for _, an := range m {
		if err := an.Announce(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
