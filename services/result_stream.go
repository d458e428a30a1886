package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"pvp-card-service/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FightResultEvent pairs both participants' records of one fight.
type FightResultEvent struct {
	SessionID  string             `json:"session_id"`
	ChannelID  int64              `json:"channel_id"`
	Challenger models.FightRecord `json:"challenger"`
	Opponent   models.FightRecord `json:"opponent"`
}

// ResultStream pushes resolved fights of one channel over server-sent
// events by polling fight history.
type ResultStream struct {
	DB           *gorm.DB
	Logger       *zap.Logger
	PollInterval time.Duration
}

func NewResultStream(db *gorm.DB, logger *zap.Logger) *ResultStream {
	return &ResultStream{DB: db, Logger: logger, PollInterval: 2 * time.Second}
}

// Stream writes an SSE response that emits a "fight" event for every fight
// resolved in channelID after the stream opened.
func (s *ResultStream) Stream(c *fiber.Ctx, channelID int64) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(s.PollInterval)
		defer ticker.Stop()

		cursor, err := s.latestID(channelID)
		if err != nil {
			s.Logger.Warn("result stream init failed", zap.Int64("channel_id", channelID), zap.Error(err))
		}

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				events, next, err := s.Poll(channelID, cursor)
				if err != nil {
					s.Logger.Warn("result stream query failed", zap.Int64("channel_id", channelID), zap.Error(err))
					continue
				}
				cursor = next
				if len(events) == 0 {
					// keepalive
					w.WriteString(":\n\n")
				}
				for _, ev := range events {
					payload, _ := json.Marshal(ev)
					fmt.Fprintf(w, "event: fight\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

func (s *ResultStream) latestID(channelID int64) (uint, error) {
	var id uint
	err := s.DB.Model(&models.FightRecord{}).
		Where("channel_id = ?", channelID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&id).Error
	return id, err
}

// Poll returns the fights recorded in channelID after cursor and the new
// cursor.
func (s *ResultStream) Poll(channelID int64, cursor uint) ([]FightResultEvent, uint, error) {
	const batch = 200
	var records []models.FightRecord
	err := s.DB.
		Where("channel_id = ? AND id > ?", channelID, cursor).
		Order("id ASC").
		Limit(batch).
		Find(&records).Error
	if err != nil {
		return nil, cursor, err
	}

	bySession := make(map[string]*FightResultEvent)
	var order []string
	for _, r := range records {
		ev, ok := bySession[r.SessionID]
		if !ok {
			ev = &FightResultEvent{SessionID: r.SessionID, ChannelID: r.ChannelID}
			bySession[r.SessionID] = ev
			order = append(order, r.SessionID)
		}
		if r.Challenger {
			ev.Challenger = r
		} else {
			ev.Opponent = r
		}
	}

	// A full batch may end halfway through a fight; leave that fight for
	// the next poll.
	full := len(records) == batch
	events := make([]FightResultEvent, 0, len(order))
	for _, id := range order {
		ev := bySession[id]
		if full && (ev.Challenger.ID == 0 || ev.Opponent.ID == 0) {
			continue
		}
		events = append(events, *ev)
		cursor = max(cursor, ev.Challenger.ID, ev.Opponent.ID)
	}
	return events, cursor, nil
}
