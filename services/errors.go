package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"gorm.io/gorm"
)

// Business errors. Callers match them with errors.Is; the messaging layer
// owns any text shown to players.
var (
	ErrActiveChallengeExists    = errors.New("active challenge exists")
	ErrAlreadyClaimed           = errors.New("challenge already claimed")
	ErrSelfChallenge            = errors.New("cannot accept own challenge")
	ErrNotAParticipant          = errors.New("not a participant")
	ErrCardNotOwned             = errors.New("card not owned")
	ErrCardNotSelected          = errors.New("card not selected")
	ErrSessionNotFound          = errors.New("session not found")
	ErrResolutionDataIncomplete = errors.New("resolution data incomplete")
	ErrAwaitingOpponent         = errors.New("challenge has no opponent yet")
	ErrCardAlreadySelected      = errors.New("a different card is already selected")
	ErrStatAlreadySelected      = errors.New("a different stat is already selected")
	ErrInvalidStat              = errors.New("invalid stat")
	ErrCardNotFound             = errors.New("card not found")
	ErrPlayerNotFound           = errors.New("player not found")
	ErrInvalidPolicy            = errors.New("cooldown policy needs a positive threshold and duration")
)

// CardInCooldownError reports a card locked out for the acting player.
type CardInCooldownError struct {
	CardID string
	Until  time.Time
}

func (e *CardInCooldownError) Error() string {
	return fmt.Sprintf("card %s in cooldown until %s", e.CardID, e.Until.Format(time.RFC3339))
}

// NoHeartsRemainingError reports a player with no hearts left.
type NoHeartsRemainingError struct {
	PlayerID int64
	ResetIn  time.Duration
}

func (e *NoHeartsRemainingError) Error() string {
	return fmt.Sprintf("player %d has no hearts, reset in %s", e.PlayerID, e.ResetIn.Round(time.Second))
}

// StorageError wraps a failed store operation. Every write in this package
// is conditional, so a transient failure is safe to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// Transient reports whether retrying the operation may succeed.
func (e *StorageError) Transient() bool {
	var netErr net.Error
	switch {
	case errors.Is(e.Err, driver.ErrBadConn),
		errors.Is(e.Err, context.DeadlineExceeded),
		errors.Is(e.Err, gorm.ErrDuplicatedKey),
		errors.Is(e.Err, gorm.ErrInvalidTransaction),
		errors.As(e.Err, &netErr):
		return true
	}
	return false
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsTransient reports whether err is a storage fault worth retrying.
func IsTransient(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Transient()
}

// IsBusiness reports whether err is one of the recoverable business
// errors rather than a storage fault.
func IsBusiness(err error) bool {
	var cooldown *CardInCooldownError
	var hearts *NoHeartsRemainingError
	if errors.As(err, &cooldown) || errors.As(err, &hearts) {
		return true
	}
	for _, e := range []error{
		ErrActiveChallengeExists, ErrAlreadyClaimed, ErrSelfChallenge, ErrNotAParticipant,
		ErrCardNotOwned, ErrCardNotSelected, ErrSessionNotFound, ErrResolutionDataIncomplete,
		ErrAwaitingOpponent, ErrCardAlreadySelected, ErrStatAlreadySelected, ErrInvalidStat,
		ErrCardNotFound, ErrPlayerNotFound, ErrInvalidPolicy,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
