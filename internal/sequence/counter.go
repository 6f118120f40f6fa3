package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/clock"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
)

// DefaultDailyLimit is the largest sequence a single day can mint.
const DefaultDailyLimit = 9999

const incrementSQL = `
INSERT INTO order_counters (day, sequence, created_at, updated_at)
VALUES (?, 1, ?, ?)
ON CONFLICT (day) DO UPDATE
SET sequence = order_counters.sequence + 1,
    updated_at = excluded.updated_at
RETURNING sequence`

// Counter mints YYYYMMDD-NNNN order identifiers from a per-day row.
type Counter struct {
	clock clock.Clock
	limit int
}

func NewCounter(c clock.Clock, dailyLimit int) (*Counter, error) {
	if c == nil {
		return nil, errors.New("clock required")
	}
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	if dailyLimit > DefaultDailyLimit {
		return nil, fmt.Errorf("daily limit %d does not fit four digits", dailyLimit)
	}
	return &Counter{clock: c, limit: dailyLimit}, nil
}

// NextOrderID increments today's counter inside tx and formats the id.
// When the limit is passed the increment is still written, so the caller
// must roll tx back on error; WithTx does that.
func (c *Counter) NextOrderID(ctx context.Context, tx *gorm.DB) (string, error) {
	if tx == nil {
		return "", errors.New("transaction required")
	}
	now := c.clock.Now()
	day := clock.DayKey(now)

	seq, err := c.increment(ctx, tx, day, now)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment order counter")
	}
	if seq > c.limit {
		return "", pkgerrors.New(pkgerrors.CodeLimitExceeded, fmt.Sprintf("order sequence for %s exhausted", day))
	}
	return Format(day, seq), nil
}

// Peek returns the last sequence minted for day without changing it.
func (c *Counter) Peek(ctx context.Context, db *gorm.DB, day string) (int, error) {
	var seq int
	err := db.WithContext(ctx).
		Raw("SELECT sequence FROM order_counters WHERE day = ?", day).
		Scan(&seq).Error
	return seq, err
}

func (c *Counter) increment(ctx context.Context, tx *gorm.DB, day string, now time.Time) (int, error) {
	var seq int
	row := tx.WithContext(ctx).Raw(incrementSQL, day, now, now).Row()
	if err := row.Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// Format renders the canonical order identifier.
func Format(day string, seq int) string {
	return fmt.Sprintf("%s-%04d", day, seq)
}
