package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/clock"
	"github.com/threadline/threadline-backend/pkg/db/dbtest"
	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
)

var fixedNow = time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)

func TestNextOrderIDSequential(t *testing.T) {
	client, _ := dbtest.Open(t)
	counter, err := NewCounter(clock.NewFixed(fixedNow), 0)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
			id, err := counter.NextOrderID(context.Background(), tx)
			ids = append(ids, id)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"20240115-0001", "20240115-0002", "20240115-0003"}, ids)
}

func TestNextOrderIDUsesBusinessDay(t *testing.T) {
	client, _ := dbtest.Open(t)
	// 20:00 UTC on the 15th is the 16th at +05:30.
	counter, err := NewCounter(clock.NewFixed(time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)), 0)
	require.NoError(t, err)

	var id string
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		id, err = counter.NextOrderID(context.Background(), tx)
		return err
	}))
	assert.Equal(t, "20240116-0001", id)
}

func TestNextOrderIDLimitExceeded(t *testing.T) {
	client, conn := dbtest.Open(t)
	counter, err := NewCounter(clock.NewFixed(fixedNow), 0)
	require.NoError(t, err)

	require.NoError(t, conn.Create(&models.OrderCounter{
		Day: "20240115", Sequence: 9999, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}).Error)

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := counter.NextOrderID(context.Background(), tx)
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeLimitExceeded))

	seq, err := counter.Peek(context.Background(), conn, "20240115")
	require.NoError(t, err)
	assert.Equal(t, 9999, seq, "failed increment must be rolled back")
}

func TestNextOrderIDConcurrentDistinct(t *testing.T) {
	client, _ := dbtest.Open(t)
	counter, err := NewCounter(clock.NewFixed(fixedNow), 0)
	require.NoError(t, err)

	const writers = 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
				id, err := counter.NextOrderID(context.Background(), tx)
				if err != nil {
					return err
				}
				mu.Lock()
				seen[id]++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, seen, writers)
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %s minted twice", id)
	}
}

func TestNewCounterValidation(t *testing.T) {
	_, err := NewCounter(nil, 0)
	assert.Error(t, err)
	_, err = NewCounter(clock.NewSystem(), 10000)
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "20240115-0042", Format("20240115", 42))
	assert.Equal(t, "20240115-9999", Format("20240115", 9999))
}
