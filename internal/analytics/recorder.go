// Package analytics keeps lightweight sales counters in Redis. Everything
// here is best effort: callers log failures and move on.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/farmdirect/marketplace/internal/redisx"
)

type Recorder struct {
	rdb *redis.Client
}

func NewRecorder(rdb *redis.Client) *Recorder {
	return &Recorder{rdb: rdb}
}

func day(t time.Time) string { return t.UTC().Format("2006-01-02") }

// RecordSale bumps the product's revenue counter for today.
func (r *Recorder) RecordSale(ctx context.Context, productID string, amountCents int) error {
	key := fmt.Sprintf(redisx.KeySalesDay, productID, day(time.Now()))
	if err := r.rdb.IncrBy(ctx, key, int64(amountCents)).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, key, redisx.TTLAnalytics).Err()
}

// TrackActiveUser adds the user to today's active set.
func (r *Recorder) TrackActiveUser(ctx context.Context, userID string) error {
	key := fmt.Sprintf(redisx.KeyActiveUsers, day(time.Now()))
	if err := r.rdb.SAdd(ctx, key, userID).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, key, redisx.TTLAnalytics).Err()
}
