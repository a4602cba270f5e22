package service

import (
	"context"
	"time"

	"commitbet/models"
)

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// NoopLocker never blocks. The database row locks still serialize access.
type NoopLocker struct{}

func (NoopLocker) Lock(ctx context.Context, key models.MarketKey) (func(), error) {
	return func() {}, nil
}
