// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"log/slog"
	"time"
)

// Backoff retries an operation with exponentially growing delays.
type Backoff struct {
	// MaxAttempts counts the first call. Must be positive.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; it doubles after each failure.
	BaseDelay time.Duration
	// Permanent reports errors that end the loop at once. Nil retries everything.
	Permanent func(error) bool
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	return b.BaseDelay << (attempt - 1)
}

// Do runs op until it succeeds, fails permanently, runs out of attempts or
// ctx ends. The last error from op is returned.
func (b Backoff) Do(ctx context.Context, logger *slog.Logger, op func(context.Context) error) error {
	if b.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = op(ctx); err == nil {
			if attempt > 1 {
				logger.Debug("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if b.Permanent != nil && b.Permanent(err) {
			return err
		}
		if attempt == b.MaxAttempts {
			return err
		}

		delay := b.Delay(attempt)
		logger.Debug("attempt failed, backing off", "attempt", attempt, "of", b.MaxAttempts, "delay", delay, "err", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
