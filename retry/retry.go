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


// Package retry provides the retry policy used at every external call
// site (embedding, LLM, transcription, and store writes).
package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Policy configures retry behavior for one call site.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (must be > 0).
	MaxAttempts int
	// BaseDelay is the delay before the second attempt; it doubles on
	// each subsequent retry.
	BaseDelay time.Duration
	// Jitter is the fraction of each delay added as random jitter.
	// 0 disables jitter; 0.2 adds up to 20% of the computed delay.
	Jitter float64
}

// DefaultPolicy returns the policy applied to store writes and AI calls
// unless a call site overrides it.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Jitter:      0.2,
	}
}

// Do runs operation under the policy with exponential backoff.
// Returns the error from the last attempt if all attempts fail, or the
// context error if the context ends between attempts.
func Do(ctx context.Context, policy Policy, operation func() error) error {
	if policy.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil // Success
		}

		slog.Debug("operation failed, will retry",
			"attempt", attempt, "maxAttempts", policy.MaxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == policy.MaxAttempts {
			break
		}

		// Exponential backoff: baseDelay * 2^(attempt-1)
		delay := policy.BaseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		if policy.Jitter > 0 {
			delay += time.Duration(policy.Jitter * rand.Float64() * float64(delay))
		}

		// Sleep with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Continue to next attempt
		}
	}

	return lastErr
}
