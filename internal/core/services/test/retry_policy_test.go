// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package services_test contains unit tests for the domain services. This
// file covers the retry policy: error classification, attempt accounting,
// and the exponential backoff schedule.
package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// TestClassify checks the error taxonomy: permission failures and unusable
// responses are fatal, and everything else, including malformed request
// rejections and unrecognized errors, is transient under the attempt cap.
func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.ErrorClass
	}{
		{"quota", errors.New("googleapi: Error 429: Quota exceeded"), services.ErrorTransient},
		{"rate limit", errors.New("rate limit reached for model"), services.ErrorTransient},
		{"unavailable", errors.New("rpc error: code = Unavailable desc = 503 service unavailable"), services.ErrorTransient},
		{"overloaded", errors.New("the model is overloaded"), services.ErrorTransient},
		{"deadline", errors.New("context deadline exceeded"), services.ErrorTransient},
		{"permission", errors.New("googleapi: Error 403: Permission denied on resource"), services.ErrorFatal},
		{"unauthenticated", errors.New("rpc error: code = Unauthenticated desc = missing credentials"), services.ErrorFatal},
		{"invalid argument", errors.New("invalid argument: unsupported aspect ratio"), services.ErrorTransient},
		{"bad request", errors.New("googleapi: Error 400: Request contains an invalid argument"), services.ErrorTransient},
		{"no artifact", fmt.Errorf("model call failed: %w", cloud.ErrNoArtifact), services.ErrorFatal},
		{"unknown", errors.New("connection reset by peer"), services.ErrorTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, services.Classify(tc.err))
		})
	}
}

// newInstantPolicy builds a three-attempt policy whose sleeps record their
// durations instead of waiting.
func newInstantPolicy(delays *[]time.Duration) *services.RetryPolicy {
	policy := services.NewRetryPolicy(cloud.RetrySettings{MaxAttempts: 3, InitialDelayMs: 2000})
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return policy
}

// TestRetryTransientThenSuccess verifies that two transient failures are
// absorbed and the third attempt's success is reported with the full
// attempt count and a doubling backoff schedule.
func TestRetryTransientThenSuccess(t *testing.T) {
	var delays []time.Duration
	policy := newInstantPolicy(&delays)

	calls := 0
	attempts, err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("googleapi: Error 429: Quota exceeded")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

// TestRetryFatalStopsImmediately verifies that a permission failure aborts
// on the first attempt without sleeping.
func TestRetryFatalStopsImmediately(t *testing.T) {
	var delays []time.Duration
	policy := newInstantPolicy(&delays)

	calls := 0
	attempts, err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("googleapi: Error 403: Permission denied")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

// TestRetryExhaustion verifies that persistent transient failures stop at
// the attempt budget and surface the last error.
func TestRetryExhaustion(t *testing.T) {
	var delays []time.Duration
	policy := newInstantPolicy(&delays)

	attempts, err := policy.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("503 service unavailable")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 3, attempts)
	// Two sleeps: between attempts one and two, and two and three.
	assert.Equal(t, 2, len(delays))
}

// TestRetryDefaults verifies the fallback attempt budget and initial delay
// when the configuration leaves them unset.
func TestRetryDefaults(t *testing.T) {
	policy := services.NewRetryPolicy(cloud.RetrySettings{})
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 2*time.Second, policy.InitialDelay)
}

// TestRetryCanceledContext verifies that a canceled context aborts the
// backoff wait instead of retrying.
func TestRetryCanceledContext(t *testing.T) {
	policy := services.NewRetryPolicy(cloud.RetrySettings{MaxAttempts: 3, InitialDelayMs: 60000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		return errors.New("quota exceeded")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
