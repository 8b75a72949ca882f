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

// Package services contains the domain services that sit between the HTTP
// surface and the generation workflows. This file implements the bounded
// retry policy around synchronous provider calls.
//
// Classification works on the provider's error text. The SDK does not expose
// stable typed errors across transports, so quota and availability failures
// are recognized by the status markers that appear in the message. Anything
// unrecognized counts as transient: a flaky unknown failure deserves another
// attempt, while the fatal classes (permission, malformed response) are
// matched explicitly.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
)

// ErrorClass partitions provider failures by how the retry loop treats them.
type ErrorClass int

const (
	// ErrorTransient failures are retried with backoff.
	ErrorTransient ErrorClass = iota
	// ErrorFatal failures abort immediately; retrying cannot help.
	ErrorFatal
)

// Classify inspects an error and decides whether another attempt could
// succeed. Only permission failures and a response with no usable media are
// fatal: neither changes on a retry. Everything else, including malformed
// request rejections, stays transient and is bounded by the attempt cap.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}
	if errors.Is(err, cloud.ErrNoArtifact) {
		return ErrorFatal
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"),
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthenticated"),
		strings.Contains(msg, "401"):
		return ErrorFatal
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "resource exhausted"):
		return ErrorTransient
	case strings.Contains(msg, "503"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "500"),
		strings.Contains(msg, "internal"):
		return ErrorTransient
	default:
		return ErrorTransient
	}
}

// RetryPolicy executes an operation with bounded attempts and exponential
// backoff. The sleep function is injectable so tests run without waiting.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// Sleep defaults to a context-aware wait. Tests replace it to record
	// delays instead of taking them.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy from configuration, applying the defaults
// of three attempts and a two second initial delay when unset.
func NewRetryPolicy(settings cloud.RetrySettings) *RetryPolicy {
	maxAttempts := settings.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	delay := time.Duration(settings.InitialDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &RetryPolicy{MaxAttempts: maxAttempts, InitialDelay: delay}
}

// Do runs the operation until it succeeds, fails fatally, or exhausts the
// attempt budget. The delay doubles after each transient failure. It returns
// the number of attempts actually made along with the final error, so
// callers can record retry metrics and settle the scene exactly once.
//
// Inputs:
//   - ctx: Cancels the backoff wait and is passed to each attempt.
//   - op: The operation to execute.
//
// Outputs:
//   - int: How many attempts ran, including the successful or final one.
//   - error: nil on success, otherwise the last error observed.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	delay := p.InitialDelay
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return attempt, nil
		}
		if Classify(err) == ErrorFatal {
			return attempt, err
		}
		if attempt == p.MaxAttempts {
			return attempt, err
		}
		if waitErr := sleep(ctx, delay); waitErr != nil {
			return attempt, waitErr
		}
		delay *= 2
	}
	return p.MaxAttempts, err
}

// sleepContext waits for the duration or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
