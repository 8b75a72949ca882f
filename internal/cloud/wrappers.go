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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements a wrapper around the standard Generative AI client.
// This wrapper uses the Decorator design pattern to add extra functionality
// to an existing object without altering its code. Specifically, it adds
// rate limiting to the Generative AI model.
//
// Why this is important:
//   - Rate Limiting: Services like Vertex AI have quotas on how many requests
//     you can make per minute. This wrapper prevents the application from
//     exceeding those limits, which would otherwise result in errors.
//
// Retrying failed calls is deliberately NOT handled here. The retry policy in
// the services layer owns attempt counting and transient/fatal classification,
// so stacking a second retry loop at this level would multiply attempts.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: A struct that wraps the base `genai.Models`
//     handle and adds a rate limiter.
//
// Functions:
//   - NewQuotaAwareModel: A constructor to create a new instance of the wrapped model.
//   - GenerateContent: An overridden method that intercepts calls to the AI model
//     to enforce rate limiting.
package cloud

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// QuotaAwareGenerativeAIModel is a decorator struct that wraps the standard
// `genai.Models` handle to add rate-limiting capabilities. Callers use it
// exactly like the underlying model, but every call first acquires a token
// from the limiter.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // The generation settings applied to every call.
	ModelName               string                       // The Vertex AI model identifier.
	ModelHandle             *genai.Models                // The underlying client model handle.
	RateLimit               *rate.Limiter                // A rate limiter to control request frequency.
}

// NewQuotaAwareModel is a constructor function that creates a new
// QuotaAwareGenerativeAIModel. It takes the generation config, model name and
// a rate limit (in requests per second) and returns the quota-aware wrapper.
//
// Inputs:
//   - wrapped: The *genai.GenerateContentConfig applied to every request.
//   - name: The Vertex AI model identifier.
//   - modelHandle: The *genai.Models handle from the shared client.
//   - requestsPerSecond: An integer specifying the maximum number of API calls allowed per second.
//
// Outputs:
//   - *QuotaAwareGenerativeAIModel: A pointer to the newly created wrapper.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		// Allows a burst of `requestsPerSecond` events and replenishes the
		// token bucket at one token per second.
		RateLimit: rate.NewLimiter(rate.Every(time.Second/1), requestsPerSecond),
	}
}

// GenerateContent calls the underlying model after acquiring a token from the
// rate limiter. `Wait` blocks until a token is available or the context is
// canceled, so a burst of scene jobs naturally queues at this point instead of
// tripping provider quotas.
//
// Inputs:
//   - ctx: The context for the request, which controls cancellation and tracing.
//   - content: The multi-modal prompt content (text, images).
//
// Outputs:
//   - *genai.GenerateContentResponse: The response from the AI model if successful.
//   - error: An error from the limiter wait or from the model call.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}
