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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that submits a long-running video generation.
//
// Logic Flow:
// Runs after prompt assembly in the video chain. The scene's generated image
// becomes the start frame; when the scene also carries an end-frame image
// the request upgrades to a two-frame interpolation. Only the submit call
// runs under the retry policy. Once the provider accepts the operation the
// command records the opaque handle on the job and hands off to the
// operation tracker; polling is not retried here because the poller owns
// that lifecycle.
package commands

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/cor"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// SceneVideoSubmitter is a command that starts a video generation operation
// for one scene.
type SceneVideoSubmitter struct {
	cor.BaseCommand
	generator    cloud.VideoGenerator
	retry        *services.RetryPolicy
	retryCounter metric.Int64Counter
}

// NewSceneVideoSubmitter is the constructor for the SceneVideoSubmitter command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - generator: The provider adapter for video generation.
//   - retry: The bounded retry policy for transient submit failures.
//
// Outputs:
//   - *SceneVideoSubmitter: A pointer to the newly instantiated command,
//     including an initialized retry counter.
func NewSceneVideoSubmitter(name string, generator cloud.VideoGenerator, retry *services.RetryPolicy) *SceneVideoSubmitter {
	out := &SceneVideoSubmitter{
		BaseCommand: *cor.NewBaseCommand(name),
		generator:   generator,
		retry:       retry,
	}
	out.retryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.provider.retry", out.GetName()))
	return out
}

// Execute submits the video operation and records its handle on the job.
//
// Inputs:
//   - context: The shared `cor.Context`, with the *model.GenerationJob as input.
func (t *SceneVideoSubmitter) Execute(corCtx cor.Context) {
	job := corCtx.Get(t.GetInputParam()).(*model.GenerationJob)

	scene := job.Snapshot.SceneByID(job.SceneID)
	if scene == nil {
		t.GetErrorCounter().Add(corCtx.GetContext(), 1)
		corCtx.AddError(t.GetName(), fmt.Errorf("%w: %s", services.ErrSceneNotFound, job.SceneID))
		return
	}
	if scene.Image == nil {
		t.GetErrorCounter().Add(corCtx.GetContext(), 1)
		corCtx.AddError(t.GetName(), fmt.Errorf("%w: %s", services.ErrMissingImage, job.SceneID))
		return
	}

	request := &cloud.GenerationRequest{
		Instruction: job.Prompt,
		AspectRatio: job.AspectRatio,
		StartFrame:  scene.Image,
		EndFrame:    scene.EndFrameImage,
	}

	var handle string
	attempts, err := t.retry.Do(corCtx.GetContext(), func(ctx context.Context) error {
		var submitErr error
		handle, submitErr = t.generator.SubmitVideo(ctx, request)
		return submitErr
	})
	if attempts > 1 {
		t.retryCounter.Add(corCtx.GetContext(), int64(attempts-1))
	}
	if err != nil {
		t.GetErrorCounter().Add(corCtx.GetContext(), 1)
		corCtx.AddError(t.GetName(), fmt.Errorf("video submit failed after %d attempt(s): %w", attempts, err))
		return
	}

	job.OperationHandle = handle

	t.GetSuccessCounter().Add(corCtx.GetContext(), 1)
	corCtx.Add(t.GetOutputParam(), job)
}
