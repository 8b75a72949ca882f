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
// command that performs the synchronous image generation call.
//
// Logic Flow:
// Runs after prompt assembly. It packages the job's instruction, references
// and aspect ratio into a provider request and executes it under the retry
// policy: transient failures back off and try again up to the attempt
// budget, fatal failures abort immediately. Whatever the outcome, the scene
// settles exactly once, later in the chain. The command records how many
// retries the call consumed so quota pressure is visible in metrics.
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

// SceneImageGenerator is a command that executes the image generation call
// for one scene under the retry policy.
type SceneImageGenerator struct {
	cor.BaseCommand
	generator    cloud.ImageGenerator
	retry        *services.RetryPolicy
	retryCounter metric.Int64Counter
}

// NewSceneImageGenerator is the constructor for the SceneImageGenerator command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - generator: The provider adapter for image generation.
//   - retry: The bounded retry policy for transient failures.
//
// Outputs:
//   - *SceneImageGenerator: A pointer to the newly instantiated command,
//     including an initialized retry counter.
func NewSceneImageGenerator(name string, generator cloud.ImageGenerator, retry *services.RetryPolicy) *SceneImageGenerator {
	out := &SceneImageGenerator{
		BaseCommand: *cor.NewBaseCommand(name),
		generator:   generator,
		retry:       retry,
	}
	out.retryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.provider.retry", out.GetName()))
	return out
}

// Execute performs the generation call and attaches the result to the job.
//
// Inputs:
//   - context: The shared `cor.Context`, with the *model.GenerationJob as input.
func (t *SceneImageGenerator) Execute(corCtx cor.Context) {
	job := corCtx.Get(t.GetInputParam()).(*model.GenerationJob)

	scene := job.Snapshot.SceneByID(job.SceneID)
	if scene == nil {
		t.GetErrorCounter().Add(corCtx.GetContext(), 1)
		corCtx.AddError(t.GetName(), fmt.Errorf("%w: %s", services.ErrSceneNotFound, job.SceneID))
		return
	}

	request := &cloud.GenerationRequest{
		Instruction:     job.Prompt,
		ReferenceImages: job.References,
		AspectRatio:     job.AspectRatio,
	}
	if job.Refinement {
		request.BaseImage = scene.Image
	}

	var artifact *model.Artifact
	attempts, err := t.retry.Do(corCtx.GetContext(), func(ctx context.Context) error {
		var genErr error
		artifact, genErr = t.generator.GenerateImage(ctx, request)
		return genErr
	})
	if attempts > 1 {
		t.retryCounter.Add(corCtx.GetContext(), int64(attempts-1))
	}
	if err != nil {
		t.GetErrorCounter().Add(corCtx.GetContext(), 1)
		corCtx.AddError(t.GetName(), fmt.Errorf("image generation failed after %d attempt(s): %w", attempts, err))
		return
	}

	job.Artifact = artifact

	t.GetSuccessCounter().Add(corCtx.GetContext(), 1)
	corCtx.Add(t.GetOutputParam(), job)
}
