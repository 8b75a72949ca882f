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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the video generation workflow for a single scene.
package workflow

import (
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/commands"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/cor"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// SceneVideoWorkflow orchestrates the submit phase of one scene video
// generation. The chain resolves the scene's references, assembles the
// motion instruction from the description and the resolved flags, submits
// the long-running operation with the scene's image as the start frame, and
// registers the returned handle with the operation poller. The poller owns
// everything after submission.
type SceneVideoWorkflow struct {
	cor.BaseCommand
	assembler *services.PromptAssembler
	generator cloud.VideoGenerator
	retry     *services.RetryPolicy
	store     *services.SceneStateStore
	poller    *services.OperationPoller
	chain     cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the video submit workflow by invoking the underlying chain.
//
// Inputs:
//   - context: The chain of responsibility context for this execution, with
//     the *model.GenerationJob as the primary input.
func (w *SceneVideoWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// initializeChain builds the sequence of commands that make up this workflow.
// This method is called by the constructor.
func (w *SceneVideoWorkflow) initializeChain() {
	// Create the chain that will hold all the command steps.
	out := cor.NewBaseChain(w.GetName())

	// Step 1: Resolve the scene's references. The start frame carries the
	// visual identity, so the resolved images are not sent with the
	// request, but the no-people flag and the environment text must still
	// reach the motion instruction.
	out.AddCommand(commands.NewSceneReferenceResolver("resolve-video-references"))

	// Step 2: Assemble the motion instruction from the scene description,
	// style, cinematography, and the resolved flags.
	out.AddCommand(commands.NewScenePromptAssembler("assemble-video-prompt", w.assembler))

	// Step 3: Submit the long-running operation. The scene's image is the
	// start frame; an end-frame image upgrades the request to a two-frame
	// interpolation. Only the submit call is retried.
	out.AddCommand(commands.NewSceneVideoSubmitter("submit-scene-video", w.generator, w.retry))

	// Step 4: Record the handle on the scene with the "starting" status and
	// hand it to the poller, which drives the operation to a terminal state.
	out.AddCommand(commands.NewSceneOperationTracker("track-video-operation", w.store, w.poller))

	// Assign the fully constructed chain to the workflow instance.
	w.chain = out
}

// NewSceneVideoWorkflow is the constructor for the SceneVideoWorkflow. It
// wires the services the chain steps depend on and builds the command chain.
//
// Inputs:
//   - assembler: The configured prompt assembler.
//   - generator: The provider adapter for video generation.
//   - retry: The bounded retry policy for the submit call.
//   - store: The scene state store.
//   - poller: The operation poller that tracks accepted operations.
//
// Returns:
//   - A pointer to a newly created and fully initialized SceneVideoWorkflow.
func NewSceneVideoWorkflow(
	assembler *services.PromptAssembler,
	generator cloud.VideoGenerator,
	retry *services.RetryPolicy,
	store *services.SceneStateStore,
	poller *services.OperationPoller) *SceneVideoWorkflow {

	pipeline := &SceneVideoWorkflow{
		BaseCommand: *cor.NewBaseCommand("scene-video-pipeline"),
		assembler:   assembler,
		generator:   generator,
		retry:       retry,
		store:       store,
		poller:      poller,
	}
	// Build the command chain for the new pipeline instance.
	pipeline.initializeChain()
	return pipeline
}
