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
// the image generation workflow for a single scene.
package workflow

import (
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/commands"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/cor"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// SceneImageWorkflow orchestrates one scene image generation. It's
// structured as a Chain of Responsibility (cor.Chain) that resolves the
// scene's references, assembles the instruction, performs the provider call
// under the retry policy, persists the result, and settles the scene.
//
// The workflow runs against a project snapshot carried by the generation
// job; the only live state it touches is the final settlement.
type SceneImageWorkflow struct {
	cor.BaseCommand
	assembler *services.PromptAssembler
	generator cloud.ImageGenerator
	retry     *services.RetryPolicy
	persister services.ArtifactPersister
	store     *services.SceneStateStore
	chain     cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the image generation workflow by invoking the underlying chain.
//
// Inputs:
//   - context: The chain of responsibility context for this execution, with
//     the *model.GenerationJob as the primary input.
func (w *SceneImageWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// initializeChain builds the sequence of commands that make up this workflow.
// Each command is an atomic unit of work; the generation job flows through
// the chain as the piped input and output of every step.
// This method is called by the constructor.
func (w *SceneImageWorkflow) initializeChain() {
	// Create the chain that will hold all the command steps.
	out := cor.NewBaseChain(w.GetName())

	// Step 1: Resolve the scene's reference images from the snapshot:
	// character views in fixed order, product masters, and the freshest
	// environment reference for the scene's group.
	out.AddCommand(commands.NewSceneReferenceResolver("resolve-scene-references"))

	// Step 2: Assemble the instruction text. Refinement jobs produce a
	// delta instruction against the existing image instead of a full prompt.
	out.AddCommand(commands.NewScenePromptAssembler("assemble-scene-prompt", w.assembler))

	// Step 3: Perform the provider call under the bounded retry policy.
	// Transient failures back off and retry; fatal ones abort immediately.
	out.AddCommand(commands.NewSceneImageGenerator("generate-scene-image", w.generator, w.retry))

	// Step 4: Persist the generated image to the artifact bucket so later
	// video requests can reference the media id instead of raw bytes.
	out.AddCommand(commands.NewSceneArtifactPersister("persist-scene-image", w.persister, "image"))

	// Step 5: Settle the scene: attach the image and media id to live state
	// and release the in-flight flag.
	out.AddCommand(commands.NewSceneSettler("settle-scene-image", w.store))

	// Assign the fully constructed chain to the workflow instance.
	w.chain = out
}

// NewSceneImageWorkflow is the constructor for the SceneImageWorkflow. It
// wires the services the chain steps depend on and builds the command chain.
//
// Inputs:
//   - assembler: The configured prompt assembler.
//   - generator: The provider adapter for image generation.
//   - retry: The bounded retry policy.
//   - persister: The artifact store, or nil to skip persistence.
//   - store: The scene state store.
//
// Returns:
//   - A pointer to a newly created and fully initialized SceneImageWorkflow.
func NewSceneImageWorkflow(
	assembler *services.PromptAssembler,
	generator cloud.ImageGenerator,
	retry *services.RetryPolicy,
	persister services.ArtifactPersister,
	store *services.SceneStateStore) *SceneImageWorkflow {

	pipeline := &SceneImageWorkflow{
		BaseCommand: *cor.NewBaseCommand("scene-image-pipeline"),
		assembler:   assembler,
		generator:   generator,
		retry:       retry,
		persister:   persister,
		store:       store,
	}
	// Build the command chain for the new pipeline instance.
	pipeline.initializeChain()
	return pipeline
}
