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
// command that assembles the provider instruction text for a scene.
//
// Logic Flow:
// Runs after reference resolution. It feeds the job's scene, snapshot and
// resolved references into the prompt assembler and stores the resulting
// instruction on the job. In refinement mode the assembler produces a delta
// instruction against the scene's existing image instead of a full prompt.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/cor"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// ScenePromptAssembler is a command that turns the resolved scene state into
// the final instruction text.
type ScenePromptAssembler struct {
	cor.BaseCommand
	assembler *services.PromptAssembler
}

// NewScenePromptAssembler is the constructor for the ScenePromptAssembler command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - assembler: The configured prompt assembler service.
//
// Outputs:
//   - *ScenePromptAssembler: A pointer to the newly instantiated command.
func NewScenePromptAssembler(name string, assembler *services.PromptAssembler) *ScenePromptAssembler {
	return &ScenePromptAssembler{
		BaseCommand: *cor.NewBaseCommand(name),
		assembler:   assembler,
	}
}

// Execute assembles the instruction for the job's scene and stores it on the job.
//
// Inputs:
//   - context: The shared `cor.Context`, with the *model.GenerationJob as input.
func (t *ScenePromptAssembler) Execute(context cor.Context) {
	job := context.Get(t.GetInputParam()).(*model.GenerationJob)

	scene := job.Snapshot.SceneByID(job.SceneID)
	if scene == nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("%w: %s", services.ErrSceneNotFound, job.SceneID))
		return
	}

	prompt, err := t.assembler.Assemble(&services.PromptInput{
		Project:        job.Snapshot,
		Scene:          scene,
		Refs:           &services.ResolvedReferences{Images: job.References, NoPeople: job.NoPeople, EnvironmentText: job.EnvironmentText},
		Refinement:     job.Refinement,
		RefinementText: job.RefinementText,
	})
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), err)
		return
	}

	job.Prompt = prompt

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), job)
}
