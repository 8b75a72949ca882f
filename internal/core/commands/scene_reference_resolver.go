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
// command that resolves a scene's reference images.
//
// Logic Flow:
// This is the first step of every generation chain. It takes the generation
// job (which carries a stable project snapshot) and asks the reference
// resolver for the ordered image set the provider call will see: character
// views, product masters, and the freshest environment reference. The
// resolved set is written back onto the job for the prompt assembly and
// provider call steps that follow.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/cor"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// SceneReferenceResolver is a command that selects and orders the reference
// images for one scene generation.
type SceneReferenceResolver struct {
	cor.BaseCommand
}

// NewSceneReferenceResolver is the constructor for the SceneReferenceResolver command.
//
// Inputs:
//   - name: A string name for this command instance.
//
// Outputs:
//   - *SceneReferenceResolver: A pointer to the newly instantiated command.
func NewSceneReferenceResolver(name string) *SceneReferenceResolver {
	return &SceneReferenceResolver{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute resolves the references for the job's scene and stores them on the job.
//
// Inputs:
//   - context: The shared `cor.Context`, with the *model.GenerationJob as input.
func (t *SceneReferenceResolver) Execute(context cor.Context) {
	job := context.Get(t.GetInputParam()).(*model.GenerationJob)

	scene := job.Snapshot.SceneByID(job.SceneID)
	if scene == nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("%w: %s", services.ErrSceneNotFound, job.SceneID))
		return
	}

	refs, err := services.ResolveReferences(job.Snapshot, scene)
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), err)
		return
	}

	job.References = refs.Images
	job.NoPeople = refs.NoPeople
	job.EnvironmentText = refs.EnvironmentText

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), job)
}
