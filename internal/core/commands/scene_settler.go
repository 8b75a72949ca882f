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
// final command of the image generation chain: settling the scene.
//
// Logic Flow:
// The settlement applies the generated image, media id and URI to the live
// scene state in one atomic store update and releases the scene's in-flight
// flag. This command only handles the success path; when an earlier command
// records an error the chain halts before reaching it, and the workflow's
// failure handler settles the scene with the diagnostic instead.
package commands

import (
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/cor"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// SceneSettler is a command that commits a successful image generation to
// the scene state store.
type SceneSettler struct {
	cor.BaseCommand
	store *services.SceneStateStore
}

// NewSceneSettler is the constructor for the SceneSettler command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - store: The scene state store that owns live state.
//
// Outputs:
//   - *SceneSettler: A pointer to the newly instantiated command.
func NewSceneSettler(name string, store *services.SceneStateStore) *SceneSettler {
	return &SceneSettler{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       store,
	}
}

// Execute applies the job's results to the scene and releases the in-flight flag.
//
// Inputs:
//   - context: The shared `cor.Context`, with the *model.GenerationJob as input.
func (t *SceneSettler) Execute(context cor.Context) {
	job := context.Get(t.GetInputParam()).(*model.GenerationJob)

	patch := &model.ScenePatch{
		Image:      job.Artifact,
		ClearError: true,
	}
	if job.MediaID != "" {
		patch.MediaID = model.StringPtr(job.MediaID)
	}

	if err := t.store.Settle(job.SceneID, patch); err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), err)
		return
	}

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), job)
}
