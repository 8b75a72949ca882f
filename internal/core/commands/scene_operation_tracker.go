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
// final command of the video chain: handing the accepted operation to the
// poller.
//
// Logic Flow:
// The settlement records the operation handle on the scene with the
// "starting" status and releases the scene's in-flight flag; the submit
// phase is over. The handle is then registered with the operation poller,
// which owns the rest of the lifecycle: starting to active on the first
// in-progress poll, then a terminal succeeded or failed settlement.
package commands

import (
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/cor"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// SceneOperationTracker is a command that commits an accepted video
// operation to the scene state and registers it with the poller.
type SceneOperationTracker struct {
	cor.BaseCommand
	store  *services.SceneStateStore
	poller *services.OperationPoller
}

// NewSceneOperationTracker is the constructor for the SceneOperationTracker command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - store: The scene state store that owns live state.
//   - poller: The operation poller that tracks the handle to completion.
//
// Outputs:
//   - *SceneOperationTracker: A pointer to the newly instantiated command.
func NewSceneOperationTracker(name string, store *services.SceneStateStore, poller *services.OperationPoller) *SceneOperationTracker {
	return &SceneOperationTracker{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       store,
		poller:      poller,
	}
}

// Execute records the operation on the scene and starts tracking it.
//
// Inputs:
//   - context: The shared `cor.Context`, with the *model.GenerationJob as input.
func (t *SceneOperationTracker) Execute(context cor.Context) {
	job := context.Get(t.GetInputParam()).(*model.GenerationJob)

	patch := &model.ScenePatch{
		VideoHandle: model.StringPtr(job.OperationHandle),
		VideoStatus: model.StatusPtr(model.VideoStatusStarting),
		ClearError:  true,
	}
	if err := t.store.Settle(job.SceneID, patch); err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), err)
		return
	}

	t.poller.Track(job.SceneID, job.OperationHandle)

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), job)
}
