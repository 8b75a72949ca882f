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
// command that persists a freshly generated artifact to object storage.
//
// Logic Flow:
// Runs after a successful provider call. The generated bytes are written to
// the GCS artifact bucket and the resulting media id and URI are recorded on
// the job so the settlement step can attach them to the scene. A later video
// request for the scene can then reference the persisted media instead of
// re-uploading bytes. Persistence failure is not fatal: the image in memory
// is still a valid generation result, so the failure is logged and the chain
// continues without a media id.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/cor"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// SceneArtifactPersister is a command that writes the job's generated
// artifact to the artifact store.
type SceneArtifactPersister struct {
	cor.BaseCommand
	persister services.ArtifactPersister
	kind      string
}

// NewSceneArtifactPersister is the constructor for the SceneArtifactPersister command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - persister: The artifact store, or nil to make this command a pass-through.
//   - kind: The artifact role recorded in the object name ("image", "endframe").
//
// Outputs:
//   - *SceneArtifactPersister: A pointer to the newly instantiated command.
func NewSceneArtifactPersister(name string, persister services.ArtifactPersister, kind string) *SceneArtifactPersister {
	return &SceneArtifactPersister{
		BaseCommand: *cor.NewBaseCommand(name),
		persister:   persister,
		kind:        kind,
	}
}

// Execute saves the artifact and records the media id on the job.
//
// Inputs:
//   - context: The shared `cor.Context`, with the *model.GenerationJob as input.
func (t *SceneArtifactPersister) Execute(context cor.Context) {
	job := context.Get(t.GetInputParam()).(*model.GenerationJob)

	if t.persister != nil && job.Artifact != nil && len(job.Artifact.Data) > 0 {
		saved, err := t.persister.Save(context.GetContext(), job.SceneID, t.kind, job.Artifact)
		if err != nil {
			// Keep the in-memory artifact; only the durable copy is missing.
			t.GetErrorCounter().Add(context.GetContext(), 1)
			slog.Warn("failed to persist artifact", "scene", job.SceneID, "kind", t.kind, "error", err)
		} else {
			job.MediaID = saved.MediaID
			job.Artifact.URI = saved.URI
			t.GetSuccessCounter().Add(context.GetContext(), 1)
		}
	}

	context.Add(t.GetOutputParam(), job)
}
