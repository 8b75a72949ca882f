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

// Package services_test contains unit tests for the domain services. This
// file covers the scene state store: admission, settlement, the video
// status lifecycle, and state preservation across project updates.
package services_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// TestTryBeginImageAdmission verifies the single-admission guarantee: the
// first caller wins, later callers get a conflict until the scene settles.
func TestTryBeginImageAdmission(t *testing.T) {
	store := services.NewSceneStateStore(model.GetExampleProject())

	assert.NoError(t, store.TryBeginImage("scene-1"))
	assert.ErrorIs(t, store.TryBeginImage("scene-1"), services.ErrGenerationInFlight)

	// Settlement releases the flag and admission works again.
	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		Image: &model.Artifact{Data: []byte("img"), MIMEType: "image/png"},
	}))
	assert.NoError(t, store.TryBeginImage("scene-1"))
}

// TestTryBeginImageRacers starts many goroutines on the same scene and
// checks that exactly one admission succeeds.
func TestTryBeginImageRacers(t *testing.T) {
	store := services.NewSceneStateStore(model.GetExampleProject())

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.TryBeginImage("scene-2") == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

// TestTryBeginImagePreconditions covers the rejections that happen before
// any provider work: unknown scene and empty description.
func TestTryBeginImagePreconditions(t *testing.T) {
	project := model.GetExampleProject()
	project.Scenes[0].Description = ""
	store := services.NewSceneStateStore(project)

	assert.ErrorIs(t, store.TryBeginImage("missing"), services.ErrSceneNotFound)
	assert.ErrorIs(t, store.TryBeginImage("scene-1"), services.ErrEmptyDescription)
}

// TestTryBeginVideoPreconditions verifies video admission: the scene needs
// an image, and a still-tracked operation blocks a second submit.
func TestTryBeginVideoPreconditions(t *testing.T) {
	store := services.NewSceneStateStore(model.GetExampleProject())

	// No image yet.
	assert.ErrorIs(t, store.TryBeginVideo("scene-1"), services.ErrMissingImage)

	// Attach an image, then a live operation handle.
	assert.NoError(t, store.TryBeginImage("scene-1"))
	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		Image: &model.Artifact{Data: []byte("img"), MIMEType: "image/png"},
	}))
	assert.NoError(t, store.TryBeginVideo("scene-1"))
	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		VideoHandle: model.StringPtr("op-1"),
		VideoStatus: model.StatusPtr(model.VideoStatusStarting),
	}))

	assert.ErrorIs(t, store.TryBeginVideo("scene-1"), services.ErrVideoInFlight)
}

// TestSettleTerminalClearsHandle verifies that moving the video status to a
// terminal state drops the operation handle, keeping the scene and the
// poller's records consistent.
func TestSettleTerminalClearsHandle(t *testing.T) {
	store := services.NewSceneStateStore(model.GetExampleProject())

	assert.NoError(t, store.TryBeginImage("scene-1"))
	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		Image: &model.Artifact{Data: []byte("img"), MIMEType: "image/png"},
	}))
	assert.NoError(t, store.TryBeginVideo("scene-1"))
	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		VideoHandle: model.StringPtr("op-1"),
		VideoStatus: model.StatusPtr(model.VideoStatusStarting),
	}))

	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		Video:       &model.Artifact{Data: []byte("vid"), MIMEType: "video/mp4"},
		VideoStatus: model.StatusPtr(model.VideoStatusSucceeded),
		ClearError:  true,
	}))

	scene, err := store.Scene("scene-1")
	assert.NoError(t, err)
	assert.Equal(t, model.VideoStatusSucceeded, scene.VideoStatus)
	assert.Equal(t, "", scene.VideoOperationHandle)
	assert.NotNil(t, scene.Video)
	assert.False(t, scene.IsGenerating)
}

// TestSettleVideoKeepsGenerationFlag verifies the video-scoped settlement:
// it applies the terminal transition and clears the handle but leaves the
// generation flag with whoever was admitted for it. Without this split a
// late video settlement would release a concurrent image job's admission
// and let a second image job through on the same scene.
func TestSettleVideoKeepsGenerationFlag(t *testing.T) {
	store := services.NewSceneStateStore(model.GetExampleProject())

	assert.NoError(t, store.TryBeginImage("scene-1"))
	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		Image: &model.Artifact{Data: []byte("img"), MIMEType: "image/png"},
	}))
	assert.NoError(t, store.TryBeginVideo("scene-1"))
	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		VideoHandle: model.StringPtr("op-1"),
		VideoStatus: model.StatusPtr(model.VideoStatusStarting),
	}))

	// An image generation wins admission while the operation is in flight.
	assert.NoError(t, store.TryBeginImage("scene-1"))

	assert.NoError(t, store.SettleVideo("scene-1", &model.ScenePatch{
		Video:       &model.Artifact{Data: []byte("vid"), MIMEType: "video/mp4"},
		VideoStatus: model.StatusPtr(model.VideoStatusSucceeded),
	}))

	scene, err := store.Scene("scene-1")
	assert.NoError(t, err)
	assert.Equal(t, model.VideoStatusSucceeded, scene.VideoStatus)
	assert.Equal(t, "", scene.VideoOperationHandle)
	assert.True(t, scene.IsGenerating)
	assert.ErrorIs(t, store.TryBeginImage("scene-1"), services.ErrGenerationInFlight)
}

// TestSettleRecordsError verifies that a failure settlement releases the
// generation flag and leaves the diagnostic on the scene.
func TestSettleRecordsError(t *testing.T) {
	store := services.NewSceneStateStore(model.GetExampleProject())

	assert.NoError(t, store.TryBeginImage("scene-3"))
	assert.NoError(t, store.Settle("scene-3", &model.ScenePatch{
		LastError: model.StringPtr("image generation failed after 3 attempt(s): quota exceeded"),
	}))

	scene, err := store.Scene("scene-3")
	assert.NoError(t, err)
	assert.False(t, scene.IsGenerating)
	assert.Contains(t, scene.LastError, "quota exceeded")
	assert.Nil(t, scene.Image)

	// The next admission clears the stale error.
	assert.NoError(t, store.TryBeginImage("scene-3"))
	scene, _ = store.Scene("scene-3")
	assert.Equal(t, "", scene.LastError)
}

// TestUpdateProjectPreservesInFlightState verifies that replacing the
// project mid-generation keeps the generating flag and the tracked video
// operation on matching scenes, so an edit cannot double-admit a scene or
// orphan a running operation.
func TestUpdateProjectPreservesInFlightState(t *testing.T) {
	store := services.NewSceneStateStore(model.GetExampleProject())

	assert.NoError(t, store.TryBeginImage("scene-1"))
	assert.NoError(t, store.UpdateVideoStatus("scene-2", model.VideoStatusActive))
	assert.NoError(t, store.Settle("scene-2", &model.ScenePatch{
		VideoHandle: model.StringPtr("op-42"),
		VideoStatus: model.StatusPtr(model.VideoStatusActive),
	}))

	// Replace the project with an edited copy of the same scenes.
	edited := model.GetExampleProject()
	edited.Scenes[0].Description = "Ana checks the arrivals board."
	store.UpdateProject(edited)

	assert.ErrorIs(t, store.TryBeginImage("scene-1"), services.ErrGenerationInFlight)
	scene, err := store.Scene("scene-2")
	assert.NoError(t, err)
	assert.Equal(t, "op-42", scene.VideoOperationHandle)
	assert.Equal(t, model.VideoStatusActive, scene.VideoStatus)
}

// TestScenesNeedingImage verifies the batch work list: sequence order, only
// scenes with a description, only scenes without an image.
func TestScenesNeedingImage(t *testing.T) {
	project := model.GetExampleProject()
	// Shuffle storage order; the work list must still come out by sequence.
	project.Scenes[0], project.Scenes[2] = project.Scenes[2], project.Scenes[0]
	project.SceneByID("scene-2").Image = &model.Artifact{Data: []byte("img"), MIMEType: "image/png"}
	store := services.NewSceneStateStore(project)

	assert.Equal(t, []string{"scene-1", "scene-3"}, store.ScenesNeedingImage())
}

// TestSceneReturnsCopy verifies that read-model scenes are detached from
// live state.
func TestSceneReturnsCopy(t *testing.T) {
	store := services.NewSceneStateStore(model.GetExampleProject())

	scene, err := store.Scene("scene-1")
	assert.NoError(t, err)
	scene.Description = "mutated by caller"

	fresh, err := store.Scene("scene-1")
	assert.NoError(t, err)
	assert.NotEqual(t, "mutated by caller", fresh.Description)
}
