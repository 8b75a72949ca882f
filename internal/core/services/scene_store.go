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

// Package services contains the domain services that sit between the HTTP
// surface and the generation workflows. This file implements the scene state
// store, the single authority over mutable scene state.
//
// Every state transition for a scene goes through this store under one lock:
// admission (marking a scene as generating), settlement (attaching results or
// errors), and the video status lifecycle. Workflows operate on snapshots and
// never mutate live state directly, which is what makes concurrent scene jobs
// safe.
package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
)

// Errors returned by admission checks. Handlers map these onto conflict and
// precondition responses.
var (
	ErrSceneNotFound      = errors.New("scene not found")
	ErrGenerationInFlight = errors.New("a generation is already in flight for this scene")
	ErrVideoInFlight      = errors.New("a video operation is already tracked for this scene")
	ErrMissingImage       = errors.New("scene has no generated image to animate")
	ErrEmptyDescription   = errors.New("scene has no description")
)

// SceneStateStore owns the live project state. All reads and writes are
// serialized through an RWMutex; snapshot methods return deep copies so
// callers can never observe a partially applied settlement.
type SceneStateStore struct {
	mu      sync.RWMutex
	project *model.Project
}

// NewSceneStateStore creates a store around the given project. A nil project
// starts the store empty; UpdateProject installs one later.
func NewSceneStateStore(project *model.Project) *SceneStateStore {
	if project == nil {
		project = &model.Project{}
	}
	return &SceneStateStore{project: project}
}

// UpdateProject replaces the entire project state. In-flight generation
// flags on matching scenes are preserved so a project edit during a batch
// run cannot double-admit a scene.
func (s *SceneStateStore) UpdateProject(project *model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if project == nil {
		project = &model.Project{}
	}
	for _, scene := range project.Scenes {
		if prev := s.project.SceneByID(scene.ID); prev != nil {
			scene.IsGenerating = prev.IsGenerating
			if scene.VideoOperationHandle == "" && prev.VideoOperationHandle != "" {
				scene.VideoOperationHandle = prev.VideoOperationHandle
				scene.VideoStatus = prev.VideoStatus
			}
		}
	}
	s.project = project
}

// Snapshot returns a deep copy of the whole project.
func (s *SceneStateStore) Snapshot() *model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project.Snapshot()
}

// Scene returns a deep copy of one scene, or ErrSceneNotFound.
func (s *SceneStateStore) Scene(id string) (*model.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scene := s.project.SceneByID(id)
	if scene == nil {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	return scene.Clone(), nil
}

// Scenes returns deep copies of all scenes ordered by sequence number.
func (s *SceneStateStore) Scenes() []*model.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Scene, len(s.project.Scenes))
	for i, scene := range s.project.Scenes {
		out[i] = scene.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out
}

// ScenesNeedingImage returns, in sequence order, the ids of scenes that have
// a description but no generated image yet. This is the work list for a
// batch run.
func (s *SceneStateStore) ScenesNeedingImage() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scenes := make([]*model.Scene, len(s.project.Scenes))
	copy(scenes, s.project.Scenes)
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].SequenceNumber < scenes[j].SequenceNumber
	})
	var ids []string
	for _, scene := range scenes {
		if scene.Description != "" && scene.Image == nil {
			ids = append(ids, scene.ID)
		}
	}
	return ids
}

// TryBeginImage admits an image generation for the scene. Exactly one caller
// wins when several race on the same scene; losers get
// ErrGenerationInFlight. A scene with an empty description is rejected
// before any provider work happens.
func (s *SceneStateStore) TryBeginImage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene := s.project.SceneByID(id)
	if scene == nil {
		return fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	if scene.Description == "" {
		return fmt.Errorf("%w: %s", ErrEmptyDescription, id)
	}
	if scene.IsGenerating {
		return fmt.Errorf("%w: %s", ErrGenerationInFlight, id)
	}
	scene.IsGenerating = true
	scene.LastError = ""
	return nil
}

// TryBeginVideo admits a video generation for the scene. It requires a
// generated image to animate and rejects the request while another
// generation or a tracked video operation is still live.
func (s *SceneStateStore) TryBeginVideo(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene := s.project.SceneByID(id)
	if scene == nil {
		return fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	if scene.Image == nil {
		return fmt.Errorf("%w: %s", ErrMissingImage, id)
	}
	if scene.IsGenerating {
		return fmt.Errorf("%w: %s", ErrGenerationInFlight, id)
	}
	if scene.VideoOperationHandle != "" && !scene.VideoStatus.Terminal() {
		return fmt.Errorf("%w: %s", ErrVideoInFlight, id)
	}
	scene.IsGenerating = true
	scene.LastError = ""
	return nil
}

// Settle applies a patch to the scene and releases the generation flag. Nil
// patch fields are left untouched. When the patch moves the video status to
// a terminal state the operation handle is cleared, so the poller's records
// and the scene state cannot disagree about what is still in flight.
//
// Only the job that was admitted through TryBeginImage or TryBeginVideo may
// call Settle; anyone else settling through it would release a flag it does
// not own. The poller uses SettleVideo instead.
func (s *SceneStateStore) Settle(id string, patch *model.ScenePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene := s.project.SceneByID(id)
	if scene == nil {
		return fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	applyScenePatch(scene, patch)
	scene.IsGenerating = false
	return nil
}

// SettleVideo applies a terminal video transition without touching the
// generation flag. The poller runs long after the submit-phase job released
// the flag, and an image generation may have been admitted for the same
// scene in the meantime; clearing the flag here would release that job's
// admission mid-flight.
func (s *SceneStateStore) SettleVideo(id string, patch *model.ScenePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene := s.project.SceneByID(id)
	if scene == nil {
		return fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	applyScenePatch(scene, patch)
	return nil
}

// applyScenePatch copies the patch's set fields onto the scene and clears
// the operation handle on terminal video statuses. Callers hold the store
// lock.
func applyScenePatch(scene *model.Scene, patch *model.ScenePatch) {
	if patch != nil {
		if patch.Image != nil {
			scene.Image = patch.Image
		}
		if patch.EndFrameImage != nil {
			scene.EndFrameImage = patch.EndFrameImage
		}
		if patch.Video != nil {
			scene.Video = patch.Video
		}
		if patch.MediaID != nil {
			scene.MediaID = *patch.MediaID
		}
		if patch.VideoHandle != nil {
			scene.VideoOperationHandle = *patch.VideoHandle
		}
		if patch.VideoStatus != nil {
			scene.VideoStatus = *patch.VideoStatus
		}
		if patch.LastError != nil {
			scene.LastError = *patch.LastError
		}
		if patch.ClearError {
			scene.LastError = ""
		}
	}
	if scene.VideoStatus.Terminal() {
		scene.VideoOperationHandle = ""
	}
}

// UpdateVideoStatus advances the scene's video status without touching the
// generation flag. The poller uses this for the starting to active
// transition; terminal transitions go through Settle so the handle cleanup
// and error recording stay in one place.
func (s *SceneStateStore) UpdateVideoStatus(id string, status model.VideoStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene := s.project.SceneByID(id)
	if scene == nil {
		return fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	scene.VideoStatus = status
	if status.Terminal() {
		scene.VideoOperationHandle = ""
	}
	return nil
}
