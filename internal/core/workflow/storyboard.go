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
// the storyboard service, the single entry point the HTTP handlers call.
//
// The service owns the glue between admission, the generation chains, the
// batch scheduler and the operation poller:
//   - single-scene requests are admitted synchronously (so the caller gets
//     conflict and precondition errors immediately) and executed on a
//     background goroutine;
//   - batch runs hand a per-scene runner to the scheduler, with each job's
//     project snapshot taken at dequeue time so continuity runs observe
//     every earlier settlement;
//   - any chain failure settles the scene exactly once with the diagnostic.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/cor"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// ErrNoCredentials is returned when generation is requested but no provider
// was configured, typically because the server started without a usable
// model configuration.
var ErrNoCredentials = errors.New("no generation provider is configured")

// StoryboardService is the orchestration facade over scene state, the
// generation workflows, the batch scheduler and the operation poller.
type StoryboardService struct {
	Config    *cloud.Config
	Store     *services.SceneStateStore
	Scheduler *services.BatchScheduler
	Poller    *services.OperationPoller

	imageWorkflow *SceneImageWorkflow
	videoWorkflow *SceneVideoWorkflow
}

// StoryboardStatus is the composite status the read API returns.
type StoryboardStatus struct {
	Run          model.BatchRun `json:"run"`
	PendingPolls int            `json:"pending_polls"`
}

// NewStoryboardService wires the service from its dependencies. The
// generator arguments accept nil, in which case generation requests fail
// with ErrNoCredentials while the read API keeps working. That keeps the
// server usable for authoring even when provider credentials are absent.
//
// Inputs:
//   - config: The loaded application configuration.
//   - store: The scene state store.
//   - images: The image generation adapter, or nil.
//   - video: The video generation adapter, or nil.
//   - persister: The artifact store, or nil to skip persistence.
//
// Returns:
//   - A pointer to a newly created and fully initialized StoryboardService.
func NewStoryboardService(
	config *cloud.Config,
	store *services.SceneStateStore,
	images cloud.ImageGenerator,
	video cloud.VideoGenerator,
	persister services.ArtifactPersister) *StoryboardService {

	assembler := services.NewPromptAssembler(config)
	retry := services.NewRetryPolicy(config.Retry)

	service := &StoryboardService{
		Config:    config,
		Store:     store,
		Scheduler: services.NewBatchScheduler(config.Scheduler),
		Poller:    services.NewOperationPoller(config.Poller, video, store),
	}
	if persister != nil {
		service.Poller.SetPersister(persister)
	}
	if images != nil {
		service.imageWorkflow = NewSceneImageWorkflow(assembler, images, retry, persister, store)
	}
	if video != nil {
		service.videoWorkflow = NewSceneVideoWorkflow(assembler, video, retry, store, service.Poller)
	}
	return service
}

// Start binds the poller to the application's lifetime context.
func (s *StoryboardService) Start(ctx context.Context) {
	s.Poller.Start(ctx)
}

// Close stops the poller timer.
func (s *StoryboardService) Close() {
	s.Poller.Close()
}

// GenerateSceneImage admits an image generation for one scene and runs it on
// a background goroutine. Admission errors (unknown scene, empty
// description, already generating) are returned synchronously; generation
// outcomes land on the scene state.
//
// Inputs:
//   - ctx: The long-lived context the generation runs under.
//   - sceneID: The target scene.
//   - refinementText: When non-empty, the request becomes a refinement delta
//     against the scene's existing image.
func (s *StoryboardService) GenerateSceneImage(ctx context.Context, sceneID string, refinementText string) error {
	if s.imageWorkflow == nil {
		return ErrNoCredentials
	}
	refinement := strings.TrimSpace(refinementText) != ""
	if refinement {
		scene, err := s.Store.Scene(sceneID)
		if err != nil {
			return err
		}
		if scene.Image == nil {
			return fmt.Errorf("%w: %s", services.ErrMissingImage, sceneID)
		}
	}
	if err := s.Store.TryBeginImage(sceneID); err != nil {
		return err
	}
	go func() {
		if err := s.runImageJob(ctx, sceneID, refinement, refinementText); err != nil {
			slog.Warn("scene image generation failed", "scene", sceneID, "error", err)
		}
	}()
	return nil
}

// GenerateSceneVideo admits a video generation for one scene and submits it
// on a background goroutine. The scene must already carry a generated image.
func (s *StoryboardService) GenerateSceneVideo(ctx context.Context, sceneID string) error {
	if s.videoWorkflow == nil {
		return ErrNoCredentials
	}
	if err := s.Store.TryBeginVideo(sceneID); err != nil {
		return err
	}
	go func() {
		if err := s.runVideoJob(ctx, sceneID); err != nil {
			slog.Warn("scene video submit failed", "scene", sceneID, "error", err)
		}
	}()
	return nil
}

// GenerateAll starts a batch run over every scene that has a description but
// no image yet, in sequence order. Continuity mode follows the project
// setting: when enabled the scheduler serializes the run so each scene can
// reference the settled output of the one before it.
//
// Outputs:
//   - *model.BatchRun: The new run's descriptor.
//   - error: ErrNoCredentials, or ErrRunInProgress from the scheduler.
func (s *StoryboardService) GenerateAll(ctx context.Context) (*model.BatchRun, error) {
	if s.imageWorkflow == nil {
		return nil, ErrNoCredentials
	}
	continuity := s.Store.Snapshot().ContinuityEnabled
	sceneIDs := s.Store.ScenesNeedingImage()

	run, err := s.Scheduler.Run(ctx, sceneIDs, continuity, func(ctx context.Context, sceneID string) error {
		if err := s.Store.TryBeginImage(sceneID); err != nil {
			return err
		}
		return s.runImageJob(ctx, sceneID, false, "")
	})
	if err != nil {
		return nil, err
	}
	slog.Info("batch generation started", "run", run.ID, "scenes", run.Total, "continuity", continuity)
	return run, nil
}

// Stop requests a cooperative stop of the active batch run.
func (s *StoryboardService) Stop() bool {
	return s.Scheduler.Stop()
}

// Status reports the latest batch run and the number of video operations
// still being polled.
func (s *StoryboardService) Status() StoryboardStatus {
	return StoryboardStatus{
		Run:          s.Scheduler.Status(),
		PendingPolls: s.Poller.Pending(),
	}
}

// Scenes returns the read model: every scene ordered by sequence number.
func (s *StoryboardService) Scenes() []*model.Scene {
	return s.Store.Scenes()
}

// Scene returns the read model for one scene.
func (s *StoryboardService) Scene(id string) (*model.Scene, error) {
	return s.Store.Scene(id)
}

// UpdateProject replaces the project state.
func (s *StoryboardService) UpdateProject(project *model.Project) {
	s.Store.UpdateProject(project)
}

// runImageJob builds the generation job against a fresh snapshot and drives
// it through the image chain. The snapshot is taken here, at execution time
// rather than admission time, so continuity jobs see earlier settlements.
// Any chain failure settles the scene with the diagnostic.
func (s *StoryboardService) runImageJob(ctx context.Context, sceneID string, refinement bool, refinementText string) error {
	job := s.newJob(sceneID, model.JobKindImage)
	job.Refinement = refinement
	job.RefinementText = refinementText

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, job)

	s.imageWorkflow.Execute(chainCtx)

	if chainCtx.HasErrors() {
		err := combineChainErrors(chainCtx.GetErrors())
		_ = s.Store.Settle(sceneID, &model.ScenePatch{
			LastError: model.StringPtr(err.Error()),
		})
		return err
	}
	return nil
}

// runVideoJob builds the generation job and drives it through the video
// submit chain. A submit failure settles the scene with a failed video
// status so the client sees a terminal state instead of a silent stall.
func (s *StoryboardService) runVideoJob(ctx context.Context, sceneID string) error {
	job := s.newJob(sceneID, model.JobKindVideo)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, job)

	s.videoWorkflow.Execute(chainCtx)

	if chainCtx.HasErrors() {
		err := combineChainErrors(chainCtx.GetErrors())
		_ = s.Store.Settle(sceneID, &model.ScenePatch{
			VideoStatus: model.StatusPtr(model.VideoStatusFailed),
			LastError:   model.StringPtr(err.Error()),
		})
		return err
	}
	return nil
}

// newJob snapshots the project and resolves the model selection and aspect
// ratio for one generation.
func (s *StoryboardService) newJob(sceneID string, kind model.JobKind) *model.GenerationJob {
	snapshot := s.Store.Snapshot()
	aspect := snapshot.Style.AspectRatio
	if aspect == "" {
		aspect = s.Config.Generation.DefaultAspectRatio
	}
	modelName := s.Config.Generation.ImageModel
	if kind == model.JobKindVideo {
		modelName = s.Config.Generation.VideoModel
	}
	return &model.GenerationJob{
		ID:          uuid.NewString(),
		SceneID:     sceneID,
		Kind:        kind,
		Snapshot:    snapshot,
		AspectRatio: aspect,
		ModelName:   modelName,
	}
}

// combineChainErrors flattens the chain's error map into one error with a
// stable ordering, keyed by the command names that failed.
func combineChainErrors(errs map[string]error) error {
	keys := make([]string, 0, len(errs))
	for key := range errs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", key, errs[key]))
	}
	return errors.New(strings.Join(parts, "; "))
}
