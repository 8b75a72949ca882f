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
// surface and the generation workflows. This file implements the operation
// poller that tracks long-running video generations to completion.
//
// One timer serves all tracked operations: each round issues a single
// batched status call for every outstanding handle, applies the transitions,
// and reschedules itself while work remains. A handle the provider omits
// from a response simply stays tracked for the next round. Every round an
// entry participates in counts against its attempt cap; an operation that
// outlives the cap is force-failed with a distinct diagnostic so a wedged
// provider operation cannot pin a scene in the active state forever.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
)

// ArtifactPersister saves a generated artifact and reports where it landed.
// The GCS artifact store satisfies this; tests substitute nothing and accept
// in-memory artifacts.
type ArtifactPersister interface {
	Save(ctx context.Context, sceneID string, kind string, artifact *model.Artifact) (*cloud.SavedArtifact, error)
}

// OperationPoller tracks video operation handles and settles their scenes
// when the provider reports a terminal state.
type OperationPoller struct {
	mu      sync.Mutex
	entries map[string]*model.PollEntry // keyed by operation handle
	timer   *time.Timer
	ctx     context.Context

	interval    time.Duration
	maxAttempts int

	video     cloud.VideoGenerator
	store     *SceneStateStore
	persister ArtifactPersister
}

// NewOperationPoller builds a poller from configuration. An omitted or zero
// interval takes the four second default, so a config without a [poller]
// section still polls tracked operations to termination. A negative interval
// disables the internal timer; tests use that to drive rounds manually
// through PollOnce. The attempt cap defaults to forty.
func NewOperationPoller(settings cloud.PollerSettings, video cloud.VideoGenerator, store *SceneStateStore) *OperationPoller {
	interval := time.Duration(settings.IntervalSeconds) * time.Second
	if settings.IntervalSeconds == 0 {
		interval = 4 * time.Second
	}
	if settings.IntervalSeconds < 0 {
		interval = 0
	}
	maxAttempts := settings.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 40
	}
	return &OperationPoller{
		entries:     make(map[string]*model.PollEntry),
		ctx:         context.Background(),
		interval:    interval,
		maxAttempts: maxAttempts,
		video:       video,
		store:       store,
	}
}

// Start binds the poller to the application's lifetime context. Tracked
// operations poll under this context from then on.
func (p *OperationPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctx = ctx
}

// SetPersister installs the artifact store used to persist completed videos.
func (p *OperationPoller) SetPersister(persister ArtifactPersister) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.persister = persister
}

// Track registers an operation handle for a scene and arms the timer if this
// is the first outstanding entry.
func (p *OperationPoller) Track(sceneID string, handle string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[handle] = &model.PollEntry{SceneID: sceneID, Handle: handle}
	p.scheduleLocked()
}

// Interval returns the effective polling interval after defaulting. Zero
// means the timer is disarmed and rounds run only through PollOnce.
func (p *OperationPoller) Interval() time.Duration {
	return p.interval
}

// Pending returns the number of operations still being tracked.
func (p *OperationPoller) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close stops the timer. Outstanding entries are abandoned; the scenes keep
// their last observed status.
func (p *OperationPoller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// scheduleLocked arms the timer for the next round. Callers hold the mutex.
func (p *OperationPoller) scheduleLocked() {
	if p.interval <= 0 || p.timer != nil || len(p.entries) == 0 {
		return
	}
	p.timer = time.AfterFunc(p.interval, func() {
		p.mu.Lock()
		p.timer = nil
		ctx := p.ctx
		p.mu.Unlock()

		p.PollOnce(ctx)

		p.mu.Lock()
		p.scheduleLocked()
		p.mu.Unlock()
	})
}

// PollOnce performs one batched status round over every tracked handle and
// applies the resulting transitions. It is safe to call concurrently with
// Track.
//
// Inputs:
//   - ctx: The context for the provider status call.
func (p *OperationPoller) PollOnce(ctx context.Context) {
	p.mu.Lock()
	handles := make([]string, 0, len(p.entries))
	for handle := range p.entries {
		handles = append(handles, handle)
	}
	p.mu.Unlock()
	if len(handles) == 0 {
		return
	}

	results, err := p.video.PollVideos(ctx, handles)
	if err != nil {
		// The whole round failed. The entries stay tracked, but the round
		// still counts against each cap below with an empty result set.
		slog.Warn("video status round failed", "error", err, "handles", len(handles))
		results = map[string]*cloud.VideoPollResult{}
	}

	for _, handle := range handles {
		p.applyResult(ctx, handle, results[handle])
	}
}

// applyResult advances one tracked entry based on the provider's answer for
// this round. A nil result means the provider omitted the handle.
func (p *OperationPoller) applyResult(ctx context.Context, handle string, result *cloud.VideoPollResult) {
	p.mu.Lock()
	entry, ok := p.entries[handle]
	if !ok {
		p.mu.Unlock()
		return
	}
	entry.Attempts++
	attempts := entry.Attempts
	sceneID := entry.SceneID
	capped := attempts >= p.maxAttempts
	terminal := result != nil && result.State != cloud.OperationActive
	if terminal || capped {
		delete(p.entries, handle)
	}
	p.mu.Unlock()

	switch {
	case result == nil && !capped:
		// Omitted from a partial response; keep tracking.
		return
	case result != nil && result.State == cloud.OperationSucceeded:
		p.settleSuccess(ctx, sceneID, result.Video)
	case result != nil && result.State == cloud.OperationFailed:
		p.settleFailure(sceneID, result.Message)
	case capped:
		p.settleFailure(sceneID, fmt.Sprintf("video generation timed out after %d status checks", attempts))
	default:
		// Still active: surface the starting to active transition.
		if err := p.store.UpdateVideoStatus(sceneID, model.VideoStatusActive); err != nil {
			slog.Warn("failed to update video status", "scene", sceneID, "error", err)
		}
	}
}

// settleSuccess persists the finished video when a persister is wired and
// attaches it to the scene in a terminal succeeded settlement. The
// settlement is video-scoped: the submit-phase job already released the
// scene's generation flag, and a concurrent image generation may hold it
// again by now.
func (p *OperationPoller) settleSuccess(ctx context.Context, sceneID string, video *model.Artifact) {
	patch := &model.ScenePatch{
		Video:       video,
		VideoStatus: model.StatusPtr(model.VideoStatusSucceeded),
		ClearError:  true,
	}
	if p.persister != nil && video != nil && len(video.Data) > 0 {
		if saved, err := p.persister.Save(ctx, sceneID, "video", video); err != nil {
			slog.Warn("failed to persist video artifact", "scene", sceneID, "error", err)
		} else {
			video.URI = saved.URI
		}
	}
	if err := p.store.SettleVideo(sceneID, patch); err != nil {
		slog.Warn("failed to settle video success", "scene", sceneID, "error", err)
	}
}

// settleFailure records a terminal failed settlement with the diagnostic.
func (p *OperationPoller) settleFailure(sceneID string, message string) {
	patch := &model.ScenePatch{
		VideoStatus: model.StatusPtr(model.VideoStatusFailed),
		LastError:   model.StringPtr(message),
	}
	if err := p.store.SettleVideo(sceneID, patch); err != nil {
		slog.Warn("failed to settle video failure", "scene", sceneID, "error", err)
	}
}
