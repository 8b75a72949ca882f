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
// surface and the generation workflows. This file implements the batch
// scheduler that drives generate-all runs.
//
// The scheduler is a sliding-window worker pool: scene ids go into a
// channel, a bounded set of workers drains it, and a new job starts the
// moment a slot frees up. Continuity mode collapses the pool to a single
// worker with a fixed pause between jobs, so each scene can see the settled
// output of the one before it. Stop is cooperative: in-flight jobs run to
// completion and settle normally, while jobs still in the channel are
// drained and counted as skipped.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
)

// ErrRunInProgress is returned when a batch run is requested while another
// run is still active.
var ErrRunInProgress = errors.New("a batch generation run is already in progress")

// SceneRunner executes the full generation pipeline for one scene. The
// scheduler only cares whether it settled in success or failure.
type SceneRunner func(ctx context.Context, sceneID string) error

// BatchScheduler owns the lifecycle of batch generation runs. At most one
// run is active at a time.
type BatchScheduler struct {
	mu            sync.Mutex
	maxConcurrent int
	pauseBetween  time.Duration

	run           *model.BatchRun
	running       bool
	stopRequested bool
}

// NewBatchScheduler builds a scheduler from configuration. A missing or
// non-positive concurrency bound defaults to one worker.
func NewBatchScheduler(settings cloud.SchedulerSettings) *BatchScheduler {
	maxConcurrent := settings.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &BatchScheduler{
		maxConcurrent: maxConcurrent,
		pauseBetween:  time.Duration(settings.ContinuityDelayMs) * time.Millisecond,
	}
}

// Run starts a batch generation over the given scene ids and returns
// immediately with the new run's descriptor. The work happens on background
// goroutines; callers observe progress through Status.
//
// Inputs:
//   - ctx: The long-lived context the run executes under. Canceling it
//     abandons queued work.
//   - sceneIDs: The ordered work list, typically from ScenesNeedingImage.
//   - continuity: When true the run is serialized and paced.
//   - runner: The per-scene pipeline to execute.
//
// Outputs:
//   - *model.BatchRun: A copy of the run descriptor with its fresh id.
//   - error: ErrRunInProgress when a run is already active.
func (s *BatchScheduler) Run(ctx context.Context, sceneIDs []string, continuity bool, runner SceneRunner) (*model.BatchRun, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	run := &model.BatchRun{
		ID:         uuid.NewString(),
		Continuity: continuity,
		Total:      len(sceneIDs),
		State:      model.RunStateRunning,
	}
	s.run = run
	s.running = true
	s.stopRequested = false
	s.mu.Unlock()

	go s.execute(ctx, sceneIDs, continuity, runner)

	out := *run
	return &out, nil
}

// Stop requests a cooperative stop of the active run. Jobs already handed to
// a worker finish and settle; everything still queued is skipped. Returns
// false when no run is active.
func (s *BatchScheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.stopRequested = true
	s.run.State = model.RunStateStopping
	return true
}

// Status returns a copy of the latest run descriptor, which may describe a
// finished run. Before any run has started the state is idle.
func (s *BatchScheduler) Status() model.BatchRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return model.BatchRun{State: model.RunStateIdle}
	}
	return *s.run
}

// IsRunning reports whether a run is currently active.
func (s *BatchScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// execute drives the worker pool for one run and finalizes the run state
// when the pool drains.
func (s *BatchScheduler) execute(ctx context.Context, sceneIDs []string, continuity bool, runner SceneRunner) {
	workers := s.maxConcurrent
	if continuity {
		workers = 1
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sceneID := range jobs {
				// The stop check happens at dequeue time. A job that
				// already reached a worker before the stop request still
				// runs to completion.
				if s.stopped() || ctx.Err() != nil {
					s.record(func(run *model.BatchRun) { run.Skipped++ })
					continue
				}
				if err := runner(ctx, sceneID); err != nil {
					s.record(func(run *model.BatchRun) { run.Failed++ })
				} else {
					s.record(func(run *model.BatchRun) { run.Succeeded++ })
				}
				if continuity && s.pauseBetween > 0 && !s.stopped() {
					select {
					case <-ctx.Done():
					case <-time.After(s.pauseBetween):
					}
				}
			}
		}()
	}

	for _, sceneID := range sceneIDs {
		jobs <- sceneID
	}
	close(jobs)
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopRequested {
		s.run.State = model.RunStateStopped
	} else {
		s.run.State = model.RunStateCompleted
	}
	s.running = false
}

func (s *BatchScheduler) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

func (s *BatchScheduler) record(update func(run *model.BatchRun)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(s.run)
}
