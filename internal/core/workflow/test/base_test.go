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

// Package workflow_test contains integration tests for the storyboard
// generation workflows. This file provides the shared fixture: a storyboard
// service wired over in-memory fakes for the provider boundary, plus small
// polling helpers for the asynchronous paths. No Google Cloud access is
// required; the fakes are scriptable per call so every outcome is
// deterministic.
package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-storyboard-gen/internal/testutil"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

// Constants and global tracers/loggers for telemetry. With no telemetry
// providers registered these resolve to no-op implementations, so the tests
// stay self-contained while the instrumentation mirrors the server's.
const tName = "github.com/jaycherian/gcp-go-storyboard-gen/tests/workflow"

var (
	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
)

// fixture bundles a fully wired storyboard service with the fakes behind it
// so tests can script provider behavior and inspect what reached it.
type fixture struct {
	service   *workflow.StoryboardService
	store     *services.SceneStateStore
	images    *test.FakeImageGenerator
	video     *test.FakeVideoGenerator
	persister *test.FakePersister
}

// newFixture builds the service over the in-code test configuration and the
// example project. The poller runs in manual mode; tests drive it through
// PollOnce on the service's poller.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, span := tracer.Start(context.Background(), "fixture-setup")
	defer span.End()
	f := &fixture{
		store:     services.NewSceneStateStore(model.GetExampleProject()),
		images:    &test.FakeImageGenerator{},
		video:     &test.FakeVideoGenerator{},
		persister: &test.FakePersister{},
	}
	f.service = workflow.NewStoryboardService(
		test.NewTestConfig(), f.store, f.images, f.video, f.persister)
	f.service.Start(context.Background())
	t.Cleanup(f.service.Close)
	logger.InfoContext(ctx, "storyboard test fixture ready", "test", t.Name())
	return f
}

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitForSettled waits until the scene's generation flag is released.
func (f *fixture) waitForSettled(t *testing.T, sceneID string) *model.Scene {
	t.Helper()
	var scene *model.Scene
	waitFor(t, "scene "+sceneID+" to settle", func() bool {
		current, err := f.store.Scene(sceneID)
		if err != nil {
			return false
		}
		scene = current
		return !current.IsGenerating
	})
	return scene
}

// waitForRunFinished waits until the batch run reaches a final state.
func (f *fixture) waitForRunFinished(t *testing.T) model.BatchRun {
	t.Helper()
	var run model.BatchRun
	waitFor(t, "batch run to finish", func() bool {
		run = f.service.Status().Run
		return run.State == model.RunStateCompleted || run.State == model.RunStateStopped
	})
	return run
}
