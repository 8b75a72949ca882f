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
// file covers the operation poller: the video status lifecycle, partial
// provider responses, and the attempt cap. All tests run the poller in
// manual mode (negative interval) and drive rounds through PollOnce.
package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
	test "github.com/jaycherian/gcp-go-storyboard-gen/internal/testutil"
)

// newPollerFixture builds a manual-mode poller over a fresh store and fake
// video generator, with the scene already carrying a tracked operation.
func newPollerFixture(t *testing.T, maxAttempts int) (*services.OperationPoller, *services.SceneStateStore, *test.FakeVideoGenerator) {
	t.Helper()
	store := services.NewSceneStateStore(model.GetExampleProject())
	video := &test.FakeVideoGenerator{}

	assert.NoError(t, store.TryBeginImage("scene-1"))
	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		Image: &model.Artifact{Data: []byte("img"), MIMEType: "image/png"},
	}))
	assert.NoError(t, store.Settle("scene-1", &model.ScenePatch{
		VideoHandle: model.StringPtr("op-1"),
		VideoStatus: model.StatusPtr(model.VideoStatusStarting),
	}))

	poller := services.NewOperationPoller(
		cloud.PollerSettings{IntervalSeconds: -1, MaxAttempts: maxAttempts}, video, store)
	poller.Track("scene-1", "op-1")
	return poller, store, video
}

// TestPollerLifecycle drives an operation from starting through active to
// succeeded and checks the terminal settlement: video attached, handle
// cleared, entry dropped.
func TestPollerLifecycle(t *testing.T) {
	poller, store, video := newPollerFixture(t, 10)
	video.Script("op-1",
		&cloud.VideoPollResult{State: cloud.OperationActive},
		&cloud.VideoPollResult{
			State: cloud.OperationSucceeded,
			Video: &model.Artifact{Data: []byte("vid"), MIMEType: "video/mp4"},
		},
	)

	ctx := context.Background()
	poller.PollOnce(ctx)
	scene, err := store.Scene("scene-1")
	assert.NoError(t, err)
	assert.Equal(t, model.VideoStatusActive, scene.VideoStatus)
	assert.Equal(t, 1, poller.Pending())

	poller.PollOnce(ctx)
	scene, err = store.Scene("scene-1")
	assert.NoError(t, err)
	assert.Equal(t, model.VideoStatusSucceeded, scene.VideoStatus)
	assert.Equal(t, "", scene.VideoOperationHandle)
	assert.NotNil(t, scene.Video)
	assert.Equal(t, []byte("vid"), scene.Video.Data)
	assert.Equal(t, 0, poller.Pending())
}

// TestPollerSuccessPersistsVideo verifies that a wired persister stores the
// finished video and its URI lands on the artifact.
func TestPollerSuccessPersistsVideo(t *testing.T) {
	poller, store, video := newPollerFixture(t, 10)
	persister := &test.FakePersister{}
	poller.SetPersister(persister)
	video.Script("op-1", &cloud.VideoPollResult{
		State: cloud.OperationSucceeded,
		Video: &model.Artifact{Data: []byte("vid"), MIMEType: "video/mp4"},
	})

	poller.PollOnce(context.Background())

	scene, err := store.Scene("scene-1")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(persister.Saved))
	assert.Contains(t, persister.Saved[0], "scenes/scene-1/video")
	assert.Contains(t, scene.Video.URI, "gs://test-bucket/")
}

// TestPollerFailureSettlesWithDiagnostic verifies that a failed operation
// settles the scene with the provider's message.
func TestPollerFailureSettlesWithDiagnostic(t *testing.T) {
	poller, store, video := newPollerFixture(t, 10)
	video.Script("op-1", &cloud.VideoPollResult{
		State:   cloud.OperationFailed,
		Message: "safety filters rejected the request",
	})

	poller.PollOnce(context.Background())

	scene, err := store.Scene("scene-1")
	assert.NoError(t, err)
	assert.Equal(t, model.VideoStatusFailed, scene.VideoStatus)
	assert.Equal(t, "", scene.VideoOperationHandle)
	assert.Contains(t, scene.LastError, "safety filters")
	assert.Equal(t, 0, poller.Pending())
}

// TestPollerPartialResponseKeepsTracking verifies that a handle omitted
// from a round's response stays tracked and can still succeed later.
func TestPollerPartialResponseKeepsTracking(t *testing.T) {
	poller, store, video := newPollerFixture(t, 10)
	// A nil scripted entry makes the fake omit the handle that round.
	video.Script("op-1",
		nil,
		&cloud.VideoPollResult{
			State: cloud.OperationSucceeded,
			Video: &model.Artifact{Data: []byte("vid"), MIMEType: "video/mp4"},
		},
	)

	ctx := context.Background()
	poller.PollOnce(ctx)
	assert.Equal(t, 1, poller.Pending())

	poller.PollOnce(ctx)
	assert.Equal(t, 0, poller.Pending())
	scene, err := store.Scene("scene-1")
	assert.NoError(t, err)
	assert.Equal(t, model.VideoStatusSucceeded, scene.VideoStatus)
}

// TestPollerAttemptCap verifies that an operation still active after the
// configured number of status checks is force-failed with the timeout
// diagnostic, so a wedged provider cannot pin the scene forever.
func TestPollerAttemptCap(t *testing.T) {
	poller, store, _ := newPollerFixture(t, 3)
	// The fake's unscripted answer is "active" every round.

	ctx := context.Background()
	poller.PollOnce(ctx)
	poller.PollOnce(ctx)
	assert.Equal(t, 1, poller.Pending())

	poller.PollOnce(ctx)
	assert.Equal(t, 0, poller.Pending())

	scene, err := store.Scene("scene-1")
	assert.NoError(t, err)
	assert.Equal(t, model.VideoStatusFailed, scene.VideoStatus)
	assert.Contains(t, scene.LastError, "timed out after 3 status checks")
}

// TestPollerTracksMultipleHandles verifies that one round settles each
// handle independently.
func TestPollerTracksMultipleHandles(t *testing.T) {
	poller, store, video := newPollerFixture(t, 10)

	// Give scene-2 an image and a second tracked operation.
	assert.NoError(t, store.TryBeginImage("scene-2"))
	assert.NoError(t, store.Settle("scene-2", &model.ScenePatch{
		Image: &model.Artifact{Data: []byte("img"), MIMEType: "image/png"},
	}))
	assert.NoError(t, store.Settle("scene-2", &model.ScenePatch{
		VideoHandle: model.StringPtr("op-2"),
		VideoStatus: model.StatusPtr(model.VideoStatusStarting),
	}))
	poller.Track("scene-2", "op-2")

	video.Script("op-1", &cloud.VideoPollResult{
		State: cloud.OperationSucceeded,
		Video: &model.Artifact{Data: []byte("vid"), MIMEType: "video/mp4"},
	})
	video.Script("op-2", &cloud.VideoPollResult{
		State:   cloud.OperationFailed,
		Message: "internal error",
	})

	poller.PollOnce(context.Background())

	one, _ := store.Scene("scene-1")
	two, _ := store.Scene("scene-2")
	assert.Equal(t, model.VideoStatusSucceeded, one.VideoStatus)
	assert.Equal(t, model.VideoStatusFailed, two.VideoStatus)
	assert.Equal(t, 0, poller.Pending())
}

// TestPollerSettleLeavesImageAdmissionAlone covers the overlap between a
// tracked video operation and a later image generation on the same scene.
// The terminal video settlement must not release the image job's admission:
// the poller never owned the generation flag, the image job does.
func TestPollerSettleLeavesImageAdmissionAlone(t *testing.T) {
	poller, store, video := newPollerFixture(t, 10)

	// An image generation is admitted while the video is still polling.
	assert.NoError(t, store.TryBeginImage("scene-1"))

	video.Script("op-1", &cloud.VideoPollResult{
		State: cloud.OperationSucceeded,
		Video: &model.Artifact{Data: []byte("vid"), MIMEType: "video/mp4"},
	})
	poller.PollOnce(context.Background())

	scene, err := store.Scene("scene-1")
	assert.NoError(t, err)
	assert.Equal(t, model.VideoStatusSucceeded, scene.VideoStatus)
	assert.Equal(t, "", scene.VideoOperationHandle)
	assert.True(t, scene.IsGenerating)
	// A second image admission must still lose to the in-flight job.
	assert.ErrorIs(t, store.TryBeginImage("scene-1"), services.ErrGenerationInFlight)
}

// TestPollerIntervalDefaults pins the interval handling: an omitted [poller]
// section polls at the default cadence, a negative value disarms the timer,
// and a positive value is taken as-is.
func TestPollerIntervalDefaults(t *testing.T) {
	store := services.NewSceneStateStore(model.GetExampleProject())
	video := &test.FakeVideoGenerator{}

	defaulted := services.NewOperationPoller(cloud.PollerSettings{}, video, store)
	assert.Equal(t, 4*time.Second, defaulted.Interval())

	manual := services.NewOperationPoller(cloud.PollerSettings{IntervalSeconds: -1}, video, store)
	assert.Equal(t, time.Duration(0), manual.Interval())

	configured := services.NewOperationPoller(cloud.PollerSettings{IntervalSeconds: 2}, video, store)
	assert.Equal(t, 2*time.Second, configured.Interval())
}
