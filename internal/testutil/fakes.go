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

// Package test provides utility functions and mock data to support the
// application's test suite. This file contains in-memory fakes for the
// generation provider boundary, scriptable per call so tests can exercise
// retry, concurrency and polling behavior deterministically.
package test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
)

// FakeImageGenerator implements cloud.ImageGenerator in memory. Errors are
// consumed from the scripted queue one per call; once the queue drains, the
// generator succeeds. It also tracks the high-water mark of concurrent
// calls, which is how scheduler tests assert the sliding-window bound.
type FakeImageGenerator struct {
	mu          sync.Mutex
	scripted    []error
	inflight    int
	maxInflight int

	// Delay holds each call open, giving concurrent jobs a chance to
	// overlap so the high-water mark is meaningful.
	Delay time.Duration
	// Calls records every request in arrival order.
	Calls []*cloud.GenerationRequest
}

// ScriptError queues errors to be returned by upcoming calls, in order.
func (f *FakeImageGenerator) ScriptError(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripted = append(f.scripted, errs...)
}

// MaxInflight reports the highest number of concurrent calls observed.
func (f *FakeImageGenerator) MaxInflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

// CallCount reports how many calls have been made.
func (f *FakeImageGenerator) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// GenerateImage records the call, consumes a scripted error if one is
// queued, and otherwise returns a small placeholder artifact.
func (f *FakeImageGenerator) GenerateImage(ctx context.Context, req *cloud.GenerationRequest) (*model.Artifact, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	var scripted error
	if len(f.scripted) > 0 {
		scripted = f.scripted[0]
		f.scripted = f.scripted[1:]
	}
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()

	if scripted != nil {
		return nil, scripted
	}
	return &model.Artifact{
		Data:     []byte(fmt.Sprintf("image-%d", len(f.Calls))),
		MIMEType: "image/png",
	}, nil
}

// FakeVideoGenerator implements cloud.VideoGenerator in memory. Submissions
// hand out sequential handles; poll results are scripted per handle as a
// queue, one entry consumed per round. A nil entry makes the handle vanish
// from that round's response, modeling a partial provider answer. An
// exhausted queue repeats "active" forever, which is how attempt-cap tests
// simulate a wedged operation.
type FakeVideoGenerator struct {
	mu        sync.Mutex
	handleSeq int
	scripts   map[string][]*cloud.VideoPollResult

	// SubmitErr, when set, fails every submit call.
	SubmitErr error
	// Submitted records every accepted request in order.
	Submitted []*cloud.GenerationRequest
}

// Script queues poll results for an operation handle, one per round.
func (f *FakeVideoGenerator) Script(handle string, results ...*cloud.VideoPollResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scripts == nil {
		f.scripts = make(map[string][]*cloud.VideoPollResult)
	}
	f.scripts[handle] = append(f.scripts[handle], results...)
}

// NextHandle returns the handle the next submit call will be assigned.
func (f *FakeVideoGenerator) NextHandle() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("op-%d", f.handleSeq+1)
}

// SubmitVideo accepts the request and returns a fresh sequential handle.
func (f *FakeVideoGenerator) SubmitVideo(ctx context.Context, req *cloud.GenerationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return "", f.SubmitErr
	}
	f.handleSeq++
	f.Submitted = append(f.Submitted, req)
	return fmt.Sprintf("op-%d", f.handleSeq), nil
}

// PollVideos consumes one scripted entry per handle and builds the round's
// response. Handles with a nil entry are omitted this round.
func (f *FakeVideoGenerator) PollVideos(ctx context.Context, handles []string) (map[string]*cloud.VideoPollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make(map[string]*cloud.VideoPollResult, len(handles))
	for _, handle := range handles {
		queue := f.scripts[handle]
		if len(queue) == 0 {
			results[handle] = &cloud.VideoPollResult{State: cloud.OperationActive}
			continue
		}
		next := queue[0]
		f.scripts[handle] = queue[1:]
		if next == nil {
			continue
		}
		results[handle] = next
	}
	return results, nil
}

// FakePersister implements services.ArtifactPersister in memory.
type FakePersister struct {
	mu    sync.Mutex
	Saved []string
}

// Save records the object name it would have written and returns a
// deterministic media id and URI.
func (f *FakePersister) Save(ctx context.Context, sceneID string, kind string, artifact *model.Artifact) (*cloud.SavedArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mediaID := fmt.Sprintf("scenes/%s/%s-%d", sceneID, kind, len(f.Saved)+1)
	f.Saved = append(f.Saved, mediaID)
	return &cloud.SavedArtifact{
		MediaID: mediaID,
		URI:     "gs://test-bucket/" + mediaID,
	}, nil
}
