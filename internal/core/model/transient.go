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

// Package model defines the core data structures for the application.
// This file, `transient.go`, contains struct definitions for data models that
// only live for the duration of a generation run. These objects are never
// serialized into the read model; they are the intermediate containers that
// flow through the generation workflows and the scheduler.
package model

// JobKind distinguishes the two generation paths a job can take.
type JobKind string

const (
	// JobKindImage is a synchronous text-and-image model call.
	JobKindImage JobKind = "image"
	// JobKindVideo submits a long-running operation that is completed by
	// the operation poller.
	JobKindVideo JobKind = "video"
)

// RunState describes the batch controller's lifecycle.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateStopping  RunState = "stopping"
	RunStateStopped   RunState = "stopped"
	RunStateCompleted RunState = "completed"
)

// GenerationJob is the unit of work handed through a generation chain. It is
// built at dequeue time so the project snapshot reflects every settlement
// that happened before this job started, which is what lets continuity mode
// chain one scene's output into the next scene's references.
type GenerationJob struct {
	// ID is a unique identifier for tracing and log correlation.
	ID string
	// SceneID names the scene this job generates for.
	SceneID string
	// Kind selects the image or video path.
	Kind JobKind
	// Refinement, when true, switches the prompt assembler into delta mode:
	// the existing scene image is attached and the description is framed as
	// a change request against it. RefinementText carries the requested
	// change.
	Refinement     bool
	RefinementText string
	// Snapshot is the deep copy of the project the job works against.
	Snapshot *Project

	// Fields below are populated by the chain commands as the job advances.

	// Prompt is the assembled instruction text.
	Prompt string
	// References are the ordered reference images selected by the resolver.
	References []*ImageAsset
	// NoPeople indicates the scene selected no characters, so the prompt
	// must forbid incidental people.
	NoPeople bool
	// EnvironmentText is the group environment description, when any.
	EnvironmentText string
	// Artifact is the generation output once the provider call succeeds.
	Artifact *Artifact
	// MediaID names the persisted artifact once it is written to storage.
	MediaID string
	// OperationHandle is the provider operation name for video jobs.
	OperationHandle string
	// AspectRatio and ModelName are resolved from configuration when the
	// job is built.
	AspectRatio string
	ModelName   string
}

// PollEntry is the poller's record of one in-flight video operation.
type PollEntry struct {
	SceneID  string
	Handle   string
	Attempts int
}

// BatchRun captures the outcome counters of a single generate-all pass. The
// ID is a fresh UUID per run so log lines from overlapping runs can be told
// apart.
type BatchRun struct {
	ID         string   `json:"id"`
	Continuity bool     `json:"continuity"`
	Total      int      `json:"total"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	State      RunState `json:"state"`
}

// ScenePatch is a partial scene update applied atomically by the state
// store's settle operation. Nil pointer fields are left untouched.
type ScenePatch struct {
	Image         *Artifact
	EndFrameImage *Artifact
	Video         *Artifact
	MediaID       *string
	VideoStatus   *VideoStatus
	VideoHandle   *string
	LastError     *string
	ClearError    bool
}

// StringPtr is a small helper for building patches.
func StringPtr(s string) *string { return &s }

// StatusPtr is a small helper for building patches.
func StatusPtr(s VideoStatus) *VideoStatus { return &s }
