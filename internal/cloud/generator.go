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

// Package cloud provides components for interacting with Google Cloud services.
// This file defines the provider adapter boundary for generation: small
// interfaces that express "generate an image", "submit a video operation" and
// "poll video operations", together with the Vertex AI implementations built
// on the genai client.
//
// The interfaces exist so the core workflows never touch provider types
// directly. Tests substitute in-memory fakes, and a different provider could
// be wired in without touching the scheduler, poller or commands.
//
// Structs:
//   - GenerationRequest: The provider-neutral description of one generation call.
//   - VideoPollResult: The decoded status of one long-running video operation.
//   - GeminiImageGenerator: The Vertex AI implementation of ImageGenerator.
//   - VeoVideoGenerator: The Vertex AI implementation of VideoGenerator.
package cloud

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
)

// ErrNoArtifact is returned when a provider call succeeds at the transport
// level but the response carries no usable media. Callers treat it as a
// malformed response: the attempt fails without retry.
var ErrNoArtifact = errors.New("provider response contained no generated media")

// GenerationRequest is the provider-neutral description of a single
// generation call, produced by the prompt assembler and reference resolver.
type GenerationRequest struct {
	// Instruction is the fully assembled prompt text.
	Instruction string
	// ReferenceImages are attached ahead of the instruction, in resolver order.
	ReferenceImages []*model.ImageAsset
	// AspectRatio is the output frame ratio, e.g. "16:9".
	AspectRatio string
	// BaseImage, when set, is the existing scene image a refinement request
	// modifies.
	BaseImage *model.Artifact
	// StartFrame is the source image for a video generation.
	StartFrame *model.Artifact
	// EndFrame, when set, requests a two-frame interpolation video.
	EndFrame *model.Artifact
}

// ImageGenerator is the synchronous image generation boundary.
type ImageGenerator interface {
	// GenerateImage performs one provider call and returns the generated
	// image. A response with no image part returns ErrNoArtifact.
	GenerateImage(ctx context.Context, req *GenerationRequest) (*model.Artifact, error)
}

// OperationState is the poller-facing status of a long-running operation.
type OperationState string

const (
	OperationActive    OperationState = "active"
	OperationSucceeded OperationState = "succeeded"
	OperationFailed    OperationState = "failed"
)

// VideoPollResult is the decoded status of one video operation.
type VideoPollResult struct {
	State OperationState
	// Video is set when State is OperationSucceeded.
	Video *model.Artifact
	// Message carries the provider diagnostic when State is OperationFailed.
	Message string
}

// VideoGenerator is the long-running video generation boundary.
type VideoGenerator interface {
	// SubmitVideo starts a video generation and returns the provider's
	// opaque operation handle.
	SubmitVideo(ctx context.Context, req *GenerationRequest) (string, error)

	// PollVideos checks the status of the given operation handles in a
	// single batched call. Handles missing from the returned map were not
	// reported by the provider this round; callers keep tracking them.
	PollVideos(ctx context.Context, handles []string) (map[string]*VideoPollResult, error)
}

// GeminiImageGenerator implements ImageGenerator on a quota-aware Gemini
// image model.
type GeminiImageGenerator struct {
	Model *QuotaAwareGenerativeAIModel
}

// NewGeminiImageGenerator wraps a configured quota-aware model.
func NewGeminiImageGenerator(model *QuotaAwareGenerativeAIModel) *GeminiImageGenerator {
	return &GeminiImageGenerator{Model: model}
}

// GenerateImage builds the multi-modal prompt in a fixed order (reference
// images, then the base image for refinements, then the instruction text) and
// performs one model call. It scans the response candidates for the first
// inline image part.
//
// Inputs:
//   - ctx: The context for the request.
//   - req: The generation request to execute.
//
// Outputs:
//   - *model.Artifact: The generated image bytes and MIME type.
//   - error: The provider error, or ErrNoArtifact for an empty response.
func (g *GeminiImageGenerator) GenerateImage(ctx context.Context, req *GenerationRequest) (*model.Artifact, error) {
	parts := make([]*genai.Part, 0, len(req.ReferenceImages)+2)
	for _, ref := range req.ReferenceImages {
		parts = append(parts, NewBlobPart(ref.Data, ref.MIMEType))
	}
	if req.BaseImage != nil {
		parts = append(parts, NewBlobPart(req.BaseImage.Data, req.BaseImage.MIMEType))
	}
	instruction := req.Instruction
	if req.AspectRatio != "" {
		// The image model takes the output ratio as part of the instruction.
		instruction = fmt.Sprintf("%s\nOutput aspect ratio: %s.", instruction, req.AspectRatio)
	}
	parts = append(parts, NewTextPart(instruction))

	content := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	resp, err := g.Model.GenerateContent(ctx, content)
	if err != nil {
		return nil, err
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &model.Artifact{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}
	return nil, ErrNoArtifact
}

// VeoVideoGenerator implements VideoGenerator on the Vertex AI Veo models.
// Submit calls share the image model's quota discipline through a dedicated
// limiter on the wrapped model handle.
type VeoVideoGenerator struct {
	Client    *genai.Client
	ModelName string
}

// NewVeoVideoGenerator builds a video generator on the shared genai client.
func NewVeoVideoGenerator(client *genai.Client, modelName string) *VeoVideoGenerator {
	return &VeoVideoGenerator{Client: client, ModelName: modelName}
}

// SubmitVideo starts a long-running video generation from the request's start
// frame and returns the operation name as the tracking handle. When an end
// frame is present the request becomes a two-frame interpolation.
//
// Inputs:
//   - ctx: The context for the request.
//   - req: The generation request. StartFrame must be set.
//
// Outputs:
//   - string: The provider operation handle.
//   - error: An error from the submit call.
func (g *VeoVideoGenerator) SubmitVideo(ctx context.Context, req *GenerationRequest) (string, error) {
	if req.StartFrame == nil {
		return "", errors.New("video generation requires a start frame image")
	}
	image := &genai.Image{
		ImageBytes: req.StartFrame.Data,
		MIMEType:   req.StartFrame.MIMEType,
	}
	config := &genai.GenerateVideosConfig{
		AspectRatio: req.AspectRatio,
	}
	if req.EndFrame != nil {
		config.LastFrame = &genai.Image{
			ImageBytes: req.EndFrame.Data,
			MIMEType:   req.EndFrame.MIMEType,
		}
	}
	op, err := g.Client.Models.GenerateVideos(ctx, g.ModelName, req.Instruction, image, config)
	if err != nil {
		return "", err
	}
	return op.Name, nil
}

// PollVideos resolves the current state of each operation handle. The genai
// client exposes per-operation gets, so the batch is fanned out here at the
// provider boundary; a handle whose get fails is omitted from the result map
// and stays tracked by the caller.
//
// Inputs:
//   - ctx: The context for the poll round.
//   - handles: The operation handles to check.
//
// Outputs:
//   - map[string]*VideoPollResult: Results keyed by handle. May be partial.
//   - error: Only when every get fails, so the poller can log one diagnostic.
func (g *VeoVideoGenerator) PollVideos(ctx context.Context, handles []string) (map[string]*VideoPollResult, error) {
	results := make(map[string]*VideoPollResult, len(handles))
	var lastErr error
	for _, handle := range handles {
		op, err := g.Client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: handle}, nil)
		if err != nil {
			lastErr = err
			continue
		}
		results[handle] = decodeVideoOperation(op)
	}
	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return results, nil
}

// decodeVideoOperation maps a provider operation onto the poller's state model.
func decodeVideoOperation(op *genai.GenerateVideosOperation) *VideoPollResult {
	if !op.Done {
		return &VideoPollResult{State: OperationActive}
	}
	if op.Error != nil {
		return &VideoPollResult{
			State:   OperationFailed,
			Message: fmt.Sprintf("%v", op.Error["message"]),
		}
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return &VideoPollResult{
			State:   OperationFailed,
			Message: ErrNoArtifact.Error(),
		}
	}
	video := op.Response.GeneratedVideos[0].Video
	return &VideoPollResult{
		State: OperationSucceeded,
		Video: &model.Artifact{
			Data:     video.VideoBytes,
			MIMEType: video.MIMEType,
			URI:      video.URI,
		},
	}
}
