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
// surface and the generation workflows. This file implements the prompt
// assembler, which turns a scene plus its resolved references into the final
// instruction text for the provider.
//
// Segments are emitted in a fixed precedence order so prompts are stable
// across runs: framing, scene description, style, cinematography,
// environment, continuity, and finally the no-people guard. Refinement
// requests bypass the full assembly and produce a delta instruction against
// the existing image instead.
package services

import (
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
)

// Default template fragments used when the configuration leaves them unset.
const (
	defaultNoPeopleInstruction = "Do not include any people or human figures in the image."
	defaultRefinementFraming   = "Apply the following change to the attached image, keeping everything else identical:"
	defaultContinuityTemplate  = "This frame follows the previous one via a %s transition; keep spatial and lighting continuity."
)

// PromptAssembler composes provider instructions from scene state and the
// prompt templates in configuration.
type PromptAssembler struct {
	Templates cloud.PromptTemplates
	Presets   map[string]cloud.StylePreset
}

// NewPromptAssembler builds an assembler from the loaded configuration.
func NewPromptAssembler(cfg *cloud.Config) *PromptAssembler {
	return &PromptAssembler{
		Templates: cfg.PromptTemplates,
		Presets:   cfg.StylePresets,
	}
}

// PromptInput carries everything one assembly needs.
type PromptInput struct {
	Project *model.Project
	Scene   *model.Scene
	Refs    *ResolvedReferences
	// Refinement switches to delta mode. RefinementText is the requested
	// change and must be non-empty in that mode.
	Refinement     bool
	RefinementText string
}

// Assemble produces the instruction text for one generation.
//
// In full mode the segments appear in a fixed order: shot framing, the
// scrubbed scene description, the style instruction, cinematography,
// environment, the continuity note, and the no-people guard. In refinement
// mode the output is the refinement framing followed by the change text;
// the caller attaches the existing image as the base.
//
// Inputs:
//   - in: The assembly input. Scene must have a non-empty description in
//     full mode.
//
// Outputs:
//   - string: The assembled instruction.
//   - error: ErrEmptyDescription when a full assembly has nothing to
//     describe, or a precondition error for an empty refinement.
func (a *PromptAssembler) Assemble(in *PromptInput) (string, error) {
	if in.Refinement {
		change := strings.TrimSpace(in.RefinementText)
		if change == "" {
			return "", fmt.Errorf("refinement for scene %q has no change text", in.Scene.ID)
		}
		framing := a.Templates.Refinement
		if framing == "" {
			framing = defaultRefinementFraming
		}
		segments := []string{framing, change}
		if in.Refs != nil && in.Refs.NoPeople {
			segments = append(segments, a.noPeopleInstruction())
		}
		return strings.Join(segments, "\n"), nil
	}

	description := strings.TrimSpace(in.Scene.Description)
	if description == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDescription, in.Scene.ID)
	}

	var segments []string

	if in.Scene.ShotScale != "" {
		segments = append(segments, fmt.Sprintf("Compose the frame as a %s.", in.Scene.ShotScale))
	}

	segments = append(segments, a.scrubDescription(description, in.Project, in.Scene))

	if style := a.styleInstruction(in.Project.Style); style != "" {
		segments = append(segments, style)
	}

	if camera := cameraInstruction(in.Scene.Camera, in.Project.Camera); camera != "" {
		segments = append(segments, camera)
	}

	if in.Refs != nil && in.Refs.EnvironmentText != "" {
		segments = append(segments, fmt.Sprintf("Setting: %s", in.Refs.EnvironmentText))
	}

	if note := a.continuityNote(in.Project, in.Scene); note != "" {
		segments = append(segments, note)
	}

	if in.Refs != nil && in.Refs.NoPeople {
		segments = append(segments, a.noPeopleInstruction())
	}

	return strings.Join(segments, "\n"), nil
}

// scrubDescription replaces the names of characters NOT selected for this
// scene with "someone". A name left in the text would pull that character's
// likeness into the frame without their reference images, so unselected
// names must never reach the provider.
func (a *PromptAssembler) scrubDescription(description string, project *model.Project, scene *model.Scene) string {
	selected := make(map[string]bool, len(scene.CharacterIDs))
	for _, id := range scene.CharacterIDs {
		selected[id] = true
	}
	for _, character := range project.Characters {
		if selected[character.ID] || character.Name == "" {
			continue
		}
		description = strings.ReplaceAll(description, character.Name, "someone")
	}
	return description
}

// styleInstruction resolves the project's style preset and appends any
// custom style text after it.
func (a *PromptAssembler) styleInstruction(style model.StyleSettings) string {
	var parts []string
	if style.Preset != "" {
		if preset, ok := a.Presets[style.Preset]; ok && preset.Instruction != "" {
			parts = append(parts, preset.Instruction)
		}
	}
	if custom := strings.TrimSpace(style.CustomText); custom != "" {
		parts = append(parts, custom)
	}
	return strings.Join(parts, " ")
}

// cameraInstruction formats the cinematography segment. Scene-level settings
// take precedence over the project defaults as a whole, not field by field.
func cameraInstruction(sceneCamera, projectCamera *model.Cinematography) string {
	camera := sceneCamera
	if camera == nil {
		camera = projectCamera
	}
	if camera == nil {
		return ""
	}
	var parts []string
	if camera.CameraBody != "" {
		parts = append(parts, fmt.Sprintf("Shot on a %s", camera.CameraBody))
	}
	if camera.Lens != "" {
		parts = append(parts, fmt.Sprintf("with a %s", camera.Lens))
	}
	if camera.Angle != "" {
		parts = append(parts, fmt.Sprintf("from a %s angle", camera.Angle))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + "."
}

// continuityNote emits the transition note when continuity mode is on and
// the preceding scene declares how it hands off to this one.
func (a *PromptAssembler) continuityNote(project *model.Project, scene *model.Scene) string {
	if !project.ContinuityEnabled {
		return ""
	}
	prev := precedingScene(project, scene)
	if prev == nil || prev.TransitionType == "" {
		return ""
	}
	template := a.Templates.Continuity
	if template == "" {
		template = defaultContinuityTemplate
	}
	return fmt.Sprintf(template, prev.TransitionType)
}

func (a *PromptAssembler) noPeopleInstruction() string {
	if a.Templates.NoPeople != "" {
		return a.Templates.NoPeople
	}
	return defaultNoPeopleInstruction
}
