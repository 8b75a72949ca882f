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
// surface and the generation workflows. This file implements the reference
// resolver: given a project snapshot and a target scene, it selects the
// reference images the provider call will see and the order they appear in.
//
// The resolver is a pure function over the snapshot. Determinism matters
// here: the same scene state must always produce the same reference set in
// the same order, so generations are reproducible and testable.
package services

import (
	"fmt"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
)

// characterViewOrder fixes the order in which a character's labeled views are
// attached. Views outside this list keep their original relative order after
// the known ones.
var characterViewOrder = []string{"face", "body", "side", "back"}

// ResolvedReferences is the resolver's output: the ordered reference images
// plus the flags the prompt assembler needs.
type ResolvedReferences struct {
	// Images are attached to the provider call in this exact order:
	// character views first (per selected character, in selection order),
	// then product masters, then the environment reference.
	Images []*model.ImageAsset
	// NoPeople is set when the scene selects no characters, so the prompt
	// must forbid incidental people.
	NoPeople bool
	// EnvironmentText is the scene group's description, when the scene
	// belongs to one.
	EnvironmentText string
}

// ResolveReferences selects the reference images for one scene generation.
//
// Character references come first, in the scene's selection order, with each
// character's views ordered face, body, side, back. Product references
// follow, one master image per product (the "front" view when present,
// otherwise the first upload). The environment reference comes last and is
// chosen by freshness: the nearest preceding same-group scene that already
// has a generated image wins over the group's static anchor; with continuity
// enabled and no group context, the immediately preceding scene's image is
// used instead.
//
// Inputs:
//   - project: The project snapshot the job works against.
//   - scene: The target scene, taken from the same snapshot.
//
// Outputs:
//   - *ResolvedReferences: The ordered reference set.
//   - error: An error when a selected entity id has no definition.
func ResolveReferences(project *model.Project, scene *model.Scene) (*ResolvedReferences, error) {
	out := &ResolvedReferences{
		NoPeople: len(scene.CharacterIDs) == 0,
	}

	for _, id := range scene.CharacterIDs {
		character := project.CharacterByID(id)
		if character == nil {
			return nil, fmt.Errorf("scene %q references unknown character %q", scene.ID, id)
		}
		out.Images = append(out.Images, orderCharacterViews(character.Images)...)
	}

	for _, id := range scene.ProductIDs {
		product := project.ProductByID(id)
		if product == nil {
			return nil, fmt.Errorf("scene %q references unknown product %q", scene.ID, id)
		}
		if master := productMaster(product); master != nil {
			out.Images = append(out.Images, master)
		}
	}

	if scene.GroupID != "" {
		group := project.GroupByID(scene.GroupID)
		if group == nil {
			return nil, fmt.Errorf("scene %q references unknown group %q", scene.ID, scene.GroupID)
		}
		out.EnvironmentText = group.Description
		if env := environmentReference(project, scene, group); env != nil {
			out.Images = append(out.Images, env)
		}
	} else if project.ContinuityEnabled {
		if prev := precedingScene(project, scene); prev != nil && prev.Image != nil {
			out.Images = append(out.Images, &model.ImageAsset{
				Label:    "environment",
				Data:     prev.Image.Data,
				MIMEType: prev.Image.MIMEType,
			})
		}
	}

	return out, nil
}

// orderCharacterViews returns the character's images with the known views in
// fixed order first and any remaining labels afterwards in upload order.
func orderCharacterViews(images []*model.ImageAsset) []*model.ImageAsset {
	var ordered []*model.ImageAsset
	used := make(map[int]bool, len(images))
	for _, label := range characterViewOrder {
		for i, img := range images {
			if !used[i] && img.Label == label {
				ordered = append(ordered, img)
				used[i] = true
				break
			}
		}
	}
	for i, img := range images {
		if !used[i] {
			ordered = append(ordered, img)
		}
	}
	return ordered
}

// productMaster picks the product's single reference image: the "front" view
// when present, otherwise the first upload.
func productMaster(product *model.Product) *model.ImageAsset {
	for _, img := range product.Images {
		if img.Label == "front" {
			return img
		}
	}
	if len(product.Images) > 0 {
		return product.Images[0]
	}
	return nil
}

// environmentReference chooses the freshest environment image for a grouped
// scene. A generated image from the nearest preceding scene in the same
// group beats the group's static anchor, because it reflects whatever the
// style and lighting actually converged to.
func environmentReference(project *model.Project, scene *model.Scene, group *model.SceneGroup) *model.ImageAsset {
	var best *model.Scene
	for _, other := range project.Scenes {
		if other.ID == scene.ID || other.GroupID != group.ID || other.Image == nil {
			continue
		}
		if other.SequenceNumber >= scene.SequenceNumber {
			continue
		}
		if best == nil || other.SequenceNumber > best.SequenceNumber {
			best = other
		}
	}
	if best != nil {
		return &model.ImageAsset{
			Label:    "environment",
			Data:     best.Image.Data,
			MIMEType: best.Image.MIMEType,
		}
	}
	if group.Anchor != nil {
		return group.Anchor
	}
	return nil
}

// precedingScene finds the scene immediately before the target in sequence
// order, or nil for the first scene.
func precedingScene(project *model.Project, scene *model.Scene) *model.Scene {
	var best *model.Scene
	for _, other := range project.Scenes {
		if other.SequenceNumber >= scene.SequenceNumber {
			continue
		}
		if best == nil || other.SequenceNumber > best.SequenceNumber {
			best = other
		}
	}
	return best
}
