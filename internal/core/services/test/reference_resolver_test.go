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
// file covers the reference resolver: attachment ordering, the environment
// freshness rule, and the no-people flag.
package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
)

// labels flattens the resolved images to their labels for easy ordering
// assertions.
func labels(refs *services.ResolvedReferences) []string {
	out := make([]string, len(refs.Images))
	for i, img := range refs.Images {
		out[i] = img.Label
	}
	return out
}

// TestResolveReferenceOrdering verifies the fixed attachment order:
// character views in the documented view order, then the product master,
// then the environment reference.
func TestResolveReferenceOrdering(t *testing.T) {
	project := model.GetExampleProject()
	// Scramble Ana's upload order; resolution must still emit face, body,
	// side.
	ana := project.CharacterByID("char-ana")
	ana.Images = []*model.ImageAsset{ana.Images[2], ana.Images[0], ana.Images[1]}

	scene := project.SceneByID("scene-1")
	refs, err := services.ResolveReferences(project, scene)

	assert.NoError(t, err)
	assert.False(t, refs.NoPeople)
	assert.Equal(t, "A rain-slicked subway platform at dawn.", refs.EnvironmentText)
	// Character views, product front view, then the group anchor since no
	// earlier scene in the group has an image yet.
	assert.Equal(t, []string{"face", "body", "side", "front", "anchor"}, labels(refs))
}

// TestResolveEnvironmentFreshness verifies that a generated image from the
// nearest preceding same-group scene beats the group's static anchor.
func TestResolveEnvironmentFreshness(t *testing.T) {
	project := model.GetExampleProject()
	generated := &model.Artifact{Data: []byte("scene-1-render"), MIMEType: "image/png"}
	project.SceneByID("scene-1").Image = generated

	scene := project.SceneByID("scene-2")
	refs, err := services.ResolveReferences(project, scene)

	assert.NoError(t, err)
	last := refs.Images[len(refs.Images)-1]
	assert.Equal(t, "environment", last.Label)
	assert.Equal(t, generated.Data, last.Data)
}

// TestResolveNoPeopleFlag verifies that a scene with no selected characters
// sets the flag and attaches no character views.
func TestResolveNoPeopleFlag(t *testing.T) {
	project := model.GetExampleProject()
	scene := project.SceneByID("scene-3")

	refs, err := services.ResolveReferences(project, scene)

	assert.NoError(t, err)
	assert.True(t, refs.NoPeople)
	// The train group has no anchor and no preceding same-group scene with
	// an image, so no environment image is attached either.
	assert.Empty(t, refs.Images)
	assert.Equal(t, "A near-empty commuter train car.", refs.EnvironmentText)
}

// TestResolveContinuityEnvironmentForUngroupedScene verifies that with
// continuity on and no group context, the preceding scene's generated image
// is attached as the environment reference.
func TestResolveContinuityEnvironmentForUngroupedScene(t *testing.T) {
	project := model.GetExampleProject()
	project.ContinuityEnabled = true
	prevImage := &model.Artifact{Data: []byte("scene-2-render"), MIMEType: "image/png"}
	project.SceneByID("scene-2").Image = prevImage

	scene := project.SceneByID("scene-3")
	scene.GroupID = ""
	refs, err := services.ResolveReferences(project, scene)

	assert.NoError(t, err)
	assert.Equal(t, []string{"environment"}, labels(refs))
	assert.Equal(t, prevImage.Data, refs.Images[0].Data)
	assert.Equal(t, "", refs.EnvironmentText)
}

// TestResolveProductMasterFallback verifies the product master selection:
// the front view when present, otherwise the first upload.
func TestResolveProductMasterFallback(t *testing.T) {
	project := model.GetExampleProject()
	product := project.ProductByID("prod-thermos")
	// Remove the front view; the remaining first upload becomes the master.
	product.Images = product.Images[1:]

	scene := project.SceneByID("scene-1")
	refs, err := services.ResolveReferences(project, scene)

	assert.NoError(t, err)
	assert.Contains(t, labels(refs), "side")
	assert.NotContains(t, labels(refs), "front")
}

// TestResolveUnknownReferences verifies that dangling entity ids fail
// resolution instead of silently generating without the reference.
func TestResolveUnknownReferences(t *testing.T) {
	project := model.GetExampleProject()

	scene := project.SceneByID("scene-1")
	scene.CharacterIDs = []string{"char-ghost"}
	_, err := services.ResolveReferences(project, scene)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "char-ghost")

	scene.CharacterIDs = nil
	scene.GroupID = "grp-ghost"
	_, err = services.ResolveReferences(project, scene)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "grp-ghost")
}
