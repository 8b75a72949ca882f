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

// Package model defines the data structures for the application. This file,
// `examples.go`, provides factory functions for creating hardcoded, example
// instances of the data models. The example project exercises every part of
// the reference resolution rules (multi-view characters, a product, scene
// groups with anchors, and continuity ordering), which makes it useful both
// in tests and as seed data for a fresh server.
package model

// GetExampleProject creates a small storyboard project with two characters,
// one product, and three scenes across two scene groups.
//
// Outputs:
//   - *Project: A pointer to a fully populated Project object.
func GetExampleProject() *Project {
	// Reference images carry tiny placeholder payloads; real projects hold
	// user uploads here.
	face := func(label string) *ImageAsset {
		return &ImageAsset{Label: label, Data: []byte(label), MIMEType: "image/png"}
	}
	out := &Project{
		Name: "Morning Commute",
		Style: StyleSettings{
			Preset:      "cinematic",
			AspectRatio: "16:9",
		},
		Camera: &Cinematography{
			CameraBody: "ARRI Alexa Mini",
			Lens:       "35mm prime",
			Angle:      "eye level",
		},
		Characters: []*Character{
			{
				ID:          "char-ana",
				Name:        "Ana",
				Description: "A commuter in her thirties wearing a yellow raincoat.",
				Images:      []*ImageAsset{face("face"), face("body"), face("side")},
			},
			{
				ID:          "char-leo",
				Name:        "Leo",
				Description: "A station attendant with a gray uniform.",
				Images:      []*ImageAsset{face("face")},
			},
		},
		Products: []*Product{
			{
				ID:          "prod-thermos",
				Name:        "Steel Thermos",
				Description: "A brushed steel thermos with a red cap.",
				Images:      []*ImageAsset{face("front"), face("side")},
			},
		},
		Groups: []*SceneGroup{
			{
				ID:          "grp-platform",
				Name:        "Station Platform",
				Description: "A rain-slicked subway platform at dawn.",
				Anchor:      face("anchor"),
			},
			{
				ID:          "grp-train",
				Name:        "Train Interior",
				Description: "A near-empty commuter train car.",
			},
		},
		Scenes: []*Scene{
			{
				ID:             "scene-1",
				SequenceNumber: 1,
				Description:    "Ana waits on the platform holding her Steel Thermos.",
				CharacterIDs:   []string{"char-ana"},
				ProductIDs:     []string{"prod-thermos"},
				GroupID:        "grp-platform",
				ShotScale:      "wide shot",
			},
			{
				ID:             "scene-2",
				SequenceNumber: 2,
				Description:    "Leo waves the train through as Ana boards.",
				CharacterIDs:   []string{"char-ana", "char-leo"},
				GroupID:        "grp-platform",
				ShotScale:      "medium shot",
				TransitionType: "cut",
			},
			{
				ID:             "scene-3",
				SequenceNumber: 3,
				Description:    "The empty train car rattles through a tunnel.",
				GroupID:        "grp-train",
				ShotScale:      "wide shot",
				TransitionType: "match cut",
			},
		},
	}
	return out
}
