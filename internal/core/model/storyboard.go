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
// This file, `storyboard.go`, contains the durable storyboard domain model:
// the project, its scenes and scene groups, and the reference entities
// (characters and products) that scenes draw on during generation. These
// structs carry JSON tags so that the read model returned by the API is a
// direct serialization of the in-memory state.
package model

// VideoStatus tracks the lifecycle of a scene's video generation through the
// long-running provider operation.
type VideoStatus string

const (
	// VideoStatusNone means no video generation has been requested for the
	// scene, or a previous result was discarded.
	VideoStatusNone VideoStatus = ""
	// VideoStatusStarting means the submit call has been accepted and an
	// operation handle recorded, but the first poll has not completed.
	VideoStatusStarting VideoStatus = "starting"
	// VideoStatusActive means at least one poll has observed the operation
	// still in progress.
	VideoStatusActive VideoStatus = "active"
	// VideoStatusSucceeded is terminal: the video artifact is attached.
	VideoStatusSucceeded VideoStatus = "succeeded"
	// VideoStatusFailed is terminal: LastError carries the diagnostic.
	VideoStatusFailed VideoStatus = "failed"
)

// Terminal reports whether the status is one of the two end states, at which
// point the poller releases the operation handle.
func (s VideoStatus) Terminal() bool {
	return s == VideoStatusSucceeded || s == VideoStatusFailed
}

// Artifact is a generated binary output (an image or a video) together with
// its content type and, once persisted, its storage URI. Data is carried as
// a base64 string in JSON so artifacts survive the project upload and read
// model round trip.
type Artifact struct {
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// Clone returns a shallow copy of the artifact. The byte slice is shared, not
// duplicated: generated media is treated as immutable once attached.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

// ImageAsset is a labeled reference image supplied by the user, such as a
// character's face shot or a product's master photo. The label is a free-form
// view name ("face", "body", "side", "back", "front", ...) that the reference
// resolver uses to order images deterministically. The bytes travel base64
// encoded in JSON; without them a catalog upload would strip every reference
// image and leave generations unconditioned.
type ImageAsset struct {
	Label    string `json:"label"`
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// Clone returns a copy of the asset. The byte slice is shared; uploaded
// reference images are immutable once attached.
func (a *ImageAsset) Clone() *ImageAsset {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

// Character is a reference entity describing a recurring person in the
// storyboard. Its images anchor the person's appearance across scenes.
type Character struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Images      []*ImageAsset `json:"images,omitempty"`
}

// Clone deep-copies the character and its image assets.
func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	out := *c
	out.Images = make([]*ImageAsset, len(c.Images))
	for i, img := range c.Images {
		out.Images[i] = img.Clone()
	}
	return &out
}

// Product is a reference entity describing an item that must render
// consistently wherever it appears.
type Product struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Images      []*ImageAsset `json:"images,omitempty"`
}

// Clone deep-copies the product and its image assets.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	out := *p
	out.Images = make([]*ImageAsset, len(p.Images))
	for i, img := range p.Images {
		out.Images[i] = img.Clone()
	}
	return &out
}

// SceneGroup clusters scenes that share a physical environment. The optional
// anchor image and the environment description feed the reference resolver
// and prompt assembler so grouped scenes stay visually coherent.
type SceneGroup struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Anchor      *ImageAsset `json:"anchor,omitempty"`
}

// Clone deep-copies the group, including its anchor asset.
func (g *SceneGroup) Clone() *SceneGroup {
	if g == nil {
		return nil
	}
	out := *g
	out.Anchor = g.Anchor.Clone()
	return &out
}

// Cinematography holds the camera parameters for a scene or, at the project
// level, the defaults applied when a scene does not override them.
type Cinematography struct {
	CameraBody string `json:"camera_body,omitempty"`
	Lens       string `json:"lens,omitempty"`
	Angle      string `json:"angle,omitempty"`
}

// Scene is a single storyboard frame. It combines the authored description
// and entity selections with the generation outputs and the bookkeeping the
// scheduler and poller need.
type Scene struct {
	ID             string          `json:"id"`
	SequenceNumber int             `json:"sequence_number"`
	Description    string          `json:"description"`
	CharacterIDs   []string        `json:"character_ids,omitempty"`
	ProductIDs     []string        `json:"product_ids,omitempty"`
	GroupID        string          `json:"group_id,omitempty"`
	ShotScale      string          `json:"shot_scale,omitempty"`
	TransitionType string          `json:"transition_type,omitempty"`
	Camera         *Cinematography `json:"camera,omitempty"`

	Image         *Artifact `json:"image,omitempty"`
	EndFrameImage *Artifact `json:"end_frame_image,omitempty"`
	Video         *Artifact `json:"video,omitempty"`

	// MediaID names the persisted source artifact behind Image so that a
	// video request can reuse the upload instead of re-sending bytes.
	MediaID string `json:"media_id,omitempty"`

	VideoOperationHandle string      `json:"video_operation_handle,omitempty"`
	VideoStatus          VideoStatus `json:"video_status,omitempty"`
	IsGenerating         bool        `json:"is_generating"`
	LastError            string      `json:"last_error,omitempty"`
}

// Clone performs a deep copy of the scene's mutable structure. Image bytes
// inside artifacts and assets are shared.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	out := *s
	out.CharacterIDs = append([]string(nil), s.CharacterIDs...)
	out.ProductIDs = append([]string(nil), s.ProductIDs...)
	if s.Camera != nil {
		cam := *s.Camera
		out.Camera = &cam
	}
	out.Image = s.Image.Clone()
	out.EndFrameImage = s.EndFrameImage.Clone()
	out.Video = s.Video.Clone()
	return &out
}

// StyleSettings selects the visual treatment applied to every generated
// image. Preset names a style defined in configuration; CustomText, when set,
// is appended verbatim after the preset's instruction.
type StyleSettings struct {
	Preset     string `json:"preset,omitempty"`
	CustomText string `json:"custom_text,omitempty"`
	// AspectRatio is the output frame ratio, e.g. "16:9".
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// Project is the root of the storyboard state: the ordered scene list plus
// all shared context a generation draws on.
type Project struct {
	Name              string          `json:"name"`
	Style             StyleSettings   `json:"style"`
	Camera            *Cinematography `json:"camera,omitempty"`
	ContinuityEnabled bool            `json:"continuity_enabled"`
	Scenes            []*Scene        `json:"scenes"`
	Groups            []*SceneGroup   `json:"groups,omitempty"`
	Characters        []*Character    `json:"characters,omitempty"`
	Products          []*Product      `json:"products,omitempty"`
}

// Snapshot deep-copies the project so a generation job can work against a
// stable view while the live state keeps mutating. Binary payloads are
// shared across copies.
func (p *Project) Snapshot() *Project {
	if p == nil {
		return nil
	}
	out := *p
	if p.Camera != nil {
		cam := *p.Camera
		out.Camera = &cam
	}
	out.Scenes = make([]*Scene, len(p.Scenes))
	for i, s := range p.Scenes {
		out.Scenes[i] = s.Clone()
	}
	out.Groups = make([]*SceneGroup, len(p.Groups))
	for i, g := range p.Groups {
		out.Groups[i] = g.Clone()
	}
	out.Characters = make([]*Character, len(p.Characters))
	for i, c := range p.Characters {
		out.Characters[i] = c.Clone()
	}
	out.Products = make([]*Product, len(p.Products))
	for i, pr := range p.Products {
		out.Products[i] = pr.Clone()
	}
	return &out
}

// SceneByID returns the scene with the given id, or nil when absent.
func (p *Project) SceneByID(id string) *Scene {
	for _, s := range p.Scenes {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// GroupByID returns the scene group with the given id, or nil when absent.
func (p *Project) GroupByID(id string) *SceneGroup {
	for _, g := range p.Groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// CharacterByID returns the character with the given id, or nil when absent.
func (p *Project) CharacterByID(id string) *Character {
	for _, c := range p.Characters {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ProductByID returns the product with the given id, or nil when absent.
func (p *Project) ProductByID(id string) *Product {
	for _, pr := range p.Products {
		if pr.ID == id {
			return pr
		}
	}
	return nil
}
