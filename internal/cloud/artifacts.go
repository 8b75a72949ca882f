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
// This file implements the artifact store: generated images and videos are
// written to a Google Cloud Storage bucket so that a scene can later reuse
// the persisted media (for example, sending a video request by media id
// instead of re-uploading image bytes).
//
// The store sniffs the real content type from the leading bytes rather than
// trusting what the provider reported, since the MIME type drives both the
// object's content-type metadata and the file extension.
package cloud

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
)

// ArtifactStore persists generated media to a GCS bucket and hands back
// stable media ids and gs:// URIs.
type ArtifactStore struct {
	client *storage.Client
	bucket string
}

// NewArtifactStore creates an artifact store over the given client and bucket.
func NewArtifactStore(client *storage.Client, bucket string) *ArtifactStore {
	return &ArtifactStore{client: client, bucket: bucket}
}

// SavedArtifact describes a persisted object.
type SavedArtifact struct {
	MediaID string // The object name, used to reference the media later.
	URI     string // The full gs:// URI of the object.
}

// Save writes the artifact's bytes to the bucket under a scene-scoped object
// name and returns the media id and URI. The kind string ("image", "video",
// "endframe") becomes part of the object name so a scene's artifacts are
// distinguishable in the bucket listing.
//
// Inputs:
//   - ctx: The context controlling the upload.
//   - sceneID: The owning scene's id, used as the object prefix.
//   - kind: A short label for the artifact's role.
//   - artifact: The media to persist. Must carry data bytes.
//
// Outputs:
//   - *SavedArtifact: The media id and gs:// URI of the written object.
//   - error: An error if the upload fails.
func (s *ArtifactStore) Save(ctx context.Context, sceneID string, kind string, artifact *model.Artifact) (*SavedArtifact, error) {
	if artifact == nil || len(artifact.Data) == 0 {
		return nil, fmt.Errorf("no artifact data to save for scene %q", sceneID)
	}

	contentType := artifact.MIMEType
	extension := ""
	// Prefer the sniffed type over the provider-reported one.
	if match, err := filetype.Match(artifact.Data); err == nil && match != filetype.Unknown {
		contentType = match.MIME.Value
		extension = "." + match.Extension
	} else if contentType != "" {
		if idx := strings.LastIndex(contentType, "/"); idx >= 0 && idx < len(contentType)-1 {
			extension = "." + contentType[idx+1:]
		}
	}

	mediaID := fmt.Sprintf("scenes/%s/%s-%s%s", sceneID, kind, uuid.NewString()[:8], extension)
	writer := s.client.Bucket(s.bucket).Object(mediaID).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(artifact.Data); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to write artifact %q: %w", mediaID, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize artifact %q: %w", mediaID, err)
	}

	return &SavedArtifact{
		MediaID: mediaID,
		URI:     fmt.Sprintf("gs://%s/%s", s.bucket, mediaID),
	}, nil
}

// Load reads a previously saved artifact back from the bucket by media id.
//
// Inputs:
//   - ctx: The context controlling the download.
//   - mediaID: The object name returned by Save.
//
// Outputs:
//   - *model.Artifact: The object bytes, content type and URI.
//   - error: An error if the object cannot be read.
func (s *ArtifactStore) Load(ctx context.Context, mediaID string) (*model.Artifact, error) {
	reader, err := s.client.Bucket(s.bucket).Object(mediaID).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %q: %w", mediaID, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %q: %w", mediaID, err)
	}

	return &model.Artifact{
		Data:     data,
		MIMEType: reader.Attrs.ContentType,
		URI:      fmt.Sprintf("gs://%s/%s", s.bucket, mediaID),
	}, nil
}
