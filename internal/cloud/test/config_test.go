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

// Package cloud_test contains unit tests for the cloud package. This file
// covers the hierarchical configuration loader: the base TOML file is read
// first and the runtime-specific file overrides it section by section.
package cloud_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	test "github.com/jaycherian/gcp-go-storyboard-gen/internal/testutil"
	"github.com/zeebo/assert"
)

const baseToml = `
[application]
name = "storyboard-gen"
google_project_id = "base-project"
location = "us-central1"
thread_pool_size = 3

[generation]
image_model = "default"
video_model = "default"
default_aspect_ratio = "16:9"

[storage]
artifact_bucket = "base-bucket"

[retry]
max_attempts = 3
initial_delay_ms = 2000

[poller]
interval_seconds = 4
max_attempts = 40

[scheduler]
max_concurrent = 3
continuity_delay_ms = 500

[prompt_templates]
no_people = "Do not include any people."

[image_models.default]
model = "gemini-2.5-flash-image"
temperature = 1.0
top_p = 0.95
max_tokens = 8192
rate_limit = 2

[video_models.default]
model = "veo-3.0-generate-001"
rate_limit = 1

[style_presets.cinematic]
name = "Cinematic"
instruction = "Cinematic film still."
`

const overrideToml = `
[application]
google_project_id = "override-project"

[retry]
max_attempts = 5
initial_delay_ms = 1

[poller]
interval_seconds = -1
max_attempts = 5
`

// writeConfigs materializes a base and override file in a temp directory
// and points the loader's environment variables at them.
func writeConfigs(t *testing.T, runtime string) {
	t.Helper()
	dir := t.TempDir()
	test.HandleErr(os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(baseToml), 0o644), t)
	test.HandleErr(os.WriteFile(filepath.Join(dir, ".env."+runtime+".toml"), []byte(overrideToml), 0o644), t)
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, runtime)
}

// TestLoadConfigHierarchy verifies that the runtime file overrides the base
// values it names while everything else keeps the base value.
func TestLoadConfigHierarchy(t *testing.T) {
	writeConfigs(t, "unittest")

	config := cloud.NewConfig()
	cloud.LoadConfig(&config)

	// Overridden values.
	assert.Equal(t, "override-project", config.Application.GoogleProjectId)
	assert.Equal(t, 5, config.Retry.MaxAttempts)
	assert.Equal(t, 1, config.Retry.InitialDelayMs)
	assert.Equal(t, -1, config.Poller.IntervalSeconds)

	// Base values that the override file does not touch.
	assert.Equal(t, "storyboard-gen", config.Application.Name)
	assert.Equal(t, "us-central1", config.Application.GoogleLocation)
	assert.Equal(t, "base-bucket", config.Storage.ArtifactBucket)
	assert.Equal(t, "16:9", config.Generation.DefaultAspectRatio)
	assert.Equal(t, 3, config.Scheduler.MaxConcurrent)

	// Map sections survive the merge.
	image, ok := config.ImageModels["default"]
	assert.True(t, ok)
	assert.Equal(t, "gemini-2.5-flash-image", image.Model)
	assert.Equal(t, 2, image.RateLimit)

	video, ok := config.VideoModels["default"]
	assert.True(t, ok)
	assert.Equal(t, "veo-3.0-generate-001", video.Model)

	preset, ok := config.StylePresets["cinematic"]
	assert.True(t, ok)
	assert.Equal(t, "Cinematic film still.", preset.Instruction)
}

// TestLoadConfigBaseOnly verifies that a missing runtime file is not an
// error; the base configuration is used as-is.
func TestLoadConfigBaseOnly(t *testing.T) {
	dir := t.TempDir()
	test.HandleErr(os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(baseToml), 0o644), t)
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "nosuchruntime")

	config := cloud.NewConfig()
	cloud.LoadConfig(&config)

	assert.Equal(t, "base-project", config.Application.GoogleProjectId)
	assert.Equal(t, 3, config.Retry.MaxAttempts)
}
