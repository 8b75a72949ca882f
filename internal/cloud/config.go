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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for various components, including Google Cloud services, the image and
// video generation models, retry and polling behavior, and style presets.
//
// This file centralizes all configuration-related structs, making it easy
// to understand and manage the application's configurable parameters.
//
// Structs:
//   - Storage: Configuration for the Google Cloud Storage artifact bucket.
//   - VertexAiImageModel: Configuration for a Vertex AI image generation model.
//   - VertexAiVideoModel: Configuration for a Vertex AI video generation model.
//   - RetrySettings: Bounded retry behavior for synchronous provider calls.
//   - PollerSettings: Interval and attempt cap for long-running operations.
//   - SchedulerSettings: Concurrency bound and continuity pacing for batch runs.
//   - StylePreset: A named visual style and its prompt instruction.
//   - PromptTemplates: Fixed text fragments used by the prompt assembler.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with empty maps.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings defines the default content safety thresholds for GenAI models.
// These settings are configured to be non-restrictive, allowing all content categories
// (Dangerous Content, Harassment, Hate Speech, Sexually Explicit) to pass through without
// being blocked. This is a common setup for internal or controlled environments where
// the input data is trusted.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Storage represents the configuration for storage buckets.
type Storage struct {
	ArtifactBucket string `toml:"artifact_bucket"` // The bucket where generated images and videos are persisted.
}

// VertexAiImageModel represents the configuration for a Vertex AI model used
// for synchronous image generation.
type VertexAiImageModel struct {
	Model       string  `toml:"model"`       // The name of the Vertex AI image model.
	Temperature float32 `toml:"temperature"` // The temperature parameter for the model.
	TopP        float32 `toml:"top_p"`       // The top_p parameter for the model.
	MaxTokens   int32   `toml:"max_tokens"`  // The maximum number of output tokens.
	RateLimit   int     `toml:"rate_limit"`  // The rate limit for the model in requests per second.
}

// VertexAiVideoModel represents the configuration for a Vertex AI model used
// for long-running video generation.
type VertexAiVideoModel struct {
	Model     string `toml:"model"`      // The name of the Vertex AI video model.
	RateLimit int    `toml:"rate_limit"` // The rate limit for submit calls in requests per second.
}

// RetrySettings controls the bounded retry loop around synchronous provider calls.
type RetrySettings struct {
	MaxAttempts    int `toml:"max_attempts"`     // Total attempts including the first (default 3).
	InitialDelayMs int `toml:"initial_delay_ms"` // Delay before the first retry; doubles each retry.
}

// PollerSettings controls how long-running video operations are tracked.
type PollerSettings struct {
	IntervalSeconds int `toml:"interval_seconds"` // Seconds between status checks. Zero takes the default; negative disarms the timer.
	MaxAttempts     int `toml:"max_attempts"`     // Status checks before an operation is force-failed.
}

// SchedulerSettings controls the batch generation run.
type SchedulerSettings struct {
	MaxConcurrent     int `toml:"max_concurrent"`      // The sliding-window bound on concurrent scene jobs.
	ContinuityDelayMs int `toml:"continuity_delay_ms"` // Pause between jobs when continuity mode serializes the run.
}

// StylePreset defines a named visual treatment and the instruction text the
// prompt assembler emits for it.
type StylePreset struct {
	Name        string `toml:"name"`        // The user-friendly name of the preset (e.g., "Cinematic").
	Instruction string `toml:"instruction"` // The prompt fragment describing the style.
}

// PromptTemplates holds the fixed text fragments the prompt assembler combines
// with scene data. Templates use %s placeholders filled in assembly order.
type PromptTemplates struct {
	NoPeople   string `toml:"no_people"`  // The negative instruction for scenes with no selected characters.
	Refinement string `toml:"refinement"` // The framing applied before a refinement delta request.
	Continuity string `toml:"continuity"` // The template for the transition note, filled with the transition type.
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name            string `toml:"name"`              // The name of the application.
		GoogleProjectId string `toml:"google_project_id"` // The Google Cloud project ID.
		GoogleLocation  string `toml:"location"`          // The Google Cloud location.
		ThreadPoolSize  int    `toml:"thread_pool_size"`  // The default worker pool size for batch generation.
	} `toml:"application"`
	// Generation selects the active models and output defaults by logical key.
	Generation struct {
		ImageModel         string `toml:"image_model"`          // Logical key into ImageModels.
		VideoModel         string `toml:"video_model"`          // Logical key into VideoModels.
		DefaultAspectRatio string `toml:"default_aspect_ratio"` // Output frame ratio when the project does not set one.
	} `toml:"generation"`
	Storage         Storage                       `toml:"storage"`          // Storage configuration.
	Retry           RetrySettings                 `toml:"retry"`            // Retry policy configuration.
	Poller          PollerSettings                `toml:"poller"`           // Operation poller configuration.
	Scheduler       SchedulerSettings             `toml:"scheduler"`        // Batch scheduler configuration.
	PromptTemplates PromptTemplates               `toml:"prompt_templates"` // Prompt assembly templates.
	ImageModels     map[string]VertexAiImageModel `toml:"image_models"`     // A map of image models, keyed by a logical name (e.g., "default").
	VideoModels     map[string]VertexAiVideoModel `toml:"video_models"`     // A map of video models, keyed by a logical name.
	StylePresets    map[string]StylePreset        `toml:"style_presets"`    // A map of style presets, keyed by a logical name (e.g., "cinematic").
}

// NewConfig is a constructor function that creates a new, initialized Config instance.
// It's important to initialize the maps within the struct to avoid nil pointer panics
// when the configuration loader tries to populate them.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with its map fields initialized.
func NewConfig() *Config {
	return &Config{
		ImageModels:  make(map[string]VertexAiImageModel),
		VideoModels:  make(map[string]VertexAiVideoModel),
		StylePresets: make(map[string]StylePreset),
	}
}
