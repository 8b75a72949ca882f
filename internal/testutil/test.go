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

// Package test provides utility functions and mock data to support the application's
// test suite. It helps in setting up a consistent test environment, loading
// test-specific configurations, and providing in-memory fakes for the
// generation provider boundary.
package test

import (
	"log"
	"os"
	"testing"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
)

// StateManager acts as a simple in-memory cache for the application configuration
// during test runs. This prevents the need to reload configuration files for every
// test, speeding up the test suite.
type StateManager struct {
	config *cloud.Config
}

// state is a package-level variable that holds the singleton instance of StateManager,
// ensuring that the configuration is loaded only once per test run.
var state = &StateManager{}

// HandleErr is a simple test helper function that checks if an error is not nil.
// If an error exists, it fails the test immediately by calling t.Errorf.
// This is a convenience function to reduce boilerplate error-checking code in tests.
//
// Inputs:
//   - err: The error to check.
//   - t: The *testing.T object from the current test.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("Error reading config file: %v", err)
	}
}

// SetupOS configures the necessary environment variables that the configuration
// loader (`cloud.LoadConfig`) depends on. By setting these variables, we can
// direct the loader to use the test-specific configuration files (e.g.,
// `configs/.env.test.toml`) instead of production or development ones.
//
// Returns:
//   - An error if setting any environment variable fails.
func SetupOS() (err error) {
	// Set the directory where the configuration files are located.
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// Set the runtime environment identifier to "test". This causes the loader
	// to look for a file named ".env.test.toml" for overrides.
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration.
// It ensures that the configuration is loaded from TOML files only once and
// is cached in the package-level `state` variable for subsequent calls.
// Tests that do not touch the filesystem should prefer NewTestConfig.
//
// Returns:
//   - A pointer to the loaded and cached cloud.Config struct.
func GetConfig() *cloud.Config {
	// Check if the config is already cached.
	if state.config == nil {
		// If not cached, set up the OS environment for the test configuration.
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		// Create a new, empty config struct.
		config := cloud.NewConfig()
		// Load the configuration from the TOML files into the struct.
		// `LoadConfig` handles the hierarchical loading (base file + test override).
		cloud.LoadConfig(&config)
		// Cache the loaded config in our state manager.
		state.config = config
	}
	// Return the cached configuration.
	return state.config
}

// NewTestConfig builds a self-contained configuration in code, with instant
// retries and manual polling, so service and workflow tests run without any
// config files or real delays.
//
// Returns:
//   - A pointer to a fully populated cloud.Config struct.
func NewTestConfig() *cloud.Config {
	config := cloud.NewConfig()
	config.Application.Name = "storyboard-gen-test"
	config.Application.GoogleProjectId = "test-project"
	config.Application.GoogleLocation = "us-central1"
	config.Application.ThreadPoolSize = 2

	config.Generation.ImageModel = "default"
	config.Generation.VideoModel = "default"
	config.Generation.DefaultAspectRatio = "16:9"

	config.Retry.MaxAttempts = 3
	config.Retry.InitialDelayMs = 1

	// A negative interval keeps the poller's timer disarmed; tests drive
	// rounds through PollOnce.
	config.Poller.IntervalSeconds = -1
	config.Poller.MaxAttempts = 5

	config.Scheduler.MaxConcurrent = 2
	config.Scheduler.ContinuityDelayMs = 0

	config.ImageModels["default"] = cloud.VertexAiImageModel{
		Model:     "gemini-test-image",
		RateLimit: 100,
	}
	config.VideoModels["default"] = cloud.VertexAiVideoModel{
		Model:     "veo-test",
		RateLimit: 100,
	}
	config.StylePresets["cinematic"] = cloud.StylePreset{
		Name:        "Cinematic",
		Instruction: "Render in a cinematic photographic style with natural film grain.",
	}
	return config
}
