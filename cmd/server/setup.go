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

// Package main contains the setup and initialization logic for the application's state.
// This file is responsible for creating and managing a centralized state manager
// that holds all shared dependencies, such as configuration, Google Cloud service clients,
// and the storyboard orchestration service.
//
// It ensures that the application is configured correctly based on the environment,
// initializes all necessary clients (Storage, GenAI), and wires the generation
// pipeline behind the storyboard service.
//
// Functions:
//   - SetupOS: Configures necessary environment variables for the application,
//     pointing to the correct configuration files.
//   - GetConfig: A singleton function that loads the application's configuration
//     from TOML files. It ensures the configuration is loaded only once.
//   - InitState: The core initialization function that creates all service clients
//     and the storyboard service.
package main

import (
	"context"
	"log"
	"os"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/cloud"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/workflow"
)

// StateManager holds all the shared dependencies for the application, acting as a
// centralized container for service clients and configurations. This avoids the
// need for global variables and makes dependency management cleaner.
type StateManager struct {
	ctx        context.Context
	config     *cloud.Config
	cloud      *cloud.ServiceClients
	storyboard *workflow.StoryboardService
}

// state is a package-level variable that holds the single instance of StateManager.
var state = &StateManager{}

// SetupOS sets the necessary environment variables that the configuration loader
// uses to find the correct TOML files.
//
// This function sets the prefix for the configuration directory and specifies
// the runtime environment (e.g., "local", "test", "prod"), allowing for
// environment-specific overrides of the base configuration.
//
// Outputs:
//   - error: An error if setting any of the environment variables fails.
func SetupOS() (err error) {
	// Set the directory where configuration files are located.
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// Set the current runtime environment to "local". The config loader will
	// look for a ".env.local.toml" file to override base settings.
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

// GetConfig provides a singleton instance of the application configuration.
// It ensures that the configuration is loaded from the file system only once.
// On the first call, it sets up the OS environment and loads the configuration
// from the TOML files. Subsequent calls return the cached configuration.
//
// Outputs:
//   - *cloud.Config: A pointer to the loaded application configuration struct.
func GetConfig() *cloud.Config {
	// If the config has not been loaded yet...
	if state.config == nil {
		// Set up the environment variables required for config loading.
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os environment: %v\n", err)
		}
		// Create a new, empty config struct.
		config := cloud.NewConfig()
		// Load the configuration from the .toml files into the struct.
		cloud.LoadConfig(&config)
		// Store the loaded config in the state manager.
		state.config = config
	}
	// Return the cached config.
	return state.config
}

// InitState initializes the entire application state.
// It orchestrates the creation of all necessary services and clients based on the
// application configuration and wires them together.
//
// Inputs:
//   - ctx: The root context.Context for the application, used for managing
//     the lifecycle of client connections and background processes.
//
// This function performs the following steps:
//  1. Loads the application configuration.
//  2. Initializes the Google Cloud service clients (Storage, GenAI).
//  3. Seeds the scene state store with the example project so a fresh server
//     has something to author against.
//  4. Wires the storyboard service over the configured image and video
//     generators and the GCS artifact store, and starts the poller.
func InitState(ctx context.Context) {
	// Get the application configuration.
	config := GetConfig()
	state.ctx = ctx

	// Initialize all the base Google Cloud service clients.
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	// Resolve the active generators from the configured logical keys.
	var images cloud.ImageGenerator
	if generator, ok := cloudClients.ImageGenerators[config.Generation.ImageModel]; ok {
		images = generator
	}
	var video cloud.VideoGenerator
	if generator, ok := cloudClients.VideoGenerators[config.Generation.VideoModel]; ok {
		video = generator
	}

	// Seed the store with the example project; PUT /storyboard/project
	// replaces it.
	store := services.NewSceneStateStore(model.GetExampleProject())

	// Wire the orchestration facade and bind the poller to the root context.
	state.storyboard = workflow.NewStoryboardService(config, store, images, video, cloudClients.Artifacts)
	state.storyboard.Start(ctx)
}
