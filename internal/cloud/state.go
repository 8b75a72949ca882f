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
// This file is central to the application's architecture, as it's responsible for
// initializing and holding all the client objects needed to communicate with
// various Google Cloud services. It acts as a dependency injection container,
// creating a single, shared `ServiceClients` struct that can be passed throughout
// the application.
//
// Logic Flow:
//  1. The `NewCloudServiceClients` function is called at application startup.
//  2. It takes the application's configuration (`Config`) and a `context.Context`.
//  3. It initializes clients for Storage and GenAI (Vertex AI backend).
//  4. It then reads the configuration to create the quota-aware image models,
//     the video generator, and the artifact store.
//  5. All initialized clients and services are bundled into a single `ServiceClients` struct.
//  6. This struct is then used by other parts of the application (like API handlers and workflows)
//     to perform their tasks.
//
// Structs:
//   - ServiceClients: A container struct holding all initialized Google Cloud service clients
//     and service wrappers, acting as a central state manager for external connections.
//
// Functions:
//   - Close: A convenience method to gracefully shut down all client connections.
//   - NewCloudServiceClients: A factory function that creates and configures all necessary
//     Google Cloud clients based on the application's configuration.
package cloud

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients is a struct that acts as a central container for all the clients
// that interact with external Google Cloud services. This pattern is a form of
// dependency injection, making it easy to manage and share these client connections
// across the entire application.
type ServiceClients struct {
	StorageClient *storage.Client // Client for Google Cloud Storage (GCS).
	GenAIClient   *genai.Client   // Client for Google's Generative AI services (Vertex AI).
	Artifacts     *ArtifactStore  // The GCS-backed artifact store for generated media.

	// ImageModels holds the configured quota-aware image models, keyed by
	// the logical names from the config.
	ImageModels map[string]*QuotaAwareGenerativeAIModel
	// ImageGenerators exposes each image model behind the provider adapter
	// boundary, keyed the same way.
	ImageGenerators map[string]*GeminiImageGenerator
	// VideoGenerators holds the configured video generators, keyed by the
	// logical names from the config.
	VideoGenerators map[string]*VeoVideoGenerator
}

// Close is a utility method to gracefully shut down all the active client connections.
// While client connections are typically managed by the application's root context,
// this method provides an explicit way to release resources, which is especially
// useful in tests or for controlled shutdowns.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	// The genai client has no close function in the current library.
}

// NewCloudServiceClients is a factory function that initializes all required Google Cloud
// service clients based on the provided configuration. It serves as the main entry point
// for setting up the application's external dependencies.
//
// Inputs:
//   - ctx: The root context.Context for the application, used to manage the lifecycle of the clients.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: A pointer to the fully initialized ServiceClients struct.
//   - error: An error if any of the clients fail to initialize.
func NewCloudServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	// Create a new Google Cloud Storage client.
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	// Create a new Generative AI client against the Vertex AI backend.
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		log.Printf("error creating genai client: %v", err)
		return nil, err
	}

	// Iterate through the image model configurations, build a generation
	// config for each, and wrap it in the rate-limiting (`QuotaAware`) model.
	imageModels := make(map[string]*QuotaAwareGenerativeAIModel)
	imageGenerators := make(map[string]*GeminiImageGenerator)
	for key := range config.ImageModels {
		values := config.ImageModels[key]
		generateConfig := &genai.GenerateContentConfig{
			Temperature:        genai.Ptr[float32](values.Temperature),
			TopP:               genai.Ptr[float32](values.TopP),
			MaxOutputTokens:    values.MaxTokens,
			SafetySettings:     DefaultSafetySettings,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		}
		wrapped := NewQuotaAwareModel(generateConfig, values.Model, gc.Models, values.RateLimit)
		imageModels[key] = wrapped
		imageGenerators[key] = NewGeminiImageGenerator(wrapped)
	}

	// Build a video generator for each configured video model.
	videoGenerators := make(map[string]*VeoVideoGenerator)
	for key := range config.VideoModels {
		values := config.VideoModels[key]
		videoGenerators[key] = NewVeoVideoGenerator(gc, values.Model)
	}

	// Sanity-check the active model selections before anything depends on them.
	if key := config.Generation.ImageModel; key != "" {
		if _, ok := imageGenerators[key]; !ok {
			return nil, fmt.Errorf("generation.image_model %q has no entry in image_models", key)
		}
	}
	if key := config.Generation.VideoModel; key != "" {
		if _, ok := videoGenerators[key]; !ok {
			return nil, fmt.Errorf("generation.video_model %q has no entry in video_models", key)
		}
	}

	// Assemble the final ServiceClients struct with all the initialized clients and models.
	clients := &ServiceClients{
		StorageClient:   sc,
		GenAIClient:     gc,
		Artifacts:       NewArtifactStore(sc, config.Storage.ArtifactBucket),
		ImageModels:     imageModels,
		ImageGenerators: imageGenerators,
		VideoGenerators: videoGenerators,
	}

	return clients, nil
}
