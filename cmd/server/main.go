// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the storyboard generation backend server.
//
// This application sets up and runs a web server using the Gin framework. It provides a REST API
// for authoring a storyboard project and driving AI generation of scene images and videos. The
// server is instrumented with OpenTelemetry for logging, tracing, and metrics, providing
// observability into the application's performance.
//
// The main function initializes the application's configuration, sets up logging and telemetry,
// and initializes the application state, including clients for Google Cloud services. It defines
// API routes for reading and updating the project, generating single scenes, running batch
// generation, and inspecting run status.
//
// Functions:
//   - main: The main entry point of the application. It sets up the server, configures routes,
//     initializes services, and handles graceful shutdown.
//   - StoryboardRouter: Sets up the API routes for the storyboard read model, project updates,
//     and the generation operations.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/model"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/services"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/core/workflow"
	"github.com/jaycherian/gcp-go-storyboard-gen/internal/telemetry"
)

// main is the primary entry point for the application.
// It orchestrates the setup of logging, telemetry, configuration, cloud services,
// the web server and API routes. It also handles graceful shutdown of the server
// upon receiving an interrupt signal.
func main() {
	// Initialize structured logging for the application.
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	// Create a new context that can be cancelled. This is the root context for the application.
	ctx, cancel := context.WithCancel(context.Background())
	// Defer the cancel function to be called when main exits, ensuring all child contexts are cancelled.
	defer cancel()

	// Load application configuration from TOML files.
	config := GetConfig()

	// Initialize OpenTelemetry for distributed tracing and metrics.
	_, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	// Initialize the application's state, including all necessary service clients.
	InitState(ctx)
	slog.Info("Initialized State")

	// Set up the Gin web server with default middleware.
	r := gin.Default()

	// Add OpenTelemetry middleware to the Gin router to trace incoming requests.
	// This will automatically create spans for each request.
	r.Use(otelgin.Middleware("storyboard-gen-server"))

	// Configure Cross-Origin Resource Sharing (CORS) middleware.
	// Using cors.Default() provides a permissive configuration suitable for development,
	// allowing requests from any origin.
	r.Use(cors.Default())

	// Group routes under the "/api/v1" prefix.
	apiV1 := r.Group("/api/v1")
	{
		// Register the storyboard routes within the API group.
		StoryboardRouter(apiV1)
		// Register the statistics dashboard routes.
		Dashboard(apiV1)
	}

	// Configure the HTTP server with the address and handler.
	srv := &http.Server{
		Addr:         ":8080",
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	// Start the HTTP server in a separate goroutine so it doesn't block the main thread.
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready on port 8080")

	// Set up a channel to listen for OS interrupt signals (e.g., Ctrl+C).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	// Block until a signal is received on the quit channel.
	<-quit
	slog.Info("Shutdown Server ...")

	// Stop the poller timer; outstanding operations resume on next start.
	state.storyboard.Close()

	// Create a context with a timeout for the graceful shutdown.
	// This gives active requests 5 seconds to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Attempt to gracefully shut down the server.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}

	log.Println("Server exiting")
}

// StoryboardRouter sets up the API routes for storyboard actions.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the storyboard routes will be added. This allows
//     nesting routes under a common path prefix (e.g., "/api/v1").
//
// Outputs:
//   - This function does not return any values. It modifies the provided *gin.RouterGroup
//     by adding new route handlers.
//
// This function defines the following endpoints:
//   - PUT /storyboard/project: Replaces the project state.
//   - GET /storyboard/scenes: Returns the scene read model in sequence order.
//   - GET /storyboard/scenes/:id: Returns the read model for one scene.
//   - POST /storyboard/scenes/:id/generate: Starts an image generation (or refinement) for one scene.
//   - POST /storyboard/scenes/:id/generate-video: Starts a video generation for one scene.
//   - POST /storyboard/generate: Starts a batch generation run.
//   - POST /storyboard/stop: Requests a cooperative stop of the active run.
//   - GET /storyboard/status: Returns the batch run status and poll backlog.
func StoryboardRouter(r *gin.RouterGroup) {
	// Group all storyboard routes under the "/storyboard" path.
	storyboard := r.Group("/storyboard")
	{
		// Handler for PUT /storyboard/project
		storyboard.PUT("/project", func(c *gin.Context) {
			var project model.Project
			if err := c.ShouldBindJSON(&project); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			state.storyboard.UpdateProject(&project)
			c.Status(http.StatusNoContent)
		})

		// Handler for GET /storyboard/scenes
		storyboard.GET("/scenes", func(c *gin.Context) {
			c.JSON(http.StatusOK, state.storyboard.Scenes())
		})

		// Handler for GET /storyboard/scenes/:id
		storyboard.GET("/scenes/:id", func(c *gin.Context) {
			scene, err := state.storyboard.Scene(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, scene)
		})

		// Handler for POST /storyboard/scenes/:id/generate
		// The optional body carries a refinement delta against the existing image.
		storyboard.POST("/scenes/:id/generate", func(c *gin.Context) {
			var body struct {
				RefinementText string `json:"refinement_text"`
			}
			// The body is optional; ignore bind errors on an empty request.
			_ = c.ShouldBindJSON(&body)

			err := state.storyboard.GenerateSceneImage(state.ctx, c.Param("id"), body.RefinementText)
			if err != nil {
				c.JSON(generationErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			c.Status(http.StatusAccepted)
		})

		// Handler for POST /storyboard/scenes/:id/generate-video
		storyboard.POST("/scenes/:id/generate-video", func(c *gin.Context) {
			err := state.storyboard.GenerateSceneVideo(state.ctx, c.Param("id"))
			if err != nil {
				c.JSON(generationErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			c.Status(http.StatusAccepted)
		})

		// Handler for POST /storyboard/generate
		storyboard.POST("/generate", func(c *gin.Context) {
			run, err := state.storyboard.GenerateAll(state.ctx)
			if err != nil {
				c.JSON(generationErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, run)
		})

		// Handler for POST /storyboard/stop
		storyboard.POST("/stop", func(c *gin.Context) {
			if !state.storyboard.Stop() {
				c.JSON(http.StatusConflict, gin.H{"error": "no batch run is active"})
				return
			}
			c.Status(http.StatusAccepted)
		})

		// Handler for GET /storyboard/status
		storyboard.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, state.storyboard.Status())
		})
	}
}

// generationErrorStatus maps service errors onto HTTP status codes: unknown
// scenes are 404, duplicate admissions and overlapping runs are 409,
// precondition failures are 400, and a missing provider is 503.
func generationErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrSceneNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrGenerationInFlight),
		errors.Is(err, services.ErrVideoInFlight),
		errors.Is(err, services.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrMissingImage),
		errors.Is(err, services.ErrEmptyDescription):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNoCredentials):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
