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

// Package main contains the API route definitions for the server. This file
// defines the dashboard endpoint, which aggregates project-level generation
// statistics for a monitoring view.
//
// Functions:
//   - Dashboard: Sets up a route group for statistics-related endpoints.
package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProjectStats summarizes the generation state across the whole project.
type ProjectStats struct {
	TotalScenes     int `json:"total_scenes"`
	ScenesWithImage int `json:"scenes_with_image"`
	ScenesWithVideo int `json:"scenes_with_video"`
	Generating      int `json:"generating"`
	PendingVideos   int `json:"pending_videos"`
	FailedScenes    int `json:"failed_scenes"`
}

// Dashboard configures the API routes for the statistics view.
// It creates a new route group "/stats" nested under the main API router group.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the new "/stats" route group will be added.
//
// The GET endpoint at the root of the group walks the scene read model and
// tallies image, video, in-flight, and failure counts, alongside the number
// of video operations still being polled.
func Dashboard(r *gin.RouterGroup) {
	// Create a new router group for any statistics-related endpoints, prefixed with "/stats".
	stats := r.Group("/stats")
	{
		// Register a handler for a GET request to the "/stats" endpoint.
		stats.GET("", func(c *gin.Context) {
			out := ProjectStats{
				PendingVideos: state.storyboard.Status().PendingPolls,
			}
			for _, scene := range state.storyboard.Scenes() {
				out.TotalScenes++
				if scene.Image != nil {
					out.ScenesWithImage++
				}
				if scene.Video != nil {
					out.ScenesWithVideo++
				}
				if scene.IsGenerating {
					out.Generating++
				}
				if scene.LastError != "" {
					out.FailedScenes++
				}
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
