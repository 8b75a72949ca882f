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

// Package telemetry provides utilities for setting up and configuring
// application observability, including logging, tracing, and metrics.
// This file wires slog into the Cloud Logging structured format and
// correlates every record with the OpenTelemetry span active on its
// context, so a generation chain's logs land next to its trace.
package telemetry

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// spanContextLogHandler decorates another slog.Handler, stamping each record
// with the trace identifiers of the span on the record's context. Cloud
// Logging matches these fields against Cloud Trace, which is what links a
// scene generation's log lines to its chain spans.
type spanContextLogHandler struct {
	slog.Handler
}

func handlerWithSpanContext(handler slog.Handler) *spanContextLogHandler {
	return &spanContextLogHandler{Handler: handler}
}

// Handle injects the trace id, span id and sampling flag under the
// logging.googleapis.com keys when the context carries a valid span, then
// delegates to the wrapped handler.
// See: https://cloud.google.com/logging/docs/structured-logging#special-payload-fields
func (t *spanContextLogHandler) Handle(ctx context.Context, record slog.Record) error {
	if s := trace.SpanContextFromContext(ctx); s.IsValid() {
		record.AddAttrs(
			slog.Any("logging.googleapis.com/trace", s.TraceID()),
			slog.Any("logging.googleapis.com/spanId", s.SpanID()),
			slog.Bool("logging.googleapis.com/trace_sampled", s.TraceFlags().IsSampled()),
		)
	}
	return t.Handler.Handle(ctx, record)
}

// renameForCloudLogging maps slog's default attribute keys onto the field
// names Cloud Logging parses specially, so records carry a proper severity
// and timestamp in the console instead of landing as opaque payload.
// https://cloud.google.com/logging/docs/reference/v2/rest/v2/LogEntry#LogSeverity
func renameForCloudLogging(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		// slog says "WARN" where the LogSeverity enum says "WARNING".
		if level := a.Value.Any().(slog.Level); level == slog.LevelWarn {
			a.Value = slog.StringValue("WARNING")
		}
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// SetupLogging installs the process-wide loggers: both the standard log
// package and slog write JSON-formatted records to stdout and to a local
// log file, with trace correlation on every slog record. Call once at
// startup before any request handling begins.
func SetupLogging() {
	file, _ := os.Create("storyboard-gen.log")
	sink := io.MultiWriter(os.Stdout, file)

	// The plain log package serves the fatal startup paths; give it the
	// same destinations and a recognizable prefix.
	log.SetOutput(sink)
	log.SetPrefix("[INFO] ")
	log.SetFlags(log.Ldate | log.Ltime)

	jsonHandler := slog.NewJSONHandler(sink, &slog.HandlerOptions{ReplaceAttr: renameForCloudLogging})
	slog.SetDefault(slog.New(handlerWithSpanContext(jsonHandler)))
	slog.SetLogLoggerLevel(slog.LevelInfo)
}
