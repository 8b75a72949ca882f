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

// Package cor (Chain of Responsibility) provides the fundamental building blocks
// for creating workflows as a sequence of commands. This file defines
// `BaseChain`, the default `Chain` implementation that the generation
// pipelines are built from.
//
// Logic Flow:
// A chain is itself a `Command`, so whole pipelines nest inside other
// pipelines (the storyboard service registers each scene workflow this way).
// Execution walks the command list in order under one OpenTelemetry span,
// opening a child span per step. By default the walk stops at the first step
// that records an error on the shared context; that is what lets a failed
// provider call halt a generation before the settlement step runs, leaving
// the failure handling to the workflow that owns the chain. Between steps
// the value a command wrote under `CtxOut` is moved to `CtxIn`, which is how
// a generation job travels through resolve, assemble, generate, persist and
// settle without the commands knowing about each other.
package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain executes an ordered list of commands against a shared context.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool
	commands          []Command
}

// NewBaseChain is the constructor for BaseChain.
//
// Inputs:
//   - name: A string name for this chain, used for logging and telemetry.
//
// Outputs:
//   - *BaseChain: A pointer to the newly instantiated chain.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// ContinueOnFailure selects the error behavior: when true the chain runs
// every command even after one records an error; when false (the default)
// the first error stops the walk. Returns the chain for fluent building.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// AddCommand appends a command to the execution order. Returns the chain for
// fluent building.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable reports whether the chain can run, which only requires a live
// Go context on the shared cor.Context.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context.GetContext() != nil
}

// Execute runs the commands in order, tracing each step and piping each
// step's output into the next step's input.
//
// Inputs:
//   - chCtx: The shared `cor.Context` for the whole workflow execution.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()
	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
		commandSpan.SetName(command.GetName())

		if chCtx.HasErrors() && !c.continueOnFailure {
			commandSpan.SetStatus(codes.Error, "previous error on chain; skipping execution")
			commandSpan.End()
			break
		}

		if command.IsExecutable(chCtx) {
			// The command runs under its own span's context, then the
			// shared context is reset to the chain's so sibling steps trace
			// as siblings rather than as a deepening nest.
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			commandSpan.SetStatus(codes.Error, fmt.Sprintf("command not executable: %s", command.GetName()))
		}

		if chCtx.HasErrors() {
			commandSpan.SetStatus(codes.Error, "error during or after command execution")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		pipe(chCtx)
	}

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	}
}

// pipe moves the finished command's output slot into the input slot so the
// next command picks it up, and clears both slots' leftovers.
func pipe(chCtx Context) {
	outputValue := chCtx.Get(CtxOut)
	chCtx.Remove(CtxIn)
	if outputValue != nil {
		chCtx.Add(CtxIn, outputValue)
	}
	chCtx.Remove(CtxOut)
}
