// Package engine defines the boundary to the workflow execution engine.
// The chat service launches prepared workflows here and observes their
// lifecycle through the returned Execution handle; it never blocks on one.
package engine

import (
	"context"

	"github.com/weavechat/weavechat/pkg/workflow"
)

// Sink receives streamed output for one execution as it is produced.
type Sink interface {
	Chunk(content string)
}

// Result is the terminal outcome of an execution. Exactly one of the
// outcome fields describes it: Err for failures, Cancelled for stopped
// executions, Waiting when the workflow paused for further input, and
// otherwise a successful completion with Output holding the full reply.
type Result struct {
	Output    string
	Waiting   bool
	Cancelled bool
	Err       error
}

// Execution is a handle to one running workflow execution.
type Execution interface {
	ID() string
	// Done delivers exactly one Result when the execution reaches a
	// terminal or paused state.
	Done() <-chan Result
}

// Engine starts, resumes and stops workflow executions.
type Engine interface {
	// Start launches the prepared workflow asynchronously. The returned
	// Execution is live before Start returns; streamed output goes to sink.
	Start(ctx context.Context, prepared *workflow.Prepared, sink Sink) (Execution, error)
	// Resume feeds input to an execution paused in a waiting state and
	// returns a fresh handle for the continued run.
	Resume(ctx context.Context, executionID string, input string, sink Sink) (Execution, error)
	// Stop aborts a running execution. Stopping an unknown or finished
	// execution is an error.
	Stop(ctx context.Context, executionID string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(content string)

func (f SinkFunc) Chunk(content string) { f(content) }
