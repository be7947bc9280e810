package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/weavechat/weavechat/pkg/workflow"
)

const localChunkSize = 24

// Local is an in-process engine used when no external engine is configured.
// It echoes the turn input back as the assistant reply, streamed in small
// chunks, which keeps the full send/stream/stop surface exercisable in
// development.
type Local struct {
	mu    sync.Mutex
	execs map[string]*localExecution
}

func NewLocal() *Local {
	return &Local{execs: make(map[string]*localExecution)}
}

type localExecution struct {
	id     string
	cancel context.CancelFunc
	done   chan Result
}

func (e *localExecution) ID() string          { return e.id }
func (e *localExecution) Done() <-chan Result { return e.done }

func (l *Local) Start(ctx context.Context, prepared *workflow.Prepared, sink Sink) (Execution, error) {
	input, _ := prepared.TriggerInput["input"].(string)

	runCtx, cancel := context.WithCancel(context.Background())
	exec := &localExecution{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan Result, 1),
	}

	l.mu.Lock()
	l.execs[exec.id] = exec
	l.mu.Unlock()

	go l.run(runCtx, exec, input, sink)
	return exec, nil
}

func (l *Local) run(ctx context.Context, exec *localExecution, input string, sink Sink) {
	defer func() {
		l.mu.Lock()
		delete(l.execs, exec.id)
		l.mu.Unlock()
	}()

	reply := fmt.Sprintf("You said: %s", input)
	for start := 0; start < len(reply); start += localChunkSize {
		select {
		case <-ctx.Done():
			exec.done <- Result{Cancelled: true}
			return
		default:
		}
		end := start + localChunkSize
		if end > len(reply) {
			end = len(reply)
		}
		sink.Chunk(reply[start:end])
	}
	exec.done <- Result{Output: reply}
}

// Resume is not supported: the local engine never pauses in a waiting state.
func (l *Local) Resume(ctx context.Context, executionID string, input string, sink Sink) (Execution, error) {
	return nil, errors.Errorf("execution %s is not waiting for input", executionID)
}

func (l *Local) Stop(ctx context.Context, executionID string) error {
	l.mu.Lock()
	exec, ok := l.execs[executionID]
	l.mu.Unlock()
	if !ok {
		return errors.Errorf("execution %s not found", executionID)
	}
	exec.cancel()
	return nil
}
