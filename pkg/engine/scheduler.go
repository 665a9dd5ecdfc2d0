package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/weftlabs/weft/pkg/models"
)

// enqueue appends an execution id to the admission queue and wakes the
// dispatcher.
func (e *Engine) enqueue(id string) {
	e.mu.Lock()
	e.queue = append(e.queue, id)
	queueDepth := len(e.queue)
	e.mu.Unlock()

	if e.collector != nil {
		e.collector.QueueDepth.Set(float64(queueDepth))
	}

	e.wake()
}

func (e *Engine) wake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

// dispatch is the admission loop. It moves queued executions into the
// active set while slots remain under MaxConcurrentExecutions and launches
// one processor goroutine per admitted execution.
func (e *Engine) dispatch() {
	defer close(e.done)

	for {
		select {
		case <-e.runCtx.Done():
			return
		case <-e.wakeCh:
			e.admit()
		}
	}
}

// admit drains the queue into free slots. It stops when the queue is empty
// or every slot is taken; releasing a slot wakes the dispatcher again.
func (e *Engine) admit() {
	for {
		e.mu.Lock()

		if len(e.queue) == 0 || len(e.active) >= e.config.MaxConcurrentExecutions {
			e.mu.Unlock()

			return
		}

		id := e.queue[0]
		e.queue = e.queue[1:]
		e.active[id] = struct{}{}

		queueDepth := len(e.queue)
		activeCount := len(e.active)
		e.mu.Unlock()

		if e.collector != nil {
			e.collector.QueueDepth.Set(float64(queueDepth))
			e.collector.ActiveExecutions.Set(float64(activeCount))
		}

		go e.process(id)
	}
}

// process runs one admitted execution and releases its slot afterwards. A
// panicking step handler fails the execution instead of taking the engine
// down.
func (e *Engine) process(id string) {
	ctx := e.runCtx

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Execution processor panicked",
				"execution_id", id, "panic", r)
			e.markFailed(ctx, id, fmt.Sprintf("processor panic: %v", r))
		}

		e.release(id)
	}()

	e.runExecution(ctx, id)
}

func (e *Engine) release(id string) {
	e.mu.Lock()
	delete(e.active, id)
	delete(e.control, id)
	activeCount := len(e.active)
	e.mu.Unlock()

	if e.collector != nil {
		e.collector.ActiveExecutions.Set(float64(activeCount))
	}

	e.wake()
}

func (e *Engine) markFailed(ctx context.Context, id, reason string) {
	execution, err := e.store.ExecutionByID(ctx, id)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load execution for failure mark",
			"execution_id", id, "error", err)

		return
	}

	if execution.Terminal() {
		return
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusFailed
	execution.Error = reason
	execution.FinishedAt = &now

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist execution failure",
			"execution_id", id, "error", err)
	}
}
