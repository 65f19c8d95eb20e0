package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/pipeline"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Job lifecycle events
const (
	EventStart    = "start"
	EventComplete = "complete"
	EventFail     = "fail"
)

// ErrStopped is returned for jobs submitted after the pool was stopped.
var ErrStopped = errors.New("worker pool stopped")

// transitionFunc is called after every state change with the new state and,
// for failed jobs, the error message.
type transitionFunc func(state, errMsg string)

// Job is a submitted transcription request. It doubles as a future: Wait
// blocks until the job has completed or failed.
type Job struct {
	ID        string
	Request   pipeline.Request
	CreatedAt time.Time

	machine *fsm.FSM
	done    chan struct{}
	once    sync.Once
	result  *pipeline.Result
	err     error
}

func newJob(id string, req pipeline.Request, onTransition transitionFunc) *Job {
	job := &Job{
		ID:        id,
		Request:   req,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
	job.machine = fsm.NewFSM(
		types.StatusQueued,
		fsm.Events{
			{Name: EventStart, Src: []string{types.StatusQueued}, Dst: types.StatusProcessing},
			{Name: EventComplete, Src: []string{types.StatusProcessing}, Dst: types.StatusCompleted},
			{Name: EventFail, Src: []string{types.StatusQueued, types.StatusProcessing}, Dst: types.StatusFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onTransition == nil {
					return
				}
				errMsg := ""
				if len(e.Args) > 0 {
					if msg, ok := e.Args[0].(string); ok {
						errMsg = msg
					}
				}
				onTransition(e.Dst, errMsg)
			},
		},
	)
	return job
}

// State returns the current lifecycle state.
func (j *Job) State() string {
	return j.machine.Current()
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is cancelled.
func (j *Job) Wait(ctx context.Context) (*pipeline.Result, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Transitions run on a background context: fsm drops events whose context
// is already cancelled, and a cancelled job must still reach FAILED.
func (j *Job) start() error {
	return j.machine.Event(context.Background(), EventStart)
}

func (j *Job) complete(res *pipeline.Result) {
	j.once.Do(func() {
		j.result = res
		if err := j.machine.Event(context.Background(), EventComplete); err != nil {
			j.result, j.err = nil, err
		}
		close(j.done)
	})
}

func (j *Job) fail(err error) {
	j.once.Do(func() {
		j.err = err
		_ = j.machine.Event(context.Background(), EventFail, err.Error())
		close(j.done)
	})
}
