package simulator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openlis/astmsim/logger"
)

// TaskFunc performs one unit of work inside a goroutine managed by the
// TaskManager. It returns true to keep the task running or false to stop it.
type TaskFunc func() bool

// TaskCancelFunc runs when a managed goroutine exits or is canceled, for
// cleanup of resources the task holds.
type TaskCancelFunc func()

// TaskManager manages the lifecycle of the simulator's goroutines: the
// accept loop, per-connection sessions, and the bridge forwarder.
//
// Cancellation flows through a context derived from the parent passed to
// NewTaskManager: Stop signals every running task and Wait blocks until they
// have all terminated. After Wait returns the manager is reusable.
type TaskManager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protects ctx and cancel
	taskMu sync.RWMutex // protects task creation during Wait
}

// NewTaskManager creates a TaskManager with ctx as the parent context.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	mgr := &TaskManager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the manager's current run context. Tasks that block
// outside the manager's loop select on it to honor Stop.
func (mgr *TaskManager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a goroutine that calls taskFunc in a loop until it returns
// false or the manager stops.
func (mgr *TaskManager) Start(name string, taskFunc TaskFunc) error {
	mgr.logger.Debug("start task", "name", name)

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		mgr.runTaskLoop(name, taskFunc)
	})

	return starter.waitForStart()
}

// StartWake starts a goroutine that calls taskFunc after every signal on
// wake, until taskFunc returns false, wake closes, or the manager stops.
// taskCancelFunc, when non-nil, runs as the goroutine exits.
func (mgr *TaskManager) StartWake(name string, wake <-chan struct{}, taskFunc TaskFunc, taskCancelFunc TaskCancelFunc) error {
	mgr.logger.Debug("start wake task", "name", name)

	if wake == nil {
		return fmt.Errorf("simulator: wake channel for task %s is nil", name)
	}

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		if taskCancelFunc != nil {
			defer taskCancelFunc()
		}

		for {
			ctx := mgr.Context()
			select {
			case <-ctx.Done():
				return
			case _, ok := <-wake:
				if !ok {
					mgr.logger.Debug("wake channel closed", "name", name)
					return
				}
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	})

	return starter.waitForStart()
}

// callWithRecover calls a task function with panic protection.
func (mgr *TaskManager) callWithRecover(name string, fn func() bool) bool {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	return fn()
}

// Stop signals all running goroutines to terminate.
func (mgr *TaskManager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until all goroutines have terminated, then re-arms the manager
// for another Start cycle.
func (mgr *TaskManager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *TaskManager) TaskCount() int {
	return int(mgr.count.Load())
}

// runTaskLoop runs a task function in a loop with context cancellation.
func (mgr *TaskManager) runTaskLoop(name string, taskFunc TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		ctx := mgr.Context()
		select {
		case <-ctx.Done():
			return
		default:
			if !taskFunc() {
				return
			}
		}
	}
}

// taskStarter encapsulates the common startup handshake.
type taskStarter struct {
	mgr     *TaskManager
	name    string
	started chan error
}

func (mgr *TaskManager) newTaskStarter(name string) (*taskStarter, error) {
	select {
	case <-mgr.Context().Done():
		return nil, fmt.Errorf("simulator: task manager already stopped")
	default:
	}

	return &taskStarter{
		mgr:     mgr,
		name:    name,
		started: make(chan error, 1),
	}, nil
}

// startTask launches the goroutine and reports its startup status on the
// started channel.
func (s *taskStarter) startTask(taskBody func()) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)

	go func() {
		defer s.mgr.wg.Done()

		s.mgr.count.Add(1)
		s.started <- nil

		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug(fmt.Sprintf("%s task terminated", s.name), "task_count", s.mgr.TaskCount())
		}()

		taskBody()
	}()
}

// waitForStart waits for the goroutine to report startup.
func (s *taskStarter) waitForStart() error {
	select {
	case err := <-s.started:
		if err != nil {
			return fmt.Errorf("simulator: failed to start %s: %w", s.name, err)
		}

		return nil

	case <-time.After(5 * time.Second):
		return fmt.Errorf("simulator: timeout waiting for %s to start", s.name)

	case <-s.mgr.Context().Done():
		return fmt.Errorf("simulator: context canceled while starting %s", s.name)
	}
}
