package runtime

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/aretw0/redline/pkg/domain"
)

// LifecycleEvent moves a task between statuses.
type LifecycleEvent string

const (
	// LifecycleSuspend halts a running task at the approval gate.
	LifecycleSuspend LifecycleEvent = "suspend"
	// LifecycleClaim marks a suspended task as being resumed.
	LifecycleClaim LifecycleEvent = "claim"
	// LifecycleRelease returns a claimed task to the approval gate.
	LifecycleRelease LifecycleEvent = "release"
	// LifecycleResume lets a claimed task run again.
	LifecycleResume LifecycleEvent = "resume"
	// LifecycleFinish completes a running task.
	LifecycleFinish LifecycleEvent = "finish"
)

// State constants for statekit. They must match the domain.TaskStatus values.
const (
	stateRunning   = "running"
	stateAwaiting  = "awaiting_approval"
	stateResuming  = "resuming"
	stateCompleted = "completed"
)

func init() {
	pairs := map[string]domain.TaskStatus{
		stateRunning:   domain.StatusRunning,
		stateAwaiting:  domain.StatusAwaitingApproval,
		stateResuming:  domain.StatusResuming,
		stateCompleted: domain.StatusCompleted,
	}
	for fsm, status := range pairs {
		if fsm != string(status) {
			panic(fmt.Sprintf("FSM state %q does not match TaskStatus %q", fsm, status))
		}
	}
}

type lifecycleContext struct {
	TaskID string
}

// InvalidTransitionError reports an event that is not allowed from a status.
type InvalidTransitionError struct {
	TaskID string
	From   domain.TaskStatus
	Event  LifecycleEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: '%s' is not allowed while the task is '%s'", e.TaskID, e.Event, e.From)
}

// Transition applies event to a task in status from and returns the new status.
func Transition(taskID string, from domain.TaskStatus, event LifecycleEvent) (domain.TaskStatus, error) {
	builder := statekit.NewMachine[lifecycleContext]("task-lifecycle").
		WithInitial(statekit.StateID(from)).
		WithContext(lifecycleContext{TaskID: taskID})

	builder.State(stateRunning).
		On(statekit.EventType(LifecycleSuspend)).Target(stateAwaiting).
		On(statekit.EventType(LifecycleFinish)).Target(stateCompleted).
		Done()

	builder.State(stateAwaiting).
		On(statekit.EventType(LifecycleClaim)).Target(stateResuming).
		Done()

	builder.State(stateResuming).
		On(statekit.EventType(LifecycleResume)).Target(stateRunning).
		On(statekit.EventType(LifecycleRelease)).Target(stateAwaiting).
		Done()

	builder.State(stateCompleted).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return from, fmt.Errorf("build task lifecycle: %w", err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	before := domain.TaskStatus(interp.State().Value)
	interp.Send(statekit.Event{Type: statekit.EventType(event)})
	after := domain.TaskStatus(interp.State().Value)

	if before == after {
		return from, &InvalidTransitionError{TaskID: taskID, From: from, Event: event}
	}
	return after, nil
}
