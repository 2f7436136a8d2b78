package engine

import (
	"fmt"
	"time"

	"github.com/petrijr/fluxotrace/pkg/api"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

// stepEvent builds a step lifecycle event whose step name equals its group id.
func stepEvent(kind api.EventKind, group string, attempt, sec int) api.RawEvent {
	return api.RawEvent{
		ID:        fmt.Sprintf("%s-%s-%d-%d", kind, group, attempt, sec),
		GroupID:   group,
		StepName:  group,
		Kind:      kind,
		Attempt:   attempt,
		CreatedAt: at(sec),
	}
}

func sleeping(group string, sec int, until time.Time) api.RawEvent {
	ev := stepEvent(api.EventStepSleeping, group, 0, sec)
	ev.Sleep = &api.SleepPayload{Until: until}
	return ev
}

func waiting(group string, sec int, eventName string, timeout time.Time) api.RawEvent {
	ev := stepEvent(api.EventStepWaitingForEvent, group, 0, sec)
	ev.WaitForEvent = &api.WaitForEventPayload{EventName: eventName, Timeout: timeout}
	return ev
}

func waitResult(group string, sec int, timedOut bool, matched string) api.RawEvent {
	ev := stepEvent(api.EventStepWaitResult, group, 0, sec)
	ev.WaitResult = &api.WaitResultPayload{Timeout: timedOut}
	if matched != "" {
		ev.WaitResult.EventID = &matched
	}
	return ev
}

func functionEvent(kind api.EventKind, sec int) api.RawEvent {
	return api.RawEvent{
		ID:        fmt.Sprintf("%s-%d", kind, sec),
		Kind:      kind,
		CreatedAt: at(sec),
	}
}

func happyPath() []api.RawEvent {
	return []api.RawEvent{
		stepEvent(api.EventStepScheduled, "A", 0, 1),
		stepEvent(api.EventStepStarted, "A", 0, 2),
		stepEvent(api.EventStepCompleted, "A", 0, 3),
	}
}

func oneRetry() []api.RawEvent {
	return []api.RawEvent{
		stepEvent(api.EventStepScheduled, "A", 0, 1),
		stepEvent(api.EventStepStarted, "A", 0, 2),
		stepEvent(api.EventStepErrored, "A", 0, 3),
		stepEvent(api.EventStepScheduled, "A", 1, 4),
		stepEvent(api.EventStepStarted, "A", 1, 5),
		stepEvent(api.EventStepCompleted, "A", 1, 6),
	}
}

// mixedRun exercises every step kind plus function-level events.
func mixedRun() []api.RawEvent {
	invoke := stepEvent(api.EventStepInvoking, "D", 0, 9)
	invoke.InvokeFunction = &api.InvokeFunctionPayload{
		CorrelationID: "corr-1",
		FunctionID:    "app-child",
		Timeout:       at(600),
	}
	runID := "run-child"
	invokeDone := stepEvent(api.EventStepCompleted, "D", 0, 12)
	invokeDone.InvokeFunctionResult = &api.InvokeFunctionResultPayload{RunID: &runID}

	return []api.RawEvent{
		functionEvent(api.EventFunctionScheduled, 0),
		functionEvent(api.EventFunctionStarted, 1),
		stepEvent(api.EventStepScheduled, "A", 0, 2),
		stepEvent(api.EventStepStarted, "A", 0, 3),
		stepEvent(api.EventStepErrored, "A", 0, 4),
		stepEvent(api.EventStepStarted, "A", 1, 5),
		stepEvent(api.EventStepCompleted, "A", 1, 6),
		sleeping("B", 7, at(60)),
		waiting("C", 8, "app/approved", at(300)),
		invoke,
		waitResult("B", 10, false, ""),
		waitResult("C", 11, false, "evt-approval"),
		invokeDone,
		functionEvent(api.EventFunctionCompleted, 13),
	}
}
