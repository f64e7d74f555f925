package models

import "testing"

func TestEvent_IsRunEvent(t *testing.T) {
	runEvents := []string{
		EventTypeRunStarted, EventTypeRunCompleted, EventTypeRunFailed,
		EventTypeRunCancelled, EventTypeRunPaused, EventTypeRunResumed,
	}
	for _, et := range runEvents {
		e := &Event{EventType: et}
		if !e.IsRunEvent() {
			t.Errorf("expected %s to be a run event", et)
		}
		if e.IsNodeEvent() {
			t.Errorf("expected %s to not be a node event", et)
		}
	}
}

func TestEvent_IsNodeEvent(t *testing.T) {
	nodeEvents := []string{
		EventTypeNodeReady, EventTypeNodeBlocked, EventTypeNodeStarted, EventTypeNodePolling,
		EventTypeNodeCompleted, EventTypeNodeFailed, EventTypeNodeSkipped, EventTypeNodeRetrying,
		EventTypeNodeWaiting, EventTypeNodePaused, EventTypeNeedUserConfirm,
		EventTypeSolverApplied, EventTypeQueryResult, EventTypeTxSent, EventTypeTxConfirmed,
	}
	for _, et := range nodeEvents {
		e := &Event{EventType: et}
		if !e.IsNodeEvent() {
			t.Errorf("expected %s to be a node event", et)
		}
		if e.IsRunEvent() {
			t.Errorf("expected %s to not be a run event", et)
		}
	}
}

func TestEvent_PlanAndEnginePlanAndErrorAreNeitherRunNorNode(t *testing.T) {
	for _, et := range []string{EventTypePlanReady, EventTypeEnginePaused, EventTypeError, EventTypeCheckpointSaved} {
		e := &Event{EventType: et}
		if e.IsRunEvent() || e.IsNodeEvent() {
			t.Errorf("expected %s to be neither a run nor node event", et)
		}
	}
}

func TestEvent_Validate(t *testing.T) {
	if err := (&Event{}).Validate(); err == nil {
		t.Error("expected error for missing run_id")
	}
	if err := (&Event{RunID: "r1"}).Validate(); err == nil {
		t.Error("expected error for missing event_type")
	}
	if err := (&Event{RunID: "r1", EventType: EventTypeNodeReady}).Validate(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestEvent_NodeID(t *testing.T) {
	e := &Event{Payload: map[string]interface{}{"node_id": "n1"}}
	if got := e.NodeID(); got != "n1" {
		t.Errorf("expected n1, got %s", got)
	}

	empty := &Event{}
	if got := empty.NodeID(); got != "" {
		t.Errorf("expected empty node id, got %s", got)
	}
}

func TestEvent_ErrorMessage(t *testing.T) {
	e := &Event{Payload: map[string]interface{}{"error": "boom"}}
	if got := e.ErrorMessage(); got != "boom" {
		t.Errorf("expected boom, got %s", got)
	}

	empty := &Event{}
	if got := empty.ErrorMessage(); got != "" {
		t.Errorf("expected empty error message, got %s", got)
	}
}
