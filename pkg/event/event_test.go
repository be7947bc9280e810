package event

import (
	"testing"
)

func TestEmitterOnReceivesMatchingEvents(t *testing.T) {
	e := NewEmitter()

	var got []Event
	e.On(MessageCreated, func(ev Event) { got = append(got, ev) })

	e.Emit(MessageCreatedEvent{SessionID: "s1", MessageID: "m1", Type: "human"})
	e.Emit(SessionDeletedEvent{SessionID: "s1"})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	mc, ok := got[0].(MessageCreatedEvent)
	if !ok {
		t.Fatalf("unexpected event type %T", got[0])
	}
	if mc.MessageID != "m1" {
		t.Fatalf("unexpected message id %s", mc.MessageID)
	}
}

func TestEmitterOnAnyReceivesAll(t *testing.T) {
	e := NewEmitter()

	count := 0
	e.OnAny(func(ev Event) { count++ })

	e.Emit(StreamChunkEvent{SessionID: "s1", MessageID: "m1", Seq: 1, Content: "x"})
	e.Emit(StreamEndedEvent{SessionID: "s1", MessageID: "m1", Status: "success"})

	if count != 2 {
		t.Fatalf("expected 2 events, got %d", count)
	}
}

func TestEmitterUnsubscribeStopsDelivery(t *testing.T) {
	e := NewEmitter()

	count := 0
	off := e.On(MessageStatus, func(ev Event) { count++ })

	e.Emit(MessageStatusEvent{SessionID: "s1", MessageID: "m1", Status: "running"})
	off()
	e.Emit(MessageStatusEvent{SessionID: "s1", MessageID: "m1", Status: "success"})

	if count != 1 {
		t.Fatalf("expected 1 event after unsubscribe, got %d", count)
	}
}

func TestEventToDataUsesJSONTags(t *testing.T) {
	data := eventToData(StreamChunkEvent{SessionID: "s1", MessageID: "m1", Seq: 3, Content: "hi"})
	if data["session_id"] != "s1" {
		t.Fatalf("expected session_id key, got %v", data)
	}
	if data["content"] != "hi" {
		t.Fatalf("expected content key, got %v", data)
	}
}
