package event

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	SessionCreated      = "session.created"
	SessionUpdated      = "session.updated"
	SessionDeleted      = "session.deleted"
	SessionTitleChanged = "session.titleChanged"
	MessageCreated      = "chat.messageCreated"
	MessageUpdated      = "chat.messageUpdated"
	MessageStatus       = "chat.messageStatus"
	StreamChunkReceived = "chat.streamChunk"
	StreamEnded         = "chat.streamEnded"
)

// ============================================================================
// Session Events
// ============================================================================

// SessionCreatedEvent is emitted when a session is created.
type SessionCreatedEvent struct {
	SessionID string `json:"session_id"`
}

func (e SessionCreatedEvent) EventName() string { return SessionCreated }

// SessionUpdatedEvent is emitted when session metadata or bindings change.
type SessionUpdatedEvent struct {
	SessionID string `json:"session_id"`
}

func (e SessionUpdatedEvent) EventName() string { return SessionUpdated }

// SessionDeletedEvent is emitted when a session is deleted.
type SessionDeletedEvent struct {
	SessionID string `json:"session_id"`
}

func (e SessionDeletedEvent) EventName() string { return SessionDeleted }

// SessionTitleChangedEvent is emitted when a title is generated or renamed.
type SessionTitleChangedEvent struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

func (e SessionTitleChangedEvent) EventName() string { return SessionTitleChanged }

// ============================================================================
// Chat Events
// ============================================================================

// MessageCreatedEvent is emitted when a message is persisted.
type MessageCreatedEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
}

func (e MessageCreatedEvent) EventName() string { return MessageCreated }

// MessageUpdatedEvent is emitted when a message's content is rewritten in
// place.
type MessageUpdatedEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

func (e MessageUpdatedEvent) EventName() string { return MessageUpdated }

// MessageStatusEvent is emitted when a message's status changes.
type MessageStatusEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

func (e MessageStatusEvent) EventName() string { return MessageStatus }

// StreamChunkEvent carries one streamed fragment of an assistant reply.
type StreamChunkEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Seq       uint64 `json:"seq"`
	Content   string `json:"content"`
}

func (e StreamChunkEvent) EventName() string { return StreamChunkReceived }

// StreamEndedEvent is emitted when a stream finishes for any reason. Status
// is the final status of the streamed message.
type StreamEndedEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

func (e StreamEndedEvent) EventName() string { return StreamEnded }
