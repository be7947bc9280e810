// Package stream buffers in-flight assistant output per session so clients
// that drop their connection mid-generation can reconnect and replay only
// the chunks they missed.
package stream

import "sync"

// Chunk is one streamed fragment of an assistant reply. Seq is assigned by
// the coordinator and increases monotonically per session, across stream
// lifetimes, so a client can always resume with its last received value.
type Chunk struct {
	Seq       uint64 `json:"seq"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// Snapshot describes a session's streaming state at reconnect time.
type Snapshot struct {
	Active    bool    `json:"active"`
	MessageID string  `json:"message_id,omitempty"`
	LastSeq   uint64  `json:"last_seq"`
	Chunks    []Chunk `json:"chunks"`
}

type sessionState struct {
	messageID string
	active    bool
	lastSeq   uint64
	chunks    []Chunk
}

// Coordinator tracks at most one active stream per session.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

func NewCoordinator() *Coordinator {
	return &Coordinator{sessions: make(map[string]*sessionState)}
}

func (c *Coordinator) state(sessionID string) *sessionState {
	st, ok := c.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		c.sessions[sessionID] = st
	}
	return st
}

// Begin opens a stream for the given assistant message. The sequence counter
// carries over from earlier streams in the same session, so replacing a
// stream never hands out a sequence number a client has already seen.
func (c *Coordinator) Begin(sessionID, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(sessionID)
	st.messageID = messageID
	st.active = true
	st.chunks = nil
}

// Append buffers one chunk and assigns its sequence number. It reports false
// when the session has no active stream, in which case the chunk is dropped.
func (c *Coordinator) Append(sessionID, content string) (Chunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.sessions[sessionID]
	if !ok || !st.active {
		return Chunk{}, false
	}
	st.lastSeq++
	chunk := Chunk{Seq: st.lastSeq, MessageID: st.messageID, Content: content}
	st.chunks = append(st.chunks, chunk)
	return chunk, true
}

// End closes the session's active stream and evicts its buffer. Once the
// final message content is persisted the buffered chunks are redundant, so
// completion is the eviction point.
func (c *Coordinator) End(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	st.active = false
	st.messageID = ""
	st.chunks = nil
}

// HasActiveStream reports whether the session is currently streaming.
func (c *Coordinator) HasActiveStream(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.sessions[sessionID]
	return ok && st.active
}

// CurrentMessageID returns the message being streamed, if any.
func (c *Coordinator) CurrentMessageID(sessionID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.sessions[sessionID]
	if !ok || !st.active {
		return "", false
	}
	return st.messageID, true
}

// PendingChunks returns buffered chunks with sequence numbers above sinceSeq,
// in order. The result is a copy; callers may retain it.
func (c *Coordinator) PendingChunks(sessionID string, sinceSeq uint64) []Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked(sessionID, sinceSeq)
}

func (c *Coordinator) pendingLocked(sessionID string, sinceSeq uint64) []Chunk {
	st, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}
	var out []Chunk
	for _, chunk := range st.chunks {
		if chunk.Seq > sinceSeq {
			out = append(out, chunk)
		}
	}
	return out
}

// Reconnect resolves a client's resume request. Replaying from the client's
// last received sequence number is idempotent and gap-free: every buffered
// chunk above it is returned exactly once, none below it ever again. When no
// new chunks exist, LastSeq is the client's own value, unchanged; it never
// regresses below what the client already holds.
func (c *Coordinator) Reconnect(sessionID string, lastReceivedSeq uint64) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{LastSeq: lastReceivedSeq}
	st, ok := c.sessions[sessionID]
	if !ok {
		return snap
	}
	snap.Active = st.active
	snap.Chunks = c.pendingLocked(sessionID, lastReceivedSeq)
	if n := len(snap.Chunks); n > 0 {
		snap.LastSeq = snap.Chunks[n-1].Seq
	}
	if st.active {
		snap.MessageID = st.messageID
	}
	return snap
}
