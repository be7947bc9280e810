package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_AppendAssignsIncreasingSeq(t *testing.T) {
	c := NewCoordinator()
	c.Begin("s1", "m1")

	c1, ok := c.Append("s1", "Hel")
	require.True(t, ok)
	c2, ok := c.Append("s1", "lo")
	require.True(t, ok)

	assert.Equal(t, uint64(1), c1.Seq)
	assert.Equal(t, uint64(2), c2.Seq)
	assert.Equal(t, "m1", c1.MessageID)
}

func TestCoordinator_AppendWithoutActiveStream(t *testing.T) {
	c := NewCoordinator()
	_, ok := c.Append("s1", "dropped")
	assert.False(t, ok)

	c.Begin("s1", "m1")
	c.End("s1")
	_, ok = c.Append("s1", "dropped")
	assert.False(t, ok)
}

func TestCoordinator_ReconnectReplaysOnlyMissed(t *testing.T) {
	c := NewCoordinator()
	c.Begin("s1", "m1")
	for _, part := range []string{"a", "b", "c", "d"} {
		_, ok := c.Append("s1", part)
		require.True(t, ok)
	}

	snap := c.Reconnect("s1", 2)

	assert.True(t, snap.Active)
	assert.Equal(t, "m1", snap.MessageID)
	assert.Equal(t, uint64(4), snap.LastSeq)
	require.Len(t, snap.Chunks, 2)
	assert.Equal(t, uint64(3), snap.Chunks[0].Seq)
	assert.Equal(t, uint64(4), snap.Chunks[1].Seq)
}

func TestCoordinator_ReconnectIsIdempotent(t *testing.T) {
	c := NewCoordinator()
	c.Begin("s1", "m1")
	c.Append("s1", "a")
	c.Append("s1", "b")

	first := c.Reconnect("s1", 0)
	second := c.Reconnect("s1", 0)

	assert.Equal(t, first, second)
}

func TestCoordinator_EndEvictsBuffer(t *testing.T) {
	c := NewCoordinator()
	c.Begin("s1", "m1")
	c.Append("s1", "a")
	c.End("s1")

	assert.False(t, c.HasActiveStream("s1"))
	snap := c.Reconnect("s1", 0)
	assert.False(t, snap.Active)
	assert.Empty(t, snap.Chunks)
	// No chunks to replay, so the client's own value comes back unchanged.
	assert.Equal(t, uint64(0), snap.LastSeq)
}

func TestCoordinator_ReconnectCaughtUpLeavesSeqUnchanged(t *testing.T) {
	c := NewCoordinator()
	c.Begin("s1", "m1")
	c.Append("s1", "a")
	c.Append("s1", "b")

	snap := c.Reconnect("s1", 2)

	assert.True(t, snap.Active)
	assert.Empty(t, snap.Chunks)
	assert.Equal(t, uint64(2), snap.LastSeq)
}

func TestCoordinator_SeqMonotonicAcrossStreams(t *testing.T) {
	c := NewCoordinator()

	c.Begin("s1", "m1")
	c.Append("s1", "a")
	c.Append("s1", "b")
	c.End("s1")

	c.Begin("s1", "m2")
	chunk, ok := c.Append("s1", "c")
	require.True(t, ok)

	assert.Equal(t, uint64(3), chunk.Seq)
	assert.Equal(t, "m2", chunk.MessageID)
}

func TestCoordinator_SessionsAreIndependent(t *testing.T) {
	c := NewCoordinator()
	c.Begin("s1", "m1")
	c.Begin("s2", "m2")

	c1, _ := c.Append("s1", "a")
	c2, _ := c.Append("s2", "b")

	assert.Equal(t, uint64(1), c1.Seq)
	assert.Equal(t, uint64(1), c2.Seq)

	id, ok := c.CurrentMessageID("s2")
	require.True(t, ok)
	assert.Equal(t, "m2", id)
}

func TestCoordinator_UnknownSessionSnapshot(t *testing.T) {
	c := NewCoordinator()
	snap := c.Reconnect("ghost", 5)
	assert.False(t, snap.Active)
	assert.Empty(t, snap.Chunks)
	// Never hand back a sequence below what the client already holds.
	assert.Equal(t, uint64(5), snap.LastSeq)
}
