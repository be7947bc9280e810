package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavechat/weavechat/pkg/blob"
	"github.com/weavechat/weavechat/pkg/db"
	"github.com/weavechat/weavechat/pkg/engine"
	"github.com/weavechat/weavechat/pkg/event"
	"github.com/weavechat/weavechat/pkg/history"
	"github.com/weavechat/weavechat/pkg/models"
	"github.com/weavechat/weavechat/pkg/workflow"
)

// fakeEngine is a scripted execution engine. Each Start/Resume streams the
// configured chunks through the sink, optionally holds until released or
// stopped, then delivers the configured result.
type fakeEngine struct {
	mu      sync.Mutex
	chunks  []string
	result  engine.Result
	hold    chan struct{}
	seq     int
	started []*workflow.Prepared
	resumes []string
	stops   []string
	cancels map[string]chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{cancels: make(map[string]chan struct{})}
}

func (f *fakeEngine) script(chunks []string, result engine.Result, hold chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = chunks
	f.result = result
	f.hold = hold
}

type fakeExec struct {
	id   string
	done chan engine.Result
}

func (e *fakeExec) ID() string { return e.id }

func (e *fakeExec) Done() <-chan engine.Result { return e.done }

func (f *fakeEngine) launch(sink engine.Sink) engine.Execution {
	f.seq++
	id := fmt.Sprintf("exec-%d", f.seq)
	chunks := append([]string(nil), f.chunks...)
	result := f.result
	hold := f.hold
	cancel := make(chan struct{})
	f.cancels[id] = cancel

	exec := &fakeExec{id: id, done: make(chan engine.Result, 1)}
	go func() {
		for _, c := range chunks {
			sink.Chunk(c)
		}
		if hold != nil {
			select {
			case <-hold:
			case <-cancel:
				exec.done <- engine.Result{Cancelled: true}
				return
			}
		}
		exec.done <- result
	}()
	return exec
}

func (f *fakeEngine) Start(ctx context.Context, prepared *workflow.Prepared, sink engine.Sink) (engine.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, prepared)
	return f.launch(sink), nil
}

func (f *fakeEngine) Resume(ctx context.Context, executionID, input string, sink engine.Sink) (engine.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes = append(f.resumes, executionID)
	return f.launch(sink), nil
}

func (f *fakeEngine) Stop(ctx context.Context, executionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, executionID)
	if ch, ok := f.cancels[executionID]; ok {
		close(ch)
		delete(f.cancels, executionID)
	}
	return nil
}

func (f *fakeEngine) startedCalls() []*workflow.Prepared {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*workflow.Prepared(nil), f.started...)
}

func (f *fakeEngine) resumedWith() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resumes...)
}

func newTestService(t *testing.T, eng engine.Engine) *ChatService {
	t.Helper()

	gdb, err := db.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)

	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)

	svc := NewChatService(gdb, blobs, eng, 1<<20)
	svc.SetEmitter(event.NewEmitter())
	return svc
}

func sendReq(sessionID, content string) *models.SendMessageRequest {
	return &models.SendMessageRequest{
		SessionID: sessionID,
		UserID:    "u1",
		Content:   content,
		Provider:  "openai",
		Model:     "gpt-4o",
	}
}

func waitStatus(t *testing.T, svc *ChatService, sessionID, messageID, status string) *db.Message {
	t.Helper()
	var msg *db.Message
	require.Eventually(t, func() bool {
		m, err := svc.GetMessage(sessionID, messageID)
		if err != nil {
			return false
		}
		msg = m
		return m.Status == status
	}, 3*time.Second, 10*time.Millisecond, "message %s never reached status %s", messageID, status)
	return msg
}

func TestSendMessage_CreatesSessionAndMessages(t *testing.T) {
	eng := newFakeEngine()
	eng.script([]string{"Hel", "lo!"}, engine.Result{Output: "Hello!"}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "hi"))
	require.NoError(t, err)

	assert.Equal(t, "s1", resp.Session.ID)
	assert.Equal(t, db.MessageTypeHuman, resp.HumanMessage.Type)
	assert.Equal(t, db.MessageTypeAI, resp.AIMessage.Type)
	require.NotNil(t, resp.AIMessage.PreviousMessageID)
	assert.Equal(t, resp.HumanMessage.ID, *resp.AIMessage.PreviousMessageID)

	ai := waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)
	assert.Equal(t, "Hello!", ai.Content)
	require.NotNil(t, ai.ExecutionID)

	sess, err := svc.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "openai", sess.Provider)
}

func TestSendMessage_GeneratesTitleFromFirstMessage(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	_, err := svc.SendMessage(context.Background(), sendReq("s1", "Plan my trip to Lisbon\nwith details"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sess, err := svc.GetSession("s1")
		return err == nil && sess.Title == "Plan my trip to Lisbon"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSendMessage_NewSessionNeedsBinding(t *testing.T) {
	svc := newTestService(t, newFakeEngine())

	_, err := svc.SendMessage(context.Background(), &models.SendMessageRequest{
		SessionID: "s1", UserID: "u1", Content: "hi",
	})
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestSendMessage_UnknownPreviousMessage(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "hi"))
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	req := sendReq("s1", "again")
	bogus := "no-such-message"
	req.PreviousMessageID = &bogus
	_, err = svc.SendMessage(context.Background(), req)
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestSendMessage_SecondTurnLinksToBranchPoint(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "first"}, nil)
	svc := newTestService(t, eng)

	resp1, err := svc.SendMessage(context.Background(), sendReq("s1", "one"))
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp1.AIMessage.ID, db.MessageStatusSuccess)

	req := sendReq("s1", "two")
	req.PreviousMessageID = &resp1.AIMessage.ID
	resp2, err := svc.SendMessage(context.Background(), req)
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp2.AIMessage.ID, db.MessageStatusSuccess)

	require.NotNil(t, resp2.HumanMessage.PreviousMessageID)
	assert.Equal(t, resp1.AIMessage.ID, *resp2.HumanMessage.PreviousMessageID)

	messages, err := svc.ListMessages("s1")
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestSendMessage_StoresAttachments(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	req := sendReq("s1", "see file")
	req.Attachments = []models.AttachmentUpload{
		{FileName: "notes.txt", MimeType: "text/plain", Data: []byte("hello notes")},
	}

	resp, err := svc.SendMessage(context.Background(), req)
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	human, err := svc.GetMessage("s1", resp.HumanMessage.ID)
	require.NoError(t, err)
	require.Len(t, human.Attachments, 1)
	assert.Equal(t, "notes.txt", human.Attachments[0].FileName)
	assert.Equal(t, int64(len("hello notes")), human.Attachments[0].FileSize)

	att, payload, err := svc.OpenAttachment("s1", human.ID, human.Attachments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", att.MimeType)
	assert.Equal(t, "hello notes", string(payload))
}

func TestSendMessage_RejectsWhileGenerating(t *testing.T) {
	eng := newFakeEngine()
	hold := make(chan struct{})
	eng.script([]string{"partial"}, engine.Result{Output: "partial done"}, hold)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "one"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := svc.GenerationStatus("s1")
		return err == nil && st.Active
	}, 3*time.Second, 10*time.Millisecond)

	_, err = svc.SendMessage(context.Background(), sendReq("s1", "two"))
	assert.ErrorIs(t, err, ErrGenerationInProgress)

	close(hold)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)
}

func TestStopGeneration_PersistsPartialContent(t *testing.T) {
	eng := newFakeEngine()
	hold := make(chan struct{})
	eng.script([]string{"par", "tial"}, engine.Result{Output: "never delivered"}, hold)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "go"))
	require.NoError(t, err)

	// Wait for chunks to flow and the execution ID to be recorded.
	require.Eventually(t, func() bool {
		m, err := svc.GetMessage("s1", resp.AIMessage.ID)
		if err != nil || m.ExecutionID == nil || m.Status != db.MessageStatusRunning {
			return false
		}
		return len(svc.streams.PendingChunks("s1", 0)) == 2
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.StopGeneration(context.Background(), "s1"))

	ai := waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusCancelled)
	assert.Equal(t, "partial", ai.Content)

	require.Eventually(t, func() bool {
		return !svc.streams.HasActiveStream("s1")
	}, 3*time.Second, 10*time.Millisecond)

	err = svc.StopGeneration(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNoActiveGeneration)
}

func TestRetryAIMessage_CreatesSiblingWithFlatLineage(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "take one"}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "question"))
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	eng.script(nil, engine.Result{Output: "take two"}, nil)
	retry1, err := svc.RetryAIMessage(context.Background(), &models.RetryMessageRequest{
		SessionID: "s1", MessageID: resp.AIMessage.ID,
	})
	require.NoError(t, err)
	ai2 := waitStatus(t, svc, "s1", retry1.AIMessage.ID, db.MessageStatusSuccess)

	assert.Equal(t, "take two", ai2.Content)
	require.NotNil(t, ai2.RetryOfMessageID)
	assert.Equal(t, resp.AIMessage.ID, *ai2.RetryOfMessageID)
	require.NotNil(t, ai2.PreviousMessageID)
	assert.Equal(t, resp.HumanMessage.ID, *ai2.PreviousMessageID)

	// Retrying the retry still points at the original root.
	eng.script(nil, engine.Result{Output: "take three"}, nil)
	retry2, err := svc.RetryAIMessage(context.Background(), &models.RetryMessageRequest{
		SessionID: "s1", MessageID: retry1.AIMessage.ID,
	})
	require.NoError(t, err)
	ai3 := waitStatus(t, svc, "s1", retry2.AIMessage.ID, db.MessageStatusSuccess)
	require.NotNil(t, ai3.RetryOfMessageID)
	assert.Equal(t, resp.AIMessage.ID, *ai3.RetryOfMessageID)
}

func TestSendMessage_ClientSuppliedMessageID(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	req := sendReq("s1", "hi")
	req.MessageID = "client-msg-1"
	resp, err := svc.SendMessage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "client-msg-1", resp.HumanMessage.ID)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	dup := sendReq("s1", "again")
	dup.MessageID = "client-msg-1"
	_, err = svc.SendMessage(context.Background(), dup)
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestRetryAIMessage_PromptSkipsFailedAttempt(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Err: fmt.Errorf("boom")}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "question"))
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusError)

	eng.script(nil, engine.Result{Output: "recovered"}, nil)
	retry, err := svc.RetryAIMessage(context.Background(), &models.RetryMessageRequest{
		SessionID: "s1", MessageID: resp.AIMessage.ID,
	})
	require.NoError(t, err)
	waitStatus(t, svc, "s1", retry.AIMessage.ID, db.MessageStatusSuccess)

	// The failed attempt stays in storage but never reaches the prompt.
	started := eng.startedCalls()
	require.Len(t, started, 2)
	assert.Equal(t, "question", started[1].TriggerInput["input"])
	entries, ok := started[1].TriggerInput["history"].([]history.Entry)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "question", entries[0].Text())

	messages, err := svc.ListMessages("s1")
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}

func TestRetryAIMessage_RejectsHumanMessage(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "hi"))
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	_, err = svc.RetryAIMessage(context.Background(), &models.RetryMessageRequest{
		SessionID: "s1", MessageID: resp.HumanMessage.ID,
	})
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestEditMessage_HumanRevisionBranches(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "answer one"}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "original question"))
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	eng.script(nil, engine.Result{Output: "answer two"}, nil)
	edit, err := svc.EditMessage(context.Background(), &models.EditMessageRequest{
		SessionID: "s1", MessageID: resp.HumanMessage.ID, Content: "better question",
	})
	require.NoError(t, err)
	require.NotNil(t, edit.AIMessage)
	waitStatus(t, svc, "s1", edit.AIMessage.ID, db.MessageStatusSuccess)

	assert.Equal(t, "better question", edit.Message.Content)
	require.NotNil(t, edit.Message.RevisionOfMessageID)
	assert.Equal(t, resp.HumanMessage.ID, *edit.Message.RevisionOfMessageID)
	// The revision branches from the original's parent.
	assert.Equal(t, resp.HumanMessage.PreviousMessageID, edit.Message.PreviousMessageID)

	// Revising the revision keeps the lineage flat.
	eng.script(nil, engine.Result{Output: "answer three"}, nil)
	edit2, err := svc.EditMessage(context.Background(), &models.EditMessageRequest{
		SessionID: "s1", MessageID: edit.Message.ID, Content: "best question",
	})
	require.NoError(t, err)
	waitStatus(t, svc, "s1", edit2.AIMessage.ID, db.MessageStatusSuccess)
	require.NotNil(t, edit2.Message.RevisionOfMessageID)
	assert.Equal(t, resp.HumanMessage.ID, *edit2.Message.RevisionOfMessageID)
}

func TestEditMessage_HumanRevisionKeepsAttachments(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	req := sendReq("s1", "with file")
	req.Attachments = []models.AttachmentUpload{
		{FileName: "keep.txt", MimeType: "text/plain", Data: []byte("keep me")},
		{FileName: "drop.txt", MimeType: "text/plain", Data: []byte("drop me")},
	}
	resp, err := svc.SendMessage(context.Background(), req)
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	human, err := svc.GetMessage("s1", resp.HumanMessage.ID)
	require.NoError(t, err)
	require.Len(t, human.Attachments, 2)
	keepIdx := -1
	for i, att := range human.Attachments {
		if att.FileName == "keep.txt" {
			keepIdx = i
		}
	}
	require.GreaterOrEqual(t, keepIdx, 0)

	eng.script(nil, engine.Result{Output: "ok again"}, nil)
	edit, err := svc.EditMessage(context.Background(), &models.EditMessageRequest{
		SessionID:             "s1",
		MessageID:             human.ID,
		Content:               "with fewer files",
		KeptAttachmentIndexes: []int{keepIdx},
		NewAttachments: []models.AttachmentUpload{
			{FileName: "extra.txt", MimeType: "text/plain", Data: []byte("extra")},
		},
	})
	require.NoError(t, err)
	waitStatus(t, svc, "s1", edit.AIMessage.ID, db.MessageStatusSuccess)

	revision, err := svc.GetMessage("s1", edit.Message.ID)
	require.NoError(t, err)
	require.Len(t, revision.Attachments, 2)
	names := []string{revision.Attachments[0].FileName, revision.Attachments[1].FileName}
	assert.Contains(t, names, "keep.txt")
	assert.Contains(t, names, "extra.txt")

	// The kept attachment shares its payload with the original.
	_, payload, err := svc.OpenAttachment("s1", revision.ID, revision.Attachments[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
}

func TestEditMessage_AIRewritesInPlace(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "first draft"}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "hi"))
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	before, err := svc.ListMessages("s1")
	require.NoError(t, err)

	edit, err := svc.EditMessage(context.Background(), &models.EditMessageRequest{
		SessionID: "s1", MessageID: resp.AIMessage.ID, Content: "corrected draft",
	})
	require.NoError(t, err)

	assert.Nil(t, edit.AIMessage)
	assert.Equal(t, "corrected draft", edit.Message.Content)

	after, err := svc.ListMessages("s1")
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestEditMessage_AIRejectedForWorkflowSession(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "workflow says hi"}, nil)
	svc := newTestService(t, eng)

	wf := "wf-1"
	req := &models.SendMessageRequest{
		SessionID: "s1", UserID: "u1", Content: "hi", WorkflowID: &wf,
	}
	resp, err := svc.SendMessage(context.Background(), req)
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	_, err = svc.EditMessage(context.Background(), &models.EditMessageRequest{
		SessionID: "s1", MessageID: resp.AIMessage.ID, Content: "rewritten",
	})
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestReconnect_ReplaysMissedChunks(t *testing.T) {
	eng := newFakeEngine()
	hold := make(chan struct{})
	eng.script([]string{"a", "b", "c"}, engine.Result{Output: "abc"}, hold)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "go"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(svc.streams.PendingChunks("s1", 0)) == 3
	}, 3*time.Second, 10*time.Millisecond)

	snap, err := svc.Reconnect("s1", 1)
	require.NoError(t, err)
	assert.True(t, snap.Active)
	assert.Equal(t, resp.AIMessage.ID, snap.MessageID)
	require.Len(t, snap.Chunks, 2)
	assert.Equal(t, "b", snap.Chunks[0].Content)
	assert.Equal(t, "c", snap.Chunks[1].Content)

	close(hold)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	snap, err = svc.Reconnect("s1", 0)
	require.NoError(t, err)
	assert.False(t, snap.Active)
	assert.Empty(t, snap.Chunks)
}

func TestWaitingExecution_ResumedByNextSend(t *testing.T) {
	eng := newFakeEngine()
	eng.script([]string{"Which city?"}, engine.Result{Waiting: true}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "book a flight"))
	require.NoError(t, err)
	ai1 := waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusWaiting)
	assert.Equal(t, "Which city?", ai1.Content)
	require.NotNil(t, ai1.ExecutionID)

	eng.script([]string{"Booked!"}, engine.Result{Output: "Booked!"}, nil)
	req := sendReq("s1", "to Lisbon")
	req.PreviousMessageID = &ai1.ID
	resp2, err := svc.SendMessage(context.Background(), req)
	require.NoError(t, err)

	ai2 := waitStatus(t, svc, "s1", resp2.AIMessage.ID, db.MessageStatusSuccess)
	assert.Equal(t, "Booked!", ai2.Content)

	// The paused execution was resumed, not restarted.
	assert.Equal(t, []string{*ai1.ExecutionID}, eng.resumedWith())

	closed := waitStatus(t, svc, "s1", ai1.ID, db.MessageStatusSuccess)
	assert.Equal(t, "Which city?", closed.Content)
}

func TestGenerationError_KeepsStreamedContent(t *testing.T) {
	eng := newFakeEngine()
	eng.script([]string{"half an "}, engine.Result{Err: fmt.Errorf("provider unavailable")}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "go"))
	require.NoError(t, err)

	ai := waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusError)
	assert.Contains(t, ai.Content, "half an ")
	assert.Contains(t, ai.Content, "provider unavailable")
}

func TestDeleteSession_RemovesMessagesAndBlobs(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	req := sendReq("s1", "with file")
	req.Attachments = []models.AttachmentUpload{
		{FileName: "doomed.txt", MimeType: "text/plain", Data: []byte("bye")},
	}
	resp, err := svc.SendMessage(context.Background(), req)
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	human, err := svc.GetMessage("s1", resp.HumanMessage.ID)
	require.NoError(t, err)
	require.Len(t, human.Attachments, 1)
	key := human.Attachments[0].BlobKey
	require.True(t, svc.blobs.Exists(key))

	require.NoError(t, svc.DeleteSession("s1"))

	_, err = svc.GetSession("s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, svc.blobs.Exists(key))
}

func TestListSessions_Paging(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	for i := 0; i < 3; i++ {
		resp, err := svc.SendMessage(context.Background(), sendReq(fmt.Sprintf("s%d", i), "hi"))
		require.NoError(t, err)
		waitStatus(t, svc, resp.Session.ID, resp.AIMessage.ID, db.MessageStatusSuccess)
	}

	sessions, hasMore, err := svc.ListSessions("u1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.True(t, hasMore)

	sessions, hasMore, err = svc.ListSessions("u1", 2, 2)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.False(t, hasMore)
}

func TestSendMessage_SameMessageIDAcrossSessions(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	req1 := sendReq("s1", "first session")
	req1.MessageID = "shared-id"
	req1.Attachments = []models.AttachmentUpload{
		{FileName: "one.txt", MimeType: "text/plain", Data: []byte("one")},
	}
	resp1, err := svc.SendMessage(context.Background(), req1)
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp1.AIMessage.ID, db.MessageStatusSuccess)

	// The same message ID in another session is legal input.
	req2 := sendReq("s2", "second session")
	req2.MessageID = "shared-id"
	req2.Attachments = []models.AttachmentUpload{
		{FileName: "two.txt", MimeType: "text/plain", Data: []byte("two")},
	}
	resp2, err := svc.SendMessage(context.Background(), req2)
	require.NoError(t, err)
	waitStatus(t, svc, "s2", resp2.AIMessage.ID, db.MessageStatusSuccess)

	assert.Equal(t, "shared-id", resp1.HumanMessage.ID)
	assert.Equal(t, "shared-id", resp2.HumanMessage.ID)

	// Each session sees only its own message and its own attachment.
	h1, err := svc.GetMessage("s1", "shared-id")
	require.NoError(t, err)
	assert.Equal(t, "first session", h1.Content)
	require.Len(t, h1.Attachments, 1)
	assert.Equal(t, "one.txt", h1.Attachments[0].FileName)

	h2, err := svc.GetMessage("s2", "shared-id")
	require.NoError(t, err)
	assert.Equal(t, "second session", h2.Content)
	require.Len(t, h2.Attachments, 1)
	assert.Equal(t, "two.txt", h2.Attachments[0].FileName)
}

func TestSendMessage_CompensatesBlobsWhenCommitFails(t *testing.T) {
	eng := newFakeEngine()

	gdb, err := db.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	blobDir := t.TempDir()
	blobs, err := blob.NewStore(blobDir)
	require.NoError(t, err)
	svc := NewChatService(gdb, blobs, eng, 1<<20)
	svc.SetEmitter(event.NewEmitter())

	// Force the turn transaction to fail after the payloads were stored.
	require.NoError(t, gdb.Exec(
		`CREATE TRIGGER reject_messages BEFORE INSERT ON messages
		 BEGIN SELECT RAISE(ABORT, 'messages table closed'); END`).Error)

	req := sendReq("s1", "with file")
	req.Attachments = []models.AttachmentUpload{
		{FileName: "doomed.txt", MimeType: "text/plain", Data: []byte("bye")},
	}
	_, err = svc.SendMessage(context.Background(), req)
	require.ErrorContains(t, err, "messages table closed")

	// The rollback left no session behind and the stored payloads were
	// compensated away.
	_, err = svc.GetSession("s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	entries, err := os.ReadDir(blobDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSendMessage_PreparationFailureIsSynchronous(t *testing.T) {
	eng := newFakeEngine()
	svc := newTestService(t, eng)

	// A stored session without a reply source cannot prepare a reply.
	require.NoError(t, svc.sessions.Create(&db.Session{ID: "s1", UserID: "u1", Title: "broken"}))

	_, err := svc.SendMessage(context.Background(), sendReq("s1", "hi"))
	require.Error(t, err)

	// The failure reached the caller directly: nothing was committed and no
	// generation started.
	messages, err := svc.ListMessages("s1")
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Empty(t, eng.startedCalls())
}

func TestUpdateSession_RebindClearsOtherBindings(t *testing.T) {
	eng := newFakeEngine()
	eng.script(nil, engine.Result{Output: "ok"}, nil)
	svc := newTestService(t, eng)

	resp, err := svc.SendMessage(context.Background(), sendReq("s1", "hi"))
	require.NoError(t, err)
	waitStatus(t, svc, "s1", resp.AIMessage.ID, db.MessageStatusSuccess)

	wf := "wf-7"
	sess, err := svc.UpdateSession("s1", &models.UpdateSessionRequest{WorkflowID: &wf})
	require.NoError(t, err)

	require.NotNil(t, sess.WorkflowID)
	assert.Equal(t, "wf-7", *sess.WorkflowID)
	assert.Empty(t, sess.Provider)
	assert.Empty(t, sess.Model)
}
