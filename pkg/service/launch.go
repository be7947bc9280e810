package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/weavechat/weavechat/pkg/db"
	"github.com/weavechat/weavechat/pkg/engine"
	"github.com/weavechat/weavechat/pkg/event"
	"github.com/weavechat/weavechat/pkg/history"
	"github.com/weavechat/weavechat/pkg/workflow"
)

// prepareTurn assembles the bounded prompt for one assistant generation and
// prepares the reply workflow. It runs before the turn is committed, so a
// session that cannot produce a reply fails synchronously with nothing
// persisted.
func (s *ChatService) prepareTurn(ctx context.Context, sess *db.Session, human, ai *db.Message) (*workflow.Prepared, error) {
	source, err := workflow.SourceFromSession(sess)
	if err != nil {
		return nil, err
	}

	byID, err := s.messages.MapBySession(sess.ID)
	if err != nil {
		return nil, err
	}
	// The prompting message may not be persisted yet; chain over it in
	// memory.
	byID[human.ID] = human
	chain := history.BuildChain(byID, &human.ID)
	meta := s.catalog.Metadata(sess.Provider, sess.Model)
	prompt := s.prompts.BuildPrompt(chain, meta, nil)

	credID := ""
	if sess.CredentialID != nil {
		credID = *sess.CredentialID
	}
	turn := &workflow.Turn{
		SessionID:    sess.ID,
		MessageID:    ai.ID,
		Input:        human.Content,
		Prompt:       prompt,
		Tools:        sess.Tools,
		CredentialID: credID,
		Model:        meta,
	}
	return source.Prepare(ctx, turn)
}

// runGeneration drives one assistant generation end to end: engine launch,
// chunk streaming and final status persistence. It runs on its own goroutine
// with a detached context so the originating HTTP request can return
// immediately.
func (s *ChatService) runGeneration(sess *db.Session, human, ai, resume *db.Message, prepared *workflow.Prepared) {
	ctx := context.Background()

	s.streams.Begin(sess.ID, ai.ID)

	var accMu sync.Mutex
	var acc strings.Builder
	sink := engine.SinkFunc(func(content string) {
		chunk, ok := s.streams.Append(sess.ID, content)
		if !ok {
			return
		}
		accMu.Lock()
		acc.WriteString(content)
		accMu.Unlock()
		s.emitter.Emit(event.StreamChunkEvent{
			SessionID: sess.ID,
			MessageID: ai.ID,
			Seq:       chunk.Seq,
			Content:   content,
		})
	})

	if err := s.messages.UpdateStatus(sess.ID, ai.ID, db.MessageStatusRunning); err != nil {
		s.logger.Warn("Failed to mark message running", "messageID", ai.ID, "error", err)
	}
	s.emitter.Emit(event.MessageStatusEvent{SessionID: sess.ID, MessageID: ai.ID, Status: db.MessageStatusRunning})

	var exec engine.Execution
	var err error
	if resume != nil && resume.ExecutionID != nil {
		exec, err = s.engine.Resume(ctx, *resume.ExecutionID, human.Content, sink)
	} else {
		exec, err = s.engine.Start(ctx, prepared, sink)
	}
	if err != nil {
		s.streams.End(sess.ID)
		s.persistFailure(sess.ID, ai.ID, "", err)
		s.emitter.Emit(event.StreamEndedEvent{SessionID: sess.ID, MessageID: ai.ID, Status: db.MessageStatusError})
		return
	}

	execID := exec.ID()
	if err := s.messages.UpdateExecution(sess.ID, ai.ID, db.MessageStatusRunning, &execID); err != nil {
		s.logger.Warn("Failed to record execution ID", "messageID", ai.ID, "error", err)
	}

	res := <-exec.Done()

	accMu.Lock()
	streamed := acc.String()
	accMu.Unlock()

	s.finishGeneration(sess, ai.ID, res, streamed)

	// A turn rooted at the start of the session names the conversation.
	if human.PreviousMessageID == nil {
		s.maybeGenerateTitle(sess.ID, human.Content)
	}
}

// finishGeneration persists the terminal state of one generation. It takes
// the message lock so a concurrent StopGeneration cannot interleave.
func (s *ChatService) finishGeneration(sess *db.Session, aiID string, res engine.Result, streamed string) {
	s.locks.Lock(aiID)
	defer s.locks.Unlock(aiID)

	defer s.streams.End(sess.ID)

	current, err := s.GetMessage(sess.ID, aiID)
	if err != nil {
		s.logger.Error("Lost track of generated message", "messageID", aiID, "error", err)
		return
	}

	// Stop already persisted the cancelled state and partial content.
	if current.Status == db.MessageStatusCancelled {
		s.emitter.Emit(event.StreamEndedEvent{SessionID: sess.ID, MessageID: aiID, Status: db.MessageStatusCancelled})
		return
	}

	var status string
	switch {
	case res.Cancelled:
		status = db.MessageStatusCancelled
		s.persistContent(sess.ID, aiID, streamed)
	case res.Err != nil:
		status = db.MessageStatusError
		s.persistFailure(sess.ID, aiID, streamed, res.Err)
	case res.Waiting:
		status = db.MessageStatusWaiting
		s.persistContent(sess.ID, aiID, streamed)
	default:
		status = db.MessageStatusSuccess
		final := res.Output
		if final == "" {
			final = streamed
		}
		s.persistContent(sess.ID, aiID, final)
	}

	if status != db.MessageStatusError {
		if err := s.messages.UpdateStatus(sess.ID, aiID, status); err != nil {
			s.logger.Error("Failed to persist final status", "messageID", aiID, "error", err)
		}
		s.emitter.Emit(event.MessageStatusEvent{SessionID: sess.ID, MessageID: aiID, Status: status})
	}
	s.emitter.Emit(event.StreamEndedEvent{SessionID: sess.ID, MessageID: aiID, Status: status})

	if status == db.MessageStatusSuccess {
		if err := s.sessions.Touch(sess.ID); err != nil {
			s.logger.Warn("Failed to touch session", "sessionID", sess.ID, "error", err)
		}
		s.emitter.Emit(event.SessionUpdatedEvent{SessionID: sess.ID})
	}
}

func (s *ChatService) persistContent(sessionID, messageID, content string) {
	if content == "" {
		return
	}
	if err := s.messages.UpdateContent(sessionID, messageID, content); err != nil {
		s.logger.Error("Failed to persist message content", "messageID", messageID, "error", err)
	}
}

// persistFailure records the error state, keeping any streamed content and
// appending a readable failure note.
func (s *ChatService) persistFailure(sessionID, messageID, streamed string, cause error) {
	s.logger.Error("Generation failed", "sessionID", sessionID, "messageID", messageID, "error", cause)

	note := fmt.Sprintf("The assistant failed to respond: %v", cause)
	content := note
	if streamed != "" {
		content = streamed + "\n\n" + note
	}
	s.persistContent(sessionID, messageID, content)
	if err := s.messages.UpdateStatus(sessionID, messageID, db.MessageStatusError); err != nil {
		s.logger.Error("Failed to persist error status", "messageID", messageID, "error", err)
	}
	s.emitter.Emit(event.MessageStatusEvent{SessionID: sessionID, MessageID: messageID, Status: db.MessageStatusError})
}
