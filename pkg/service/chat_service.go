// Chat orchestration - sessions, branching message history, generation lifecycle
package service

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/weavechat/weavechat/pkg/blob"
	"github.com/weavechat/weavechat/pkg/db"
	"github.com/weavechat/weavechat/pkg/engine"
	"github.com/weavechat/weavechat/pkg/event"
	"github.com/weavechat/weavechat/pkg/history"
	"github.com/weavechat/weavechat/pkg/models"
	"github.com/weavechat/weavechat/pkg/repository"
	"github.com/weavechat/weavechat/pkg/stream"
	"github.com/weavechat/weavechat/pkg/utils"
)

// MaxAttachmentBytes caps one uploaded attachment payload.
const MaxAttachmentBytes = 10 << 20 // 10 MiB

// ChatService orchestrates conversations: transactional message writes,
// branch management and the generation lifecycle against the execution
// engine.
type ChatService struct {
	db          *gorm.DB
	sessions    *repository.SessionRepository
	messages    *repository.MessageRepository
	attachments *repository.AttachmentRepository
	blobs       *blob.Store
	prompts     *history.Builder
	engine      engine.Engine
	streams     *stream.Coordinator
	emitter     *event.Emitter
	catalog     ModelCatalog
	titler      TitleGenerator
	logger      *slog.Logger

	// locks serializes mutations per message ID so concurrent edit, retry
	// and stop calls on the same message cannot interleave.
	locks *keyedMutex
}

// NewChatService creates a chat service wired to the global event emitter.
func NewChatService(gdb *gorm.DB, blobs *blob.Store, eng engine.Engine, historyBudget int) *ChatService {
	return &ChatService{
		db:          gdb,
		sessions:    repository.NewSessionRepository(gdb),
		messages:    repository.NewMessageRepository(gdb),
		attachments: repository.NewAttachmentRepository(gdb),
		blobs:       blobs,
		prompts:     history.NewBuilder(blobs, historyBudget),
		engine:      eng,
		streams:     stream.NewCoordinator(),
		emitter:     event.Global(),
		catalog:     NewStaticCatalog(),
		titler:      TruncatingTitleGenerator{},
		logger:      utils.GetLogger(),
		locks:       newKeyedMutex(),
	}
}

// SetEmitter overrides the event emitter (used by tests).
func (s *ChatService) SetEmitter(e *event.Emitter) { s.emitter = e }

// SetTitleGenerator overrides the session title generator.
func (s *ChatService) SetTitleGenerator(t TitleGenerator) { s.titler = t }

// SetModelCatalog overrides the model modality catalog.
func (s *ChatService) SetModelCatalog(c ModelCatalog) { s.catalog = c }

// ========== Session Management ==========

// GetSession retrieves a session by ID.
func (s *ChatService) GetSession(id string) (*db.Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// ListSessions lists a user's sessions, most recently active first.
func (s *ChatService) ListSessions(userID string, limit, offset int) ([]db.Session, bool, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.sessions.List(userID, limit, offset)
}

// UpdateSession renames a session or rebinds its reply source. Rebinding is
// rejected while a generation is in flight.
func (s *ChatService) UpdateSession(id string, req *models.UpdateSessionRequest) (*db.Session, error) {
	sess, err := s.GetSession(id)
	if err != nil {
		return nil, err
	}

	rebinding := req.WorkflowID != nil || req.AgentID != nil || (req.Provider != "" && req.Model != "")
	if rebinding && s.streams.HasActiveStream(id) {
		return nil, ErrGenerationInProgress
	}

	if req.Title != "" {
		sess.Title = req.Title
	}
	switch {
	case req.WorkflowID != nil:
		sess.BindWorkflow(*req.WorkflowID)
	case req.AgentID != nil:
		sess.BindAgent(*req.AgentID)
	case req.Provider != "" && req.Model != "":
		sess.BindModel(req.Provider, req.Model)
	}
	if req.CredentialID != nil {
		sess.CredentialID = req.CredentialID
	}

	if err := s.sessions.Update(sess); err != nil {
		return nil, err
	}
	s.emitter.Emit(event.SessionUpdatedEvent{SessionID: id})
	if req.Title != "" {
		s.emitter.Emit(event.SessionTitleChangedEvent{SessionID: id, Title: req.Title})
	}
	return sess, nil
}

// DeleteSession removes a session, its messages and attachment rows, then
// cleans up attachment payloads best effort.
func (s *ChatService) DeleteSession(id string) error {
	if _, err := s.GetSession(id); err != nil {
		return err
	}
	if s.streams.HasActiveStream(id) {
		return ErrGenerationInProgress
	}

	messages, err := s.messages.ListBySession(id)
	if err != nil {
		return err
	}
	var keys []string
	for _, msg := range messages {
		for _, att := range msg.Attachments {
			keys = append(keys, att.BlobKey)
		}
	}

	if err := s.sessions.Delete(id); err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.blobs.Delete(key); err != nil {
			s.logger.Warn("Failed to delete attachment blob", "key", key, "error", err)
		}
	}

	s.emitter.Emit(event.SessionDeletedEvent{SessionID: id})
	return nil
}

// ListMessages returns all messages of a session in creation order.
func (s *ChatService) ListMessages(sessionID string) ([]db.Message, error) {
	if _, err := s.GetSession(sessionID); err != nil {
		return nil, err
	}
	return s.messages.ListBySession(sessionID)
}

// GetMessage retrieves a single message with its attachments.
func (s *ChatService) GetMessage(sessionID, id string) (*db.Message, error) {
	msg, err := s.messages.Get(sessionID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

// OpenAttachment returns attachment metadata and its payload for download.
func (s *ChatService) OpenAttachment(sessionID, messageID, attachmentID string) (*db.Attachment, []byte, error) {
	msg, err := s.GetMessage(sessionID, messageID)
	if err != nil {
		return nil, nil, err
	}
	for i := range msg.Attachments {
		if msg.Attachments[i].ID == attachmentID {
			payload, err := s.blobs.Fetch(msg.Attachments[i].BlobKey, 0)
			if err != nil {
				return nil, nil, err
			}
			return &msg.Attachments[i], payload, nil
		}
	}
	return nil, nil, ErrMessageNotFound
}

// ========== Send ==========

// SendMessage persists a human message plus an assistant placeholder in one
// transaction, then launches generation asynchronously. The session is
// created on first use from the request's binding fields.
func (s *ChatService) SendMessage(ctx context.Context, req *models.SendMessageRequest) (*models.SendMessageResponse, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, validationf("session_id is required")
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 {
		return nil, validationf("message needs content or attachments")
	}
	if s.streams.HasActiveStream(req.SessionID) {
		return nil, ErrGenerationInProgress
	}

	sess, err := s.sessions.Get(req.SessionID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		sess, err = s.newSessionFromRequest(req)
		if err != nil {
			return nil, err
		}
		created = true
	default:
		return nil, err
	}

	// A waiting assistant message at the branch point resumes its paused
	// execution instead of starting a fresh one.
	var resume *db.Message
	if req.PreviousMessageID != nil {
		if created {
			return nil, validationf("previous_message_id set on a new session")
		}
		prev, err := s.GetMessage(req.SessionID, *req.PreviousMessageID)
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) {
				return nil, validationf("previous message %s not found", *req.PreviousMessageID)
			}
			return nil, err
		}
		if prev.Type == db.MessageTypeAI && prev.Status == db.MessageStatusWaiting && prev.ExecutionID != nil {
			resume = prev
		}
	}

	humanID := req.MessageID
	if humanID == "" {
		humanID = uuid.NewString()
	} else if !created {
		exists, err := s.messages.Exists(req.SessionID, humanID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, validationf("message %s already exists in session", humanID)
		}
	}

	blobKeys, attachments, err := s.saveAttachmentBlobs(req.Attachments)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	human := &db.Message{
		ID:                humanID,
		SessionID:         req.SessionID,
		Type:              db.MessageTypeHuman,
		Content:           req.Content,
		PreviousMessageID: req.PreviousMessageID,
		Attachments:       attachments,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	ai := &db.Message{
		ID:                uuid.NewString(),
		SessionID:         req.SessionID,
		Type:              db.MessageTypeAI,
		Status:            db.MessageStatusPending,
		PreviousMessageID: &human.ID,
		CreatedAt:         now.Add(time.Millisecond),
		UpdatedAt:         now.Add(time.Millisecond),
	}
	if resume != nil {
		ai.ExecutionID = resume.ExecutionID
	}

	// Prepare the reply before committing so a session that cannot produce
	// one fails synchronously, with nothing persisted.
	prepared, err := s.prepareTurn(ctx, sess, human, ai)
	if err != nil {
		s.cleanupBlobs(blobKeys)
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if created {
			if err := s.sessions.WithTx(tx).Create(sess); err != nil {
				return err
			}
		}
		if err := s.messages.WithTx(tx).Create(human); err != nil {
			return err
		}
		for i := range attachments {
			attachments[i].SessionID = sess.ID
			attachments[i].MessageID = human.ID
			if err := s.attachments.WithTx(tx).Create(&attachments[i]); err != nil {
				return err
			}
		}
		if err := s.messages.WithTx(tx).Create(ai); err != nil {
			return err
		}
		return s.sessions.WithTx(tx).Touch(req.SessionID)
	})
	if err != nil {
		// Compensate: the transaction rolled back, so the stored payloads
		// are orphans.
		s.cleanupBlobs(blobKeys)
		return nil, err
	}

	if created {
		s.emitter.Emit(event.SessionCreatedEvent{SessionID: sess.ID})
	}
	s.emitter.Emit(event.MessageCreatedEvent{SessionID: sess.ID, MessageID: human.ID, Type: human.Type})
	s.emitter.Emit(event.MessageCreatedEvent{SessionID: sess.ID, MessageID: ai.ID, Type: ai.Type})

	if resume != nil {
		// The paused message's streamed content stands; the continuation
		// flows into the fresh placeholder.
		if err := s.messages.UpdateStatus(sess.ID, resume.ID, db.MessageStatusSuccess); err != nil {
			s.logger.Warn("Failed to close waiting message", "messageID", resume.ID, "error", err)
		}
		s.emitter.Emit(event.MessageStatusEvent{SessionID: sess.ID, MessageID: resume.ID, Status: db.MessageStatusSuccess})
	}

	go s.runGeneration(sess, human, ai, resume, prepared)

	return &models.SendMessageResponse{Session: sess, HumanMessage: human, AIMessage: ai}, nil
}

func (s *ChatService) newSessionFromRequest(req *models.SendMessageRequest) (*db.Session, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, validationf("user_id is required to create a session")
	}
	sess := &db.Session{
		ID:           req.SessionID,
		UserID:       req.UserID,
		Title:        req.Title,
		CredentialID: req.CredentialID,
		Tools:        req.Tools,
	}
	if sess.Title == "" {
		sess.Title = defaultSessionTitle
	}
	switch {
	case req.WorkflowID != nil && *req.WorkflowID != "":
		sess.BindWorkflow(*req.WorkflowID)
	case req.AgentID != nil && *req.AgentID != "":
		sess.BindAgent(*req.AgentID)
	case req.Provider != "" && req.Model != "":
		sess.BindModel(req.Provider, req.Model)
	default:
		return nil, validationf("new session needs a workflow, agent or provider+model binding")
	}
	return sess, nil
}

// saveAttachmentBlobs stores payloads before the transaction. The returned
// keys let the caller compensate if the transaction fails.
func (s *ChatService) saveAttachmentBlobs(uploads []models.AttachmentUpload) ([]string, []db.Attachment, error) {
	var keys []string
	var rows []db.Attachment
	for _, up := range uploads {
		if strings.TrimSpace(up.FileName) == "" {
			s.cleanupBlobs(keys)
			return nil, nil, validationf("attachment file name is required")
		}
		key, size, err := s.blobs.Save(bytes.NewReader(up.Data), MaxAttachmentBytes)
		if err != nil {
			s.cleanupBlobs(keys)
			return nil, nil, validationf("store attachment %s: %v", up.FileName, err)
		}
		keys = append(keys, key)
		rows = append(rows, db.Attachment{
			ID:       uuid.NewString(),
			FileName: up.FileName,
			MimeType: up.MimeType,
			FileSize: size,
			BlobKey:  key,
		})
	}
	return keys, rows, nil
}

func (s *ChatService) cleanupBlobs(keys []string) {
	for _, key := range keys {
		if err := s.blobs.Delete(key); err != nil {
			s.logger.Warn("Failed to clean up blob", "key", key, "error", err)
		}
	}
}

// maybeGenerateTitle derives a session title from its first message, best
// effort: failures are logged and swallowed, and a title the user already
// set is left alone.
func (s *ChatService) maybeGenerateTitle(sessionID, firstMessage string) {
	sess, err := s.GetSession(sessionID)
	if err != nil || sess.Title != defaultSessionTitle {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	title, err := s.titler.GenerateTitle(ctx, firstMessage)
	if err != nil || title == "" {
		if err != nil {
			s.logger.Warn("Title generation failed", "sessionID", sessionID, "error", err)
		}
		return
	}
	if err := s.sessions.UpdateTitle(sessionID, title); err != nil {
		s.logger.Warn("Failed to store generated title", "sessionID", sessionID, "error", err)
		return
	}
	s.emitter.Emit(event.SessionTitleChangedEvent{SessionID: sessionID, Title: title})
}

// ========== Edit ==========

// EditMessage edits a message. Editing a human message creates a revision
// branch and regenerates the reply; editing an assistant message rewrites
// its text in place.
func (s *ChatService) EditMessage(ctx context.Context, req *models.EditMessageRequest) (*models.EditMessageResponse, error) {
	s.locks.Lock(req.MessageID)
	defer s.locks.Unlock(req.MessageID)

	sess, err := s.GetSession(req.SessionID)
	if err != nil {
		return nil, err
	}
	msg, err := s.GetMessage(req.SessionID, req.MessageID)
	if err != nil {
		return nil, err
	}

	switch msg.Type {
	case db.MessageTypeAI:
		return s.editAIMessage(sess, msg, req)
	case db.MessageTypeHuman:
		return s.reviseHumanMessage(ctx, sess, msg, req)
	default:
		return nil, validationf("system messages cannot be edited")
	}
}

func (s *ChatService) editAIMessage(sess *db.Session, msg *db.Message, req *models.EditMessageRequest) (*models.EditMessageResponse, error) {
	// Workflow output is owned by the workflow; rewriting it would desync
	// the execution record.
	if sess.WorkflowID != nil && *sess.WorkflowID != "" {
		return nil, validationf("assistant messages in workflow sessions cannot be edited")
	}
	if msg.Status == db.MessageStatusPending || msg.Status == db.MessageStatusRunning {
		return nil, ErrGenerationInProgress
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, validationf("content is required")
	}
	if len(req.NewAttachments) > 0 || len(req.KeptAttachmentIndexes) > 0 {
		return nil, validationf("assistant messages cannot carry attachments")
	}

	if err := s.messages.UpdateContent(sess.ID, msg.ID, req.Content); err != nil {
		return nil, err
	}
	s.emitter.Emit(event.MessageUpdatedEvent{SessionID: sess.ID, MessageID: msg.ID})

	updated, err := s.GetMessage(sess.ID, msg.ID)
	if err != nil {
		return nil, err
	}
	return &models.EditMessageResponse{Message: updated}, nil
}

func (s *ChatService) reviseHumanMessage(ctx context.Context, sess *db.Session, msg *db.Message, req *models.EditMessageRequest) (*models.EditMessageResponse, error) {
	if s.streams.HasActiveStream(sess.ID) {
		return nil, ErrGenerationInProgress
	}
	kept, err := keptAttachments(msg, req.KeptAttachmentIndexes)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Content) == "" && len(kept) == 0 && len(req.NewAttachments) == 0 {
		return nil, validationf("revision needs content or attachments")
	}

	blobKeys, fresh, err := s.saveAttachmentBlobs(req.NewAttachments)
	if err != nil {
		return nil, err
	}

	// Revision lineage stays flat: revising a revision still points at the
	// original root.
	root := msg.RevisionRoot()
	now := time.Now().UTC()
	revision := &db.Message{
		ID:                  uuid.NewString(),
		SessionID:           sess.ID,
		Type:                db.MessageTypeHuman,
		Content:             req.Content,
		PreviousMessageID:   msg.PreviousMessageID,
		RevisionOfMessageID: &root,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	ai := &db.Message{
		ID:                uuid.NewString(),
		SessionID:         sess.ID,
		Type:              db.MessageTypeAI,
		Status:            db.MessageStatusPending,
		PreviousMessageID: &revision.ID,
		CreatedAt:         now.Add(time.Millisecond),
		UpdatedAt:         now.Add(time.Millisecond),
	}

	rows := make([]db.Attachment, 0, len(kept)+len(fresh))
	for _, att := range kept {
		rows = append(rows, db.Attachment{
			ID:       uuid.NewString(),
			FileName: att.FileName,
			MimeType: att.MimeType,
			FileSize: att.FileSize,
			BlobKey:  att.BlobKey,
		})
	}
	rows = append(rows, fresh...)
	revision.Attachments = rows

	prepared, err := s.prepareTurn(ctx, sess, revision, ai)
	if err != nil {
		s.cleanupBlobs(blobKeys)
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.messages.WithTx(tx).Create(revision); err != nil {
			return err
		}
		for i := range rows {
			rows[i].SessionID = sess.ID
			rows[i].MessageID = revision.ID
			if err := s.attachments.WithTx(tx).Create(&rows[i]); err != nil {
				return err
			}
		}
		if err := s.messages.WithTx(tx).Create(ai); err != nil {
			return err
		}
		return s.sessions.WithTx(tx).Touch(sess.ID)
	})
	if err != nil {
		s.cleanupBlobs(blobKeys)
		return nil, err
	}

	s.emitter.Emit(event.MessageCreatedEvent{SessionID: sess.ID, MessageID: revision.ID, Type: revision.Type})
	s.emitter.Emit(event.MessageCreatedEvent{SessionID: sess.ID, MessageID: ai.ID, Type: ai.Type})

	go s.runGeneration(sess, revision, ai, nil, prepared)

	return &models.EditMessageResponse{Message: revision, AIMessage: ai}, nil
}

func keptAttachments(msg *db.Message, indexes []int) ([]db.Attachment, error) {
	var kept []db.Attachment
	for _, idx := range indexes {
		if idx < 0 || idx >= len(msg.Attachments) {
			return nil, validationf("attachment index %d out of range for message %s", idx, msg.ID)
		}
		kept = append(kept, msg.Attachments[idx])
	}
	return kept, nil
}

// ========== Retry ==========

// RetryAIMessage regenerates an assistant message as a sibling branch. The
// human message that prompted the original prompts the retry; no new human
// message is written.
func (s *ChatService) RetryAIMessage(ctx context.Context, req *models.RetryMessageRequest) (*models.RetryMessageResponse, error) {
	s.locks.Lock(req.MessageID)
	defer s.locks.Unlock(req.MessageID)

	sess, err := s.GetSession(req.SessionID)
	if err != nil {
		return nil, err
	}
	msg, err := s.GetMessage(req.SessionID, req.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.Type != db.MessageTypeAI {
		return nil, validationf("only assistant messages can be retried")
	}
	if msg.Status == db.MessageStatusPending || msg.Status == db.MessageStatusRunning {
		return nil, ErrGenerationInProgress
	}
	if s.streams.HasActiveStream(sess.ID) {
		return nil, ErrGenerationInProgress
	}

	// The retry is prompted by the most recent human message before the
	// retried one. Anything between the two (failed attempts, partial
	// output) is left in storage but excluded from the prompt by walking
	// the chain from that human message.
	byID, err := s.messages.MapBySession(req.SessionID)
	if err != nil {
		return nil, err
	}
	var human *db.Message
	chain := history.BuildChain(byID, msg.PreviousMessageID)
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Type == db.MessageTypeHuman {
			human = chain[i]
			break
		}
	}
	if human == nil {
		return nil, validationf("message %s has no prompting message to retry from", msg.ID)
	}

	// Retry lineage stays flat: retrying a retry still points at the
	// original root.
	root := msg.RetryRoot()
	now := time.Now().UTC()
	ai := &db.Message{
		ID:                uuid.NewString(),
		SessionID:         sess.ID,
		Type:              db.MessageTypeAI,
		Status:            db.MessageStatusPending,
		PreviousMessageID: msg.PreviousMessageID,
		RetryOfMessageID:  &root,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	prepared, err := s.prepareTurn(ctx, sess, human, ai)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.messages.WithTx(tx).Create(ai); err != nil {
			return err
		}
		return s.sessions.WithTx(tx).Touch(sess.ID)
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(event.MessageCreatedEvent{SessionID: sess.ID, MessageID: ai.ID, Type: ai.Type})

	go s.runGeneration(sess, human, ai, nil, prepared)

	return &models.RetryMessageResponse{AIMessage: ai}, nil
}

// ========== Stop / Streaming ==========

// StopGeneration aborts the session's in-flight generation. The partial
// streamed content is persisted and the message becomes cancelled.
func (s *ChatService) StopGeneration(ctx context.Context, sessionID string) error {
	messageID, ok := s.streams.CurrentMessageID(sessionID)
	if !ok {
		return ErrNoActiveGeneration
	}

	s.locks.Lock(messageID)
	defer s.locks.Unlock(messageID)

	msg, err := s.GetMessage(sessionID, messageID)
	if err != nil {
		return err
	}
	// Only a running generation can be stopped; anything else is a state
	// conflict the caller should see.
	if msg.Status != db.MessageStatusRunning {
		return ErrNoActiveGeneration
	}

	partial := joinChunks(s.streams.PendingChunks(sessionID, 0))
	if partial != "" {
		if err := s.messages.UpdateContent(sessionID, messageID, partial); err != nil {
			s.logger.Warn("Failed to persist partial content", "messageID", messageID, "error", err)
		}
	}
	if err := s.messages.UpdateStatus(sessionID, messageID, db.MessageStatusCancelled); err != nil {
		return err
	}
	s.emitter.Emit(event.MessageStatusEvent{SessionID: sessionID, MessageID: messageID, Status: db.MessageStatusCancelled})

	if msg.ExecutionID != nil {
		if err := s.engine.Stop(ctx, *msg.ExecutionID); err != nil {
			s.logger.Warn("Failed to stop execution", "executionID", *msg.ExecutionID, "error", err)
		}
	}
	return nil
}

// Reconnect replays the chunks a client missed while disconnected.
func (s *ChatService) Reconnect(sessionID string, lastReceivedSeq uint64) (stream.Snapshot, error) {
	if _, err := s.GetSession(sessionID); err != nil {
		return stream.Snapshot{}, err
	}
	return s.streams.Reconnect(sessionID, lastReceivedSeq), nil
}

// GenerationStatus reports whether the session is currently generating.
func (s *ChatService) GenerationStatus(sessionID string) (*models.GenerationStatus, error) {
	if _, err := s.GetSession(sessionID); err != nil {
		return nil, err
	}
	status := &models.GenerationStatus{}
	if id, ok := s.streams.CurrentMessageID(sessionID); ok {
		status.Active = true
		status.MessageID = id
	}
	return status, nil
}

func joinChunks(chunks []stream.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Content)
	}
	return b.String()
}
