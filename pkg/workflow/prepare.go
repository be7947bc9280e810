// Package workflow translates a conversation turn into an executable
// workflow definition plus trigger input for the external execution engine.
// The three reply sources (hosted workflow, custom agent, base chat model)
// form a closed set dispatched through one Prepare capability.
package workflow

import (
	"context"
	"fmt"

	"github.com/weavechat/weavechat/pkg/db"
	"github.com/weavechat/weavechat/pkg/history"
)

// Response modes understood by the execution engine.
const (
	ResponseModeStreaming = "streaming"
	ResponseModeLastNode  = "lastNode"
)

// Source kinds.
const (
	SourceKindWorkflow = "workflow"
	SourceKindAgent    = "agent"
	SourceKindModel    = "model"
)

// Turn is one conversational turn ready for reply preparation.
type Turn struct {
	SessionID    string
	MessageID    string
	Input        string
	Prompt       []history.Entry
	Tools        []string
	CredentialID string
	Model        history.ModelMetadata
}

// Prepared is the executable unit handed to the execution engine.
type Prepared struct {
	Definition   map[string]any
	TriggerInput map[string]any
	ResponseMode string
}

// ReplySource prepares a reply workflow for a turn. Exactly one variant is
// derived from a session's binding.
type ReplySource interface {
	Kind() string
	Prepare(ctx context.Context, turn *Turn) (*Prepared, error)
}

// SourceFromSession derives the reply source variant from the session
// binding. Exactly one of workflow, agent or provider+model must be set.
func SourceFromSession(sess *db.Session) (ReplySource, error) {
	switch {
	case sess.WorkflowID != nil && *sess.WorkflowID != "":
		return WorkflowSource{WorkflowID: *sess.WorkflowID}, nil
	case sess.AgentID != nil && *sess.AgentID != "":
		return AgentSource{AgentID: *sess.AgentID}, nil
	case sess.Provider != "" && sess.Model != "":
		return ModelSource{Provider: sess.Provider, Model: sess.Model}, nil
	default:
		return nil, fmt.Errorf("session %s has no reply source binding", sess.ID)
	}
}

// WorkflowSource replies through a hosted workflow referenced by ID. The
// workflow's own graph runs as-is; the turn only feeds its chat trigger.
type WorkflowSource struct {
	WorkflowID string
}

func (s WorkflowSource) Kind() string { return SourceKindWorkflow }

func (s WorkflowSource) Prepare(ctx context.Context, turn *Turn) (*Prepared, error) {
	return &Prepared{
		Definition: map[string]any{
			"kind":       SourceKindWorkflow,
			"workflowId": s.WorkflowID,
		},
		TriggerInput: map[string]any{
			"sessionId": turn.SessionID,
			"messageId": turn.MessageID,
			"input":     turn.Input,
		},
		ResponseMode: ResponseModeLastNode,
	}, nil
}

// AgentSource replies through a custom agent definition.
type AgentSource struct {
	AgentID string
}

func (s AgentSource) Kind() string { return SourceKindAgent }

func (s AgentSource) Prepare(ctx context.Context, turn *Turn) (*Prepared, error) {
	return &Prepared{
		Definition: map[string]any{
			"kind":    SourceKindAgent,
			"agentId": s.AgentID,
			"tools":   turn.Tools,
		},
		TriggerInput: map[string]any{
			"sessionId": turn.SessionID,
			"messageId": turn.MessageID,
			"input":     turn.Input,
			"history":   turn.Prompt,
		},
		ResponseMode: ResponseModeStreaming,
	}, nil
}

// ModelSource replies through a bare chat model call against the bound
// (provider, model) pair.
type ModelSource struct {
	Provider string
	Model    string
}

func (s ModelSource) Kind() string { return SourceKindModel }

func (s ModelSource) Prepare(ctx context.Context, turn *Turn) (*Prepared, error) {
	def := map[string]any{
		"kind":     SourceKindModel,
		"provider": s.Provider,
		"model":    s.Model,
	}
	if turn.CredentialID != "" {
		def["credentialId"] = turn.CredentialID
	}
	if len(turn.Tools) > 0 {
		def["tools"] = turn.Tools
	}
	return &Prepared{
		Definition: def,
		TriggerInput: map[string]any{
			"sessionId": turn.SessionID,
			"messageId": turn.MessageID,
			"input":     turn.Input,
			"history":   turn.Prompt,
		},
		ResponseMode: ResponseModeStreaming,
	}, nil
}
