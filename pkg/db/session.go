// Database models for chat sessions
package db

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Session represents a persisted conversation bound to one reply source:
// a hosted workflow, a custom agent, or a (provider, model) pair.
// Exactly one of WorkflowID, AgentID, Provider+Model is active at a time;
// updating the binding clears the others.
type Session struct {
	ID     string `json:"id" gorm:"primaryKey;size:64"` // client-chosen
	UserID string `json:"user_id" gorm:"index;size:64;not null"`
	Title  string `json:"title" gorm:"size:200;default:'New Chat'"`

	// Reply source binding
	WorkflowID *string `json:"workflow_id,omitempty" gorm:"size:64"`
	AgentID    *string `json:"agent_id,omitempty" gorm:"size:64"`
	Provider   string  `json:"provider,omitempty" gorm:"size:50"`
	Model      string  `json:"model,omitempty" gorm:"size:100"`

	CredentialID *string     `json:"credential_id,omitempty" gorm:"size:64"`
	Tools        StringArray `json:"tools,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

// BindWorkflow sets the hosted workflow binding and clears the others.
func (s *Session) BindWorkflow(workflowID string) {
	s.WorkflowID = &workflowID
	s.AgentID = nil
	s.Provider = ""
	s.Model = ""
}

// BindAgent sets the custom agent binding and clears the others.
func (s *Session) BindAgent(agentID string) {
	s.AgentID = &agentID
	s.WorkflowID = nil
	s.Provider = ""
	s.Model = ""
}

// BindModel sets the base model binding and clears the others.
func (s *Session) BindModel(provider, model string) {
	s.Provider = provider
	s.Model = model
	s.WorkflowID = nil
	s.AgentID = nil
}

// StringArray is a string slice stored as JSON in a text column.
type StringArray []string

// Value implements driver.Valuer for database storage
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for database retrieval
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, a)
}
