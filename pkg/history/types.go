// Package history builds model-ready prompts from the branching message
// history. It walks the previous-message back-chain, maps messages to
// role-tagged entries and inlines attachments under a total payload budget.
package history

// Roles of prompt entries.
const (
	RoleUser   = "user"
	RoleAI     = "ai"
	RoleSystem = "system"
)

// Block types within an entry.
const (
	BlockTypeText  = "text"
	BlockTypeMedia = "media"
)

// Block is one content block of a prompt entry.
type Block struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mime_type,omitempty"` // media blocks
	DataURL  string `json:"data_url,omitempty"`  // media blocks
}

// Entry is one role-tagged unit of the assembled prompt.
type Entry struct {
	Role   string  `json:"role"`
	Hidden bool    `json:"hidden,omitempty"` // not rendered in UI (context-file entries)
	Blocks []Block `json:"blocks"`
}

// Text returns the concatenated text of all text blocks.
func (e Entry) Text() string {
	var out string
	for _, b := range e.Blocks {
		if b.Type == BlockTypeText {
			if out != "" {
				out += "\n"
			}
			out += b.Text
		}
	}
	return out
}

// Item kinds. An embedding item lives in the knowledge base and is never
// inlined; the model is told to use the retrieval tool instead.
const (
	ItemKindFile      = "file"
	ItemKindEmbedding = "embedding"
)

// Item is one attachable content item: a message attachment or a
// knowledge-base context file.
type Item struct {
	Kind     string
	Name     string
	MimeType string
	Key      string // blob store key
}

// Fetcher provides byte access to item payloads. Implemented by blob.Store.
type Fetcher interface {
	Fetch(key string, maxBytes int64) ([]byte, error)
	DataURL(key, mimeType string, maxBytes int64) (string, error)
}

// ModelMetadata describes the target model for prompt assembly.
type ModelMetadata struct {
	Provider        string
	Model           string
	InputModalities []string // content categories the model accepts, e.g. "text", "image"
}

// Accepts reports whether the model declares the given input modality.
func (m ModelMetadata) Accepts(modality string) bool {
	for _, got := range m.InputModalities {
		if got == modality {
			return true
		}
	}
	return false
}
