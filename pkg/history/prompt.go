package history

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/weavechat/weavechat/pkg/db"
	"github.com/weavechat/weavechat/pkg/utils"
)

// Builder assembles role-tagged prompt entries from a message chain under a
// cumulative payload budget.
type Builder struct {
	fetcher Fetcher
	budget  int
	logger  *slog.Logger
}

func NewBuilder(fetcher Fetcher, budget int) *Builder {
	return &Builder{
		fetcher: fetcher,
		budget:  budget,
		logger:  utils.GetLogger(),
	}
}

// resolveOutcome is internal control flow for item resolution. It never
// escapes this package as an error.
type resolveOutcome int

const (
	resolveOK resolveOutcome = iota
	resolveSizeExceeded
	resolveUnsupported
)

const (
	attachmentPrefix  = "Attachment"
	contextFilePrefix = "Context file"
)

// BuildPrompt converts a chronological message chain into prompt entries.
//
// The chain is traversed newest-first so the most recent content claims the
// budget first; older attachments degrade to placeholders when the budget
// runs out. Messages with empty content cannot be faithfully replayed to the
// model and are skipped. Context files (knowledge-base items, distinct from
// per-message attachments) become one extra hidden user entry. The result is
// returned in chronological order.
func (b *Builder) BuildPrompt(chain []*db.Message, model ModelMetadata, contextFiles []Item) []Entry {
	size := 0
	var reversed []Entry

	for i := len(chain) - 1; i >= 0; i-- {
		msg := chain[i]
		if strings.TrimSpace(msg.Content) == "" {
			b.logger.Debug("Skipping message with empty content", "messageID", msg.ID, "type", msg.Type)
			continue
		}

		role := mapRole(msg.Type)

		if len(msg.Attachments) == 0 {
			if size+len(msg.Content) > b.budget {
				continue
			}
			size += len(msg.Content)
			reversed = append(reversed, Entry{
				Role:   role,
				Blocks: []Block{{Type: BlockTypeText, Text: msg.Content}},
			})
			continue
		}

		// Leading text block plus one resolved block set per attachment.
		blocks := make([]Block, 0, len(msg.Attachments)+1)
		if size+len(msg.Content) <= b.budget {
			size += len(msg.Content)
			blocks = append(blocks, Block{Type: BlockTypeText, Text: msg.Content})
		}
		for _, att := range msg.Attachments {
			item := Item{
				Kind:     ItemKindFile,
				Name:     att.FileName,
				MimeType: att.MimeType,
				Key:      att.BlobKey,
			}
			blocks = append(blocks, b.resolveItemBlocks(item, &size, model, attachmentPrefix)...)
		}
		if len(blocks) > 0 {
			reversed = append(reversed, Entry{Role: role, Blocks: blocks})
		}
	}

	// Context files ride along as one hidden user entry, resolved through
	// the same per-item procedure.
	if len(contextFiles) > 0 {
		var blocks []Block
		for _, item := range contextFiles {
			blocks = append(blocks, b.resolveItemBlocks(item, &size, model, contextFilePrefix)...)
		}
		if len(blocks) > 0 {
			reversed = append(reversed, Entry{Role: RoleUser, Hidden: true, Blocks: blocks})
		}
	}

	// Back to chronological order.
	entries := make([]Entry, len(reversed))
	for i, e := range reversed {
		entries[len(reversed)-1-i] = e
	}
	return entries
}

func mapRole(messageType string) string {
	switch messageType {
	case db.MessageTypeHuman:
		return RoleUser
	case db.MessageTypeAI:
		return RoleAI
	case db.MessageTypeSystem:
		return RoleSystem
	default:
		return RoleSystem
	}
}

// resolveItemBlocks turns one item into prompt blocks, degrading to a text
// placeholder when the budget is spent, the model cannot take the content
// type, or the payload cannot be fetched. It never returns an error: the
// size-exceeded and unsupported conditions are internal signals only.
func (b *Builder) resolveItemBlocks(item Item, size *int, model ModelMetadata, prefix string) []Block {
	blocks, outcome := b.resolveInline(item, size, model, prefix)
	switch outcome {
	case resolveOK:
		return blocks
	case resolveUnsupported:
		return []Block{unsupportedBlock(prefix, item.Name)}
	default:
		return []Block{sizeLimitBlock(prefix, item.Name)}
	}
}

func (b *Builder) resolveInline(item Item, size *int, model ModelMetadata, prefix string) ([]Block, resolveOutcome) {
	if *size >= b.budget {
		return nil, resolveSizeExceeded
	}

	// Knowledge-base embedding items are never inlined.
	if item.Kind == ItemKindEmbedding {
		note := fmt.Sprintf("%s: %s\n(Stored in the knowledge base; use the knowledge lookup tool to retrieve its content)", prefix, item.Name)
		if *size+len(note) > b.budget {
			return nil, resolveSizeExceeded
		}
		*size += len(note)
		return []Block{{Type: BlockTypeText, Text: note}}, resolveOK
	}

	if isTextualMime(item.MimeType) {
		payload, err := b.fetcher.Fetch(item.Key, 0)
		if err != nil {
			b.logger.Warn("Failed to fetch attachment content", "name", item.Name, "error", err)
			return nil, resolveSizeExceeded
		}
		text := fmt.Sprintf("%s: %s\n%s", prefix, item.Name, string(payload))
		if *size+len(text) > b.budget {
			return nil, resolveSizeExceeded
		}
		*size += len(text)
		return []Block{{Type: BlockTypeText, Text: text}}, resolveOK
	}

	// Binary content: check the model's declared input modalities first.
	modality := modalityForMime(item.MimeType)
	if modality == "" || !model.Accepts(modality) {
		return nil, resolveUnsupported
	}

	dataURL, err := b.fetcher.DataURL(item.Key, item.MimeType, 0)
	if err != nil {
		b.logger.Warn("Failed to fetch attachment data URL", "name", item.Name, "error", err)
		return nil, resolveSizeExceeded
	}
	label := fmt.Sprintf("%s: %s", prefix, item.Name)
	if *size+len(label)+len(dataURL) > b.budget {
		return nil, resolveSizeExceeded
	}
	*size += len(label) + len(dataURL)
	return []Block{
		{Type: BlockTypeText, Text: label},
		{Type: BlockTypeMedia, MimeType: item.MimeType, DataURL: dataURL},
	}, resolveOK
}

func sizeLimitBlock(prefix, name string) Block {
	return Block{
		Type: BlockTypeText,
		Text: fmt.Sprintf("%s: %s\n(Content omitted due to size limit)", prefix, name),
	}
}

func unsupportedBlock(prefix, name string) Block {
	return Block{
		Type: BlockTypeText,
		Text: fmt.Sprintf("%s: %s\n(Unsupported file type)", prefix, name),
	}
}

func isTextualMime(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/csv",
		"application/yaml", "application/x-yaml":
		return true
	}
	return false
}

func modalityForMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case mimeType == "application/pdf":
		return "document"
	default:
		return ""
	}
}
