package service

import "github.com/weavechat/weavechat/pkg/history"

// ModelCatalog resolves the input modalities a bound model accepts, which
// drives how binary attachments are inlined into prompts.
type ModelCatalog interface {
	Metadata(provider, model string) history.ModelMetadata
}

// StaticCatalog is a fixed modality table. Unknown models are treated as
// text-only, the safe degradation for attachment handling.
type StaticCatalog struct {
	modalities map[string][]string
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{modalities: map[string][]string{
		"openai/gpt-4o":               {"text", "image"},
		"openai/gpt-4o-mini":          {"text", "image"},
		"anthropic/claude-sonnet-4-0": {"text", "image", "document"},
		"anthropic/claude-opus-4-0":   {"text", "image", "document"},
		"google/gemini-2.5-pro":       {"text", "image", "audio", "video", "document"},
	}}
}

func (c *StaticCatalog) Metadata(provider, model string) history.ModelMetadata {
	meta := history.ModelMetadata{
		Provider:        provider,
		Model:           model,
		InputModalities: []string{"text"},
	}
	if mods, ok := c.modalities[provider+"/"+model]; ok {
		meta.InputModalities = mods
	}
	return meta
}
