package service

import (
	"context"
	"strings"
	"unicode/utf8"
)

const defaultSessionTitle = "New Chat"
const titleMaxRunes = 40

// TitleGenerator derives a session title from its first message. Title
// generation is best effort: a failure never fails the send that triggered
// it.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, firstMessage string) (string, error)
}

// TruncatingTitleGenerator builds a title from the first line of the first
// message. It stands in wherever no model-backed generator is wired.
type TruncatingTitleGenerator struct{}

func (TruncatingTitleGenerator) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	line := firstMessage
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultSessionTitle, nil
	}
	if utf8.RuneCountInString(line) > titleMaxRunes {
		runes := []rune(line)
		line = strings.TrimSpace(string(runes[:titleMaxRunes])) + "…"
	}
	return line, nil
}
