package history

import (
	"github.com/weavechat/weavechat/pkg/db"
)

// BuildChain walks the previous-message links backward from terminalID and
// returns the chain in chronological (oldest-first) order.
//
// The walk stops at a nil parent, at a dangling link (the referenced message
// is missing from byID) or when an already-visited ID comes up again. A cycle
// is a corruption condition, not a hard failure: the walk terminates and
// returns whatever was collected.
func BuildChain(byID map[string]*db.Message, terminalID *string) []*db.Message {
	if terminalID == nil {
		return nil
	}

	visited := make(map[string]bool)
	var reversed []*db.Message

	id := *terminalID
	for id != "" {
		if visited[id] {
			break
		}
		msg, ok := byID[id]
		if !ok {
			break
		}
		visited[id] = true
		reversed = append(reversed, msg)

		if msg.PreviousMessageID == nil {
			break
		}
		id = *msg.PreviousMessageID
	}

	// Reverse into chronological order.
	chain := make([]*db.Message, len(reversed))
	for i, msg := range reversed {
		chain[len(reversed)-1-i] = msg
	}
	return chain
}
