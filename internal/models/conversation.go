package models

import (
	"sort"
	"strings"
	"time"
)

// Conversation is a private thread between exactly two users.
type Conversation struct {
	ID           string    `json:"id"`
	Participants [2]string `json:"participants"`
	Messages     []Message `json:"messages"`
	LastActivity time.Time `json:"lastActivity"`
}

// ConversationID returns the canonical key for a pair of users; swapping the
// arguments yields the same id.
func ConversationID(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, "-")
}
