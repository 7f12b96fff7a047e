// Package context provides shared context utilities
package context

import (
	"context"
)

// contextKey is used for context values
type contextKey struct {
	name string
}

// MessageIDKey is the key used to store the queue message ID in context
var MessageIDKey = contextKey{"messageID"}

// GetMessageIDFromContext extracts the message ID from context
func GetMessageIDFromContext(ctx context.Context) (string, bool) {
	messageID, ok := ctx.Value(MessageIDKey).(string)
	return messageID, ok && messageID != ""
}

// WithMessageID adds the message ID to context
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}
