// Package store defines the remote conversation store contract consumed by
// the messaging engine: atomic multi-document writes, ordered one-shot reads,
// and change-feed subscriptions that deliver the full current result set on
// every matching change.
package store

import (
	"context"

	"github.com/sahedhasan999/permitdraft-hero-sub000/model"
)

// CancelFunc tears down a change-feed subscription. Implementations must make
// it safe to call more than once.
type CancelFunc func()

// ConversationsFunc receives the full current conversation set, ordered by
// lastUpdated descending.
type ConversationsFunc func(conversations []model.Conversation)

// MessagesFunc receives the full message history of one conversation, ordered
// by timestamp ascending.
type MessagesFunc func(messages []model.Message)

// ErrorFunc receives change-feed failures.
type ErrorFunc func(err error)

// ConversationStore is the document store backing conversations and messages.
type ConversationStore interface {
	// CreateConversationWithMessage atomically inserts a new conversation
	// document and its first message. The store assigns both ids and all
	// timestamp fields; messageCount starts at 1 and lastMessagePreview is the
	// first message's content. Returns (conversationID, messageID).
	CreateConversationWithMessage(ctx context.Context, conv model.Conversation, msg model.Message) (string, string, error)

	// AppendMessage atomically inserts a message and updates the parent
	// conversation's lastUpdated, lastMessagePreview, and messageCount (+1)
	// in the same commit. Returns the new message id.
	AppendMessage(ctx context.Context, conversationID string, msg model.Message) (string, error)

	// PatchMessageAttachments replaces a message's attachments list in a
	// single update. Used once per message, after its upload batch settles.
	PatchMessageAttachments(ctx context.Context, conversationID, messageID string, attachments []model.Attachment) error

	// SetConversationStatus toggles a conversation between active and closed.
	SetConversationStatus(ctx context.Context, conversationID string, status model.ConversationStatus) error

	// GetConversation reads one conversation summary.
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)

	// ListMessages performs a one-shot ordered read of a conversation's full
	// message history, ascending by timestamp.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)

	// WatchConversations subscribes to the conversation collection. The
	// callback fires with the current full result set immediately and again
	// after every change. Callbacks for one subscription are serialized.
	WatchConversations(ctx context.Context, onSnapshot ConversationsFunc, onError ErrorFunc) (CancelFunc, error)

	// WatchMessages subscribes to one conversation's message stream with the
	// same snapshot semantics as WatchConversations.
	WatchMessages(ctx context.Context, conversationID string, onSnapshot MessagesFunc, onError ErrorFunc) (CancelFunc, error)

	// Close releases the underlying client.
	Close(ctx context.Context) error
}
