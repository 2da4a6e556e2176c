package model

import "time"

// ConversationStatus tracks whether a conversation is still open for replies.
type ConversationStatus string

const (
	StatusActive ConversationStatus = "active"
	StatusClosed ConversationStatus = "closed"
)

// Sender identifies which side of a conversation authored a message.
type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderAdmin    Sender = "admin"
)

// Conversation is the summary document for one customer/support thread.
// A conversation is owned by exactly one end user, identified by OwnerID, or
// by OwnerEmail for conversations an operator opened on the user's behalf.
type Conversation struct {
	ID                 string             `json:"id"`
	OwnerID            string             `json:"ownerId"`
	OwnerEmail         string             `json:"ownerEmail"`
	DisplayName        string             `json:"displayName"`
	Subject            string             `json:"subject"`
	Status             ConversationStatus `json:"status"`
	CreatedAt          time.Time          `json:"createdAt"`
	LastUpdated        time.Time          `json:"lastUpdated"`
	LastMessagePreview string             `json:"lastMessagePreview"`
	MessageCount       int                `json:"messageCount"`
}

// Message is one entry in a conversation's history. Messages are never
// mutated after creation except for the one-time attachments patch that
// follows an upload batch, and are never deleted.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Sender         Sender       `json:"sender"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments"`
	Timestamp      time.Time    `json:"timestamp"`
	Read           bool         `json:"read"`
}

// Attachment is the descriptor embedded by value inside a message. Size is
// pre-formatted for display ("1.23 MB"); the URL is a durable fetch link.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size string `json:"size"`
	Type string `json:"type"`
}
