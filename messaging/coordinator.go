package messaging

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/sahedhasan999/permitdraft-hero-sub000/attachments"
	"github.com/sahedhasan999/permitdraft-hero-sub000/model"
	"github.com/sahedhasan999/permitdraft-hero-sub000/store"
)

// Coordinator drives the write paths: creating conversations with their first
// message and appending messages, both as atomic store commits, with
// attachment uploads handled separately per file.
type Coordinator struct {
	store    store.ConversationStore
	uploader *attachments.Uploader
}

// NewCoordinator creates a write coordinator.
func NewCoordinator(st store.ConversationStore, uploader *attachments.Uploader) *Coordinator {
	return &Coordinator{store: st, uploader: uploader}
}

// CreateConversationRequest carries everything needed to open a conversation.
// FromSupport marks a conversation an operator opens on a user's behalf; the
// first message is then attributed to the admin side and the owner is matched
// by email later.
type CreateConversationRequest struct {
	OwnerID     string
	OwnerEmail  string
	DisplayName string
	Subject     string
	Text        string
	Files       []attachments.File
	FromSupport bool
}

// CreateConversation commits the conversation and its first message in one
// transaction, then uploads any pending files and patches the message's
// attachments with whichever descriptors succeeded. A failed upload is logged
// and skipped; it never aborts the other files or the conversation.
//
// The first message is visible with zero attachments until the patch lands,
// so the conversation shows up immediately instead of waiting on uploads.
func (c *Coordinator) CreateConversation(ctx context.Context, req CreateConversationRequest) (string, error) {
	if strings.TrimSpace(req.OwnerID) == "" && strings.TrimSpace(req.OwnerEmail) == "" {
		return "", &store.ValidationError{Field: "ownerId", Message: "ownerId or ownerEmail is required"}
	}
	if strings.TrimSpace(req.Subject) == "" {
		return "", &store.ValidationError{Field: "subject", Message: "subject is required"}
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Files) == 0 {
		return "", &store.ValidationError{Field: "text", Message: "a first message or at least one file is required"}
	}

	sender := model.SenderCustomer
	if req.FromSupport {
		sender = model.SenderAdmin
	}

	conv := model.Conversation{
		OwnerID:     req.OwnerID,
		OwnerEmail:  req.OwnerEmail,
		DisplayName: req.DisplayName,
		Subject:     req.Subject,
	}
	msg := model.Message{
		Sender:  sender,
		Content: req.Text,
	}
	conversationID, messageID, err := c.store.CreateConversationWithMessage(ctx, conv, msg)
	if err != nil {
		return "", err
	}

	if len(req.Files) == 0 {
		return conversationID, nil
	}

	uploaded := make([]model.Attachment, 0, len(req.Files))
	for _, f := range req.Files {
		att, err := c.uploader.Upload(ctx, conversationID, f)
		if err != nil {
			log.Error("attachment upload failed, skipping file",
				"conversationId", conversationID, "file", f.Name, "err", err)
			continue
		}
		uploaded = append(uploaded, att)
	}
	if len(uploaded) == 0 {
		return conversationID, nil
	}

	if err := c.store.PatchMessageAttachments(ctx, conversationID, messageID, uploaded); err != nil {
		log.Error("attachment patch failed", "conversationId", conversationID, "messageId", messageID, "err", err)
		return conversationID, err
	}
	return conversationID, nil
}

// SendMessage appends one message and updates the parent conversation's
// summary fields in the same commit. At least one of content (non-blank) or
// attachments must be present.
func (c *Coordinator) SendMessage(ctx context.Context, conversationID string, sender model.Sender, content string, atts []model.Attachment) error {
	if strings.TrimSpace(conversationID) == "" {
		return &store.ValidationError{Field: "conversationId", Message: "conversationId is required"}
	}
	if sender != model.SenderCustomer && sender != model.SenderAdmin {
		return &store.ValidationError{Field: "sender", Message: "sender must be customer or admin"}
	}
	if strings.TrimSpace(content) == "" && len(atts) == 0 {
		return &store.ValidationError{Field: "content", Message: "content or attachments required"}
	}
	_, err := c.store.AppendMessage(ctx, conversationID, model.Message{
		Sender:      sender,
		Content:     content,
		Attachments: atts,
	})
	return err
}
