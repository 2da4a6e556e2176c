package messaging

import (
	"context"
	"fmt"

	"github.com/sahedhasan999/permitdraft-hero-sub000/attachments"
	"github.com/sahedhasan999/permitdraft-hero-sub000/blob"
	"github.com/sahedhasan999/permitdraft-hero-sub000/config"
	"github.com/sahedhasan999/permitdraft-hero-sub000/model"
	"github.com/sahedhasan999/permitdraft-hero-sub000/store"
)

// Service is the messaging surface consumed by UI code. It bundles the write
// coordinator, the per-user view, and aggregator construction over one store
// and blob backend.
type Service struct {
	store       store.ConversationStore
	uploader    *attachments.Uploader
	coordinator *Coordinator
}

// NewService wires a Service from explicit backends.
func NewService(st store.ConversationStore, blobs blob.BlobStore, cfg *config.Config) *Service {
	maxSize := int64(0)
	if cfg != nil {
		maxSize = cfg.AttachmentMaxSize
	}
	uploader := attachments.NewUploader(blobs, maxSize)
	return &Service{
		store:       st,
		uploader:    uploader,
		coordinator: NewCoordinator(st, uploader),
	}
}

// Load builds a Service from the config carried in ctx, selecting the store
// and blob backends from their plugin registries.
func Load(ctx context.Context) (*Service, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("messaging: no config in context")
	}
	storeLoader, err := store.Select(cfg.StoreType)
	if err != nil {
		return nil, err
	}
	st, err := storeLoader(ctx)
	if err != nil {
		return nil, err
	}
	blobLoader, err := blob.Select(cfg.BlobType)
	if err != nil {
		return nil, err
	}
	blobs, err := blobLoader(ctx)
	if err != nil {
		return nil, err
	}
	return NewService(st, blobs, cfg), nil
}

// SubscribeOwnConversations streams the hydrated conversations owned by one
// user, matched by id or email.
func (s *Service) SubscribeOwnConversations(ctx context.Context, ownerID, ownerEmail string, onUpdate func([]Thread)) (store.CancelFunc, error) {
	return NewUserView(s.store).Subscribe(ctx, ownerID, ownerEmail, onUpdate)
}

// SubscribeConversationMessages streams one conversation's full message
// history, ascending by timestamp, on every change.
func (s *Service) SubscribeConversationMessages(ctx context.Context, conversationID string, onUpdate func([]model.Message), onError func(error)) (store.CancelFunc, error) {
	return s.store.WatchMessages(ctx, conversationID, onUpdate, onError)
}

// SubscribeAllConversations streams the aggregated operator view. Each call
// constructs its own engine instance, so independent admin sessions never
// share cache or listener state.
func (s *Service) SubscribeAllConversations(ctx context.Context, onUpdate func([]Thread), onError func(error)) (store.CancelFunc, error) {
	return NewAggregator(s.store).Subscribe(ctx, onUpdate, onError)
}

// CreateConversation opens a conversation with its first message and drives
// the attachment uploads. Returns the new conversation id.
func (s *Service) CreateConversation(ctx context.Context, req CreateConversationRequest) (string, error) {
	return s.coordinator.CreateConversation(ctx, req)
}

// SendMessage appends a message to an existing conversation.
func (s *Service) SendMessage(ctx context.Context, conversationID string, sender model.Sender, content string, atts []model.Attachment) error {
	return s.coordinator.SendMessage(ctx, conversationID, sender, content, atts)
}

// SetConversationStatus toggles a conversation between active and closed.
func (s *Service) SetConversationStatus(ctx context.Context, conversationID string, status model.ConversationStatus) error {
	if status != model.StatusActive && status != model.StatusClosed {
		return &store.ValidationError{Field: "status", Message: "status must be active or closed"}
	}
	return s.store.SetConversationStatus(ctx, conversationID, status)
}

// UploadFile uploads one file under the conversation's namespace and returns
// its descriptor.
func (s *Service) UploadFile(ctx context.Context, conversationID string, f attachments.File) (model.Attachment, error) {
	return s.uploader.Upload(ctx, conversationID, f)
}
