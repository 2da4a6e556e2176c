package messaging

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/sahedhasan999/permitdraft-hero-sub000/model"
	"github.com/sahedhasan999/permitdraft-hero-sub000/store"
)

// UserView streams the conversations owned by a single user. It is the simple
// baseline path: every top-level change re-fetches every owned conversation's
// messages, with no caching and no nested listeners. One end user owns few
// conversations, so the re-reads stay cheap.
type UserView struct {
	store store.ConversationStore
}

// NewUserView creates a per-user subscription view.
func NewUserView(st store.ConversationStore) *UserView {
	return &UserView{store: st}
}

// Subscribe opens one change feed on the conversation collection and, on
// every snapshot, delivers the fully hydrated list of conversations whose
// ownerId matches ownerID or whose ownerEmail matches ownerEmail. The email
// predicate covers conversations an operator opened on the user's behalf.
// The returned cancel tears down only the top-level feed.
func (v *UserView) Subscribe(ctx context.Context, ownerID, ownerEmail string, onUpdate func([]Thread)) (store.CancelFunc, error) {
	return v.store.WatchConversations(ctx, func(conversations []model.Conversation) {
		threads := make([]Thread, 0, len(conversations))
		for _, conv := range conversations {
			if !ownedBy(conv, ownerID, ownerEmail) {
				continue
			}
			messages, err := v.store.ListMessages(ctx, conv.ID)
			if err != nil {
				log.Error("hydrate own conversation failed",
					"conversationId", conv.ID, "err", err)
				threads = append(threads, Thread{Conversation: conv, HydrationErr: err})
				continue
			}
			threads = append(threads, Thread{Conversation: conv, Messages: messages})
		}
		onUpdate(threads)
	}, func(err error) {
		log.Error("own-conversations feed failed", "ownerId", ownerID, "err", err)
	})
}

func ownedBy(conv model.Conversation, ownerID, ownerEmail string) bool {
	if ownerID != "" && conv.OwnerID == ownerID {
		return true
	}
	if ownerEmail != "" && conv.OwnerEmail == ownerEmail {
		return true
	}
	return false
}
