package messaging_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sahedhasan999/permitdraft-hero-sub000/messaging"
	"github.com/sahedhasan999/permitdraft-hero-sub000/model"
	"github.com/sahedhasan999/permitdraft-hero-sub000/store"
)

// fakeStore is an in-process ConversationStore for the messaging tests. Feed
// callbacks are delivered synchronously, outside the store lock. Writes
// notify the affected conversation's message feed immediately; conversation
// feed snapshots are pushed explicitly with emitConversations so tests
// control the outer cadence.
type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]model.Conversation
	messages      map[string][]model.Message
	listCalls     map[string]int
	listErr       map[string]error
	convSubs      map[int]store.ConversationsFunc
	msgSubs       map[int]msgSub
	nextSub       int
	nextID        int
	tick          int64
	base          time.Time
}

type msgSub struct {
	conversationID string
	fn             store.MessagesFunc
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: map[string]model.Conversation{},
		messages:      map[string][]model.Message{},
		listCalls:     map[string]int{},
		listErr:       map[string]error{},
		convSubs:      map[int]store.ConversationsFunc{},
		msgSubs:       map[int]msgSub{},
		base:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) nextTimeLocked() time.Time {
	f.tick++
	return f.base.Add(time.Duration(f.tick) * time.Millisecond)
}

func (f *fakeStore) nextIDLocked(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- ConversationStore ---

func (f *fakeStore) CreateConversationWithMessage(_ context.Context, conv model.Conversation, msg model.Message) (string, string, error) {
	f.mu.Lock()
	convID := f.nextIDLocked("conv")
	msgID := f.nextIDLocked("msg")
	now := f.nextTimeLocked()

	conv.ID = convID
	conv.Status = model.StatusActive
	conv.CreatedAt = now
	conv.LastUpdated = now
	conv.LastMessagePreview = msg.Content
	conv.MessageCount = 1

	msg.ID = msgID
	msg.ConversationID = convID
	msg.Attachments = nil
	msg.Timestamp = now

	f.conversations[convID] = conv
	f.messages[convID] = []model.Message{msg}
	f.mu.Unlock()
	return convID, msgID, nil
}

func (f *fakeStore) AppendMessage(_ context.Context, conversationID string, msg model.Message) (string, error) {
	f.mu.Lock()
	conv, ok := f.conversations[conversationID]
	if !ok {
		f.mu.Unlock()
		return "", &store.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	msg.ID = f.nextIDLocked("msg")
	msg.ConversationID = conversationID
	msg.Timestamp = f.nextTimeLocked()

	f.messages[conversationID] = append(f.messages[conversationID], msg)
	conv.LastUpdated = msg.Timestamp
	conv.LastMessagePreview = msg.Content
	conv.MessageCount++
	f.conversations[conversationID] = conv
	f.mu.Unlock()

	f.notifyMessageSubs(conversationID)
	return msg.ID, nil
}

func (f *fakeStore) PatchMessageAttachments(_ context.Context, conversationID, messageID string, atts []model.Attachment) error {
	f.mu.Lock()
	msgs := f.messages[conversationID]
	patched := false
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Attachments = atts
			patched = true
			break
		}
	}
	f.mu.Unlock()
	if !patched {
		return &store.NotFoundError{Resource: "message", ID: messageID}
	}
	f.notifyMessageSubs(conversationID)
	return nil
}

func (f *fakeStore) SetConversationStatus(_ context.Context, conversationID string, status model.ConversationStatus) error {
	f.mu.Lock()
	conv, ok := f.conversations[conversationID]
	if !ok {
		f.mu.Unlock()
		return &store.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	conv.Status = status
	conv.LastUpdated = f.nextTimeLocked()
	f.conversations[conversationID] = conv
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) GetConversation(_ context.Context, conversationID string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, &store.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	return &conv, nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[conversationID]++
	if err := f.listErr[conversationID]; err != nil {
		return nil, err
	}
	return append([]model.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeStore) WatchConversations(_ context.Context, onSnapshot store.ConversationsFunc, _ store.ErrorFunc) (store.CancelFunc, error) {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.convSubs[id] = onSnapshot
	f.mu.Unlock()

	onSnapshot(f.snapshotConversations())
	return func() {
		f.mu.Lock()
		delete(f.convSubs, id)
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) WatchMessages(_ context.Context, conversationID string, onSnapshot store.MessagesFunc, _ store.ErrorFunc) (store.CancelFunc, error) {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.msgSubs[id] = msgSub{conversationID: conversationID, fn: onSnapshot}
	msgs := append([]model.Message(nil), f.messages[conversationID]...)
	f.mu.Unlock()

	onSnapshot(msgs)
	return func() {
		f.mu.Lock()
		delete(f.msgSubs, id)
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) Close(context.Context) error { return nil }

var _ store.ConversationStore = (*fakeStore)(nil)

// --- Test helpers ---

// seedConversation installs a conversation with messages without going
// through the write path.
func (f *fakeStore) seedConversation(conv model.Conversation, msgs ...model.Message) {
	f.mu.Lock()
	if conv.LastUpdated.IsZero() {
		conv.LastUpdated = f.nextTimeLocked()
	}
	conv.MessageCount = len(msgs)
	f.conversations[conv.ID] = conv
	f.messages[conv.ID] = append([]model.Message(nil), msgs...)
	f.mu.Unlock()
}

// touchConversation bumps lastUpdated, as a send would.
func (f *fakeStore) touchConversation(conversationID string) {
	f.mu.Lock()
	conv := f.conversations[conversationID]
	conv.LastUpdated = f.nextTimeLocked()
	f.conversations[conversationID] = conv
	f.mu.Unlock()
}

// removeConversation deletes a conversation document outright.
func (f *fakeStore) removeConversation(conversationID string) {
	f.mu.Lock()
	delete(f.conversations, conversationID)
	delete(f.messages, conversationID)
	f.mu.Unlock()
}

func (f *fakeStore) snapshotConversations() []model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Conversation, 0, len(f.conversations))
	for _, c := range f.conversations {
		out = append(out, c)
	}
	return out
}

// emitConversations pushes the current conversation set to every outer
// subscriber, synchronously.
func (f *fakeStore) emitConversations() {
	f.mu.Lock()
	subs := make([]store.ConversationsFunc, 0, len(f.convSubs))
	for _, fn := range f.convSubs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	snapshot := f.snapshotConversations()
	for _, fn := range subs {
		fn(snapshot)
	}
}

func (f *fakeStore) notifyMessageSubs(conversationID string) {
	f.mu.Lock()
	subs := make([]store.MessagesFunc, 0)
	for _, s := range f.msgSubs {
		if s.conversationID == conversationID {
			subs = append(subs, s.fn)
		}
	}
	msgs := append([]model.Message(nil), f.messages[conversationID]...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(msgs)
	}
}

func (f *fakeStore) hydrationCalls(conversationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[conversationID]
}

func (f *fakeStore) failHydration(conversationID string, err error) {
	f.mu.Lock()
	f.listErr[conversationID] = err
	f.mu.Unlock()
}

func (f *fakeStore) convSubCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.convSubs)
}

func (f *fakeStore) msgSubCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgSubs)
}

// emissions collects subscription callback payloads for assertions.
type emissions struct {
	mu    sync.Mutex
	lists [][]messaging.Thread
}

func (e *emissions) add(threads []messaging.Thread) {
	e.mu.Lock()
	e.lists = append(e.lists, threads)
	e.mu.Unlock()
}

func (e *emissions) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lists)
}

func (e *emissions) latest() []messaging.Thread {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.lists) == 0 {
		return nil
	}
	return e.lists[len(e.lists)-1]
}
