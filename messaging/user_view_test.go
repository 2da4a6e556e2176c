package messaging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sahedhasan999/permitdraft-hero-sub000/messaging"
	"github.com/sahedhasan999/permitdraft-hero-sub000/model"
)

func seedOwnedConversations(fs *fakeStore) {
	fs.seedConversation(
		model.Conversation{ID: "conv-mine", OwnerID: "user-1", OwnerEmail: "me@example.com", Subject: "Garage plans"},
		model.Message{ID: "m1", ConversationID: "conv-mine", Sender: model.SenderCustomer, Content: "hello"},
	)
	// Opened by an operator on the user's behalf: matched by email only.
	fs.seedConversation(
		model.Conversation{ID: "conv-admin", OwnerID: "admin-created", OwnerEmail: "me@example.com", Subject: "Follow-up"},
		model.Message{ID: "m2", ConversationID: "conv-admin", Sender: model.SenderAdmin, Content: "checking in"},
	)
	fs.seedConversation(
		model.Conversation{ID: "conv-other", OwnerID: "user-2", OwnerEmail: "other@example.com", Subject: "Fence"},
		model.Message{ID: "m3", ConversationID: "conv-other", Sender: model.SenderCustomer, Content: "hi"},
	)
}

func TestUserViewFiltersByOwnerIDOrEmail(t *testing.T) {
	fs := newFakeStore()
	seedOwnedConversations(fs)
	view := messaging.NewUserView(fs)

	var got emissions
	cancel, err := view.Subscribe(context.Background(), "user-1", "me@example.com", got.add)
	require.NoError(t, err)
	defer cancel()

	threads := got.latest()
	require.Len(t, threads, 2)
	mine, ok := findThread(threads, "conv-mine")
	require.True(t, ok)
	require.Equal(t, "hello", mine.Messages[0].Content)
	admin, ok := findThread(threads, "conv-admin")
	require.True(t, ok)
	require.Equal(t, "checking in", admin.Messages[0].Content)
	_, ok = findThread(threads, "conv-other")
	require.False(t, ok)
}

func TestUserViewMatchesOperatorCreatedConversationByEmailAlone(t *testing.T) {
	fs := newFakeStore()
	seedOwnedConversations(fs)
	view := messaging.NewUserView(fs)

	var got emissions
	cancel, err := view.Subscribe(context.Background(), "no-such-id", "me@example.com", got.add)
	require.NoError(t, err)
	defer cancel()

	threads := got.latest()
	require.Len(t, threads, 2)
	_, ok := findThread(threads, "conv-admin")
	require.True(t, ok)
}

func TestUserViewRefetchesEverythingOnEveryChange(t *testing.T) {
	fs := newFakeStore()
	seedOwnedConversations(fs)
	view := messaging.NewUserView(fs)

	var got emissions
	cancel, err := view.Subscribe(context.Background(), "user-1", "me@example.com", got.add)
	require.NoError(t, err)
	defer cancel()

	require.Equal(t, 1, fs.hydrationCalls("conv-mine"))

	// The baseline path has no cache: each snapshot re-reads every owned
	// conversation, changed or not.
	fs.emitConversations()
	fs.emitConversations()
	require.Equal(t, 3, fs.hydrationCalls("conv-mine"))
	require.Equal(t, 3, fs.hydrationCalls("conv-admin"))
	require.Equal(t, 0, fs.hydrationCalls("conv-other"))
	require.Equal(t, 3, got.count())
}

func TestUserViewTeardownClosesOnlyTopLevelFeed(t *testing.T) {
	fs := newFakeStore()
	seedOwnedConversations(fs)
	view := messaging.NewUserView(fs)

	var got emissions
	cancel, err := view.Subscribe(context.Background(), "user-1", "me@example.com", got.add)
	require.NoError(t, err)

	require.Equal(t, 1, fs.convSubCount())
	require.Equal(t, 0, fs.msgSubCount())

	cancel()
	require.Equal(t, 0, fs.convSubCount())

	n := got.count()
	fs.emitConversations()
	require.Equal(t, n, got.count())
}
