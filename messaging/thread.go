// Package messaging is the conversation synchronization engine behind
// customer/support messaging: write coordination for sends and conversation
// creation, a per-user subscription view, and the operator-facing aggregating
// cache over all conversations.
package messaging

import "github.com/sahedhasan999/permitdraft-hero-sub000/model"

// Thread is a conversation summary together with its hydrated message
// history, as delivered to subscription callbacks.
type Thread struct {
	Conversation model.Conversation
	Messages     []model.Message
	// HydrationErr is set when the message history could not be fetched and
	// no previously cached history was available. The summary is still
	// delivered so one failing conversation never blanks out the view.
	HydrationErr error
}
