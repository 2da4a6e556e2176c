package messaging

import (
	"context"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/sahedhasan999/permitdraft-hero-sub000/model"
	"github.com/sahedhasan999/permitdraft-hero-sub000/store"
)

// Aggregator maintains a process-local cache of every conversation for
// operator-facing views. Message histories are hydrated once per conversation
// and refreshed through a persistent per-conversation message feed, so a
// change to one conversation never re-fetches the others.
//
// An Aggregator supports one active subscription at a time. Calling Subscribe
// while a previous subscription is live tears the old one down first;
// concurrent Subscribe calls on the same instance are not supported, so
// construct one Aggregator per active view.
type Aggregator struct {
	store store.ConversationStore

	mu     sync.Mutex
	gen    int
	cache  map[string]*cacheEntry
	nested map[string]store.CancelFunc
	// pending guards conversations whose hydration is in flight so a racing
	// snapshot cannot start a second hydration (and a second nested feed).
	pending map[string]bool

	cancelOuter store.CancelFunc
	onUpdate    func([]Thread)
	onError     func(error)

	// emitMu serializes onUpdate invocations across the outer snapshot path
	// and the nested message feeds.
	emitMu sync.Mutex
}

// cacheEntry holds one conversation's cached state. lastUpdated is the
// conversation document's lastUpdated as of the most recent hydration; the
// reuse gate compares it against the incoming document, never against nested
// message-feed activity.
type cacheEntry struct {
	conv        model.Conversation
	messages    []model.Message
	lastUpdated int64 // unix milliseconds
	hydrateErr  error
}

// NewAggregator creates an aggregating cache engine over all conversations.
func NewAggregator(st store.ConversationStore) *Aggregator {
	return &Aggregator{
		store:   st,
		cache:   map[string]*cacheEntry{},
		nested:  map[string]store.CancelFunc{},
		pending: map[string]bool{},
	}
}

// Subscribe opens the outer conversation feed and starts emitting aggregated,
// freshly sorted thread lists through onUpdate. Feed-level failures go to
// onError. The returned cancel is idempotent and transitively disposes the
// outer feed, every nested message feed, and the cache.
func (a *Aggregator) Subscribe(ctx context.Context, onUpdate func([]Thread), onError func(error)) (store.CancelFunc, error) {
	a.mu.Lock()
	a.teardownLocked()
	a.gen++
	gen := a.gen
	a.onUpdate = onUpdate
	a.onError = onError
	a.mu.Unlock()

	cancel, err := a.store.WatchConversations(ctx,
		func(conversations []model.Conversation) { a.handleSnapshot(ctx, gen, conversations) },
		func(err error) { a.handleFeedError(gen, err) })
	if err != nil {
		a.mu.Lock()
		if a.gen == gen {
			a.onUpdate = nil
			a.onError = nil
		}
		a.mu.Unlock()
		return nil, err
	}

	a.mu.Lock()
	if a.gen != gen {
		// Torn down while the feed was opening.
		a.mu.Unlock()
		cancel()
		return func() {}, nil
	}
	a.cancelOuter = cancel
	a.mu.Unlock()

	return func() { a.unsubscribe(gen) }, nil
}

func (a *Aggregator) unsubscribe(gen int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		return // already torn down, or superseded by a newer Subscribe
	}
	a.teardownLocked()
	a.gen++
}

// teardownLocked disposes the outer feed, all nested feeds, and the cache.
// Callers hold a.mu.
func (a *Aggregator) teardownLocked() {
	if a.cancelOuter != nil {
		a.cancelOuter()
		a.cancelOuter = nil
	}
	for _, cancel := range a.nested {
		cancel()
	}
	a.nested = map[string]store.CancelFunc{}
	a.cache = map[string]*cacheEntry{}
	a.pending = map[string]bool{}
	a.onUpdate = nil
	a.onError = nil
}

// handleSnapshot processes one outer feed emission. Conversations whose
// cached lastUpdated is at least the document's are reused verbatim with no
// message fetch; the rest hydrate independently, each in its own goroutine,
// so one slow or failing conversation never holds up the others.
func (a *Aggregator) handleSnapshot(ctx context.Context, gen int, conversations []model.Conversation) {
	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		return
	}

	live := make(map[string]bool, len(conversations))
	var toHydrate []model.Conversation
	for _, conv := range conversations {
		live[conv.ID] = true
		if entry, ok := a.cache[conv.ID]; ok && entry.lastUpdated >= conv.LastUpdated.UnixMilli() {
			continue // cache hit: reuse, skip the message fetch
		}
		if a.pending[conv.ID] {
			continue // hydration already in flight; its nested feed catches up
		}
		a.pending[conv.ID] = true
		toHydrate = append(toHydrate, conv)
	}

	// Drop cache entries and nested feeds for conversations that left the
	// collection, so a removed document cannot pin resources forever.
	for id := range a.cache {
		if !live[id] {
			delete(a.cache, id)
		}
	}
	for id, cancel := range a.nested {
		if !live[id] {
			cancel()
			delete(a.nested, id)
		}
	}
	a.mu.Unlock()

	for _, conv := range toHydrate {
		go a.hydrate(ctx, gen, conv)
	}
	a.emit(gen)
}

// hydrate fetches one conversation's history, installs its cache entry and,
// if absent, its persistent nested message feed, then re-emits. On failure
// the previous cache entry (if any) is retained untouched so the next
// snapshot retries; a conversation with no history yet is cached with an
// error marker instead of being dropped from the view.
func (a *Aggregator) hydrate(ctx context.Context, gen int, conv model.Conversation) {
	messages, err := a.store.ListMessages(ctx, conv.ID)

	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.pending, conv.ID)

	if err != nil {
		log.Error("conversation hydration failed", "conversationId", conv.ID, "err", err)
		if _, ok := a.cache[conv.ID]; !ok {
			a.cache[conv.ID] = &cacheEntry{conv: conv, hydrateErr: err}
		}
		a.mu.Unlock()
		a.emit(gen)
		return
	}

	a.cache[conv.ID] = &cacheEntry{
		conv:        conv,
		messages:    messages,
		lastUpdated: conv.LastUpdated.UnixMilli(),
	}
	_, hasListener := a.nested[conv.ID]
	a.mu.Unlock()

	if !hasListener {
		a.installNested(ctx, gen, conv.ID)
	}
	a.emit(gen)
}

// installNested opens the persistent per-conversation message feed. Whenever
// it fires, the cached message list is replaced in place and the whole
// aggregated list is re-emitted, independent of the outer feed's cadence.
func (a *Aggregator) installNested(ctx context.Context, gen int, conversationID string) {
	cancel, err := a.store.WatchMessages(ctx, conversationID,
		func(messages []model.Message) {
			a.mu.Lock()
			if a.gen != gen {
				a.mu.Unlock()
				return
			}
			if entry, ok := a.cache[conversationID]; ok {
				entry.messages = messages
				entry.hydrateErr = nil
			}
			a.mu.Unlock()
			a.emit(gen)
		},
		func(err error) {
			log.Error("message feed failed", "conversationId", conversationID, "err", err)
		})
	if err != nil {
		log.Error("open message feed failed", "conversationId", conversationID, "err", err)
		return
	}

	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		cancel()
		return
	}
	if _, exists := a.nested[conversationID]; exists {
		// Lost a race with another installer; keep the first feed.
		a.mu.Unlock()
		cancel()
		return
	}
	a.nested[conversationID] = cancel
	a.mu.Unlock()
}

// emit assembles the cached threads, sorts them by lastUpdated descending,
// and delivers them. Callers may never assume stable indices across
// emissions.
func (a *Aggregator) emit(gen int) {
	a.mu.Lock()
	if a.gen != gen || a.onUpdate == nil {
		a.mu.Unlock()
		return
	}
	onUpdate := a.onUpdate
	threads := make([]Thread, 0, len(a.cache))
	for _, entry := range a.cache {
		threads = append(threads, Thread{
			Conversation: entry.conv,
			Messages:     entry.messages,
			HydrationErr: entry.hydrateErr,
		})
	}
	a.mu.Unlock()

	sort.Slice(threads, func(i, j int) bool {
		ci, cj := threads[i].Conversation, threads[j].Conversation
		if !ci.LastUpdated.Equal(cj.LastUpdated) {
			return ci.LastUpdated.After(cj.LastUpdated)
		}
		return ci.ID < cj.ID
	})

	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	a.mu.Lock()
	stale := a.gen != gen
	a.mu.Unlock()
	if !stale {
		onUpdate(threads)
	}
}

func (a *Aggregator) handleFeedError(gen int, err error) {
	a.mu.Lock()
	if a.gen != gen || a.onError == nil {
		a.mu.Unlock()
		return
	}
	onError := a.onError
	a.mu.Unlock()
	log.Error("conversation feed failed", "err", err)
	onError(err)
}

// NestedListenerCount reports how many per-conversation message feeds are
// currently held. Exposed for tests and operational introspection.
func (a *Aggregator) NestedListenerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.nested)
}
