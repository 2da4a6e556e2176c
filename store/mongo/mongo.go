// Package mongo implements the conversation store contract on MongoDB.
// Multi-document commits use transactions, message counters use $inc, and the
// change-feed contract is satisfied by re-querying the collection whenever a
// change stream fires, so subscribers always receive the full current result
// set. Change streams and transactions require a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sahedhasan999/permitdraft-hero-sub000/config"
	"github.com/sahedhasan999/permitdraft-hero-sub000/model"
	"github.com/sahedhasan999/permitdraft-hero-sub000/store"
)

func init() {
	store.Register(store.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (store.ConversationStore, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.DBURL == "" {
				return nil, fmt.Errorf("mongo store: PERMITDRAFT_DB_URL is required")
			}
			return Connect(ctx, cfg)
		},
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this
// package's init() runs.
var ForceImport = 0

// Connect opens a client, verifies connectivity, and returns the store.
func Connect(ctx context.Context, cfg *config.Config) (*MongoStore, error) {
	opts := options.Client().ApplyURI(cfg.DBURL)
	if cfg.DBMaxOpenConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
	}
	if cfg.DBMaxIdleConns > 0 {
		opts.SetMinPoolSize(uint64(cfg.DBMaxIdleConns))
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo store: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo store: ping: %w", err)
	}
	dbName := cfg.DBName
	if dbName == "" {
		dbName = "permitdraft"
	}
	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

// MongoStore implements store.ConversationStore using MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func (s *MongoStore) conversations() *mongo.Collection { return s.db.Collection("conversations") }
func (s *MongoStore) messages() *mongo.Collection      { return s.db.Collection("messages") }

// EnsureIndexes creates the indexes the watch and read paths rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	collections := map[string][]mongo.IndexModel{
		"conversations": {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
			{Keys: bson.D{{Key: "owner_email", Value: 1}}},
			{Keys: bson.D{{Key: "last_updated", Value: -1}}},
		},
		"messages": {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
	}
	for name, indexes := range collections {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("mongo store: create indexes for %s: %w", name, err)
		}
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// --- Document types ---

type convDoc struct {
	ID                 string    `bson:"_id"`
	OwnerID            string    `bson:"owner_id"`
	OwnerEmail         string    `bson:"owner_email"`
	DisplayName        string    `bson:"display_name"`
	Subject            string    `bson:"subject"`
	Status             string    `bson:"status"`
	CreatedAt          time.Time `bson:"created_at"`
	LastUpdated        time.Time `bson:"last_updated"`
	LastMessagePreview string    `bson:"last_message_preview"`
	MessageCount       int       `bson:"message_count"`
}

type msgDoc struct {
	ID             string          `bson:"_id"`
	ConversationID string          `bson:"conversation_id"`
	Sender         string          `bson:"sender"`
	Content        string          `bson:"content"`
	Attachments    []attachmentDoc `bson:"attachments"`
	Timestamp      time.Time       `bson:"timestamp"`
	Read           bool            `bson:"read"`
}

type attachmentDoc struct {
	Name string `bson:"name"`
	URL  string `bson:"url"`
	Size string `bson:"size"`
	Type string `bson:"type"`
}

func toConvModel(d convDoc) model.Conversation {
	return model.Conversation{
		ID:                 d.ID,
		OwnerID:            d.OwnerID,
		OwnerEmail:         d.OwnerEmail,
		DisplayName:        d.DisplayName,
		Subject:            d.Subject,
		Status:             model.ConversationStatus(d.Status),
		CreatedAt:          d.CreatedAt,
		LastUpdated:        d.LastUpdated,
		LastMessagePreview: d.LastMessagePreview,
		MessageCount:       d.MessageCount,
	}
}

func toMsgModel(d msgDoc) model.Message {
	m := model.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		Sender:         model.Sender(d.Sender),
		Content:        d.Content,
		Timestamp:      d.Timestamp,
		Read:           d.Read,
	}
	for _, a := range d.Attachments {
		m.Attachments = append(m.Attachments, model.Attachment(a))
	}
	return m
}

func toAttachmentDocs(attachments []model.Attachment) []attachmentDoc {
	docs := make([]attachmentDoc, len(attachments))
	for i, a := range attachments {
		docs[i] = attachmentDoc(a)
	}
	return docs
}

// --- Writes ---

func (s *MongoStore) CreateConversationWithMessage(ctx context.Context, conv model.Conversation, msg model.Message) (string, string, error) {
	convID := uuid.New().String()
	msgID := uuid.New().String()
	now := time.Now().UTC()

	cDoc := convDoc{
		ID:                 convID,
		OwnerID:            conv.OwnerID,
		OwnerEmail:         conv.OwnerEmail,
		DisplayName:        conv.DisplayName,
		Subject:            conv.Subject,
		Status:             string(model.StatusActive),
		CreatedAt:          now,
		LastUpdated:        now,
		LastMessagePreview: msg.Content,
		MessageCount:       1,
	}
	mDoc := msgDoc{
		ID:             msgID,
		ConversationID: convID,
		Sender:         string(msg.Sender),
		Content:        msg.Content,
		Attachments:    []attachmentDoc{},
		Timestamp:      now,
		Read:           msg.Read,
	}

	session, err := s.client.StartSession()
	if err != nil {
		return "", "", fmt.Errorf("mongo store: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		if _, err := s.conversations().InsertOne(ctx, cDoc); err != nil {
			return nil, err
		}
		if _, err := s.messages().InsertOne(ctx, mDoc); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("mongo store: create conversation: %w", err)
	}
	return convID, msgID, nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, conversationID string, msg model.Message) (string, error) {
	msgID := uuid.New().String()
	now := time.Now().UTC()

	mDoc := msgDoc{
		ID:             msgID,
		ConversationID: conversationID,
		Sender:         string(msg.Sender),
		Content:        msg.Content,
		Attachments:    toAttachmentDocs(msg.Attachments),
		Timestamp:      now,
		Read:           msg.Read,
	}

	session, err := s.client.StartSession()
	if err != nil {
		return "", fmt.Errorf("mongo store: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		res, err := s.conversations().UpdateOne(ctx,
			bson.M{"_id": conversationID},
			bson.M{
				"$set": bson.M{
					"last_updated":         now,
					"last_message_preview": msg.Content,
				},
				"$inc": bson.M{"message_count": 1},
			})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, &store.NotFoundError{Resource: "conversation", ID: conversationID}
		}
		if _, err := s.messages().InsertOne(ctx, mDoc); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return msgID, nil
}

func (s *MongoStore) PatchMessageAttachments(ctx context.Context, conversationID, messageID string, attachments []model.Attachment) error {
	res, err := s.messages().UpdateOne(ctx,
		bson.M{"_id": messageID, "conversation_id": conversationID},
		bson.M{"$set": bson.M{"attachments": toAttachmentDocs(attachments)}})
	if err != nil {
		return fmt.Errorf("mongo store: patch attachments: %w", err)
	}
	if res.MatchedCount == 0 {
		return &store.NotFoundError{Resource: "message", ID: messageID}
	}
	return nil
}

func (s *MongoStore) SetConversationStatus(ctx context.Context, conversationID string, status model.ConversationStatus) error {
	// last_updated is bumped so cached summaries downstream refresh.
	res, err := s.conversations().UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{
			"status":       string(status),
			"last_updated": time.Now().UTC(),
		}})
	if err != nil {
		return fmt.Errorf("mongo store: set status: %w", err)
	}
	if res.MatchedCount == 0 {
		return &store.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	return nil
}

// --- Reads ---

func (s *MongoStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var doc convDoc
	err := s.conversations().FindOne(ctx, bson.M{"_id": conversationID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &store.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	if err != nil {
		return nil, fmt.Errorf("mongo store: get conversation: %w", err)
	}
	conv := toConvModel(doc)
	return &conv, nil
}

func (s *MongoStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.messages().Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo store: list messages: %w", err)
	}
	var docs []msgDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo store: decode messages: %w", err)
	}
	messages := make([]model.Message, len(docs))
	for i, d := range docs {
		messages[i] = toMsgModel(d)
	}
	return messages, nil
}

func (s *MongoStore) listConversations(ctx context.Context) ([]model.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_updated", Value: -1}, {Key: "created_at", Value: 1}})
	cur, err := s.conversations().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo store: list conversations: %w", err)
	}
	var docs []convDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo store: decode conversations: %w", err)
	}
	conversations := make([]model.Conversation, len(docs))
	for i, d := range docs {
		conversations[i] = toConvModel(d)
	}
	return conversations, nil
}

// --- Watches ---

func (s *MongoStore) WatchConversations(ctx context.Context, onSnapshot store.ConversationsFunc, onError store.ErrorFunc) (store.CancelFunc, error) {
	return s.watch(ctx, s.conversations(), mongo.Pipeline{}, func(ctx context.Context) error {
		conversations, err := s.listConversations(ctx)
		if err != nil {
			return err
		}
		onSnapshot(conversations)
		return nil
	}, onError)
}

func (s *MongoStore) WatchMessages(ctx context.Context, conversationID string, onSnapshot store.MessagesFunc, onError store.ErrorFunc) (store.CancelFunc, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"fullDocument.conversation_id": conversationID}}},
	}
	return s.watch(ctx, s.messages(), pipeline, func(ctx context.Context) error {
		messages, err := s.ListMessages(ctx, conversationID)
		if err != nil {
			return err
		}
		onSnapshot(messages)
		return nil
	}, onError)
}

// watch opens a change stream and re-runs emit after every matching event.
// The initial snapshot is emitted before the first event. The returned cancel
// is idempotent; the feed outlives the setup context and runs until cancelled.
func (s *MongoStore) watch(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, emit func(ctx context.Context) error, onError store.ErrorFunc) (store.CancelFunc, error) {
	// fullDocument is needed so update events (attachment patches, status
	// toggles) still carry the fields the $match stage filters on.
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := coll.Watch(streamCtx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mongo store: watch %s: %w", coll.Name(), err)
	}

	go func() {
		defer stream.Close(context.WithoutCancel(streamCtx))
		if err := emit(streamCtx); err != nil && streamCtx.Err() == nil {
			onError(err)
		}
		for stream.Next(streamCtx) {
			if err := emit(streamCtx); err != nil {
				if streamCtx.Err() != nil {
					return
				}
				onError(err)
			}
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			onError(fmt.Errorf("mongo store: change stream on %s: %w", coll.Name(), err))
		}
	}()

	return store.CancelFunc(cancel), nil
}

var _ store.ConversationStore = (*MongoStore)(nil)
