package store

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ramevans/Medical-Platform/internal/metrics"
	"github.com/ramevans/Medical-Platform/internal/models"
)

// chatIndexCollection is the shared collection mapping conversation keys to
// participant sets. Message collections themselves are named by the key.
const chatIndexCollection = "chats_index"

// ChatStore handles MongoDB operations for chat logs. Each conversation is
// an append-only collection named by its conversation key; a shared index
// collection answers membership queries.
type ChatStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger zerolog.Logger
}

// NewChatStore connects to MongoDB and returns a chat store using the given
// database.
func NewChatStore(ctx context.Context, connectionString, databaseName string, logger zerolog.Logger) (*ChatStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &ChatStore{
		client: client,
		db:     client.Database(databaseName),
		logger: logger,
	}, nil
}

// Close disconnects from MongoDB.
func (s *ChatStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the MongoDB connection.
func (s *ChatStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// LogMessage appends a message to the conversation among the given
// participants. If the sender is not in the participant list it is added, so
// callers may pass just the recipients. The conversation index entry is
// created on first write.
func (s *ChatStore) LogMessage(ctx context.Context, participantIDs []int64, msg *models.Message) error {
	start := time.Now()
	defer func() { metrics.MongoLatency.Observe(time.Since(start).Seconds()) }()

	participantIDs = withSender(participantIDs, msg.SenderID)

	key, err := models.DeriveConversationKey(participantIDs)
	if err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	if _, err := s.db.Collection(string(key)).InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return s.ensureConversationIndex(ctx, participantIDs)
}

// QueryTimeRange returns the conversation's messages with timestamps between
// since and until (both exclusive), oldest first. A nil bound imposes no
// filter on that side. A conversation with no messages yields an empty
// slice, not an error.
func (s *ChatStore) QueryTimeRange(ctx context.Context, participantIDs []int64, since, until *time.Time) ([]models.Message, error) {
	start := time.Now()
	defer func() { metrics.MongoLatency.Observe(time.Since(start).Seconds()) }()

	key, err := models.DeriveConversationKey(participantIDs)
	if err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(string(key)).Find(ctx,
		timestampFilter(since, until),
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return messages, nil
}

// QueryLatestMessages returns at most limit messages with timestamps before
// until (or the newest messages when until is nil). The result is ordered
// oldest first, so callers get the most recent page in natural reading
// order.
func (s *ChatStore) QueryLatestMessages(ctx context.Context, participantIDs []int64, until *time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	start := time.Now()
	defer func() { metrics.MongoLatency.Observe(time.Since(start).Seconds()) }()

	key, err := models.DeriveConversationKey(participantIDs)
	if err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(string(key)).Find(ctx,
		timestampFilter(nil, until),
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	reverseMessages(messages)
	return messages, nil
}

// GetUserChats returns the participant list of every conversation that
// includes all of the given users. Querying with a single id lists every
// conversation that user is part of.
func (s *ChatStore) GetUserChats(ctx context.Context, participantIDs []int64) ([][]int64, error) {
	start := time.Now()
	defer func() { metrics.MongoLatency.Observe(time.Since(start).Seconds()) }()

	ids := models.NormalizeParticipants(participantIDs)
	if len(ids) == 0 {
		return nil, models.ErrNoParticipants
	}

	cursor, err := s.db.Collection(chatIndexCollection).Find(ctx,
		bson.M{"participant_ids": bson.M{"$all": ids}})
	if err != nil {
		return nil, fmt.Errorf("query chat index: %w", err)
	}

	entries := []models.ConversationIndexEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode chat index: %w", err)
	}

	chats := make([][]int64, len(entries))
	for i, entry := range entries {
		chats[i] = entry.ParticipantIDs
	}
	return chats, nil
}

// ensureConversationIndex records the conversation in the index collection
// if it is not already there. The unique index on participant_ids is the
// safety net for two concurrent first-messages: the losing insert fails with
// a duplicate-key error, which is treated as success since the desired end
// state already exists.
func (s *ChatStore) ensureConversationIndex(ctx context.Context, participantIDs []int64) error {
	ids := models.NormalizeParticipants(participantIDs)
	key, err := models.DeriveConversationKey(ids)
	if err != nil {
		return err
	}

	collection := s.db.Collection(chatIndexCollection)

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "participant_ids", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create chat index: %w", err)
	}

	count, err := collection.CountDocuments(ctx, bson.M{"conversation_key": string(key)})
	if err != nil {
		return fmt.Errorf("count chat index entries: %w", err)
	}

	if count > 1 {
		// Should never happen given the uniqueness constraint. Not fatal:
		// queries proceed with the first match.
		s.logger.Warn().
			Str("conversation_key", string(key)).
			Int64("entries", count).
			Msg("multiple index entries for one conversation")
	}

	if count == 0 {
		_, err := collection.InsertOne(ctx, models.ConversationIndexEntry{
			ConversationKey: string(key),
			ParticipantIDs:  ids,
		})
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert chat index entry: %w", err)
		}
	}

	return nil
}

// withSender returns participantIDs with senderID appended if absent.
func withSender(participantIDs []int64, senderID int64) []int64 {
	for _, id := range participantIDs {
		if id == senderID {
			return participantIDs
		}
	}
	return append(participantIDs, senderID)
}

// timestampFilter builds a timestamp range filter with exclusive bounds.
func timestampFilter(since, until *time.Time) bson.M {
	bounds := bson.M{}
	if since != nil {
		bounds["$gt"] = *since
	}
	if until != nil {
		bounds["$lt"] = *until
	}
	if len(bounds) == 0 {
		return bson.M{}
	}
	return bson.M{"timestamp": bounds}
}

// reverseMessages reverses a message slice in place.
func reverseMessages(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
