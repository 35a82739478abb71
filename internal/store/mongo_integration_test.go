package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ramevans/Medical-Platform/internal/models"
)

// newTestChatStore connects to the MongoDB named by MONGO_TEST_URI and
// returns a store on a throwaway database. Tests are skipped when the
// variable is unset.
func newTestChatStore(t *testing.T) *ChatStore {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	dbName := fmt.Sprintf("medops_test_%d", time.Now().UnixNano())

	s, err := NewChatStore(ctx, uri, dbName, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewChatStore: %v", err)
	}
	t.Cleanup(func() {
		s.db.Drop(ctx)
		s.Close(ctx)
	})
	return s
}

func mustMessage(t *testing.T, senderID int64, text string, ts time.Time) *models.Message {
	t.Helper()
	msg, err := models.NewMessage(senderID, text, nil)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	msg.Timestamp = ts
	return msg
}

func TestLogAndQueryMessages(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := mustMessage(t, 1, fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.LogMessage(ctx, []int64{2, 3}, msg); err != nil {
			t.Fatalf("LogMessage: %v", err)
		}
	}

	// Sender was folded into the participant set
	messages, err := s.QueryTimeRange(ctx, []int64{1, 2, 3}, nil, nil)
	if err != nil {
		t.Fatalf("QueryTimeRange: %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("got %d messages, want 5", len(messages))
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].Timestamp.Before(messages[i-1].Timestamp) {
			t.Fatal("messages not in ascending order")
		}
	}

	// Bounds are exclusive
	since := base
	until := base.Add(3 * time.Minute)
	bounded, err := s.QueryTimeRange(ctx, []int64{1, 2, 3}, &since, &until)
	if err != nil {
		t.Fatalf("QueryTimeRange bounded: %v", err)
	}
	if len(bounded) != 2 {
		t.Errorf("got %d bounded messages, want 2 (exclusive bounds)", len(bounded))
	}

	// The participant order used in the query must not matter
	shuffled, err := s.QueryTimeRange(ctx, []int64{3, 1, 2}, nil, nil)
	if err != nil {
		t.Fatalf("QueryTimeRange shuffled: %v", err)
	}
	if len(shuffled) != 5 {
		t.Errorf("got %d messages for shuffled participants, want 5", len(shuffled))
	}
}

func TestQueryTimeRangeEmptyConversation(t *testing.T) {
	s := newTestChatStore(t)

	messages, err := s.QueryTimeRange(context.Background(), []int64{8, 9}, nil, nil)
	if err != nil {
		t.Fatalf("QueryTimeRange: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("got %d messages from empty conversation", len(messages))
	}
}

func TestQueryLatestMessages(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		msg := mustMessage(t, 1, fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.LogMessage(ctx, []int64{1, 2}, msg); err != nil {
			t.Fatalf("LogMessage: %v", err)
		}
	}

	page, err := s.QueryLatestMessages(ctx, []int64{1, 2}, nil, 3)
	if err != nil {
		t.Fatalf("QueryLatestMessages: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("got %d messages, want 3", len(page))
	}
	// Most recent page, oldest first
	if page[0].Text != "message 7" || page[2].Text != "message 9" {
		t.Errorf("page = [%s .. %s], want [message 7 .. message 9]", page[0].Text, page[2].Text)
	}

	// until bound is exclusive
	until := base.Add(5 * time.Minute)
	older, err := s.QueryLatestMessages(ctx, []int64{1, 2}, &until, 2)
	if err != nil {
		t.Fatalf("QueryLatestMessages bounded: %v", err)
	}
	if len(older) != 2 || older[1].Text != "message 4" {
		t.Errorf("bounded page = %+v", older)
	}

	if _, err := s.QueryLatestMessages(ctx, []int64{1, 2}, nil, 0); err != ErrInvalidLimit {
		t.Errorf("err = %v, want ErrInvalidLimit", err)
	}
}

func TestConversationIndex(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		msg := mustMessage(t, 1, "hello", time.Now().UTC())
		if err := s.LogMessage(ctx, []int64{2}, msg); err != nil {
			t.Fatalf("LogMessage: %v", err)
		}
	}
	if err := s.LogMessage(ctx, []int64{2, 3}, mustMessage(t, 1, "group", time.Now().UTC())); err != nil {
		t.Fatalf("LogMessage: %v", err)
	}

	// Repeated messages produce a single index entry per conversation
	chats, err := s.GetUserChats(ctx, []int64{1, 2})
	if err != nil {
		t.Fatalf("GetUserChats: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("got %d chats for {1,2}, want 2", len(chats))
	}

	// Membership is a superset query
	chats, err = s.GetUserChats(ctx, []int64{3})
	if err != nil {
		t.Fatalf("GetUserChats: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("got %d chats for {3}, want 1", len(chats))
	}
	want := []int64{1, 2, 3}
	for i, id := range chats[0] {
		if id != want[i] {
			t.Errorf("chat participants = %v, want %v", chats[0], want)
		}
	}

	if _, err := s.GetUserChats(ctx, nil); err != models.ErrNoParticipants {
		t.Errorf("err = %v, want ErrNoParticipants", err)
	}
}
