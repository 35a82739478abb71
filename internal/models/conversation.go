package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
)

// ErrNoParticipants is returned when a conversation key is requested for an
// empty participant set.
var ErrNoParticipants = errors.New("conversation requires at least one participant")

// ConversationKey identifies a conversation's storage partition. It is
// derived from the set of participants, so two callers naming the same group
// of users always land in the same partition without any prior handshake.
type ConversationKey string

// conversationKeyPrefix is baked into every stored collection name. Changing
// it (or the digest below) orphans existing chat logs without a data
// migration.
const conversationKeyPrefix = "chat_"

// DeriveConversationKey computes the key for the conversation among the given
// users. The input is deduplicated and treated as a set: permutations and
// repeated ids all map to the same key. The key is the prefix "chat_"
// followed by the lowercase hex SHA-256 of the sorted ids' decimal
// representations concatenated without a separator.
func DeriveConversationKey(participantIDs []int64) (ConversationKey, error) {
	ids := NormalizeParticipants(participantIDs)
	if len(ids) == 0 {
		return "", ErrNoParticipants
	}

	digest := sha256.New()
	for _, id := range ids {
		digest.Write([]byte(strconv.FormatInt(id, 10)))
	}

	return ConversationKey(conversationKeyPrefix + hex.EncodeToString(digest.Sum(nil))), nil
}

// NormalizeParticipants deduplicates and sorts a participant list into its
// canonical form. Participant slices are always persisted in this form so
// that array equality (and the index uniqueness constraint built on it) is
// well defined.
func NormalizeParticipants(participantIDs []int64) []int64 {
	seen := make(map[int64]struct{}, len(participantIDs))
	ids := make([]int64, 0, len(participantIDs))
	for _, id := range participantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ConversationIndexEntry maps a conversation key back to its participant set.
// Entries are created on the first message of a conversation and never
// mutated: adding or removing a participant derives a different key, hence a
// different conversation.
type ConversationIndexEntry struct {
	ConversationKey string  `bson:"conversation_key" json:"conversation_key"`
	ParticipantIDs  []int64 `bson:"participant_ids" json:"participant_ids"`
}
