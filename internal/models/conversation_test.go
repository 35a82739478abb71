package models

import (
	"errors"
	"regexp"
	"testing"
)

func TestDeriveConversationKeyDeterministic(t *testing.T) {
	permutations := [][]int64{
		{1, 2, 3},
		{3, 2, 1},
		{2, 1, 3},
		{3, 1, 2},
	}

	first, err := DeriveConversationKey(permutations[0])
	if err != nil {
		t.Fatalf("DeriveConversationKey: %v", err)
	}

	for _, ids := range permutations[1:] {
		key, err := DeriveConversationKey(ids)
		if err != nil {
			t.Fatalf("DeriveConversationKey(%v): %v", ids, err)
		}
		if key != first {
			t.Errorf("DeriveConversationKey(%v) = %s, want %s", ids, key, first)
		}
	}
}

func TestDeriveConversationKeyIgnoresDuplicates(t *testing.T) {
	base, err := DeriveConversationKey([]int64{1, 2})
	if err != nil {
		t.Fatalf("DeriveConversationKey: %v", err)
	}

	duped, err := DeriveConversationKey([]int64{2, 1, 2, 1, 1})
	if err != nil {
		t.Fatalf("DeriveConversationKey: %v", err)
	}

	if duped != base {
		t.Errorf("duplicated ids derived %s, want %s", duped, base)
	}
}

func TestDeriveConversationKeyDistinct(t *testing.T) {
	sets := [][]int64{
		{1},
		{1, 2},
		{1, 2, 3},
		{4, 5},
	}

	seen := make(map[ConversationKey][]int64)
	for _, ids := range sets {
		key, err := DeriveConversationKey(ids)
		if err != nil {
			t.Fatalf("DeriveConversationKey(%v): %v", ids, err)
		}
		if prev, ok := seen[key]; ok {
			t.Errorf("sets %v and %v derived the same key %s", prev, ids, key)
		}
		seen[key] = ids
	}
}

func TestDeriveConversationKeyFormat(t *testing.T) {
	key, err := DeriveConversationKey([]int64{7, 8})
	if err != nil {
		t.Fatalf("DeriveConversationKey: %v", err)
	}

	pattern := regexp.MustCompile(`^chat_[0-9a-f]{64}$`)
	if !pattern.MatchString(string(key)) {
		t.Errorf("key %q does not match %s", key, pattern)
	}
}

func TestDeriveConversationKeyEmpty(t *testing.T) {
	_, err := DeriveConversationKey(nil)
	if !errors.Is(err, ErrNoParticipants) {
		t.Errorf("err = %v, want ErrNoParticipants", err)
	}
}

func TestNormalizeParticipants(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want []int64
	}{
		{"sorted", []int64{1, 2, 3}, []int64{1, 2, 3}},
		{"unsorted", []int64{3, 1, 2}, []int64{1, 2, 3}},
		{"duplicates", []int64{2, 2, 1, 1}, []int64{1, 2}},
		{"single", []int64{9}, []int64{9}},
		{"empty", nil, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeParticipants(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeParticipants(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("NormalizeParticipants(%v) = %v, want %v", tt.in, got, tt.want)
				}
			}
		})
	}
}

func TestNormalizeParticipantsDoesNotMutate(t *testing.T) {
	in := []int64{3, 1, 2}
	NormalizeParticipants(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("input slice was mutated: %v", in)
	}
}
