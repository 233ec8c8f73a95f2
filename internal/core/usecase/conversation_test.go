package usecase

import (
	"testing"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

func TestAssembleConversationEmpty(t *testing.T) {
	turns := AssembleConversation(nil)
	if turns == nil || len(turns) != 0 {
		t.Fatalf("expected empty non-nil turns, got %#v", turns)
	}
}

func TestAssembleConversationAlternatesRoles(t *testing.T) {
	turns := AssembleConversation([]domain.Query{
		{ID: "q1", Message: "m1", Response: "r1"},
		{ID: "q2", Message: "m2", Response: "r2"},
		{ID: "q3", Message: "m3", Response: "r3"},
	})

	want := []domain.ConversationTurn{
		{Role: "user", Content: "m1"},
		{Role: "assistant", Content: "r1"},
		{Role: "user", Content: "m2"},
		{Role: "assistant", Content: "r2"},
		{Role: "user", Content: "m3"},
		{Role: "assistant", Content: "r3"},
	}
	if len(turns) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(turns))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Fatalf("turn %d: expected %+v, got %+v", i, want[i], turns[i])
		}
	}
}
