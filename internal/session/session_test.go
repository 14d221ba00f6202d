package session

import (
	"context"
	"testing"

	"github.com/agentcore/runtime/pkg/models"
)

func TestInMemory_AddAndGetMessages_StableOrder(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	id := "sess-1"

	for i := 0; i < 5; i++ {
		if err := s.AddMessage(ctx, id, models.Message{Role: models.RoleUser, Content: string(rune('a' + i))}); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	msgs, err := s.GetMessages(ctx, id)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		want := string(rune('a' + i))
		if m.Content != want {
			t.Errorf("message %d content = %q, want %q", i, m.Content, want)
		}
	}
}

func TestInMemory_GetMessagesReturnsIndependentCopy(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	id := "sess-1"
	s.AddMessage(ctx, id, models.Message{Role: models.RoleUser, Content: "one"})

	msgs, _ := s.GetMessages(ctx, id)
	msgs[0].Content = "mutated"

	fresh, _ := s.GetMessages(ctx, id)
	if fresh[0].Content != "one" {
		t.Fatalf("mutation of returned slice leaked into store: %q", fresh[0].Content)
	}
}

func TestInMemory_Clear(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	id := "sess-1"
	s.AddMessage(ctx, id, models.Message{Role: models.RoleUser, Content: "one"})

	if err := s.Clear(ctx, id); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	msgs, _ := s.GetMessages(ctx, id)
	if len(msgs) != 0 {
		t.Fatalf("expected empty session after Clear, got %d messages", len(msgs))
	}
}

func TestInMemory_Metadata(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	id := "sess-1"

	if err := s.SetMetadata(ctx, id, map[string]any{"k": "v"}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	meta, err := s.Metadata(ctx, id)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta["k"] != "v" {
		t.Fatalf("metadata[k] = %v, want v", meta["k"])
	}
}
