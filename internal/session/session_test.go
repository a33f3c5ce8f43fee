package session

import (
	"context"
	"testing"

	"github.com/example/viacar/internal/kv"
)

func TestTokenLifecycle(t *testing.T) {
	blobs := kv.NewMemoryStore()
	ctx := context.Background()

	s, err := New(ctx, blobs, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Token(); got != "" {
		t.Fatalf("fresh store has token %q", got)
	}

	tok := "jwt-abc"
	if err := s.SetToken(ctx, &tok); err != nil {
		t.Fatal(err)
	}
	if got := s.Token(); got != "jwt-abc" {
		t.Fatalf("token=%q", got)
	}

	// survives rehydration
	again, err := New(ctx, blobs, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := again.Token(); got != "jwt-abc" {
		t.Fatalf("rehydrated token=%q", got)
	}

	// logout clears to explicit null
	if err := s.SetToken(ctx, nil); err != nil {
		t.Fatal(err)
	}
	cleared, err := New(ctx, blobs, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := cleared.Token(); got != "" {
		t.Fatalf("token survived logout: %q", got)
	}
}

func TestBlobShape(t *testing.T) {
	blobs := kv.NewMemoryStore()
	ctx := context.Background()
	s, err := New(ctx, blobs, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetToken(ctx, nil); err != nil {
		t.Fatal(err)
	}
	b, err := blobs.Get(ctx, Key("dev-1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"state":{"token":null}}` {
		t.Fatalf("blob=%s", b)
	}
}
