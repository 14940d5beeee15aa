package postgres

import (
	"context"
	"os"
	"testing"

	"NeuralClient/internal/auth"
)

// Runs against a real database when APP_TEST_DB_DSN is set.
func TestCredentialStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("APP_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	s := NewCredentialStore(pool, "test-"+t.Name(), auth.NewSealer("pw"))
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	t.Cleanup(func() { _ = s.Clear(context.Background()) })

	if tok, err := s.Load(ctx); err != nil || tok != "" {
		t.Fatalf("expected empty credential, got %q %v", tok, err)
	}
	if err := s.Save(ctx, "SECRET"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "ROTATED"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	tok, err := s.Load(ctx)
	if err != nil || tok != "ROTATED" {
		t.Fatalf("Load: %q %v", tok, err)
	}
	ts, err := s.UpdatedAt(ctx)
	if err != nil || ts == nil {
		t.Fatalf("UpdatedAt: %v %v", ts, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if tok, _ := s.Load(ctx); tok != "" {
		t.Fatalf("expected cleared credential, got %q", tok)
	}
}
