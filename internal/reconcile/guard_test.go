package reconcile

import (
	"context"
	"testing"
	"time"
)

type stubIdemStore struct {
	keys map[string]string
}

func (s *stubIdemStore) Get(ctx context.Context, key string) (string, error) {
	return s.keys[key], nil
}

func (s *stubIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = "1"
	return true, nil
}

func (s *stubIdemStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (s *stubIdemStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestGuardMarksAndReleases(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(&stubIdemStore{keys: map[string]string{}}, time.Minute, "mollie")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "tr_1")
	if err != nil || seen {
		t.Fatalf("first mark should be fresh: seen=%v err=%v", seen, err)
	}

	seen, err = guard.CheckAndMark(context.Background(), "tr_1")
	if err != nil || !seen {
		t.Fatalf("second mark should be a replay: seen=%v err=%v", seen, err)
	}

	if err := guard.Delete(context.Background(), "tr_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "tr_1")
	if err != nil || seen {
		t.Fatalf("mark after release should be fresh: seen=%v err=%v", seen, err)
	}
}

func TestGuardRequiresRef(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(&stubIdemStore{keys: map[string]string{}}, time.Minute, "mollie")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty ref")
	}
}
