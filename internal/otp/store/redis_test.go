package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"institute_backend/internal/otp"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func sampleChallenge() otp.Challenge {
	now := time.Now()
	return otp.Challenge{
		LeadID:            uuid.New(),
		Phone:             "+989123456789",
		CodeHash:          "$2a$10$abcdefghijklmnopqrstuv",
		State:             otp.StatePending,
		IssuedAt:          now,
		ExpiresAt:         now.Add(5 * time.Minute),
		ResendAvailableAt: now.Add(60 * time.Second),
		AttemptCount:      0,
		MaxAttempts:       5,
	}
}

func TestSaveAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	challenge := sampleChallenge()

	if err := store.Save(ctx, challenge); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, challenge.LeadID, challenge.Phone)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CodeHash != challenge.CodeHash {
		t.Errorf("CodeHash = %q, want %q", got.CodeHash, challenge.CodeHash)
	}
	if got.State != otp.StatePending {
		t.Errorf("State = %q, want pending", got.State)
	}
	if got.AttemptCount != 0 {
		t.Errorf("AttemptCount = %d, want 0", got.AttemptCount)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), uuid.New(), "+989123456789")
	if !errors.Is(err, ErrNoChallenge) {
		t.Errorf("got %v, want ErrNoChallenge", err)
	}
}

func TestSaveSupersedes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := sampleChallenge()
	if err := store.Save(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := first
	second.CodeHash = "$2a$10$differenthashvalue0000"
	second.IssuedAt = time.Now()
	if err := store.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, first.LeadID, first.Phone)
	if err != nil {
		t.Fatal(err)
	}
	if got.CodeHash != second.CodeHash {
		t.Error("second Save did not supersede the first challenge")
	}
}

func TestRecordOutlivesCodeValidity(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	challenge := sampleChallenge()

	if err := store.Save(ctx, challenge); err != nil {
		t.Fatal(err)
	}

	// Past the code TTL but within retention the record is still readable,
	// so verify can report expired instead of not-found.
	mr.FastForward(6 * time.Minute)
	got, err := store.Get(ctx, challenge.LeadID, challenge.Phone)
	if err != nil {
		t.Fatalf("Get within retention: %v", err)
	}
	if !got.IsExpired(time.Now().Add(6 * time.Minute)) {
		t.Error("challenge should read as expired")
	}

	// Far past retention the record is gone.
	mr.FastForward(30 * time.Minute)
	if _, err := store.Get(ctx, challenge.LeadID, challenge.Phone); !errors.Is(err, ErrNoChallenge) {
		t.Errorf("got %v, want ErrNoChallenge after retention", err)
	}
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	challenge := sampleChallenge()

	if err := store.Save(ctx, challenge); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, challenge.LeadID, challenge.Phone); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, challenge.LeadID, challenge.Phone); !errors.Is(err, ErrNoChallenge) {
		t.Errorf("got %v, want ErrNoChallenge after delete", err)
	}
}
