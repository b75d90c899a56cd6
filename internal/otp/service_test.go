package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"institute_backend/platform/apperr"
	"institute_backend/platform/logger"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

func newMemStore() *memStore {
	return &memStore{challenges: make(map[string]Challenge)}
}

func (m *memStore) Save(_ context.Context, challenge Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[pairKey(challenge.LeadID, challenge.Phone)] = challenge
	return nil
}

func (m *memStore) Get(_ context.Context, leadID uuid.UUID, phone string) (Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge, ok := m.challenges[pairKey(leadID, phone)]
	if !ok {
		return Challenge{}, ErrNoChallenge
	}
	return challenge, nil
}

// captureSender records delivered codes and can be told to fail.
type captureSender struct {
	mu    sync.Mutex
	codes []string
	fail  bool
}

func (c *captureSender) Send(_ context.Context, _, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("provider unreachable")
	}
	c.codes = append(c.codes, code)
	return nil
}

func (c *captureSender) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.codes) == 0 {
		return ""
	}
	return c.codes[len(c.codes)-1]
}

type testOTPConfig struct{}

func (testOTPConfig) GetOTPTTL() time.Duration           { return 5 * time.Minute }
func (testOTPConfig) GetOTPResendCooldown() time.Duration { return 60 * time.Second }
func (testOTPConfig) GetOTPMaxAttempts() int             { return 5 }

func newTestService(t *testing.T) (*Service, *captureSender, *time.Time) {
	t.Helper()
	sender := &captureSender{}
	svc := NewService(newMemStore(), sender, testOTPConfig{}, logger.New("development"))

	current := time.Now()
	svc.now = func() time.Time { return current }
	return svc, sender, &current
}

const testPhone = "09123456789"

func TestIssueDeliversSixDigitCode(t *testing.T) {
	svc, sender, _ := newTestService(t)
	leadID := uuid.New()

	result, err := svc.Issue(context.Background(), leadID, testPhone)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if result.Phone != "+989123456789" {
		t.Errorf("Phone = %q, want normalized E.164", result.Phone)
	}

	code := sender.last()
	if len(code) != 6 {
		t.Fatalf("delivered code %q, want 6 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("delivered code %q contains a non-digit", code)
		}
	}
}

func TestIssueInvalidPhone(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Issue(context.Background(), uuid.New(), "12345")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestResendWithinCooldownRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	leadID := uuid.New()

	if _, err := svc.Issue(context.Background(), leadID, testPhone); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Issue(context.Background(), leadID, testPhone)
	if !apperr.Is(err, apperr.KindTooManyRequests) {
		t.Fatalf("got %v, want too-many-requests", err)
	}

	var appError *apperr.Error
	if !errors.As(err, &appError) {
		t.Fatal("expected *apperr.Error")
	}
	details, ok := appError.Details.(map[string]int)
	if !ok || details["retryAfterSeconds"] <= 0 {
		t.Errorf("details = %v, want positive retryAfterSeconds", appError.Details)
	}
}

func TestResendAfterCooldownSupersedes(t *testing.T) {
	svc, sender, now := newTestService(t)
	leadID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Issue(ctx, leadID, testPhone); err != nil {
		t.Fatal(err)
	}
	oldCode := sender.last()

	*now = now.Add(61 * time.Second)
	if _, err := svc.Issue(ctx, leadID, testPhone); err != nil {
		t.Fatalf("resend after cooldown: %v", err)
	}
	newCode := sender.last()

	// The superseded code no longer verifies.
	if oldCode != newCode {
		if _, err := svc.Verify(ctx, leadID, testPhone, oldCode); err == nil {
			t.Error("superseded code should not verify")
		}
	}

	if _, err := svc.Verify(ctx, leadID, testPhone, newCode); err != nil {
		t.Errorf("fresh code should verify, got %v", err)
	}
}

func TestVerifyIsSingleUse(t *testing.T) {
	svc, sender, _ := newTestService(t)
	leadID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Issue(ctx, leadID, testPhone); err != nil {
		t.Fatal(err)
	}
	code := sender.last()

	if _, err := svc.Verify(ctx, leadID, testPhone, code); err != nil {
		t.Fatalf("first Verify: %v", err)
	}

	_, err := svc.Verify(ctx, leadID, testPhone, code)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("second Verify: got %v, want not found", err)
	}
}

func TestVerifyWithoutChallenge(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Verify(context.Background(), uuid.New(), testPhone, "123456")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	svc, sender, now := newTestService(t)
	leadID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Issue(ctx, leadID, testPhone); err != nil {
		t.Fatal(err)
	}
	code := sender.last()

	*now = now.Add(6 * time.Minute)

	_, err := svc.Verify(ctx, leadID, testPhone, code)
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("got %v, want gone", err)
	}

	// The expired state is persisted; a repeat verify reports the same.
	_, err = svc.Verify(ctx, leadID, testPhone, code)
	if !apperr.Is(err, apperr.KindGone) {
		t.Errorf("repeat verify: got %v, want gone", err)
	}
}

func TestVerifyAttemptsExhausted(t *testing.T) {
	svc, sender, _ := newTestService(t)
	leadID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Issue(ctx, leadID, testPhone); err != nil {
		t.Fatal(err)
	}

	wrong := "000000"
	if wrong == sender.last() {
		wrong = "000001"
	}

	for i := 0; i < 5; i++ {
		_, err := svc.Verify(ctx, leadID, testPhone, wrong)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("attempt %d: got %v, want validation (incorrect code)", i+1, err)
		}
	}

	// Budget spent: even the correct code is refused now.
	_, err := svc.Verify(ctx, leadID, testPhone, sender.last())
	if !apperr.Is(err, apperr.KindUnprocessable) {
		t.Errorf("got %v, want unprocessable after exhaustion", err)
	}
}

func TestWrongCodeReportsAttemptsRemaining(t *testing.T) {
	svc, sender, _ := newTestService(t)
	leadID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Issue(ctx, leadID, testPhone); err != nil {
		t.Fatal(err)
	}
	wrong := "000000"
	if wrong == sender.last() {
		wrong = "000001"
	}

	_, err := svc.Verify(ctx, leadID, testPhone, wrong)
	var appError *apperr.Error
	if !errors.As(err, &appError) {
		t.Fatal("expected *apperr.Error")
	}
	details, ok := appError.Details.(map[string]int)
	if !ok || details["attemptsRemaining"] != 4 {
		t.Errorf("details = %v, want attemptsRemaining=4", appError.Details)
	}
}

func TestDeliveryFailureKeepsChallengeUsable(t *testing.T) {
	svc, sender, _ := newTestService(t)
	leadID := uuid.New()
	ctx := context.Background()

	sender.fail = true
	_, err := svc.Issue(ctx, leadID, testPhone)
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("got %v, want unavailable", err)
	}

	// The challenge was stored before delivery; the pending state survives
	// the provider failure and blocks an immediate resend.
	sender.fail = false
	_, err = svc.Issue(ctx, leadID, testPhone)
	if !apperr.Is(err, apperr.KindTooManyRequests) {
		t.Errorf("resend right after failed delivery: got %v, want too-many-requests", err)
	}
}

func TestConcurrentVerifyOnlyOneSucceeds(t *testing.T) {
	svc, sender, _ := newTestService(t)
	leadID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Issue(ctx, leadID, testPhone); err != nil {
		t.Fatal(err)
	}
	code := sender.last()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Verify(ctx, leadID, testPhone, code)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("worker %d: got %v, want not found", i, err)
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}
}
