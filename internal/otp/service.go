package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"institute_backend/platform/apperr"
	"institute_backend/platform/config"
	"institute_backend/platform/logger"
	"institute_backend/platform/phone"
)

// Store is the persistence surface for challenges. One record per
// (lead, phone) pair; Save replaces any existing record.
type Store interface {
	Save(ctx context.Context, challenge Challenge) error
	Get(ctx context.Context, leadID uuid.UUID, phone string) (Challenge, error)
}

// Service issues and verifies one-time codes. All operations on the same
// (lead, phone) pair are serialized through a per-key lock so concurrent
// verify and resend calls observe a consistent challenge state.
type Service struct {
	store  Store
	sender Sender
	locks  *keyedMutex
	cfg    config.OTPConfig
	log    *logger.Logger
	now    func() time.Time
}

func NewService(challengeStore Store, sender Sender, cfg config.OTPConfig, log *logger.Logger) *Service {
	return &Service{
		store:  challengeStore,
		sender: sender,
		locks:  newKeyedMutex(),
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// IssueResult tells the caller when the code expires and when a resend
// becomes available. The code itself never leaves the delivery path.
type IssueResult struct {
	Phone             string
	ExpiresAt         time.Time
	ResendAvailableAt time.Time
}

// VerifyOutcome reports a successful verification.
type VerifyOutcome struct {
	Phone string
}

func pairKey(leadID uuid.UUID, phone string) string {
	return leadID.String() + ":" + phone
}

// Issue creates and delivers a fresh challenge for the pair, superseding any
// prior pending one. While a pending challenge's resend cooldown is active
// the call fails and reports the remaining wait.
func (s *Service) Issue(ctx context.Context, leadID uuid.UUID, rawPhone string) (IssueResult, error) {
	normalized, ok := phone.NormalizeMobile(rawPhone)
	if !ok {
		return IssueResult{}, apperr.Validation("invalid mobile number")
	}

	unlock := s.locks.Lock(pairKey(leadID, normalized))
	defer unlock()

	now := s.now()

	existing, err := s.store.Get(ctx, leadID, normalized)
	if err != nil && !errors.Is(err, ErrNoChallenge) {
		return IssueResult{}, apperr.Wrap(apperr.KindInternal, "failed to load challenge", err)
	}
	if err == nil && existing.State == StatePending && !existing.IsExpired(now) {
		if remaining := existing.ResendIn(now); remaining > 0 {
			seconds := int(remaining.Round(time.Second).Seconds())
			s.log.OTPEvent("issue", leadID.String(), normalized, false, "resend cooldown")
			return IssueResult{}, apperr.TooManyRequests(
				fmt.Sprintf("a code was sent recently, retry in %d seconds", seconds)).
				WithDetails(map[string]int{"retryAfterSeconds": seconds})
		}
	}

	code, err := generateCode()
	if err != nil {
		return IssueResult{}, apperr.Wrap(apperr.KindInternal, "failed to generate code", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return IssueResult{}, apperr.Wrap(apperr.KindInternal, "failed to hash code", err)
	}

	challenge := Challenge{
		LeadID:            leadID,
		Phone:             normalized,
		CodeHash:          string(hash),
		State:             StatePending,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.cfg.GetOTPTTL()),
		ResendAvailableAt: now.Add(s.cfg.GetOTPResendCooldown()),
		AttemptCount:      0,
		MaxAttempts:       s.cfg.GetOTPMaxAttempts(),
	}
	if err := s.store.Save(ctx, challenge); err != nil {
		return IssueResult{}, apperr.Wrap(apperr.KindInternal, "failed to store challenge", err)
	}

	result := IssueResult{
		Phone:             normalized,
		ExpiresAt:         challenge.ExpiresAt,
		ResendAvailableAt: challenge.ResendAvailableAt,
	}

	// The challenge is already durable; a delivery failure leaves it valid
	// so the user can trigger a manual resend after the cooldown.
	if err := s.sender.Send(ctx, normalized, code); err != nil {
		s.log.OTPEvent("deliver", leadID.String(), normalized, false, err.Error())
		return result, apperr.Wrap(apperr.KindUnavailable, "failed to deliver the code, try resending", err)
	}

	s.log.OTPEvent("issue", leadID.String(), normalized, true, "")
	return result, nil
}

// Verify checks the supplied code against the pair's pending challenge.
// Every comparison costs an attempt; the challenge is consumed on success
// and can never verify twice.
func (s *Service) Verify(ctx context.Context, leadID uuid.UUID, rawPhone, code string) (VerifyOutcome, error) {
	normalized, ok := phone.NormalizeMobile(rawPhone)
	if !ok {
		return VerifyOutcome{}, apperr.Validation("invalid mobile number")
	}
	if len(code) != codeLength {
		return VerifyOutcome{}, apperr.Validation("code must be 6 digits")
	}

	unlock := s.locks.Lock(pairKey(leadID, normalized))
	defer unlock()

	now := s.now()

	challenge, err := s.store.Get(ctx, leadID, normalized)
	if errors.Is(err, ErrNoChallenge) {
		return VerifyOutcome{}, apperr.NotFound("no pending verification for this phone")
	}
	if err != nil {
		return VerifyOutcome{}, apperr.Wrap(apperr.KindInternal, "failed to load challenge", err)
	}

	switch challenge.State {
	case StatePending:
		// fall through to checks below
	case StateExpired:
		return VerifyOutcome{}, apperr.Gone("the code has expired, request a new one")
	case StateExhausted:
		return VerifyOutcome{}, apperr.Unprocessable("too many incorrect attempts, request a new code")
	default:
		// consumed, or superseded state we no longer recognize
		return VerifyOutcome{}, apperr.NotFound("no pending verification for this phone")
	}

	if challenge.IsExpired(now) {
		challenge.State = StateExpired
		if err := s.store.Save(ctx, challenge); err != nil {
			return VerifyOutcome{}, apperr.Wrap(apperr.KindInternal, "failed to update challenge", err)
		}
		s.log.OTPEvent("verify", leadID.String(), normalized, false, "expired")
		return VerifyOutcome{}, apperr.Gone("the code has expired, request a new one")
	}

	if challenge.AttemptCount >= challenge.MaxAttempts {
		challenge.State = StateExhausted
		if err := s.store.Save(ctx, challenge); err != nil {
			return VerifyOutcome{}, apperr.Wrap(apperr.KindInternal, "failed to update challenge", err)
		}
		s.log.OTPEvent("verify", leadID.String(), normalized, false, "attempts exhausted")
		return VerifyOutcome{}, apperr.Unprocessable("too many incorrect attempts, request a new code")
	}

	challenge.AttemptCount++

	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)) != nil {
		if err := s.store.Save(ctx, challenge); err != nil {
			return VerifyOutcome{}, apperr.Wrap(apperr.KindInternal, "failed to update challenge", err)
		}
		remaining := challenge.MaxAttempts - challenge.AttemptCount
		s.log.OTPEvent("verify", leadID.String(), normalized, false, "incorrect code")
		return VerifyOutcome{}, apperr.Validation("incorrect code").
			WithDetails(map[string]int{"attemptsRemaining": remaining})
	}

	challenge.State = StateConsumed
	if err := s.store.Save(ctx, challenge); err != nil {
		return VerifyOutcome{}, apperr.Wrap(apperr.KindInternal, "failed to consume challenge", err)
	}

	s.log.OTPEvent("verify", leadID.String(), normalized, true, "")
	return VerifyOutcome{Phone: normalized}, nil
}

const codeLength = 6

var codeSpace = big.NewInt(1000000)

// generateCode returns a uniformly random 6-digit code, leading zeros
// preserved.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
