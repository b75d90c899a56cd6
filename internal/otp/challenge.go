// Package otp implements the one-time-passcode challenge service that gates
// lead conversion.
package otp

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoChallenge is returned by Store implementations when no challenge
// exists for a (lead, phone) pair.
var ErrNoChallenge = errors.New("no challenge for this lead and phone")

// Challenge states. A challenge is single use: pending is the only state a
// verify can succeed from.
const (
	StatePending   = "pending"
	StateConsumed  = "consumed"
	StateExpired   = "expired"
	StateExhausted = "exhausted"
)

// Challenge is one issued verification code for a (lead, phone) pair. The
// code itself is never stored; only its bcrypt hash.
type Challenge struct {
	LeadID            uuid.UUID `json:"leadId"`
	Phone             string    `json:"phone"`
	CodeHash          string    `json:"codeHash"`
	State             string    `json:"state"`
	IssuedAt          time.Time `json:"issuedAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
	ResendAvailableAt time.Time `json:"resendAvailableAt"`
	AttemptCount      int       `json:"attemptCount"`
	MaxAttempts       int       `json:"maxAttempts"`
}

// IsExpired reports whether the code's validity window has passed.
func (c Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ResendIn returns how long until a resend is permitted, zero if already
// permitted.
func (c Challenge) ResendIn(now time.Time) time.Duration {
	if remaining := c.ResendAvailableAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}
