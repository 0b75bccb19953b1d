// Package idempotency lets a register resubmit a checkout safely. A flaky
// store LAN means the cashier may never see the first response; replaying
// the recorded outcome instead of re-running the sale keeps a double tap on
// the charge button from producing two sales.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long a recorded attempt stays replayable. A register
// retrying a checkout does so within seconds; a day is generous headroom.
const DefaultTTL = 24 * time.Hour

// ErrKeyReused is returned when a key is presented again with a different
// request fingerprint, meaning the register reused a key for a new sale.
var ErrKeyReused = errors.New("idempotency: key reused for a different request")

// AttemptStatus is the lifecycle state of a recorded attempt.
type AttemptStatus string

const (
	// AttemptPending means the first request holds the key and is still running.
	AttemptPending AttemptStatus = "pending"
	// AttemptCompleted means the outcome is recorded and can be replayed.
	AttemptCompleted AttemptStatus = "completed"
)

// Attempt is one recorded request under an idempotency key: who holds the
// key, what the request looked like, and the response once it completed.
type Attempt struct {
	Key         string
	Fingerprint string
	Status      AttemptStatus
	StatusCode  int
	Header      map[string][]string
	Body        []byte
	FirstSeen   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the attempt is past its retention window.
func (a Attempt) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// ClaimOutcome says what a register should do after presenting a key.
type ClaimOutcome int

const (
	// ClaimAccepted means the key is fresh; run the checkout.
	ClaimAccepted ClaimOutcome = iota
	// ClaimReplay means a completed attempt exists; replay its response.
	ClaimReplay
	// ClaimInFlight means another request with the same key is still running.
	ClaimInFlight
)

// Claim is the result of presenting an idempotency key.
type Claim struct {
	Outcome ClaimOutcome
	Attempt Attempt
}

// CapturedResponse is the handler output recorded for later replay.
type CapturedResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Store records checkout attempts by idempotency key.
type Store interface {
	// Claim presents a key; the outcome tells the caller whether to run,
	// replay, or back off. ErrKeyReused signals a fingerprint mismatch.
	Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	// Complete records the response for a claimed key.
	Complete(ctx context.Context, key, fingerprint string, resp CapturedResponse, now time.Time, ttl time.Duration) error
	// Forget drops the attempt so a retry can claim the key again.
	Forget(ctx context.Context, key, fingerprint string) error
	// CleanupExpired removes up to limit expired attempts.
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeader filters out headers that describe the original transport
// rather than the sale outcome; replaying them would be wrong or misleading.
func storableHeader(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	kept := make(map[string][]string, len(header))
	for name, values := range header {
		if transportHeader(http.CanonicalHeaderKey(name)) {
			continue
		}
		kept[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func transportHeader(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "connection", "keep-alive",
		"proxy-authenticate", "proxy-authorization", "te", "trailers",
		"transfer-encoding", "upgrade":
		return true
	}
	return false
}

func restoreHeader(stored map[string][]string) http.Header {
	header := make(http.Header, len(stored))
	for name, values := range stored {
		header[name] = append([]string(nil), values...)
	}
	return header
}
