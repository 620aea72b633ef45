// Package session owns request pacing, identity rotation, and block
// detection for the scraping pipeline. It models the target's blocking
// behavior: sessions degrade after consecutive blocks, cool down, and are
// replaced wholesale with a fresh identity.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a session.
type State string

// Session states.
const (
	StateActive      State = "ACTIVE"
	StateDegraded    State = "DEGRADED"
	StateCoolingDown State = "COOLING_DOWN"
)

// Outcome classifies the result of one fetch against the target.
type Outcome string

// Fetch outcomes reported back to the controller.
const (
	OutcomeSuccess        Outcome = "SUCCESS"
	OutcomeSoftBlock      Outcome = "SOFT_BLOCK"
	OutcomeHardBlock      Outcome = "HARD_BLOCK"
	OutcomeTransportError Outcome = "TRANSPORT_ERROR"
)

// IsBlock reports whether the outcome counts toward the block threshold.
func (o Outcome) IsBlock() bool {
	return o == OutcomeSoftBlock || o == OutcomeHardBlock
}

// Identity is the network identity material for one session. A rotation
// replaces the whole value, never individual fields mid-flight.
type Identity struct {
	ID        string
	UserAgent string
	Headers   map[string]string
	CreatedAt time.Time
}

func newIdentity(userAgent string, now time.Time) Identity {
	return Identity{
		ID:        uuid.NewString(),
		UserAgent: userAgent,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "fr-FR,fr;q=0.9,en;q=0.5",
			"Cache-Control":   "no-cache",
		},
		CreatedAt: now,
	}
}

// Handle represents the currently active session as seen by callers of
// Acquire. Callers must not retain it across rotations.
type Handle struct {
	identity          Identity
	createdAt         time.Time
	requestCount      int
	consecutiveBlocks int
	state             State
}

// Identity returns the session's identity material.
func (h *Handle) Identity() Identity { return h.identity }

// RequestCount returns how many requests this session has served.
func (h *Handle) RequestCount() int { return h.requestCount }

// State returns the session's lifecycle state.
func (h *Handle) State() State { return h.state }

// Classify maps a fetched page to an outcome. Block-page markers upgrade an
// HTTP 200 to a hard block; status codes 403 and 429 map to soft and hard
// blocks respectively.
func Classify(statusCode int, body []byte, markers []string) Outcome {
	switch statusCode {
	case 403:
		return OutcomeSoftBlock
	case 429:
		return OutcomeHardBlock
	}
	if statusCode >= 500 {
		return OutcomeTransportError
	}
	if len(body) > 0 && len(markers) > 0 {
		lower := strings.ToLower(string(body))
		for _, m := range markers {
			if m == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(m)) {
				return OutcomeHardBlock
			}
		}
	}
	return OutcomeSuccess
}
