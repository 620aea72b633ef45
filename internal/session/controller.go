package session

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autotrack/autotrack/internal/metrics"
)

// Outcome window sizing for the adaptive controller. The full window keeps
// the last outcomeWindow results; pacing decisions look at the most recent
// recentWindow of them, so a single sample never moves the delay.
const (
	outcomeWindow = 20
	recentWindow  = 5

	lowSuccessRatio  = 0.5
	highSuccessRatio = 0.8
	delayGrowFactor  = 1.5
	delayDecayFactor = 0.9
)

// Config tunes the controller. Zero durations fall back to conservative
// defaults; thresholds come from configuration because the observed values
// vary across deployments.
type Config struct {
	MaxRequests    int
	BlockThreshold int
	Recovery       time.Duration
	RecoveryJitter time.Duration
	DelayInitial   time.Duration
	DelayMin       time.Duration
	DelayMax       time.Duration
	UserAgents     []string
	BlockMarkers   []string
}

func (c *Config) applyDefaults() {
	if c.MaxRequests <= 0 {
		c.MaxRequests = 50
	}
	if c.BlockThreshold <= 0 {
		c.BlockThreshold = 2
	}
	if c.Recovery <= 0 {
		c.Recovery = 30 * time.Second
	}
	if c.DelayMin <= 0 {
		c.DelayMin = 500 * time.Millisecond
	}
	if c.DelayMax < c.DelayMin {
		c.DelayMax = 60 * time.Second
	}
	if c.DelayInitial < c.DelayMin || c.DelayInitial > c.DelayMax {
		c.DelayInitial = 2 * time.Second
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = []string{"autotrack/1.0"}
	}
}

// Stats is a point-in-time snapshot of controller counters for the stats API.
type Stats struct {
	SessionsCreated int64         `json:"sessions_created"`
	RequestsTotal   int64         `json:"requests_total"`
	BlocksTotal     int64         `json:"blocks_total"`
	SuccessRate     float64       `json:"success_rate"`
	AdaptiveDelay   time.Duration `json:"-"`
	AdaptiveDelayMs int64         `json:"adaptive_delay_ms"`
	State           State         `json:"session_state"`
}

// Controller serializes access to the target: it paces requests with an
// AIMD-adjusted delay and rotates the single active session on block
// detection or request-count exhaustion.
type Controller struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	current   *Handle
	uaCursor  int
	delay     time.Duration
	limiter   *rate.Limiter
	window    []bool // true = success, oldest first
	created   int64
	requests  int64
	blocks    int64
	successes int64
	outcomes  int64
}

// NewController builds a Controller. The first Acquire creates the first
// session; no network identity exists before that.
func NewController(cfg Config, logger *zap.Logger) *Controller {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		logger:  logger,
		delay:   cfg.DelayInitial,
		limiter: rate.NewLimiter(rate.Every(cfg.DelayInitial), 1),
	}
}

// Acquire returns the active session, rotating first if the previous one is
// degraded or exhausted, then blocks for the current inter-request delay.
// The wait is cancellable through ctx.
func (c *Controller) Acquire(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	h := c.current
	needsRotation := h == nil || h.state == StateDegraded || h.requestCount >= c.cfg.MaxRequests
	blockTriggered := h != nil && h.state == StateDegraded
	if needsRotation && h != nil {
		h.state = StateCoolingDown
	}
	c.mu.Unlock()

	if needsRotation {
		if blockTriggered {
			if err := c.sleep(ctx, c.recoveryWait()); err != nil {
				return nil, err
			}
		}
		c.rotate()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pacing wait: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, fmt.Errorf("no active session")
	}
	return c.current, nil
}

// ReportOutcome feeds one fetch result back into the block counters and the
// adaptive delay window. Request counts advance here so a freshly rotated
// session observed between Acquire and its first fetch still reads zero.
func (c *Controller) ReportOutcome(h *Handle, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes++
	c.requests++
	if h != nil {
		h.requestCount++
	}
	success := outcome == OutcomeSuccess
	if success {
		c.successes++
	}
	c.window = append(c.window, success)
	if len(c.window) > outcomeWindow {
		c.window = c.window[len(c.window)-outcomeWindow:]
	}

	if h != nil && h == c.current {
		switch {
		case outcome.IsBlock():
			c.blocks++
			h.consecutiveBlocks++
			if h.consecutiveBlocks >= c.cfg.BlockThreshold {
				h.state = StateDegraded
				c.logger.Warn("session degraded",
					zap.String("identity", h.identity.ID),
					zap.Int("consecutive_blocks", h.consecutiveBlocks),
				)
			}
		case success:
			h.consecutiveBlocks = 0
		}
		// Transport errors feed the pacing window only.
	}

	c.adaptDelayLocked()
}

// Classify maps a page to an outcome using the configured block markers.
func (c *Controller) Classify(statusCode int, body []byte) Outcome {
	return Classify(statusCode, body, c.cfg.BlockMarkers)
}

// CurrentDelay returns the present inter-request delay.
func (c *Controller) CurrentDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// Snapshot returns current counters for observability endpoints.
func (c *Controller) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{
		SessionsCreated: c.created,
		RequestsTotal:   c.requests,
		BlocksTotal:     c.blocks,
		AdaptiveDelay:   c.delay,
		AdaptiveDelayMs: c.delay.Milliseconds(),
	}
	if c.outcomes > 0 {
		st.SuccessRate = float64(c.successes) / float64(c.outcomes)
	}
	if c.current != nil {
		st.State = c.current.state
	}
	return st
}

// Close tears down the active session at shutdown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}

// adaptDelayLocked applies the AIMD rule: widen multiplicatively when the
// recent success ratio drops below the low mark, decay toward the floor when
// it clears the high mark. Requires at least recentWindow samples so a single
// outcome never moves the delay.
func (c *Controller) adaptDelayLocked() {
	if len(c.window) < recentWindow {
		return
	}
	recent := c.window[len(c.window)-recentWindow:]
	ok := 0
	for _, s := range recent {
		if s {
			ok++
		}
	}
	ratio := float64(ok) / float64(recentWindow)

	before := c.delay
	switch {
	case ratio < lowSuccessRatio:
		c.delay = time.Duration(float64(c.delay) * delayGrowFactor)
		if c.delay > c.cfg.DelayMax {
			c.delay = c.cfg.DelayMax
		}
	case ratio > highSuccessRatio:
		c.delay = time.Duration(float64(c.delay) * delayDecayFactor)
		if c.delay < c.cfg.DelayMin {
			c.delay = c.cfg.DelayMin
		}
	}
	if c.delay != before {
		c.limiter.SetLimit(rate.Every(c.delay))
		c.logger.Debug("adaptive delay adjusted",
			zap.Duration("from", before),
			zap.Duration("to", c.delay),
			zap.Float64("recent_success_ratio", ratio),
		)
	}
}

// rotate discards the previous session and installs a fresh identity with
// reset counters.
func (c *Controller) rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	ua := c.cfg.UserAgents[c.uaCursor%len(c.cfg.UserAgents)]
	c.uaCursor++
	now := time.Now().UTC()
	c.current = &Handle{
		identity:  newIdentity(ua, now),
		createdAt: now,
		state:     StateActive,
	}
	c.created++
	metrics.ObserveRotation()
	c.logger.Info("session rotated",
		zap.String("identity", c.current.identity.ID),
		zap.Int64("sessions_created", c.created),
	)
}

func (c *Controller) recoveryWait() time.Duration {
	wait := c.cfg.Recovery
	if c.cfg.RecoveryJitter > 0 {
		wait += randomJitter(c.cfg.RecoveryJitter)
	}
	return wait
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("recovery wait: %w", ctx.Err())
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := crand.Int(crand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
