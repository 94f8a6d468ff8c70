// Package health aggregates per-backend liveness checks into an overall
// status. Each registered schema contributes one check; the aggregate is
// degraded while some but not all backends are reachable.
package health

import (
	"sync"
	"time"
)

// Status is the outcome of one check or of the aggregate.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc performs a liveness probe, typically a backend ping.
type CheckFunc func() error

// Check is a single named check result.
type Check struct {
	Name        string
	Status      Status
	Message     string
	LastChecked time.Time
}

// Checker collects named check results.
type Checker struct {
	mu          sync.RWMutex
	checks      map[string]*Check
	lastHealthy time.Time
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{
		checks:      make(map[string]*Check),
		lastHealthy: time.Now(),
	}
}

// RunCheck executes one probe and records its result under name.
func (c *Checker) RunCheck(name string, probe CheckFunc) {
	status := StatusHealthy
	message := "OK"
	if err := probe(); err != nil {
		status = StatusUnhealthy
		message = err.Error()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = &Check{
		Name:        name,
		Status:      status,
		Message:     message,
		LastChecked: time.Now(),
	}
	if c.allHealthy() {
		c.lastHealthy = time.Now()
	}
}

// Overall reduces the recorded checks: healthy when all pass (or none ran),
// unhealthy when all fail, degraded in between.
func (c *Checker) Overall() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.checks) == 0 {
		return StatusHealthy
	}

	failing := 0
	for _, check := range c.checks {
		if check.Status == StatusUnhealthy {
			failing++
		}
	}
	switch {
	case failing == 0:
		return StatusHealthy
	case failing < len(c.checks):
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Checks returns a copy of every recorded check.
func (c *Checker) Checks() []Check {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Check, 0, len(c.checks))
	for _, check := range c.checks {
		out = append(out, *check)
	}
	return out
}

// LastHealthy returns the last time every check passed.
func (c *Checker) LastHealthy() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHealthy
}

func (c *Checker) allHealthy() bool {
	for _, check := range c.checks {
		if check.Status != StatusHealthy {
			return false
		}
	}
	return true
}
