// Package otp holds the state shared by both one-time-code dialogs: the
// resend cooldown and the open challenge.
package otp

import (
	"sync"
	"time"
)

const (
	CheckoutCooldown = 30
	SignupCooldown   = 60
)

// Cooldown counts down from a fixed start value, one step per interval.
// Resending is allowed once it reaches zero. An interval of zero disables
// the background ticker and Tick must be called by hand.
type Cooldown struct {
	mu        sync.Mutex
	start     int
	remaining int
	interval  time.Duration
	stop      chan struct{}
}

func NewCooldown(start int, interval time.Duration) *Cooldown {
	return &Cooldown{start: start, interval: interval}
}

// Arm resets the countdown to its start value and restarts the ticker.
func (c *Cooldown) Arm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.remaining = c.start
	if c.interval <= 0 || c.remaining == 0 {
		return
	}

	stop := make(chan struct{})
	c.stop = stop
	go c.run(stop)
}

func (c *Cooldown) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.tickFrom(stop) {
				return
			}
		}
	}
}

// tickFrom ticks only while stop still belongs to the current arming, so a
// ticker that lost the race with Arm or Close cannot touch the new countdown.
func (c *Cooldown) tickFrom(stop chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != stop {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining > 0
}

// Tick decrements the countdown, never below zero, and returns what is left.
func (c *Cooldown) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

func (c *Cooldown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Cooldown) CanResend() bool {
	return c.Remaining() == 0
}

// Close stops the ticker. The remaining value is kept.
func (c *Cooldown) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Cooldown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}
