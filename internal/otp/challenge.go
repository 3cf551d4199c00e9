package otp

import (
	"errors"
	"sync"
	"time"
)

var ErrCooldownActive = errors.New("resend is not available yet")

// Challenge is one open "enter the code we emailed you" dialog.
type Challenge struct {
	mu       sync.Mutex
	email    string
	open     bool
	errMsg   string
	cooldown *Cooldown
}

func NewChallenge(cooldownStart int, interval time.Duration) *Challenge {
	return &Challenge{cooldown: NewCooldown(cooldownStart, interval)}
}

// View is a point-in-time copy of the challenge.
type View struct {
	Email     string `json:"email"`
	Open      bool   `json:"open"`
	Error     string `json:"error,omitempty"`
	Cooldown  int    `json:"cooldown"`
	CanResend bool   `json:"canResend"`
}

// Begin opens the dialog for email and arms the cooldown.
func (c *Challenge) Begin(email string) {
	c.mu.Lock()
	c.email = email
	c.open = true
	c.errMsg = ""
	c.mu.Unlock()

	c.cooldown.Arm()
}

// Resent re-arms the cooldown after a successful resend and clears the error.
func (c *Challenge) Resent() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()

	c.cooldown.Arm()
}

// CheckResend reports ErrCooldownActive while the countdown is running.
func (c *Challenge) CheckResend() error {
	if !c.cooldown.CanResend() {
		return ErrCooldownActive
	}
	return nil
}

func (c *Challenge) Fail(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = message
}

func (c *Challenge) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
}

// Dismiss closes the dialog. The cooldown keeps counting so reopening does
// not allow an early resend.
func (c *Challenge) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.errMsg = ""
}

func (c *Challenge) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Challenge) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

func (c *Challenge) Cooldown() *Cooldown {
	return c.cooldown
}

func (c *Challenge) View() View {
	c.mu.Lock()
	v := View{Email: c.email, Open: c.open, Error: c.errMsg}
	c.mu.Unlock()

	v.Cooldown = c.cooldown.Remaining()
	v.CanResend = v.Cooldown == 0
	return v
}

// Close stops the cooldown ticker.
func (c *Challenge) Close() {
	c.cooldown.Close()
}
