package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCooldown_ManualTicks(t *testing.T) {
	for _, start := range []int{CheckoutCooldown, SignupCooldown} {
		c := NewCooldown(start, 0)
		assert.True(t, c.CanResend(), "not armed yet")

		c.Arm()
		assert.Equal(t, start, c.Remaining())
		assert.False(t, c.CanResend())

		for i := start - 1; i >= 0; i-- {
			assert.Equal(t, i, c.Tick())
		}
		assert.True(t, c.CanResend())
		assert.Equal(t, 0, c.Tick(), "never below zero")
	}
}

func TestCooldown_ArmResets(t *testing.T) {
	c := NewCooldown(CheckoutCooldown, 0)
	c.Arm()
	for i := 0; i < 12; i++ {
		c.Tick()
	}
	assert.Equal(t, 18, c.Remaining())

	c.Arm()
	assert.Equal(t, CheckoutCooldown, c.Remaining())
}

func TestCooldown_Ticker(t *testing.T) {
	c := NewCooldown(3, 5*time.Millisecond)
	c.Arm()
	defer c.Close()

	require.Eventually(t, c.CanResend, time.Second, time.Millisecond)
	assert.Equal(t, 0, c.Remaining())
}

func TestCooldown_CloseStopsTicker(t *testing.T) {
	c := NewCooldown(1000, time.Millisecond)
	c.Arm()
	require.Eventually(t, func() bool { return c.Remaining() < 1000 }, time.Second, time.Millisecond)

	c.Close()
	frozen := c.Remaining()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, c.Remaining())
}

func TestChallenge_Lifecycle(t *testing.T) {
	ch := NewChallenge(SignupCooldown, 0)

	ch.Begin("a@b.co")
	v := ch.View()
	assert.True(t, v.Open)
	assert.Equal(t, "a@b.co", v.Email)
	assert.Equal(t, SignupCooldown, v.Cooldown)
	assert.False(t, v.CanResend)
	assert.ErrorIs(t, ch.CheckResend(), ErrCooldownActive)

	ch.Fail("Invalid code")
	assert.Equal(t, "Invalid code", ch.View().Error)

	for i := 0; i < SignupCooldown; i++ {
		ch.Cooldown().Tick()
	}
	require.NoError(t, ch.CheckResend())

	ch.Resent()
	v = ch.View()
	assert.Empty(t, v.Error)
	assert.Equal(t, SignupCooldown, v.Cooldown)

	ch.Dismiss()
	assert.False(t, ch.IsOpen())
}

func TestChallenges_AreIndependent(t *testing.T) {
	checkout := NewChallenge(CheckoutCooldown, 0)
	signup := NewChallenge(SignupCooldown, 0)

	checkout.Begin("a@b.co")
	signup.Begin("a@b.co")
	checkout.Cooldown().Tick()

	assert.Equal(t, CheckoutCooldown-1, checkout.View().Cooldown)
	assert.Equal(t, SignupCooldown, signup.View().Cooldown)
}
