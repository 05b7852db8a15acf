package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo_CODBranch(t *testing.T) {
	assert.True(t, CanTransitionTo(StatusIdle, StatusPlacing))
	assert.True(t, CanTransitionTo(StatusPlacing, StatusSucceeded))
	assert.True(t, CanTransitionTo(StatusPlacing, StatusFailed))
}

func TestCanTransitionTo_OnlineBranch(t *testing.T) {
	assert.True(t, CanTransitionTo(StatusIdle, StatusAwaitingGatewayOrder))
	assert.True(t, CanTransitionTo(StatusAwaitingGatewayOrder, StatusAwaitingPayment))
	assert.True(t, CanTransitionTo(StatusAwaitingPayment, StatusConfirming))
	assert.True(t, CanTransitionTo(StatusAwaitingPayment, StatusPaymentFailed))
	assert.True(t, CanTransitionTo(StatusConfirming, StatusSucceeded))
	assert.True(t, CanTransitionTo(StatusConfirming, StatusPaymentOrphaned))
}

func TestCanTransitionTo_Illegal(t *testing.T) {
	assert.False(t, CanTransitionTo(StatusIdle, StatusSucceeded))
	assert.False(t, CanTransitionTo(StatusAwaitingGatewayOrder, StatusSucceeded))
	assert.False(t, CanTransitionTo(StatusSucceeded, StatusPlacing))
	assert.False(t, CanTransitionTo(StatusPaymentOrphaned, StatusConfirming))
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusSucceeded, StatusFailed, StatusPaymentFailed, StatusPaymentOrphaned}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}
	live := []Status{StatusIdle, StatusPlacing, StatusAwaitingGatewayOrder, StatusAwaitingPayment, StatusConfirming}
	for _, s := range live {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}
