package checkout

type Status string

const (
	StatusIdle                 Status = "IDLE"
	StatusPlacing              Status = "PLACING"
	StatusAwaitingGatewayOrder Status = "AWAITING_GATEWAY_ORDER"
	StatusAwaitingPayment      Status = "AWAITING_PAYMENT"
	StatusConfirming           Status = "CONFIRMING"
	StatusSucceeded            Status = "SUCCEEDED"
	StatusFailed               Status = "FAILED"
	StatusPaymentFailed        Status = "PAYMENT_FAILED"
	StatusPaymentOrphaned      Status = "PAYMENT_ORPHANED"
)

var transitions = map[Status][]Status{
	StatusIdle:                 {StatusPlacing, StatusAwaitingGatewayOrder},
	StatusPlacing:              {StatusSucceeded, StatusFailed},
	StatusAwaitingGatewayOrder: {StatusAwaitingPayment, StatusFailed},
	StatusAwaitingPayment:      {StatusConfirming, StatusPaymentFailed},
	StatusConfirming:           {StatusSucceeded, StatusPaymentOrphaned},
}

// CanTransitionTo reports whether moving from one status to another is
// a legal step of either checkout branch.
func CanTransitionTo(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusPaymentFailed, StatusPaymentOrphaned:
		return true
	}
	return false
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}
