package enums

import "fmt"

// PaymentEvent identifies which subscription payment triggered a distribution.
type PaymentEvent string

const (
	PaymentEventActivation PaymentEvent = "activation"
	PaymentEventRenewal    PaymentEvent = "renewal"
)

var validPaymentEvents = []PaymentEvent{
	PaymentEventActivation,
	PaymentEventRenewal,
}

// IsValid reports whether the value matches the canonical payment event enum.
func (e PaymentEvent) IsValid() bool {
	for _, candidate := range validPaymentEvents {
		if candidate == e {
			return true
		}
	}
	return false
}

// TransactionType returns the ledger transaction type recorded for the event.
func (e PaymentEvent) TransactionType() TransactionType {
	if e == PaymentEventRenewal {
		return TransactionTypeRenewal
	}
	return TransactionTypeActivation
}

// ParsePaymentEvent converts raw input into PaymentEvent.
func ParsePaymentEvent(value string) (PaymentEvent, error) {
	for _, candidate := range validPaymentEvents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment event %q", value)
}
