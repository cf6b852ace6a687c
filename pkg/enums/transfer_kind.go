package enums

import "fmt"

// TransferKind selects the direction of an internal balance transfer.
type TransferKind string

const (
	TransferKindEarningsToDeposit TransferKind = "earnings_to_deposit"
	TransferKindDepositToEarnings TransferKind = "deposit_to_earnings"
)

var validTransferKinds = []TransferKind{
	TransferKindEarningsToDeposit,
	TransferKindDepositToEarnings,
}

// IsValid reports whether the value matches the canonical transfer kind enum.
func (k TransferKind) IsValid() bool {
	for _, candidate := range validTransferKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTransferKind converts raw input into TransferKind.
func ParseTransferKind(value string) (TransferKind, error) {
	for _, candidate := range validTransferKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer kind %q", value)
}
