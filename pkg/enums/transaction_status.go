package enums

import "fmt"

// TransactionStatus maps to the transaction_status_enum enum in Postgres.
// Transactions are append-only; the only permitted transition is
// pending_grace -> completed or pending_grace -> forfeited.
type TransactionStatus string

const (
	TransactionStatusCompleted    TransactionStatus = "completed"
	TransactionStatusPendingGrace TransactionStatus = "pending_grace"
	TransactionStatusForfeited    TransactionStatus = "forfeited"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusCompleted,
	TransactionStatusPendingGrace,
	TransactionStatusForfeited,
}

// IsValid reports whether the value matches the canonical status enum.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
