package enums

import "fmt"

// TransactionType maps to the transaction_type_enum enum in Postgres.
type TransactionType string

const (
	TransactionTypeActivation           TransactionType = "activation"
	TransactionTypeRenewal              TransactionType = "renewal"
	TransactionTypeLevelIncome          TransactionType = "level_income"
	TransactionTypeAdditionalCommission TransactionType = "additional_commission"
	TransactionTypeWithdrawal           TransactionType = "withdrawal"
	TransactionTypeInternalTransfer     TransactionType = "internal_transfer"
	TransactionTypeUserTransfer         TransactionType = "user_transfer"
	TransactionTypeGracePeriodFlush     TransactionType = "grace_period_flush"
	TransactionTypeGracePeriodForfeit   TransactionType = "grace_period_forfeit"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeActivation,
	TransactionTypeRenewal,
	TransactionTypeLevelIncome,
	TransactionTypeAdditionalCommission,
	TransactionTypeWithdrawal,
	TransactionTypeInternalTransfer,
	TransactionTypeUserTransfer,
	TransactionTypeGracePeriodFlush,
	TransactionTypeGracePeriodForfeit,
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
