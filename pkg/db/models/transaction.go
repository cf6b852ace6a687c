package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gembotlabs/gembot-backend/pkg/enums"
)

// Transaction is an append-only ledger entry. Amount, type and member never
// change after insert; only Status may transition, and only away from
// pending_grace.
type Transaction struct {
	ID           uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MemberID     uuid.UUID               `gorm:"type:uuid;column:member_id;not null;index" json:"member_id"`
	Type         enums.TransactionType   `gorm:"type:text;column:type;not null;index" json:"type"`
	Status       enums.TransactionStatus `gorm:"type:text;column:status;not null;default:completed" json:"status"`
	Amount       decimal.Decimal         `gorm:"type:numeric(18,2);column:amount;not null" json:"amount"`
	Fee          decimal.Decimal         `gorm:"type:numeric(18,2);column:fee;not null;default:0" json:"fee"`
	NetAmount    decimal.Decimal         `gorm:"type:numeric(18,2);column:net_amount;not null;default:0" json:"net_amount"`
	Level        *int                    `gorm:"column:level" json:"level,omitempty"`
	FromMemberID *uuid.UUID              `gorm:"type:uuid;column:from_member_id" json:"from_member_id,omitempty"`
	ToAddress    *string                 `gorm:"column:to_address" json:"to_address,omitempty"`
	TxnID        *string                 `gorm:"column:txn_id" json:"txn_id,omitempty"`
	TxnHash      *string                 `gorm:"column:txn_hash" json:"txn_hash,omitempty"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}
