package settings

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gembotlabs/gembot-backend/pkg/coinconnect"
	"github.com/gembotlabs/gembot-backend/pkg/mailer"
)

// Setting document types stored in the settings table.
const (
	TypeLevels              = "levels"
	TypeSubscription        = "subscription"
	TypeWallet              = "wallet"
	TypeOverrideCommissions = "override_commissions"
	TypeSMTP                = "smtp"
	TypeCoinConnect         = "coinconnect"
	TypeEmailTemplates      = "email_templates"
)

// LevelConfig is one row of the ten-level commission table.
type LevelConfig struct {
	Level                int             `json:"level"`
	ActivationPercentage decimal.Decimal `json:"activation_percentage"`
	RenewalPercentage    decimal.Decimal `json:"renewal_percentage"`
	MinDirectReferrals   int             `json:"min_direct_referrals"`
}

// SubscriptionSettings carries the global pricing and grace window.
type SubscriptionSettings struct {
	ActivationAmount decimal.Decimal `json:"activation_amount"`
	RenewalAmount    decimal.Decimal `json:"renewal_amount"`
	GracePeriodHours int             `json:"grace_period_hours"`
}

// WalletSettings carries transfer fees (percentages except the flat
// withdrawal fee) and minimum amounts.
type WalletSettings struct {
	EarningsToDepositFee decimal.Decimal `json:"earnings_to_deposit_fee"`
	DepositToEarningsFee decimal.Decimal `json:"deposit_to_earnings_fee"`
	UserTransferFee      decimal.Decimal `json:"user_transfer_fee"`
	WithdrawalFee        decimal.Decimal `json:"withdrawal_fee"`
	MinTransferAmount    decimal.Decimal `json:"min_transfer_amount"`
	MinWithdrawalAmount  decimal.Decimal `json:"min_withdrawal_amount"`
}

// OverrideCommission is a flat, tree-position-independent commission paid to
// one member on every activation or renewal anywhere in the system.
type OverrideCommission struct {
	MemberID             uuid.UUID       `json:"member_id"`
	ActivationPercentage decimal.Decimal `json:"activation_percentage"`
	RenewalPercentage    decimal.Decimal `json:"renewal_percentage"`
}

func defaultLevels() []LevelConfig {
	rows := []struct {
		pct  string
		refs int
	}{
		{"10", 0},
		{"5", 2},
		{"3", 3},
		{"2", 4},
		{"1.5", 5},
		{"1", 6},
		{"0.8", 7},
		{"0.6", 8},
		{"0.4", 9},
		{"0.2", 10},
	}
	levels := make([]LevelConfig, 0, len(rows))
	for i, row := range rows {
		pct := decimal.RequireFromString(row.pct)
		levels = append(levels, LevelConfig{
			Level:                i + 1,
			ActivationPercentage: pct,
			RenewalPercentage:    pct,
			MinDirectReferrals:   row.refs,
		})
	}
	return levels
}

func defaultSubscription() SubscriptionSettings {
	return SubscriptionSettings{
		ActivationAmount: decimal.NewFromInt(100),
		RenewalAmount:    decimal.NewFromInt(70),
		GracePeriodHours: 48,
	}
}

func defaultWallet() WalletSettings {
	return WalletSettings{
		EarningsToDepositFee: decimal.NewFromInt(1),
		DepositToEarningsFee: decimal.NewFromInt(1),
		UserTransferFee:      decimal.NewFromInt(1),
		WithdrawalFee:        decimal.NewFromInt(2),
		MinTransferAmount:    decimal.NewFromInt(1),
		MinWithdrawalAmount:  decimal.NewFromInt(10),
	}
}

func defaultEmailTemplates() map[string]mailer.Template {
	templates := make(map[string]mailer.Template)
	for _, templateType := range mailer.DefaultTemplateTypes() {
		templates[templateType] = mailer.DefaultTemplate(templateType)
	}
	return templates
}

// SMTPDocument mirrors the admin-managed SMTP settings payload.
type SMTPDocument struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

// CoinConnectDocument mirrors the admin-managed provider credentials.
type CoinConnectDocument struct {
	Key    string `json:"cca_key"`
	Secret string `json:"cca_secret"`
}

// Credentials converts the stored document to provider credentials.
func (d CoinConnectDocument) Credentials() coinconnect.Credentials {
	return coinconnect.Credentials{Key: d.Key, Secret: d.Secret}
}
