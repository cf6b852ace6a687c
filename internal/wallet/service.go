package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/settings"
	"github.com/gembotlabs/gembot-backend/pkg/coinconnect"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

const withdrawalTxnPrefix = "GEM-"

var percentDivisor = decimal.NewFromInt(100)

// MemberStore is the slice of the member repository this service needs.
type MemberStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Member, error)
	ApplyBalanceDeltas(ctx context.Context, memberID uuid.UUID, deltas members.BalanceDeltas) error
	TransferDeposit(ctx context.Context, senderID, recipientID uuid.UUID, amount, credited decimal.Decimal) error
}

// WithdrawProvider executes external withdrawals.
type WithdrawProvider interface {
	Withdraw(ctx context.Context, creds coinconnect.Credentials, params coinconnect.WithdrawParams) (*coinconnect.WithdrawResult, error)
	EnvCredentials() coinconnect.Credentials
}

// ConfigSource supplies fees, minimums and provider credentials.
type ConfigSource interface {
	Wallet(ctx context.Context) (settings.WalletSettings, error)
	CoinConnect(ctx context.Context) (*settings.CoinConnectDocument, error)
}

// ServiceParams groups dependencies for the wallet service.
type ServiceParams struct {
	Members  MemberStore
	Ledger   ledger.Service
	Config   ConfigSource
	Provider WithdrawProvider
	Logger   *logger.Logger
}

// Service owns balance transfers between buckets and members, and external
// withdrawals. Every validation runs before any mutation; a rejected
// operation leaves no state change.
type Service struct {
	members  MemberStore
	ledger   ledger.Service
	config   ConfigSource
	provider WithdrawProvider
	logger   *logger.Logger
}

// NewService builds a wallet service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Members == nil {
		return nil, errors.New("member store is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	if params.Config == nil {
		return nil, errors.New("config source is required")
	}
	if params.Provider == nil {
		return nil, errors.New("withdraw provider is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		members:  params.Members,
		ledger:   params.Ledger,
		config:   params.Config,
		provider: params.Provider,
		logger:   params.Logger,
	}, nil
}

// TransferResult reports the applied amounts of a completed transfer.
type TransferResult struct {
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	NetAmount decimal.Decimal `json:"net_amount"`
}

// InternalTransfer moves funds between a member's own earnings and deposit
// buckets. The fee percentage for the chosen direction is withheld from the
// credited side; the withheld fee is credited to no one.
func (s *Service) InternalTransfer(ctx context.Context, memberID uuid.UUID, kind enums.TransferKind, amount decimal.Decimal) (*TransferResult, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transfer direction")
	}

	cfg, err := s.config.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(cfg.MinTransferAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("Minimum transfer amount is %s USDT", cfg.MinTransferAmount))
	}

	feePct := cfg.EarningsToDepositFee
	if kind == enums.TransferKindDepositToEarnings {
		feePct = cfg.DepositToEarningsFee
	}
	fee := amount.Mul(feePct).Div(percentDivisor)
	net := amount.Sub(fee)

	deltas := members.BalanceDeltas{Earnings: amount.Neg(), Deposit: net}
	if kind == enums.TransferKindDepositToEarnings {
		deltas = members.BalanceDeltas{Deposit: amount.Neg(), Earnings: net}
	}
	if err := s.members.ApplyBalanceDeltas(ctx, memberID, deltas); err != nil {
		if errors.Is(err, members.ErrInsufficientBalance) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "Insufficient balance")
		}
		if errors.Is(err, members.ErrMemberNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, err
	}

	_, err = s.ledger.Record(ctx, ledger.RecordTransactionInput{
		MemberID:  memberID,
		Type:      enums.TransactionTypeInternalTransfer,
		Status:    enums.TransactionStatusCompleted,
		Amount:    amount,
		Fee:       fee,
		NetAmount: net,
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{Amount: amount, Fee: fee, NetAmount: net}, nil
}

// UserTransfer sends deposit funds from one member to another, located by
// email or referral code. The recorded transaction belongs to the recipient
// with the sender as from_member_id.
func (s *Service) UserTransfer(ctx context.Context, senderID uuid.UUID, recipientRef string, amount decimal.Decimal) (*TransferResult, error) {
	cfg, err := s.config.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(cfg.MinTransferAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("Minimum transfer amount is %s USDT", cfg.MinTransferAmount))
	}

	recipient, err := s.resolveRecipient(ctx, recipientRef)
	if err != nil {
		return nil, err
	}
	if recipient.ID == senderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "You cannot transfer to yourself")
	}

	fee := amount.Mul(cfg.UserTransferFee).Div(percentDivisor)
	net := amount.Sub(fee)

	if err := s.members.TransferDeposit(ctx, senderID, recipient.ID, amount, net); err != nil {
		if errors.Is(err, members.ErrInsufficientBalance) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "Insufficient balance")
		}
		if errors.Is(err, members.ErrMemberNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, err
	}

	_, err = s.ledger.Record(ctx, ledger.RecordTransactionInput{
		MemberID:     recipient.ID,
		Type:         enums.TransactionTypeUserTransfer,
		Status:       enums.TransactionStatusCompleted,
		Amount:       amount,
		Fee:          fee,
		NetAmount:    net,
		FromMemberID: &senderID,
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{Amount: amount, Fee: fee, NetAmount: net}, nil
}

func (s *Service) resolveRecipient(ctx context.Context, ref string) (*models.Member, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Recipient not found")
	}

	var recipient *models.Member
	var err error
	if strings.Contains(ref, "@") {
		recipient, err = s.members.FindByEmail(ctx, ref)
	} else {
		recipient, err = s.members.FindByReferralCode(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Recipient not found")
	}
	return recipient, nil
}

// WithdrawResult reports a completed external withdrawal.
type WithdrawResult struct {
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	NetAmount decimal.Decimal `json:"net_amount"`
	TxnID     string          `json:"txn_id"`
	TxnHash   string          `json:"txn_hash,omitempty"`
}

// Withdraw sends earnings to an external address through the payment
// provider. The flat withdrawal fee is deducted from the sent amount. Funds
// are debited only after the provider confirms; a NOTOK reply rejects the
// withdrawal with the provider's message and leaves balances untouched.
func (s *Service) Withdraw(ctx context.Context, memberID uuid.UUID, toAddress string, amount decimal.Decimal) (*WithdrawResult, error) {
	if strings.TrimSpace(toAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination address is required")
	}

	cfg, err := s.config.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(cfg.MinWithdrawalAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("Minimum withdrawal amount is %s USDT", cfg.MinWithdrawalAmount))
	}

	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}
	if member.EarningsBalance.LessThan(amount) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "Insufficient balance")
	}

	fee := cfg.WithdrawalFee
	net := amount.Sub(fee)
	if !net.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not cover the withdrawal fee")
	}

	txnID, err := generateWithdrawalTxnID()
	if err != nil {
		return nil, err
	}

	walletAddress := ""
	if member.WalletAddress != nil {
		walletAddress = *member.WalletAddress
	}
	result, err := s.provider.Withdraw(ctx, s.credentials(ctx), coinconnect.WithdrawParams{
		UserEmail:   member.Email,
		UserAddress: walletAddress,
		ToAddress:   toAddress,
		Amount:      net,
		TxnID:       txnID,
	})
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		message := result.Message
		if message == "" {
			message = "withdrawal rejected by payment provider"
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, message)
	}

	err = s.members.ApplyBalanceDeltas(ctx, memberID, members.BalanceDeltas{Earnings: amount.Neg()})
	if err != nil {
		// The provider accepted but the debit raced another spend. Surface
		// loudly; the ledger entry below is not written.
		s.logger.Error(s.logger.WithMemberID(ctx, memberID.String()),
			"withdrawal debit failed after provider success", err)
		return nil, err
	}

	input := ledger.RecordTransactionInput{
		MemberID:  memberID,
		Type:      enums.TransactionTypeWithdrawal,
		Status:    enums.TransactionStatusCompleted,
		Amount:    amount,
		Fee:       fee,
		NetAmount: net,
		ToAddress: &toAddress,
		TxnID:     &txnID,
	}
	if result.TxnHash != "" {
		hash := result.TxnHash
		input.TxnHash = &hash
	}
	if _, err := s.ledger.Record(ctx, input); err != nil {
		return nil, err
	}

	return &WithdrawResult{
		Amount:    amount,
		Fee:       fee,
		NetAmount: net,
		TxnID:     txnID,
		TxnHash:   result.TxnHash,
	}, nil
}

func (s *Service) credentials(ctx context.Context) coinconnect.Credentials {
	creds := s.provider.EnvCredentials()
	doc, err := s.config.CoinConnect(ctx)
	if err != nil {
		s.logger.Error(ctx, "loading provider credentials", err)
		return creds
	}
	if doc != nil {
		return doc.Credentials()
	}
	return creds
}

func generateWithdrawalTxnID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating withdrawal txn id: %w", err)
	}
	return withdrawalTxnPrefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Summary is the wallet view: balances, fees and recent activity.
type Summary struct {
	EarningsBalance  decimal.Decimal         `json:"earnings_balance"`
	DepositBalance   decimal.Decimal         `json:"deposit_balance"`
	TemporaryBalance decimal.Decimal         `json:"temporary_balance"`
	TotalIncome      decimal.Decimal         `json:"total_income"`
	Settings         settings.WalletSettings `json:"settings"`
	Transactions     []models.Transaction    `json:"transactions"`
}

// Summarize assembles the member's wallet view.
func (s *Service) Summarize(ctx context.Context, memberID uuid.UUID) (*Summary, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}

	cfg, err := s.config.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	txns, err := s.ledger.ListForMember(ctx, memberID, 50,
		enums.TransactionTypeWithdrawal,
		enums.TransactionTypeInternalTransfer,
		enums.TransactionTypeUserTransfer)
	if err != nil {
		return nil, err
	}

	return &Summary{
		EarningsBalance:  member.EarningsBalance,
		DepositBalance:   member.DepositBalance,
		TemporaryBalance: member.TemporaryBalance,
		TotalIncome:      member.TotalIncome,
		Settings:         cfg,
		Transactions:     txns,
	}, nil
}
