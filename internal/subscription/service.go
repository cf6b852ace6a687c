package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/gembotlabs/gembot-backend/internal/commission"
	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/internal/locks"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/settings"
	"github.com/gembotlabs/gembot-backend/pkg/coinconnect"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

// subscriptionTerm is how long one activation or renewal payment buys.
const subscriptionTerm = 30 * 24 * time.Hour

// MemberStore is the slice of the member repository this service needs.
type MemberStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	ApplyBalanceDeltas(ctx context.Context, memberID uuid.UUID, deltas members.BalanceDeltas) error
	SetFields(ctx context.Context, memberID uuid.UUID, fields map[string]any) error
	ListExpired(ctx context.Context, asOf time.Time) ([]models.Member, error)
	ListWithTemporaryBalance(ctx context.Context) ([]models.Member, error)
}

// Distributor is the commission engine surface consumed on payment events.
type Distributor interface {
	Distribute(ctx context.Context, payingMemberID uuid.UUID, amount decimal.Decimal, event enums.PaymentEvent) error
}

// BalanceProvider reports the member's external wallet balance.
type BalanceProvider interface {
	GetBalance(ctx context.Context, creds coinconnect.Credentials, address string) (decimal.Decimal, error)
	EnvCredentials() coinconnect.Credentials
}

// CredentialSource resolves the provider credentials, stored settings first.
type CredentialSource interface {
	Subscription(ctx context.Context) (settings.SubscriptionSettings, error)
	CoinConnect(ctx context.Context) (*settings.CoinConnectDocument, error)
}

// Locker serializes activation and sweep work per member.
type Locker interface {
	WithMemberLock(ctx context.Context, memberID uuid.UUID, fn func(ctx context.Context) error) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Members  MemberStore
	Ledger   ledger.Service
	Engine   Distributor
	Config   CredentialSource
	Provider BalanceProvider
	Locks    Locker
	Logger   *logger.Logger
}

// Service owns the activation and grace-period state machine. It is the only
// caller of the distribution engine; the balance check that gates each call
// is what keeps a payment from being distributed twice.
type Service struct {
	members  MemberStore
	ledger   ledger.Service
	engine   Distributor
	config   CredentialSource
	provider BalanceProvider
	locks    Locker
	logger   *logger.Logger
	now      func() time.Time
}

// SweepResult summarizes one grace-period sweep.
type SweepResult struct {
	ForfeitedCount int             `json:"forfeited_count"`
	ForfeitedTotal decimal.Decimal `json:"forfeited_total"`
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Members == nil {
		return nil, errors.New("member store is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	if params.Engine == nil {
		return nil, errors.New("distribution engine is required")
	}
	if params.Config == nil {
		return nil, errors.New("config source is required")
	}
	if params.Provider == nil {
		return nil, errors.New("balance provider is required")
	}
	if params.Locks == nil {
		return nil, errors.New("lock manager is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		members:  params.Members,
		ledger:   params.Ledger,
		engine:   params.Engine,
		config:   params.Config,
		provider: params.Provider,
		locks:    params.Locks,
		logger:   params.Logger,
		now:      time.Now,
	}, nil
}

// Status resolves the member's real-time subscription status.
func (s *Service) Status(ctx context.Context, member *models.Member) (enums.SubscriptionStatus, error) {
	sub, err := s.config.Subscription(ctx)
	if err != nil {
		return "", err
	}
	return commission.ResolveStatus(member.SubscriptionExpires, sub.GracePeriodHours, s.now()), nil
}

// CheckAndActivate reads the member's external wallet balance and, when it
// covers the required amount, activates or renews the subscription and
// distributes commissions. Returns whether an activation happened.
//
// The whole evaluation runs under the member's lock; two concurrent calls
// for the same member would otherwise double-distribute.
func (s *Service) CheckAndActivate(ctx context.Context, memberID uuid.UUID) (bool, error) {
	activated := false
	err := s.locks.WithMemberLock(ctx, memberID, func(ctx context.Context) error {
		var err error
		activated, err = s.checkAndActivateLocked(ctx, memberID)
		return err
	})
	return activated, err
}

func (s *Service) checkAndActivateLocked(ctx context.Context, memberID uuid.UUID) (bool, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return false, err
	}
	if member == nil {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}
	if member.WalletAddress == nil || *member.WalletAddress == "" {
		return false, nil
	}

	sub, err := s.config.Subscription(ctx)
	if err != nil {
		return false, err
	}
	status := commission.ResolveStatus(member.SubscriptionExpires, sub.GracePeriodHours, s.now())

	isRenewal := status != enums.SubscriptionStatusInactive
	required := sub.ActivationAmount
	event := enums.PaymentEventActivation
	if isRenewal {
		required = sub.RenewalAmount
		event = enums.PaymentEventRenewal
	}

	balance := s.externalBalance(ctx, member)
	if balance.LessThan(required) {
		return false, nil
	}

	expires := s.now().Add(subscriptionTerm)
	err = s.members.SetFields(ctx, member.ID, map[string]any{
		"is_active":            true,
		"subscription_expires": expires,
		"updated_at":           s.now().UTC(),
	})
	if err != nil {
		return false, err
	}

	// Renewing out of grace rescues the escrowed income before the new
	// payment is recorded.
	if status == enums.SubscriptionStatusGracePeriod {
		if _, err := s.flushLocked(ctx, member.ID); err != nil {
			return false, err
		}
	}

	_, err = s.ledger.Record(ctx, ledger.RecordTransactionInput{
		MemberID:  member.ID,
		Type:      event.TransactionType(),
		Status:    enums.TransactionStatusCompleted,
		Amount:    required,
		NetAmount: required,
	})
	if err != nil {
		return false, err
	}

	if err := s.engine.Distribute(ctx, member.ID, required, event); err != nil {
		return false, err
	}

	s.logger.Info(s.logger.WithMemberID(ctx, member.ID.String()),
		fmt.Sprintf("subscription %s completed", event))
	return true, nil
}

// externalBalance reads the provider balance; any failure counts as zero so
// a provider outage can never activate anyone.
func (s *Service) externalBalance(ctx context.Context, member *models.Member) decimal.Decimal {
	creds := s.provider.EnvCredentials()
	doc, err := s.config.CoinConnect(ctx)
	if err != nil {
		s.logger.Error(ctx, "loading provider credentials", err)
	} else if doc != nil {
		creds = doc.Credentials()
	}

	balance, err := s.provider.GetBalance(ctx, creds, *member.WalletAddress)
	if err != nil {
		s.logger.Warn(s.logger.WithMemberID(ctx, member.ID.String()),
			fmt.Sprintf("external balance check failed, treating as zero: %v", err))
		return decimal.Zero
	}
	return balance
}

// Flush moves the member's entire temporary balance into earnings, completes
// the pending transactions, and records a grace_period_flush entry. A zero
// temporary balance makes it a no-op.
func (s *Service) Flush(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	var flushed decimal.Decimal
	err := s.locks.WithMemberLock(ctx, memberID, func(ctx context.Context) error {
		var err error
		flushed, err = s.flushLocked(ctx, memberID)
		return err
	})
	return flushed, err
}

func (s *Service) flushLocked(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	if member == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}
	if !member.TemporaryBalance.IsPositive() {
		return decimal.Zero, nil
	}

	amount := member.TemporaryBalance
	err = s.members.ApplyBalanceDeltas(ctx, member.ID, members.BalanceDeltas{
		Earnings:    amount,
		Temporary:   amount.Neg(),
		TotalIncome: amount,
	})
	if err != nil {
		return decimal.Zero, err
	}

	if _, err := s.ledger.TransitionPendingGrace(ctx, member.ID, enums.TransactionStatusCompleted); err != nil {
		return decimal.Zero, err
	}
	_, err = s.ledger.Record(ctx, ledger.RecordTransactionInput{
		MemberID:  member.ID,
		Type:      enums.TransactionTypeGracePeriodFlush,
		Status:    enums.TransactionStatusCompleted,
		Amount:    amount,
		NetAmount: amount,
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.Info(s.logger.WithMemberID(ctx, member.ID.String()),
		fmt.Sprintf("grace period flush of %s", amount))
	return amount, nil
}

// Forfeit zeroes the member's temporary balance without crediting earnings,
// forfeits the pending transactions, and records a grace_period_forfeit
// entry. A zero temporary balance makes it a no-op, which is what makes
// repeated sweeps safe.
func (s *Service) Forfeit(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	var forfeited decimal.Decimal
	err := s.locks.WithMemberLock(ctx, memberID, func(ctx context.Context) error {
		var err error
		forfeited, err = s.forfeitLocked(ctx, memberID)
		return err
	})
	return forfeited, err
}

func (s *Service) forfeitLocked(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	if member == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}
	if !member.TemporaryBalance.IsPositive() {
		return decimal.Zero, nil
	}

	amount := member.TemporaryBalance
	err = s.members.ApplyBalanceDeltas(ctx, member.ID, members.BalanceDeltas{
		Temporary: amount.Neg(),
	})
	if err != nil {
		return decimal.Zero, err
	}

	if _, err := s.ledger.TransitionPendingGrace(ctx, member.ID, enums.TransactionStatusForfeited); err != nil {
		return decimal.Zero, err
	}
	_, err = s.ledger.Record(ctx, ledger.RecordTransactionInput{
		MemberID:  member.ID,
		Type:      enums.TransactionTypeGracePeriodForfeit,
		Status:    enums.TransactionStatusCompleted,
		Amount:    amount,
		NetAmount: amount,
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.Info(s.logger.WithMemberID(ctx, member.ID.String()),
		fmt.Sprintf("grace period forfeit of %s", amount))
	return amount, nil
}

// ListGraceMembers returns the members whose subscription has lapsed but
// whose grace window is still open.
func (s *Service) ListGraceMembers(ctx context.Context) ([]models.Member, error) {
	sub, err := s.config.Subscription(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	expired, err := s.members.ListExpired(ctx, now)
	if err != nil {
		return nil, err
	}

	var inGrace []models.Member
	for _, member := range expired {
		if commission.ResolveStatus(member.SubscriptionExpires, sub.GracePeriodHours, now) == enums.SubscriptionStatusGracePeriod {
			inGrace = append(inGrace, member)
		}
	}
	return inGrace, nil
}

// SweepExpiredGracePeriods forfeits the escrow of every member whose grace
// window has fully elapsed. Members still active or in grace are left alone.
// A member that renews concurrently is protected by the per-member lock;
// whichever side wins, the loser finds a zero balance and no-ops.
func (s *Service) SweepExpiredGracePeriods(ctx context.Context) (SweepResult, error) {
	result := SweepResult{ForfeitedTotal: decimal.Zero}

	sub, err := s.config.Subscription(ctx)
	if err != nil {
		return result, err
	}
	holders, err := s.members.ListWithTemporaryBalance(ctx)
	if err != nil {
		return result, err
	}

	var errs []error
	for i := range holders {
		member := &holders[i]
		status := commission.ResolveStatus(member.SubscriptionExpires, sub.GracePeriodHours, s.now())
		if status != enums.SubscriptionStatusInactive {
			continue
		}

		forfeited, err := s.Forfeit(ctx, member.ID)
		if errors.Is(err, locks.ErrLocked) {
			// The member is mid-renewal; their flush or the next sweep
			// settles the escrow.
			continue
		}
		if err != nil {
			s.logger.Error(s.logger.WithMemberID(ctx, member.ID.String()),
				"forfeit during sweep failed", err)
			errs = append(errs, fmt.Errorf("forfeit member %s: %w", member.ID, err))
			continue
		}
		if forfeited.IsPositive() {
			result.ForfeitedCount++
			result.ForfeitedTotal = result.ForfeitedTotal.Add(forfeited)
		}
	}
	return result, multierr.Combine(errs...)
}
