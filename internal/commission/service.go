package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/settings"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

const (
	// maxLevels caps how many compensated levels a single payment can fund.
	maxLevels = 10

	// maxChainHops bounds the raw walk, compression included. A healthy tree
	// never gets close; exceeding it means the sponsor edges are corrupted.
	maxChainHops = 100
)

var percentDivisor = decimal.NewFromInt(100)

// MemberStore is the slice of the member repository the engine needs.
type MemberStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	CountDirectReferrals(ctx context.Context, memberID uuid.UUID) (int64, error)
	ApplyBalanceDeltas(ctx context.Context, memberID uuid.UUID, deltas members.BalanceDeltas) error
}

// ConfigSource supplies the commission configuration. Reads go to the store
// on every distribution so admin updates take effect immediately.
type ConfigSource interface {
	LevelConfig(ctx context.Context) ([]settings.LevelConfig, error)
	Subscription(ctx context.Context) (settings.SubscriptionSettings, error)
	OverrideCommissions(ctx context.Context) ([]settings.OverrideCommission, error)
}

// ServiceParams groups dependencies for the distribution engine.
type ServiceParams struct {
	Members MemberStore
	Ledger  ledger.Service
	Config  ConfigSource
	Logger  *logger.Logger
}

// Service is the commission distribution engine. It walks a paying member's
// upline, pays qualifying sponsors per level, and applies flat override
// commissions. It performs no payment validation and no idempotency guard;
// the activation flow is its single authorized call site.
type Service struct {
	members MemberStore
	ledger  ledger.Service
	config  ConfigSource
	logger  *logger.Logger
	now     func() time.Time
}

// NewService builds a distribution engine.
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
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		members: params.Members,
		ledger:  params.Ledger,
		config:  params.Config,
		logger:  params.Logger,
		now:     time.Now,
	}, nil
}

// Distribute pays the upline of payingMemberID for one activation or renewal
// payment of the given amount.
//
// Each sponsor credit commits independently. When the walk breaks mid-chain
// the credits already applied stand; only the unreached portion of the chain
// goes unpaid.
func (s *Service) Distribute(ctx context.Context, payingMemberID uuid.UUID, amount decimal.Decimal, event enums.PaymentEvent) error {
	levels, err := s.config.LevelConfig(ctx)
	if err != nil {
		return err
	}
	sub, err := s.config.Subscription(ctx)
	if err != nil {
		return err
	}
	levelByNumber := make(map[int]settings.LevelConfig, len(levels))
	for _, level := range levels {
		levelByNumber[level.Level] = level
	}

	payer, err := s.members.FindByID(ctx, payingMemberID)
	if err != nil {
		return err
	}
	if payer == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "paying member not found")
	}

	if err := s.walkChain(ctx, payer, amount, event, levelByNumber, sub.GracePeriodHours); err != nil {
		return err
	}
	return s.applyOverrides(ctx, payingMemberID, amount, event)
}

func (s *Service) walkChain(
	ctx context.Context,
	payer *models.Member,
	amount decimal.Decimal,
	event enums.PaymentEvent,
	levelByNumber map[int]settings.LevelConfig,
	gracePeriodHours int,
) error {
	visited := map[uuid.UUID]bool{payer.ID: true}
	nextSponsorID := payer.SponsorID

	level := 1
	for hops := 0; nextSponsorID != nil; hops++ {
		if hops >= maxChainHops {
			return pkgerrors.New(pkgerrors.CodeInternal,
				fmt.Sprintf("sponsor chain exceeded %d hops starting from member %s", maxChainHops, payer.ID))
		}
		if visited[*nextSponsorID] {
			return pkgerrors.New(pkgerrors.CodeInternal,
				fmt.Sprintf("sponsor cycle detected at member %s", *nextSponsorID))
		}
		visited[*nextSponsorID] = true

		sponsor, err := s.members.FindByID(ctx, *nextSponsorID)
		if err != nil {
			return err
		}
		if sponsor == nil {
			// Broken edge. The unreached upline forfeits its share; credits
			// already applied below this point stand.
			s.logger.Warn(s.logger.WithMemberID(ctx, nextSponsorID.String()),
				"sponsor record missing mid-walk, stopping distribution")
			return nil
		}

		status := ResolveStatus(sponsor.SubscriptionExpires, gracePeriodHours, s.now())
		if status == enums.SubscriptionStatusInactive {
			// Compression: an inactive sponsor is transparent and consumes
			// no level slot.
			nextSponsorID = sponsor.SponsorID
			continue
		}

		levelConfig, ok := levelByNumber[level]
		if !ok || level > maxLevels {
			return nil
		}

		if err := s.payLevel(ctx, payer.ID, sponsor, status, level, levelConfig, amount, event); err != nil {
			return err
		}

		level++
		nextSponsorID = sponsor.SponsorID
	}
	return nil
}

func (s *Service) payLevel(
	ctx context.Context,
	payingMemberID uuid.UUID,
	sponsor *models.Member,
	status enums.SubscriptionStatus,
	level int,
	levelConfig settings.LevelConfig,
	amount decimal.Decimal,
	event enums.PaymentEvent,
) error {
	referrals, err := s.members.CountDirectReferrals(ctx, sponsor.ID)
	if err != nil {
		return err
	}
	if referrals < int64(levelConfig.MinDirectReferrals) {
		// Unqualified sponsors are skipped but still consume the level slot.
		return nil
	}

	percentage := levelConfig.ActivationPercentage
	if event == enums.PaymentEventRenewal {
		percentage = levelConfig.RenewalPercentage
	}
	income := amount.Mul(percentage).Div(percentDivisor)
	if !income.IsPositive() {
		return nil
	}

	deltas := members.BalanceDeltas{}
	txnStatus := enums.TransactionStatusCompleted
	if status == enums.SubscriptionStatusGracePeriod {
		deltas.Temporary = income
		txnStatus = enums.TransactionStatusPendingGrace
	} else {
		deltas.Earnings = income
		deltas.TotalIncome = income
	}

	if err := s.members.ApplyBalanceDeltas(ctx, sponsor.ID, deltas); err != nil {
		return err
	}

	levelCopy := level
	_, err = s.ledger.Record(ctx, ledger.RecordTransactionInput{
		MemberID:     sponsor.ID,
		Type:         enums.TransactionTypeLevelIncome,
		Status:       txnStatus,
		Amount:       income,
		NetAmount:    income,
		Level:        &levelCopy,
		FromMemberID: &payingMemberID,
	})
	return err
}

// applyOverrides pays the flat override commissions. Overrides are additive
// to level income and ignore both status and qualification.
func (s *Service) applyOverrides(ctx context.Context, payingMemberID uuid.UUID, amount decimal.Decimal, event enums.PaymentEvent) error {
	overrides, err := s.config.OverrideCommissions(ctx)
	if err != nil {
		return err
	}

	for _, override := range overrides {
		percentage := override.ActivationPercentage
		if event == enums.PaymentEventRenewal {
			percentage = override.RenewalPercentage
		}
		if !percentage.IsPositive() {
			continue
		}

		income := amount.Mul(percentage).Div(percentDivisor)
		if !income.IsPositive() {
			continue
		}

		beneficiary, err := s.members.FindByID(ctx, override.MemberID)
		if err != nil {
			return err
		}
		if beneficiary == nil {
			s.logger.Warn(s.logger.WithMemberID(ctx, override.MemberID.String()),
				"override commission configured for unknown member, skipping")
			continue
		}

		err = s.members.ApplyBalanceDeltas(ctx, beneficiary.ID, members.BalanceDeltas{
			Earnings:    income,
			TotalIncome: income,
		})
		if err != nil {
			return err
		}
		_, err = s.ledger.Record(ctx, ledger.RecordTransactionInput{
			MemberID:     beneficiary.ID,
			Type:         enums.TransactionTypeAdditionalCommission,
			Status:       enums.TransactionStatusCompleted,
			Amount:       income,
			NetAmount:    income,
			FromMemberID: &payingMemberID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
