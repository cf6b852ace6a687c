package members

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
)

const (
	referralCodePrefix   = "GEM"
	referralCodeLength   = 6
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeAttempts = 5

	// teamMaxDepth bounds the BFS so malformed data cannot make the
	// traversal unbounded.
	teamMaxDepth = 10
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the members service.
type ServiceParams struct {
	Repo Repository
	Tx   TxRunner
}

// Service owns member lifecycle: creation on first OTP verification,
// profile completion with sponsor assignment, and team traversal.
type Service struct {
	repo Repository
	tx   TxRunner
	now  func() time.Time
}

// NewService builds a members service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Tx == nil {
		return nil, errors.New("tx runner is required")
	}
	return &Service{repo: params.Repo, tx: params.Tx, now: time.Now}, nil
}

// FindOrCreateByEmail returns the member for an email, creating a bare
// record with a fresh referral code when none exists.
func (s *Service) FindOrCreateByEmail(ctx context.Context, email string) (*models.Member, bool, error) {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	code, err := s.uniqueReferralCode(ctx)
	if err != nil {
		return nil, false, err
	}

	member := &models.Member{
		ID:           uuid.New(),
		Email:        email,
		ReferralCode: code,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, false, err
	}
	return member, true, nil
}

func (s *Service) uniqueReferralCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return "", err
		}
		taken, err := s.repo.FindByReferralCode(ctx, code)
		if err != nil {
			return "", err
		}
		if taken == nil {
			return code, nil
		}
	}
	return "", errors.New("exhausted referral code attempts")
}

func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating referral code: %w", err)
		}
		buf[i] = referralCodeAlphabet[n.Int64()]
	}
	return referralCodePrefix + string(buf), nil
}

// FindByID returns a member or a NOT_FOUND error.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}
	return member, nil
}

// FindByEmail returns a member by email, nil when absent.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	return s.repo.FindByEmail(ctx, email)
}

// FindByReferralCode returns a member by referral code, nil when absent.
func (s *Service) FindByReferralCode(ctx context.Context, code string) (*models.Member, error) {
	return s.repo.FindByReferralCode(ctx, code)
}

// CompleteProfileInput carries the post-OTP profile step fields.
type CompleteProfileInput struct {
	MemberID      uuid.UUID
	FirstName     string
	LastName      string
	Mobile        string
	ReferralCode  string
	WalletAddress *string
}

// CompleteProfile sets the member's profile fields and, when a referral
// code resolves to another member, assigns the sponsor and bumps the
// sponsor's direct-referral count in the same transaction. The sponsor edge
// is assigned at most once and never reassigned.
func (s *Service) CompleteProfile(ctx context.Context, input CompleteProfileInput) (*models.Member, error) {
	if input.FirstName == "" || input.LastName == "" || input.Mobile == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first name, last name and mobile are required")
	}

	member, err := s.FindByID(ctx, input.MemberID)
	if err != nil {
		return nil, err
	}

	var sponsorID *uuid.UUID
	if input.ReferralCode != "" && member.SponsorID == nil {
		sponsor, err := s.repo.FindByReferralCode(ctx, input.ReferralCode)
		if err != nil {
			return nil, err
		}
		if sponsor != nil && sponsor.ID != member.ID {
			sponsorID = &sponsor.ID
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		fields := map[string]any{
			"first_name": input.FirstName,
			"last_name":  input.LastName,
			"mobile":     input.Mobile,
			"updated_at": s.now().UTC(),
		}
		if input.WalletAddress != nil {
			fields["wallet_address"] = *input.WalletAddress
		}
		if sponsorID != nil {
			fields["sponsor_id"] = *sponsorID
		}
		if err := txRepo.SetFields(ctx, member.ID, fields); err != nil {
			return err
		}
		if sponsorID != nil {
			if err := txRepo.IncrementDirectReferrals(ctx, *sponsorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.FindByID(ctx, input.MemberID)
}

// UpdateProfile rewrites the mutable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, memberID uuid.UUID, firstName, lastName, mobile string) (*models.Member, error) {
	if firstName == "" || lastName == "" || mobile == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first name, last name and mobile are required")
	}
	if _, err := s.FindByID(ctx, memberID); err != nil {
		return nil, err
	}
	err := s.repo.SetFields(ctx, memberID, map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
		"mobile":     mobile,
		"updated_at": s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, memberID)
}

// TeamLevel is one generation of a member's downline.
type TeamLevel struct {
	Level   int             `json:"level"`
	Count   int             `json:"count"`
	Members []models.Member `json:"members"`
}

// Team walks the downline breadth-first up to ten generations. A visited
// set guards against corrupted sponsor edges.
func (s *Service) Team(ctx context.Context, memberID uuid.UUID) ([]TeamLevel, int, error) {
	visited := map[uuid.UUID]bool{memberID: true}
	frontier := []uuid.UUID{memberID}

	var levels []TeamLevel
	total := 0
	for depth := 1; depth <= teamMaxDepth && len(frontier) > 0; depth++ {
		generation, err := s.repo.ListBySponsor(ctx, frontier)
		if err != nil {
			return nil, 0, err
		}

		frontier = frontier[:0]
		var kept []models.Member
		for _, member := range generation {
			if visited[member.ID] {
				continue
			}
			visited[member.ID] = true
			kept = append(kept, member)
			frontier = append(frontier, member.ID)
		}
		if len(kept) == 0 {
			break
		}

		levels = append(levels, TeamLevel{Level: depth, Count: len(kept), Members: kept})
		total += len(kept)
	}
	return levels, total, nil
}

// CountDirectReferrals returns the live direct-referral count.
func (s *Service) CountDirectReferrals(ctx context.Context, memberID uuid.UUID) (int64, error) {
	return s.repo.CountDirectReferrals(ctx, memberID)
}

// List pages members for admin views.
func (s *Service) List(ctx context.Context, offset, limit int) ([]models.Member, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, offset, limit)
}

// AdminUpdateInput is the restricted field set admins may rewrite.
type AdminUpdateInput struct {
	IsActive            *bool
	SubscriptionExpires *time.Time
	EarningsBalance     *float64
	FirstName           *string
	LastName            *string
	Mobile              *string
}

// AdminUpdate rewrites the whitelisted fields on a member.
func (s *Service) AdminUpdate(ctx context.Context, memberID uuid.UUID, input AdminUpdateInput) (*models.Member, error) {
	if _, err := s.FindByID(ctx, memberID); err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": s.now().UTC()}
	if input.IsActive != nil {
		fields["is_active"] = *input.IsActive
	}
	if input.SubscriptionExpires != nil {
		fields["subscription_expires"] = *input.SubscriptionExpires
	}
	if input.EarningsBalance != nil {
		if *input.EarningsBalance < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "earnings balance must not be negative")
		}
		fields["earnings_balance"] = *input.EarningsBalance
	}
	if input.FirstName != nil {
		fields["first_name"] = *input.FirstName
	}
	if input.LastName != nil {
		fields["last_name"] = *input.LastName
	}
	if input.Mobile != nil {
		fields["mobile"] = *input.Mobile
	}

	if err := s.repo.SetFields(ctx, memberID, fields); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, memberID)
}
