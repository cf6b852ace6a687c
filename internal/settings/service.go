package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/mailer"
)

// ServiceParams groups dependencies for the settings service.
type ServiceParams struct {
	Repo Repository
}

// Service reads and replaces admin-managed configuration documents. Getters
// always hit the store so updates are visible on the next evaluation, and
// fall back to documented defaults when a document is absent.
type Service struct {
	repo Repository
}

// NewService builds a settings service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

func (s *Service) load(ctx context.Context, settingType string, out any) (bool, error) {
	setting, err := s.repo.Get(ctx, settingType)
	if err != nil {
		return false, fmt.Errorf("loading %s settings: %w", settingType, err)
	}
	if setting == nil || len(setting.Data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(setting.Data, out); err != nil {
		return false, fmt.Errorf("decoding %s settings: %w", settingType, err)
	}
	return true, nil
}

func (s *Service) store(ctx context.Context, settingType string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s settings: %w", settingType, err)
	}
	return s.repo.Upsert(ctx, &models.Setting{Type: settingType, Data: data})
}

// LevelConfig returns the ten-level commission table.
func (s *Service) LevelConfig(ctx context.Context) ([]LevelConfig, error) {
	var levels []LevelConfig
	found, err := s.load(ctx, TypeLevels, &levels)
	if err != nil {
		return nil, err
	}
	if !found || len(levels) == 0 {
		return defaultLevels(), nil
	}
	return levels, nil
}

// UpdateLevelConfig replaces the commission table wholesale.
func (s *Service) UpdateLevelConfig(ctx context.Context, levels []LevelConfig) error {
	if len(levels) == 0 {
		return errors.New("at least one level is required")
	}
	seen := make(map[int]bool, len(levels))
	for _, level := range levels {
		if level.Level < 1 {
			return fmt.Errorf("invalid level number %d", level.Level)
		}
		if seen[level.Level] {
			return fmt.Errorf("duplicate level number %d", level.Level)
		}
		seen[level.Level] = true
		if level.ActivationPercentage.IsNegative() || level.RenewalPercentage.IsNegative() {
			return fmt.Errorf("negative percentage on level %d", level.Level)
		}
		if level.MinDirectReferrals < 0 {
			return fmt.Errorf("negative referral threshold on level %d", level.Level)
		}
	}
	return s.store(ctx, TypeLevels, levels)
}

// Subscription returns the pricing and grace window settings.
func (s *Service) Subscription(ctx context.Context) (SubscriptionSettings, error) {
	var doc SubscriptionSettings
	found, err := s.load(ctx, TypeSubscription, &doc)
	if err != nil {
		return SubscriptionSettings{}, err
	}
	if !found {
		return defaultSubscription(), nil
	}
	if doc.GracePeriodHours <= 0 {
		doc.GracePeriodHours = defaultSubscription().GracePeriodHours
	}
	return doc, nil
}

// UpdateSubscription replaces the subscription settings document.
func (s *Service) UpdateSubscription(ctx context.Context, doc SubscriptionSettings) error {
	if doc.ActivationAmount.IsNegative() || doc.RenewalAmount.IsNegative() {
		return errors.New("amounts must not be negative")
	}
	if doc.GracePeriodHours < 0 {
		return errors.New("grace period hours must not be negative")
	}
	return s.store(ctx, TypeSubscription, doc)
}

// Wallet returns the transfer fee and minimum settings.
func (s *Service) Wallet(ctx context.Context) (WalletSettings, error) {
	var doc WalletSettings
	found, err := s.load(ctx, TypeWallet, &doc)
	if err != nil {
		return WalletSettings{}, err
	}
	if !found {
		return defaultWallet(), nil
	}
	return doc, nil
}

// UpdateWallet replaces the wallet settings document.
func (s *Service) UpdateWallet(ctx context.Context, doc WalletSettings) error {
	for _, v := range []struct {
		name string
		val  interface{ IsNegative() bool }
	}{
		{"earnings_to_deposit_fee", doc.EarningsToDepositFee},
		{"deposit_to_earnings_fee", doc.DepositToEarningsFee},
		{"user_transfer_fee", doc.UserTransferFee},
		{"withdrawal_fee", doc.WithdrawalFee},
		{"min_transfer_amount", doc.MinTransferAmount},
		{"min_withdrawal_amount", doc.MinWithdrawalAmount},
	} {
		if v.val.IsNegative() {
			return fmt.Errorf("%s must not be negative", v.name)
		}
	}
	return s.store(ctx, TypeWallet, doc)
}

// OverrideCommissions returns the configured override rows, empty when unset.
func (s *Service) OverrideCommissions(ctx context.Context) ([]OverrideCommission, error) {
	var overrides []OverrideCommission
	found, err := s.load(ctx, TypeOverrideCommissions, &overrides)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return overrides, nil
}

// UpdateOverrideCommissions replaces the override table wholesale. At most
// one row per member is allowed.
func (s *Service) UpdateOverrideCommissions(ctx context.Context, overrides []OverrideCommission) error {
	seen := make(map[string]bool, len(overrides))
	for _, override := range overrides {
		key := override.MemberID.String()
		if seen[key] {
			return fmt.Errorf("duplicate override for member %s", key)
		}
		seen[key] = true
		if override.ActivationPercentage.IsNegative() || override.RenewalPercentage.IsNegative() {
			return fmt.Errorf("negative percentage for member %s", key)
		}
	}
	return s.store(ctx, TypeOverrideCommissions, overrides)
}

// SMTP returns the stored SMTP document, nil when unset.
func (s *Service) SMTP(ctx context.Context) (*SMTPDocument, error) {
	var doc SMTPDocument
	found, err := s.load(ctx, TypeSMTP, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &doc, nil
}

// UpdateSMTP replaces the SMTP settings document.
func (s *Service) UpdateSMTP(ctx context.Context, doc SMTPDocument) error {
	return s.store(ctx, TypeSMTP, doc)
}

// CoinConnect returns the stored provider credentials, nil when unset.
func (s *Service) CoinConnect(ctx context.Context) (*CoinConnectDocument, error) {
	var doc CoinConnectDocument
	found, err := s.load(ctx, TypeCoinConnect, &doc)
	if err != nil {
		return nil, err
	}
	if !found || doc.Key == "" {
		return nil, nil
	}
	return &doc, nil
}

// UpdateCoinConnect replaces the provider credential document.
func (s *Service) UpdateCoinConnect(ctx context.Context, doc CoinConnectDocument) error {
	return s.store(ctx, TypeCoinConnect, doc)
}

// EmailTemplates returns the template set keyed by type, seeded with
// defaults for any missing type.
func (s *Service) EmailTemplates(ctx context.Context) (map[string]mailer.Template, error) {
	templates := make(map[string]mailer.Template)
	if _, err := s.load(ctx, TypeEmailTemplates, &templates); err != nil {
		return nil, err
	}
	for templateType, tpl := range defaultEmailTemplates() {
		if _, ok := templates[templateType]; !ok {
			templates[templateType] = tpl
		}
	}
	return templates, nil
}

// EmailTemplate returns one template by type with default fallback.
func (s *Service) EmailTemplate(ctx context.Context, templateType string) (mailer.Template, error) {
	templates, err := s.EmailTemplates(ctx)
	if err != nil {
		return mailer.Template{}, err
	}
	if tpl, ok := templates[templateType]; ok {
		return tpl, nil
	}
	return mailer.DefaultTemplate(templateType), nil
}

// UpdateEmailTemplate replaces one template within the stored set.
func (s *Service) UpdateEmailTemplate(ctx context.Context, templateType string, tpl mailer.Template) error {
	if templateType == "" {
		return errors.New("template type is required")
	}
	templates, err := s.EmailTemplates(ctx)
	if err != nil {
		return err
	}
	templates[templateType] = tpl
	return s.store(ctx, TypeEmailTemplates, templates)
}
