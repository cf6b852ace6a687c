package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gembotlabs/gembot-backend/internal/admins"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/settings"
	pkgauth "github.com/gembotlabs/gembot-backend/pkg/auth"
	"github.com/gembotlabs/gembot-backend/pkg/coinconnect"
	"github.com/gembotlabs/gembot-backend/pkg/config"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
	"github.com/gembotlabs/gembot-backend/pkg/mailer"
	"github.com/gembotlabs/gembot-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

type memberManager interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	FindOrCreateByEmail(ctx context.Context, email string) (*models.Member, bool, error)
	CompleteProfile(ctx context.Context, input members.CompleteProfileInput) (*models.Member, error)
}

type otpManager interface {
	Issue(ctx context.Context, email string, mailConfigured bool) (string, error)
	Verify(ctx context.Context, email, code string) error
}

type templateSource interface {
	EmailTemplate(ctx context.Context, templateType string) (mailer.Template, error)
	CoinConnect(ctx context.Context) (*settings.CoinConnectDocument, error)
}

type walletCreator interface {
	CreateWallet(ctx context.Context, creds coinconnect.Credentials, params coinconnect.WalletCreateParams) (string, error)
	EnvCredentials() coinconnect.Credentials
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Members   memberManager
	OTP       otpManager
	Admins    admins.Repository
	Mailer    mailer.Sender
	Templates templateSource
	Wallets   walletCreator
	JWTConfig config.JWTConfig
	SMTP      config.SMTPConfig
	Password  config.PasswordConfig
	Logger    *logger.Logger
}

// Service drives the passwordless member login flow and the admin credential
// login. Member accounts are created lazily on the first verified OTP.
type Service struct {
	members   memberManager
	otp       otpManager
	admins    admins.Repository
	mailer    mailer.Sender
	templates templateSource
	wallets   walletCreator
	jwtCfg    config.JWTConfig
	smtpCfg   config.SMTPConfig
	pwCfg     config.PasswordConfig
	logger    *logger.Logger
	now       func() time.Time
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Members == nil {
		return nil, fmt.Errorf("member manager is required")
	}
	if params.OTP == nil {
		return nil, fmt.Errorf("otp manager is required")
	}
	if params.Admins == nil {
		return nil, fmt.Errorf("admin repository is required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if params.Templates == nil {
		return nil, fmt.Errorf("template source is required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet creator is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		members:   params.Members,
		otp:       params.OTP,
		admins:    params.Admins,
		mailer:    params.Mailer,
		templates: params.Templates,
		wallets:   params.Wallets,
		jwtCfg:    params.JWTConfig,
		smtpCfg:   params.SMTP,
		pwCfg:     params.Password,
		logger:    params.Logger,
		now:       time.Now,
	}, nil
}

// SendOTP issues a login code and mails it when SMTP is configured.
func (s *Service) SendOTP(ctx context.Context, req SendOTPRequest) (*SendOTPResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	member, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	mailConfigured := s.smtpCfg.Configured()
	code, err := s.otp.Issue(ctx, email, mailConfigured)
	if err != nil {
		return nil, err
	}

	if mailConfigured {
		tpl, err := s.templates.EmailTemplate(ctx, mailer.TemplateOTP)
		if err != nil {
			return nil, err
		}
		rendered := tpl.Render(map[string]string{"otp": code, "email": email})
		if err := s.mailer.Send(ctx, email, rendered.Subject, rendered.Body); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sending OTP email")
		}
	}

	resp := &SendOTPResponse{}
	if member != nil {
		resp.UserExists = true
		resp.ProfileComplete = member.ProfileComplete()
	}
	return resp, nil
}

// VerifyOTP exchanges a valid code for a member session, creating the member
// record on first login.
func (s *Service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.otp.Verify(ctx, email, req.OTP); err != nil {
		return nil, err
	}

	member, isNew, err := s.members.FindOrCreateByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	token, err := s.mintMemberToken(member)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token:           token,
		Member:          member,
		IsNewUser:       isNew,
		ProfileComplete: member.ProfileComplete(),
	}, nil
}

// CompleteProfile finishes onboarding: profile fields, optional sponsor
// assignment, and a best-effort provider wallet. A provider outage never
// blocks the profile step; the wallet is created on a later activation check.
func (s *Service) CompleteProfile(ctx context.Context, memberID uuid.UUID, req CompleteProfileRequest) (*models.Member, error) {
	input := members.CompleteProfileInput{
		MemberID:     memberID,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Mobile:       strings.TrimSpace(req.Mobile),
		ReferralCode: strings.ToUpper(strings.TrimSpace(req.ReferralCode)),
	}

	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}

	if member.WalletAddress == nil || *member.WalletAddress == "" {
		if address := s.createProviderWallet(ctx, member, input); address != "" {
			input.WalletAddress = &address
		}
	}

	updated, err := s.members.CompleteProfile(ctx, input)
	if err != nil {
		return nil, err
	}

	s.sendWelcomeEmail(ctx, updated)
	return updated, nil
}

func (s *Service) createProviderWallet(ctx context.Context, member *models.Member, input members.CompleteProfileInput) string {
	creds := s.wallets.EnvCredentials()
	doc, err := s.templates.CoinConnect(ctx)
	if err != nil {
		s.logger.Error(ctx, "loading provider credentials", err)
	} else if doc != nil {
		creds = doc.Credentials()
	}
	if !creds.Configured() {
		return ""
	}

	address, err := s.wallets.CreateWallet(ctx, creds, coinconnect.WalletCreateParams{
		Email:     member.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Mobile:    input.Mobile,
	})
	if err != nil {
		s.logger.Warn(s.logger.WithMemberID(ctx, member.ID.String()),
			fmt.Sprintf("provider wallet creation failed: %v", err))
		return ""
	}
	return address
}

func (s *Service) sendWelcomeEmail(ctx context.Context, member *models.Member) {
	if !s.smtpCfg.Configured() {
		return
	}
	tpl, err := s.templates.EmailTemplate(ctx, mailer.TemplateWelcome)
	if err != nil {
		s.logger.Error(ctx, "loading welcome template", err)
		return
	}
	name := ""
	if member.FirstName != nil {
		name = *member.FirstName
	}
	rendered := tpl.Render(map[string]string{
		"name":          name,
		"referral_code": member.ReferralCode,
	})
	if err := s.mailer.Send(ctx, member.Email, rendered.Subject, rendered.Body); err != nil {
		s.logger.Warn(s.logger.WithMemberID(ctx, member.ID.String()),
			fmt.Sprintf("welcome email failed: %v", err))
	}
}

// AdminRegister creates a back-office operator account.
func (s *Service) AdminRegister(ctx context.Context, req AdminRegisterRequest) (*models.Admin, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "admin already exists")
	}

	hash, err := security.HashPassword(req.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	admin := &models.Admin{
		ID:           uuid.New(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// AdminLogin authenticates a back-office operator.
func (s *Service) AdminLogin(ctx context.Context, req AdminLoginRequest) (*AdminLoginResponse, error) {
	admin, err := s.admins.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	ok, err := security.VerifyPassword(req.Password, admin.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		ActorID: admin.ID,
		Role:    enums.ActorRoleAdmin,
		Email:   admin.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &AdminLoginResponse{Token: token, Admin: admin}, nil
}

func (s *Service) mintMemberToken(member *models.Member) (string, error) {
	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		ActorID: member.ID,
		Role:    enums.ActorRoleMember,
		Email:   member.Email,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}
