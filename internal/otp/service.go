package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gembotlabs/gembot-backend/pkg/config"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
)

const (
	codeLength = 6
	codeTTL    = 10 * time.Minute

	// fallbackCode is issued when no SMTP transport is configured, so the
	// login flow stays usable in development and fresh deployments.
	fallbackCode = "000000"
)

// Store is the Redis surface used for code storage and rate limiting.
type Store interface {
	StoreOTP(ctx context.Context, email, code string, ttl time.Duration) error
	GetOTP(ctx context.Context, email string) (string, error)
	ConsumeOTP(ctx context.Context, email string) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ServiceParams groups dependencies for the OTP service.
type ServiceParams struct {
	Store     Store
	RateLimit config.AuthRateLimitConfig
}

// Service issues and verifies one-time passcodes. Codes live in Redis with a
// ten minute TTL and are consumed on first successful verification.
type Service struct {
	store Store
	rate  config.AuthRateLimitConfig
}

// NewService builds an OTP service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, errors.New("otp store is required")
	}
	return &Service{store: params.Store, rate: params.RateLimit}, nil
}

// Issue generates and stores a code for the email. When mail delivery is not
// configured the well-known fallback code is stored instead of a random one.
func (s *Service) Issue(ctx context.Context, email string, mailConfigured bool) (string, error) {
	if s.rate.OTPEmailLimit > 0 {
		allowed, _, err := s.store.FixedWindowAllow(ctx, "otp:email:"+email, int64(s.rate.OTPEmailLimit), s.rate.OTPWindow)
		if err != nil {
			return "", err
		}
		if !allowed {
			return "", pkgerrors.New(pkgerrors.CodeRateLimit, "too many OTP requests, try again later")
		}
	}

	code := fallbackCode
	if mailConfigured {
		generated, err := generateCode()
		if err != nil {
			return "", err
		}
		code = generated
	}

	if err := s.store.StoreOTP(ctx, email, code, codeTTL); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks the code for the email and consumes it on success.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	stored, err := s.store.GetOTP(ctx, email)
	if err != nil || stored == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired OTP")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired OTP")
	}
	return s.store.ConsumeOTP(ctx, email)
}

func generateCode() (string, error) {
	max := big.NewInt(10)
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating otp: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
