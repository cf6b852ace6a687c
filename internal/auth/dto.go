package auth

import "github.com/gembotlabs/gembot-backend/pkg/db/models"

// SendOTPRequest asks for a login code to be mailed.
type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SendOTPResponse tells the client what the next step looks like.
type SendOTPResponse struct {
	UserExists      bool `json:"user_exists"`
	ProfileComplete bool `json:"is_profile_complete"`
}

// VerifyOTPRequest exchanges a code for a session token.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6"`
}

// AuthResponse is the member session payload.
type AuthResponse struct {
	Token           string         `json:"token"`
	Member          *models.Member `json:"user"`
	IsNewUser       bool           `json:"is_new_user"`
	ProfileComplete bool           `json:"is_profile_complete"`
}

// CompleteProfileRequest finishes onboarding after the first OTP login.
type CompleteProfileRequest struct {
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	Mobile       string `json:"mobile" validate:"required"`
	ReferralCode string `json:"referral_code"`
}

// AdminRegisterRequest creates a back-office operator. Routed only outside
// production; the seed account covers the first login there.
type AdminRegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// AdminLoginRequest is the back-office credential login.
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminLoginResponse is the admin session payload.
type AdminLoginResponse struct {
	Token string        `json:"token"`
	Admin *models.Admin `json:"admin"`
}
