package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gembotlabs/gembot-backend/api/controllers"
	"github.com/gembotlabs/gembot-backend/api/middleware"
	"github.com/gembotlabs/gembot-backend/internal/auth"
	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/settings"
	subscriptionsvc "github.com/gembotlabs/gembot-backend/internal/subscription"
	"github.com/gembotlabs/gembot-backend/internal/wallet"
	"github.com/gembotlabs/gembot-backend/pkg/config"
	"github.com/gembotlabs/gembot-backend/pkg/db"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
	"github.com/gembotlabs/gembot-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Auth          *auth.Service
	Members       *members.Service
	Wallet        *wallet.Service
	Subscriptions *subscriptionsvc.Service
	Settings      *settings.Service
	Ledger        ledger.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	otpPolicy := middleware.NewAuthRateLimitPolicy(
		"otp",
		cfg.AuthRateLimit.OTPWindow,
		cfg.AuthRateLimit.OTPIPLimit,
		cfg.AuthRateLimit.OTPEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(otpPolicy, p.Redis, logg)).Post("/send-otp", controllers.SendOTP(p.Auth, logg))
		r.Post("/verify-otp", controllers.VerifyOTP(p.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, logg), middleware.RequireRole(enums.ActorRoleMember, logg)).
			Post("/complete-profile", controllers.CompleteProfile(p.Auth, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminRegister(p.Auth, logg))
		}
		r.Post("/login", controllers.AdminLogin(p.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleMember, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Get("/me", controllers.MemberProfile(p.Members, p.Subscriptions, logg))
		r.Put("/me", controllers.MemberUpdateProfile(p.Members, logg))
		r.Get("/team", controllers.MemberTeam(p.Members, logg))
		r.Get("/transactions", controllers.MemberTransactions(p.Ledger, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletSummary(p.Wallet, logg))
			r.Post("/withdraw", controllers.Withdraw(p.Wallet, logg))
			r.Post("/internal-transfer", controllers.InternalTransfer(p.Wallet, logg))
			r.Post("/user-transfer", controllers.UserTransfer(p.Wallet, logg))
		})

		r.Post("/subscription/check", controllers.SubscriptionCheck(p.Subscriptions, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/members", func(r chi.Router) {
			r.Get("/", controllers.AdminMemberList(p.Members, logg))
			r.Get("/grace-period", controllers.AdminGraceMembers(p.Subscriptions, logg))
			r.Get("/{memberId}", controllers.AdminMemberDetail(p.Members, logg))
			r.Put("/{memberId}", controllers.AdminMemberUpdate(p.Members, logg))
		})

		r.Post("/grace-periods/sweep", controllers.AdminGraceSweep(p.Subscriptions, logg))
		r.Get("/transactions", controllers.AdminTransactionList(p.Ledger, logg))

		r.Route("/settings", func(r chi.Router) {
			r.Get("/levels", controllers.AdminLevelSettings(p.Settings, logg))
			r.Put("/levels", controllers.AdminUpdateLevelSettings(p.Settings, logg))
			r.Get("/subscription", controllers.AdminSubscriptionSettings(p.Settings, logg))
			r.Put("/subscription", controllers.AdminUpdateSubscriptionSettings(p.Settings, logg))
			r.Get("/wallet", controllers.AdminWalletSettings(p.Settings, logg))
			r.Put("/wallet", controllers.AdminUpdateWalletSettings(p.Settings, logg))
			r.Get("/override-commissions", controllers.AdminOverrideCommissions(p.Settings, logg))
			r.Put("/override-commissions", controllers.AdminUpdateOverrideCommissions(p.Settings, logg))
			r.Get("/smtp", controllers.AdminSMTPSettings(p.Settings, logg))
			r.Put("/smtp", controllers.AdminUpdateSMTPSettings(p.Settings, logg))
			r.Get("/coinconnect", controllers.AdminCoinConnectSettings(p.Settings, logg))
			r.Put("/coinconnect", controllers.AdminUpdateCoinConnectSettings(p.Settings, logg))
			r.Get("/email-templates", controllers.AdminEmailTemplates(p.Settings, logg))
			r.Put("/email-templates/{templateType}", controllers.AdminUpdateEmailTemplate(p.Settings, logg))
		})
	})

	return r
}
