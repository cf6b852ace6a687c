package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/gembotlabs/gembot-backend/api/routes"
	"github.com/gembotlabs/gembot-backend/internal/admins"
	"github.com/gembotlabs/gembot-backend/internal/auth"
	"github.com/gembotlabs/gembot-backend/internal/commission"
	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/internal/locks"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/otp"
	"github.com/gembotlabs/gembot-backend/internal/settings"
	subscriptionsvc "github.com/gembotlabs/gembot-backend/internal/subscription"
	"github.com/gembotlabs/gembot-backend/internal/wallet"
	"github.com/gembotlabs/gembot-backend/pkg/coinconnect"
	"github.com/gembotlabs/gembot-backend/pkg/config"
	"github.com/gembotlabs/gembot-backend/pkg/db"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
	"github.com/gembotlabs/gembot-backend/pkg/mailer"
	"github.com/gembotlabs/gembot-backend/pkg/migrate"
	"github.com/gembotlabs/gembot-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	memberRepo := members.NewRepository(dbClient.DB())
	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	settingsService, err := settings.NewService(settings.ServiceParams{
		Repo: settings.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}
	memberService, err := members.NewService(members.ServiceParams{
		Repo: memberRepo,
		Tx:   dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create members service", err)
		os.Exit(1)
	}

	coinClient, err := coinconnect.NewClient(cfg.CoinConnect, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment provider client", err)
		os.Exit(1)
	}
	lockManager, err := locks.NewManager(redisClient, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock manager", err)
		os.Exit(1)
	}

	engine, err := commission.NewService(commission.ServiceParams{
		Members: memberRepo,
		Ledger:  ledgerService,
		Config:  settingsService,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commission engine", err)
		os.Exit(1)
	}
	subscriptionService, err := subscriptionsvc.NewService(subscriptionsvc.ServiceParams{
		Members:  memberRepo,
		Ledger:   ledgerService,
		Engine:   engine,
		Config:   settingsService,
		Provider: coinClient,
		Locks:    lockManager,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}
	walletService, err := wallet.NewService(wallet.ServiceParams{
		Members:  memberRepo,
		Ledger:   ledgerService,
		Config:   settingsService,
		Provider: coinClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	otpService, err := otp.NewService(otp.ServiceParams{
		Store:     redisClient,
		RateLimit: cfg.AuthRateLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create otp service", err)
		os.Exit(1)
	}

	adminRepo := admins.NewRepository(dbClient.DB())
	if created, err := admins.EnsureSeedAdmin(context.Background(), adminRepo, cfg.AdminSeed, cfg.Password); err != nil {
		logg.Error(context.Background(), "failed to seed admin account", err)
		os.Exit(1)
	} else if created {
		logg.Info(context.Background(), "seed admin account created")
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Members:   memberService,
		OTP:       otpService,
		Admins:    adminRepo,
		Mailer:    mailer.New(cfg.SMTP, logg),
		Templates: settingsService,
		Wallets:   coinClient,
		JWTConfig: cfg.JWT,
		SMTP:      cfg.SMTP,
		Password:  cfg.Password,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Auth:          authService,
			Members:       memberService,
			Wallet:        walletService,
			Subscriptions: subscriptionService,
			Settings:      settingsService,
			Ledger:        ledgerService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
