package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/devlink/devlink-api/internal/config"
	"github.com/devlink/devlink-api/internal/domain/payment"
	"github.com/devlink/devlink-api/internal/domain/project"
	"github.com/devlink/devlink-api/internal/domain/user"
	"github.com/devlink/devlink-api/internal/domain/wallet"
	"github.com/devlink/devlink-api/internal/middleware"
	"github.com/devlink/devlink-api/internal/pkg/cardpay"
	"github.com/devlink/devlink-api/internal/pkg/database"
	"github.com/devlink/devlink-api/internal/pkg/jwt"
	"github.com/devlink/devlink-api/internal/pkg/mobilemoney"
	"github.com/devlink/devlink-api/internal/pkg/notifier"
	"github.com/devlink/devlink-api/internal/pkg/peerpay"
	"github.com/devlink/devlink-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting DevLink API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	projectRepo := project.NewRepository(db)
	walletRepo := wallet.NewRepository(db, cfg.DefaultCurrency)
	paymentRepo := payment.NewRepository(db)

	// ---------- Gateway clients ----------
	cardClient := cardpay.NewClient(cardpay.Config{
		BaseURL: cfg.CardPayBaseURL,
		APIKey:  cfg.CardPayAPIKey,
	})
	peerClient := peerpay.NewClient(peerpay.Config{
		BaseURL:      cfg.PeerPayBaseURL,
		ClientID:     cfg.PeerPayClientID,
		ClientSecret: cfg.PeerPayClientSecret,
	})
	mobileClient := mobilemoney.NewClient(mobilemoney.Config{
		BaseURL:        cfg.MobiCashBaseURL,
		ConsumerKey:    cfg.MobiCashConsumerKey,
		ConsumerSecret: cfg.MobiCashConsumerSecret,
		ShortCode:      cfg.MobiCashShortCode,
		Passkey:        cfg.MobiCashPasskey,
	})

	// ---------- Services ----------
	walletService := wallet.NewService(walletRepo)
	events := notifier.New(redis)

	cardCallback := cfg.BackendURL + "/webhooks/card"
	peerCallback := cfg.BackendURL + "/webhooks/peer"
	mobileCallback := cfg.BackendURL + "/webhooks/mobile_money"

	paymentService := payment.NewService(
		paymentRepo,
		userRepo,
		projectRepo,
		events,
		int64(cfg.RewardRateBps),
		payment.NewCardAdapter(cardClient, cardCallback),
		payment.NewPeerAdapter(peerClient, cfg.FrontendURL+"/payments/return", peerCallback),
		payment.NewMobileMoneyAdapter(mobileClient, userRepo, mobileCallback),
		payment.NewBankTransferAdapter(cfg.BankAccountName, cfg.BankAccountNumber, cfg.BankName),
		payment.NewWalletAdapter(walletService),
	)

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletService)
	paymentHandler := payment.NewHandler(paymentService)

	authMiddleware := middleware.Auth(jwtService)
	adminMiddleware := middleware.RequireAdmin()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			response.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/payments", paymentHandler.Routes(authMiddleware, adminMiddleware))
		r.Mount("/wallet", walletHandler.Routes(authMiddleware, adminMiddleware))
	})

	r.Mount("/webhooks", paymentHandler.WebhookRoutes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
