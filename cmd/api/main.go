package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-verify-api/internal/application/janitor"
	"github.com/go-verify-api/internal/config"
	"github.com/go-verify-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-verify-api/internal/infrastructure/jwt"
	"github.com/go-verify-api/internal/infrastructure/smtp"
	"github.com/go-verify-api/internal/infrastructure/sns"
	"github.com/go-verify-api/internal/notify"
	"github.com/go-verify-api/internal/pkg/audit"
	"github.com/go-verify-api/internal/pkg/ratelimit"
	transporthttp "github.com/go-verify-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	auditLog := audit.New(slog.Default())

	dispatcher := notify.NewDispatcher(mailer, smsSender, auditLog, cfg.ResetLinkBase, cfg.NotifyQueueSize)
	defer dispatcher.Close()

	credentialRepo := dynamo.NewCredentialRepo(dynamoClient, cfg.DynamoTables.Verifications)
	resetRepo := dynamo.NewResetRepo(dynamoClient, cfg.DynamoTables.PasswordResets)

	deps := &transporthttp.Deps{
		CredentialRepo: credentialRepo,
		ResetRepo:      resetRepo,
		UserRepo:       dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:    dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		ResetTxn:       dynamo.NewResetTxn(dynamoClient, cfg.DynamoTables.Users, cfg.DynamoTables.Sessions, cfg.DynamoTables.PasswordResets),
		Dispatcher:     dispatcher,
		AuditLog:       auditLog,
		OTPLimiter:     ratelimit.NewWindowLimiter(cfg.OTPIssuesPerHour, time.Hour),
		ResetLimiter:   ratelimit.NewWindowLimiter(cfg.ResetRequestsPerHour, time.Hour),
		JWTProvider:    jwtProvider,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go janitor.New(credentialRepo, resetRepo, cfg.JanitorInterval).Run(janitorCtx)

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopJanitor()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
