package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mactrac-proxy/internal/application/auth"
	"github.com/mactrac-proxy/internal/application/completion"
	"github.com/mactrac-proxy/internal/config"
	"github.com/mactrac-proxy/internal/infrastructure/dynamo"
	"github.com/mactrac-proxy/internal/infrastructure/memory"
	"github.com/mactrac-proxy/internal/infrastructure/openai"
	"github.com/mactrac-proxy/internal/infrastructure/smtp"
	"github.com/mactrac-proxy/internal/pkg/eventlog"
	"github.com/mactrac-proxy/internal/pkg/logger"
	transporthttp "github.com/mactrac-proxy/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.Init(cfg.AppEnv, cfg.LogJSON)
	if envErr != nil {
		log.Info("No .env file found, reading from environment")
	}

	codes, sessions, err := newStores(context.Background(), cfg)
	if err != nil {
		log.Error("store setup failed", "backend", cfg.StoreBackend, "err", err)
		os.Exit(1)
	}

	var mailer smtp.Mailer
	if cfg.MailConfigured() {
		mailer = smtp.NewMailer(cfg)
	} else {
		log.Warn("SMTP_HOST not set; sign-in codes will be logged, not mailed")
		mailer = smtp.NewConsoleMailer(log)
	}

	deps := &transporthttp.Deps{
		Auth: auth.NewService(auth.ServiceDeps{
			Codes:        codes,
			Sessions:     sessions,
			Mailer:       mailer,
			AppName:      cfg.AppName,
			CodeTTL:      cfg.CodeTTL,
			TokenTTL:     cfg.TokenTTL,
			MailFailOpen: cfg.MailFailOpen,
			Logger:       log,
		}),
		Completion: completion.NewService(completion.ServiceDeps{
			Upstream:     openai.NewClient(cfg),
			Observer:     eventlog.New(eventlog.DefaultCapacity),
			DefaultModel: cfg.DefaultModel,
			Logger:       log,
		}),
	}

	router := transporthttp.NewRouter(cfg, deps)

	// WriteTimeout must outlast a full upstream call.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting",
			"port", cfg.AppPort,
			"env", cfg.AppEnv,
			"store", cfg.StoreBackend,
			"model", cfg.DefaultModel,
			"openai_key_set", cfg.OpenAIAPIKey != "",
			"smtp", cfg.MailConfigured(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}

// newStores returns the pending-code and session stores for cfg.StoreBackend.
func newStores(ctx context.Context, cfg *config.Config) (auth.CodeStore, auth.SessionStore, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return memory.NewCodeRepo(), memory.NewSessionRepo(), nil
	case config.StoreDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		// Creates the tables if they don't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewCodeRepo(client, cfg.DynamoTables.PendingCodes),
			dynamo.NewSessionRepo(client, cfg.DynamoTables.Sessions), nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
