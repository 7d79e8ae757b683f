package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	googleauth "legaldoc-backend/internal/auth"
	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/enrichment"
	"legaldoc-backend/internal/llm"
	openai "legaldoc-backend/internal/llm/openai"
	"legaldoc-backend/internal/mailer"
	"legaldoc-backend/internal/queue"
	"legaldoc-backend/internal/services/health"
	"legaldoc-backend/internal/shared/auth"
	"legaldoc-backend/internal/shared/config"
	"legaldoc-backend/internal/shared/server"
	"legaldoc-backend/internal/shared/storage/db"
	"legaldoc-backend/internal/shared/storage/object"
	localstore "legaldoc-backend/internal/shared/storage/object/local"
	miniostore "legaldoc-backend/internal/shared/storage/object/minio"
	s3store "legaldoc-backend/internal/shared/storage/object/s3"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/users"
)

// App holds shared dependencies for the api and worker binaries.
type App struct {
	Config        config.Config
	Router        *gin.Engine
	DB            *sql.DB
	Store         object.ObjectStore
	LLM           llm.Client
	Tokens        *auth.Issuer
	DocumentsRepo documents.Repo
	UsersRepo     users.Repo

	DocumentsService  *documents.Service
	EnrichmentService *enrichment.Service
	UsersService      *users.Service
	Orchestrator      *enrichment.Orchestrator
	// Executor is nil when enrichment is dispatched to the queue.
	Executor *enrichment.Executor
}

// Options overrides collaborators that are otherwise built from config.
type Options struct {
	DB     *sql.DB
	Store  object.ObjectStore
	LLM    llm.Client
	Mailer mailer.Sender
	Queue  queue.Client
	// DBPool replaces the API pool defaults; DB_* env vars still apply on top.
	DBPool *db.Options
	// SkipDB keeps repositories in memory even when DATABASE_URL is set.
	SkipDB bool
}

// Build prepares shared dependencies and the HTTP router.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB := opts.DB
	if sqlDB == nil && !opts.SkipDB {
		var err error
		if sqlDB, err = buildDB(ctx, cfg, opts.DBPool); err != nil {
			return nil, err
		}
	}

	store := opts.Store
	if store == nil {
		var err error
		if store, err = buildStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	llmClient := opts.LLM
	if llmClient == nil {
		var err error
		if llmClient, err = buildLLM(cfg); err != nil {
			return nil, err
		}
	}

	issuer, err := auth.NewIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.TTLMin)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("build token issuer: %w", err)
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		LLM:    llmClient,
		Tokens: issuer,
	}
	if sqlDB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: sqlDB}
		app.UsersRepo = &users.PGRepo{DB: sqlDB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	stages := &enrichment.Stages{LLM: llmClient}
	app.Orchestrator = &enrichment.Orchestrator{Repo: app.DocumentsRepo, Generator: stages}

	dispatcher, err := buildDispatcher(ctx, app, opts.Queue)
	if err != nil {
		return nil, err
	}

	app.DocumentsService = &documents.Service{
		Store:          store,
		Repo:           app.DocumentsRepo,
		Dispatcher:     dispatcher,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}
	app.EnrichmentService = &enrichment.Service{Documents: app.DocumentsService, Stages: stages}

	mail := opts.Mailer
	if mail == nil {
		mail = mailer.New(mailer.SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	app.UsersService = &users.Service{
		Repo:           app.UsersRepo,
		Tokens:         issuer,
		Mailer:         mail,
		FrontendOrigin: cfg.FrontendOrigin,
	}

	var google *googleauth.GoogleService
	if strings.TrimSpace(cfg.GoogleClientID) != "" {
		google = googleauth.NewGoogleService(
			app.UsersService,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
			cfg.UIRedirectURL,
		)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Verifier:        issuer,
		Health:          health.NewService(sqlDB),
		DocumentHandler: documents.NewHandler(app.DocumentsService),
		AIHandler:       enrichment.NewHandler(app.EnrichmentService),
		UserHandler:     users.NewHandler(app.UsersService),
		GoogleAuth:      google,
	})

	return app, nil
}

// Shutdown drains the in-process executor and closes the database.
func (a *App) Shutdown(ctx context.Context) {
	if a.Executor != nil {
		a.Executor.Shutdown(ctx)
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			telemetry.Warn("bootstrap.db_close_failed", map[string]any{"error": err.Error()})
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config, pool *db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
		return nil, nil
	}

	defaults := db.DefaultServerOptions()
	if pool != nil {
		defaults = *pool
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(defaults))
	if err != nil {
		if !cfg.IsProduction() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:   cfg.AWSRegion,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			KMSKeyID: cfg.SSEKMSKeyID,
			Endpoint: cfg.S3Endpoint,
		})
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if strings.EqualFold(cfg.LLM.Provider, "openai") && strings.TrimSpace(cfg.LLM.APIKey) != "" {
		return openai.NewClient(openai.Options{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		})
	}
	telemetry.Warn("bootstrap.llm_not_configured", map[string]any{"provider": cfg.LLM.Provider})
	return llm.PlaceholderClient{}, nil
}

func buildDispatcher(ctx context.Context, app *App, client queue.Client) (documents.Dispatcher, error) {
	if app.Config.Enrichment.Dispatch == "sqs" {
		if client == nil {
			sqsClient, err := queue.NewSQSClient(ctx, app.Config.AWSRegion, app.Config.SQSQueueURL)
			if err != nil {
				return nil, err
			}
			client = sqsClient
		}
		return &enrichment.QueueDispatcher{Client: client}, nil
	}
	app.Executor = enrichment.NewExecutor(app.Orchestrator,
		enrichment.WithWorkers(app.Config.Enrichment.Workers),
		enrichment.WithQueueSize(app.Config.Enrichment.QueueSize),
	)
	return app.Executor, nil
}
