// Package app assembles the pipeline and its dependencies from config.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"clinical-decision-agent/internal/agent"
	"clinical-decision-agent/internal/config"
	"clinical-decision-agent/internal/knowledge"
	"clinical-decision-agent/internal/patient"
	"clinical-decision-agent/internal/pipeline"
	"clinical-decision-agent/internal/platform/database"
	"clinical-decision-agent/internal/platform/telegram"
	"clinical-decision-agent/internal/report"
	"clinical-decision-agent/internal/safety"
)

type App struct {
	Config       *config.Config
	Tables       *knowledge.Tables
	Engine       *safety.Engine
	Store        patient.Store
	Orchestrator *pipeline.Orchestrator
	Reports      *report.Service

	db *sql.DB
}

// New builds the application. Knowledge tables that fail to load are
// fatal; an unreachable database is not, since the personalization stage
// falls back to an empty profile.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	tables, err := loadTables(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Tables: tables, Engine: safety.NewEngine(tables)}
	a.Store = a.openStore(ctx, logger)

	completer := agent.NewOpenAICompleter(cfg.CompletionAPIKey, cfg.CompletionBaseURL, cfg.CallTimeout)
	if cfg.CompletionAPIKey == "" {
		logger.Warn("GROQ_API_KEY is not set, research and safety narratives will use fallbacks")
	}

	var interactions pipeline.InteractionSource
	if cfg.EnableRxNav {
		interactions = agent.NewRxNavClient(cfg.RxNavBaseURL, cfg.CallTimeout)
	}

	a.Orchestrator = pipeline.NewOrchestrator(
		pipeline.NewPersonalizationStage(a.Store, cfg.CallTimeout, logger),
		pipeline.NewResearchStage(
			agent.NewPubMedClient(cfg.PubMedBaseURL, cfg.CallTimeout),
			completer, tables, cfg.ResearchModel, cfg.CallTimeout, logger),
		pipeline.NewSafetyStage(a.Engine, completer, interactions, cfg.SafetyModel, cfg.CallTimeout, logger),
		logger,
	)

	var sender report.Sender
	if cfg.AlertsEnabled() {
		sender = telegram.NewClient(cfg.TelegramToken)
	} else {
		logger.Info("clinician alerts disabled, TELEGRAM_BOT_TOKEN or DOCTOR_CHAT_ID not set")
	}
	a.Reports = report.NewService(sender, cfg.DoctorChatID, cfg.ReportFontPath, logger)

	return a, nil
}

func loadTables(path string) (*knowledge.Tables, error) {
	if path == "" {
		return knowledge.Default()
	}
	tables, err := knowledge.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rules file: %w", err)
	}
	return tables, nil
}

func (a *App) openStore(ctx context.Context, logger *zap.Logger) patient.Store {
	cfg := a.Config
	if cfg.DatabaseURL == "" {
		logger.Info("using patient file store", zap.String("path", cfg.PatientsFile))
		return patient.NewFileStore(cfg.PatientsFile)
	}

	db, err := database.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("could not connect to database, patient lookups will fall back to empty profiles", zap.Error(err))
		return patient.NewPostgresStore(nil)
	}
	logger.Info("connected to database")
	a.db = db

	if err := database.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
		logger.Error("migrations failed", zap.Error(err))
	} else {
		logger.Info("migrations applied")
	}
	return patient.NewPostgresStore(db)
}

// Ready reports whether the patient store backend is reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.Config.DatabaseURL == "" {
		return nil
	}
	if a.db == nil {
		return fmt.Errorf("%w: no database connection", patient.ErrStoreUnavailable)
	}
	return a.db.PingContext(ctx)
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
