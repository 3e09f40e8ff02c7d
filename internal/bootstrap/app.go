package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/PavSher76/AI-NK-sub005/internal/ai"
	appsvc "github.com/PavSher76/AI-NK-sub005/internal/app"
	"github.com/PavSher76/AI-NK-sub005/internal/cache"
	"github.com/PavSher76/AI-NK-sub005/internal/config"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	mysqlClient "github.com/PavSher76/AI-NK-sub005/internal/platform/mysql"
	rabbitmqClient "github.com/PavSher76/AI-NK-sub005/internal/platform/rabbitmq"
	redisClient "github.com/PavSher76/AI-NK-sub005/internal/platform/redis"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
	"github.com/PavSher76/AI-NK-sub005/internal/retrieval"
	"github.com/PavSher76/AI-NK-sub005/internal/scoring"
	"github.com/PavSher76/AI-NK-sub005/internal/vision"
	"github.com/PavSher76/AI-NK-sub005/internal/worker"
)

type App struct {
	Config      *config.Config
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	CheckWorker *worker.CheckWorker
	Janitor     *worker.Janitor

	DocRepo     *repository.DocumentRepository
	ElementRepo *repository.ElementRepository
	AuditRepo   *repository.AuditRepository

	Auth       *appsvc.AuthService
	Ingest     *appsvc.IngestService
	Corpus     *appsvc.CorpusService
	Validation *appsvc.ValidationService
	Report     *appsvc.ReportService
	Stamp      *vision.StampClassifier

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Element{},
		&model.NormativeClause{},
		&model.ClauseRelation{},
		&model.ValidationResult{},
		&model.Finding{},
		&model.ReviewReport{},
		&model.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	docRepo := repository.NewDocumentRepository(mysqlDB)
	elementRepo := repository.NewElementRepository(mysqlDB)
	clauseRepo := repository.NewClauseRepository(mysqlDB)
	resultRepo := repository.NewResultRepository(mysqlDB)
	auditRepo := repository.NewAuditRepository(mysqlDB)
	userRepo := repository.NewUserRepository(mysqlDB)

	llmClient := ai.NewOpenAICompatibleClient()
	chatCfg := ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}
	embCfg := ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	}

	authService := appsvc.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	corpusService := appsvc.NewCorpusService(clauseRepo, docRepo, llmClient, embCfg)
	ingestService := appsvc.NewIngestService(
		docRepo,
		elementRepo,
		corpusService,
		cfg.Storage.UploadDir,
		cfg.Storage.MaxUploadMB,
		cfg.Validation.RetentionDays,
	)

	reportCache := cache.NewReportCache(redisCli, time.Duration(cfg.Redis.ReportTTLSeconds)*time.Second)
	reportService := appsvc.NewReportService(resultRepo, docRepo, reportCache, cfg.Validation, cfg.Storage.ExportDir)

	engine := retrieval.NewEngine(clauseRepo, &queryEmbedder{client: llmClient, cfg: embCfg}, retrieval.Config{
		Alpha:      cfg.Retrieval.Alpha,
		RerankSize: cfg.Retrieval.RerankSize,
		MMRLambda:  cfg.Retrieval.MMRLambda,
	})
	scorer := scoring.NewLLMScorer(llmClient, chatCfg, cfg.LLM.SystemPrompt)

	dispatcher := rabbitmqClient.NewCheckPublisher(mqConn, cfg.RabbitMQ.CheckQueue)
	validationService := appsvc.NewValidationService(
		docRepo,
		elementRepo,
		resultRepo,
		engine,
		scorer,
		reportService,
		dispatcher,
		cfg.Validation,
		cfg.Retrieval.TopK,
	)

	checkWorker := worker.NewCheckWorker(mqConn, validationService, cfg.RabbitMQ.CheckQueue)
	if err := checkWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start check worker failed: %w", err)
	}

	janitor := worker.NewJanitor(docRepo, auditRepo, time.Duration(cfg.Validation.JanitorIntervalHour)*time.Hour)
	janitor.Start(ctx)

	classifier := vision.NewStampClassifier(cfg.Vision.ModelPath, cfg.Vision.LabelsPath, cfg.Vision.ONNXSharedLibPath)

	return &App{
		Config:      cfg,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		CheckWorker: checkWorker,
		Janitor:     janitor,
		DocRepo:     docRepo,
		ElementRepo: elementRepo,
		AuditRepo:   auditRepo,
		Auth:        authService,
		Ingest:      ingestService,
		Corpus:      corpusService,
		Validation:  validationService,
		Report:      reportService,
		Stamp:       classifier,
		StartedAt:   time.Now(),
	}, nil
}

// queryEmbedder binds the shared LLM client and its embedding settings to
// the retrieval engine's single-argument interface.
type queryEmbedder struct {
	client *ai.OpenAICompatibleClient
	cfg    ai.EmbeddingConfig
}

func (e *queryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.cfg, text)
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Janitor != nil {
		a.Janitor.Close()
	}
	if a.CheckWorker != nil {
		a.CheckWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
