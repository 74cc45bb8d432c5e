package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/agent"
	"github.com/tj-assistant/ml-backend/internal/api/handlers"
	"github.com/tj-assistant/ml-backend/internal/cache/redis"
	"github.com/tj-assistant/ml-backend/internal/evaluation"
	"github.com/tj-assistant/ml-backend/internal/ingestion"
	"github.com/tj-assistant/ml-backend/internal/llm"
	"github.com/tj-assistant/ml-backend/internal/metrics"
	"github.com/tj-assistant/ml-backend/internal/middleware/security"
	"github.com/tj-assistant/ml-backend/internal/middleware/validation"
	"github.com/tj-assistant/ml-backend/internal/rag"
	"github.com/tj-assistant/ml-backend/internal/retriever"
	"github.com/tj-assistant/ml-backend/internal/storage/sqlite"
	"github.com/tj-assistant/ml-backend/internal/tools"
	"github.com/tj-assistant/ml-backend/internal/vector/milvus"
	"github.com/tj-assistant/ml-backend/pkg/config"
	appLogger "github.com/tj-assistant/ml-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting TJ-Assistant ML backend")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	var embedder retriever.Embedder = llmClient
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			embedder = redis.NewCachedEmbedder(
				llmClient,
				redisClient,
				time.Duration(cfg.Redis.TTLHours)*time.Hour,
			)
		}
	}

	ret := retriever.New(milvusClient, embedder, cfg.Retrieval.FetchKMultiplier)
	toolRegistry := tools.NewRegistry(ret)
	ragPipeline := rag.NewPipeline(ret, llmClient)
	ragAgent := agent.New(ret, llmClient, toolRegistry, cfg.Agent.MaxIterations)

	evalPipeline := evaluation.NewPipeline(
		sqliteClient,
		ragPipeline,
		cfg.Eval.GoldenPath,
		cfg.Retrieval.TopK,
	)

	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient, cfg.Ingestion.ChunkSize)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.GetLogger(),
	}))

	ragHandler := handlers.NewRAGHandler(ragAgent, sqliteClient, cfg.Retrieval.TopK)
	evalHandler := handlers.NewEvalHandler(evalPipeline)
	documentHandler := handlers.NewDocumentHandler(processor)

	api := app.Group("/api/v1")

	api.Post("/rag/query", ragHandler.HandleQuery)
	api.Get("/query/history", ragHandler.GetQueryHistory)

	api.Post("/eval/run", evalHandler.HandleCreateRun)
	api.Get("/eval/status/:run_id", evalHandler.HandleGetStatus)
	api.Get("/eval/report/:run_id", evalHandler.HandleGetReport)

	api.Post("/documents", documentHandler.HandleIngest)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
