package main

import (
	"context"
	"database/sql"

	config "github.com/davicafu/reportlab/internal/config"
	reportApp "github.com/davicafu/reportlab/internal/report/application"
	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
	reportEvents "github.com/davicafu/reportlab/internal/report/infra/inbound/events"
	reportHttp "github.com/davicafu/reportlab/internal/report/infra/inbound/http"
	chAnalytics "github.com/davicafu/reportlab/internal/report/infra/outbound/analytics/clickhouse"
	reportCache "github.com/davicafu/reportlab/internal/report/infra/outbound/cache"
	mongoRepo "github.com/davicafu/reportlab/internal/report/infra/outbound/db/mongodb"
	pgRepo "github.com/davicafu/reportlab/internal/report/infra/outbound/db/postgre"
	sqliteRepo "github.com/davicafu/reportlab/internal/report/infra/outbound/db/sqlite"
	infraEvents "github.com/davicafu/reportlab/internal/shared/infra/events"
	sharedBus "github.com/davicafu/reportlab/internal/shared/infra/platform/bus"
	infraRelayer "github.com/davicafu/reportlab/internal/shared/infra/relayer"
	"github.com/davicafu/reportlab/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ---------------- Main ----------------
func main() {
	logger.Init()          // inicializa zap
	log := logger.Logger() // obtiene logger estructurado
	defer log.Sync()       // flush buffers al salir

	ctx := context.Background()
	cfg := config.LoadConfig()

	// ---------------- DB ----------------
	var repo reportDomain.ReportRepository

	switch {
	case cfg.PostgresDSN != "":
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		if err := pgRepo.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}
		repo = pgRepo.NewReportRepoPostgres(db)
		log.Info("✅ Postgres conectado")

	case cfg.MongoURI != "":
		client, err := mongo.Connect(ctx, mongoOptions.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer client.Disconnect(ctx)

		repo, err = mongoRepo.NewReportRepoMongoDB(ctx, client, cfg.MongoDBName)
		if err != nil {
			log.Fatal("failed to initialize MongoDB repo", zap.Error(err))
		}
		log.Info("✅ MongoDB conectado")

	default:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping SQLite", zap.Error(err))
		}
		if err := sqliteRepo.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		repo = sqliteRepo.NewReportRepoSQLite(db)
	}

	// ---------------- Cache ----------------
	var cacheInstance reportDomain.ReportCache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria:", zap.Error(err))
		cacheInstance = reportCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
	} else {
		cacheInstance = reportCache.NewRedisCache(rdb, cfg.CacheTTL)
		log.Info("✅ Redis conectado, cache habilitado")
	}

	// ---------------- Analytics ----------------
	var analytics reportDomain.ReportAnalyticsRepository
	if cfg.ClickHouseAddr != "" {
		chRepo, err := chAnalytics.NewReportAnalyticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDB)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, analítica deshabilitada", zap.Error(err))
		} else if err := chRepo.InitSchema(); err != nil {
			log.Warn("⚠️ No se pudo crear el esquema de ClickHouse", zap.Error(err))
		} else {
			analytics = chRepo
			log.Info("✅ ClickHouse conectado, analítica habilitada")
		}
	}

	// --------------- Servicio --------------
	reportService := reportApp.NewReportService(repo, cacheInstance, analytics, cfg.ProcessDelay, log)

	reportConsumer := reportEvents.NewReportConsumer(
		reportService, cfg.ConsumerRetries, cfg.ConsumerBackoff, cfg.ConsumerTimeout, log,
	)

	// ---------------- Events ---------------
	var eventPublisher sharedBus.EventBus

	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos")

		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   reportDomain.ReportTopic,
		})
		defer writer.Close()

		eventPublisher = infraEvents.NewKafkaPublisher(writer, log)

		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    reportDomain.ReportTopic,
			GroupID:  cfg.KafkaGroupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		})
		defer reader.Close()

		consumerAdapter := infraEvents.NewConsumerAdapter(reader, reportConsumer, log)
		consumerAdapter.Start(ctx)
	} else {
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")

		inMemoryBus := infraEvents.NewInMemoryEventBus(reportDomain.ReportTopic)
		eventPublisher = inMemoryBus

		eventsChannel := inMemoryBus.Subscribe(10)

		log.Info("🎧 Iniciando listener en memoria para eventos de relatório")
		reportEvents.BackgroundConsumerChan(ctx, eventsChannel, reportConsumer)
	}

	// ------------ Outbox Worker ------------
	// El repo de relatórios implementa también el contrato de outbox.
	outboxWorker := infraRelayer.NewOutboxWorker(
		repo, eventPublisher, reportDomain.NewEventRegistry(),
		cfg.OutboxPeriod, cfg.OutboxLimit, log,
	)
	go outboxWorker.Start(ctx)

	// ---------------- HTTP ----------------
	reportHandler := reportHttp.NewReportHandler(reportService)
	router := gin.Default()
	reportHttp.RegisterReportRoutes(router, reportHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
