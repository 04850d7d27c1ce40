package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/stayhaven/reservations/internal/adapters/mongo"
	"github.com/stayhaven/reservations/internal/adapters/postgres"
	"github.com/stayhaven/reservations/internal/adapters/rabbit"
	redisadapter "github.com/stayhaven/reservations/internal/adapters/redis"
	"github.com/stayhaven/reservations/internal/config"
	"github.com/stayhaven/reservations/internal/gateway"
	httphandler "github.com/stayhaven/reservations/internal/http"
	"github.com/stayhaven/reservations/internal/idempotency"
	"github.com/stayhaven/reservations/internal/observability"
	"github.com/stayhaven/reservations/internal/outbox"
	"github.com/stayhaven/reservations/internal/rateLimit"
	"github.com/stayhaven/reservations/internal/reservation"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	ledger := postgres.NewLedger(pool)
	if err := ledger.Migrate(context.Background()); err != nil {
		log.Fatalf("failed to migrate ledger: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("stayhaven")
	catalog := mongoadapter.NewListingCatalog(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	drafts := redisadapter.NewDraftStore(redisClient)
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, logger)

	svc := reservation.NewService(ledger, catalog, drafts, gw, audit, logger, cfg.DraftTTL, cfg.Currency)
	verifier := reservation.NewVerifier(cfg.GatewayKeySecret, gw, ledger, drafts, audit, logger)

	handlers := httphandler.NewHandlers(cfg, svc, verifier, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go outbox.NewPublisher(ledger, rabbitPub, logger).Run(ctx, 5*time.Second)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
