package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/stayhaven/reservations/internal/adapters/rabbit"
	redisadapter "github.com/stayhaven/reservations/internal/adapters/redis"
	"github.com/stayhaven/reservations/internal/config"
	"github.com/stayhaven/reservations/internal/domain"
	"github.com/stayhaven/reservations/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	drafts := redisadapter.NewDraftStore(redisClient)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	sweeper := NewDraftSweeper(drafts, rabbitPub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown draft sweeper")
}

// DraftSweeper clears draft slots whose embedded expiry has passed. Redis
// TTLs usually get there first; the sweeper covers slots written with a
// longer TTL than their ExpiresAt and emits draft.expired for each.
type DraftSweeper struct {
	drafts    *redisadapter.DraftStore
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewDraftSweeper(drafts *redisadapter.DraftStore, rabbitPub *rabbit.Publisher, logger observability.Logger) *DraftSweeper {
	return &DraftSweeper{drafts: drafts, rabbitPub: rabbitPub, logger: logger}
}

func (s *DraftSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.sweep(ctx, now); err != nil {
				s.logger.Error("draft sweep failed", err)
			}
		}
	}
}

func (s *DraftSweeper) sweep(ctx context.Context, now time.Time) error {
	return s.drafts.Scan(ctx, func(principalID string, draft domain.ReservationDraft) error {
		if !draft.Expired(now) {
			return nil
		}
		if err := s.drafts.Delete(ctx, principalID); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"principal_id": principalID,
			"listing_id":   draft.ListingID,
			"expired_at":   draft.ExpiresAt.Format(time.RFC3339),
		})
		msg := amqp.Publishing{
			MessageId:   uuid.New().String(),
			ContentType: "application/json",
			Body:        payload,
		}
		if err := s.rabbitPub.Publish(ctx, "draft.expired", msg); err != nil {
			s.logger.Error("failed to publish draft.expired", err)
		}
		return nil
	})
}
