package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
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
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const gatewaySecret = "integration-secret"

// fakeGateway emulates the Razorpay-style orders API: create assigns an id
// and stores the order, fetch returns it with notes intact.
type fakeGateway struct {
	mu     sync.Mutex
	orders map[string]gateway.Order
	seq    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: make(map[string]gateway.Order)}
}

func (f *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var order gateway.Order
		if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.seq++
		order.ID = fmt.Sprintf("order_%d", f.seq)
		f.orders[order.ID] = order
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(order)
	})
	mux.HandleFunc("/v1/orders/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
		f.mu.Lock()
		order, ok := f.orders[id]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(order)
	})
	return mux
}

func TestIntegration_QuoteOrderVerifyCancel(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16",
			Env:          map[string]string{"POSTGRES_PASSWORD": "test", "POSTGRES_DB": "stay"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer pgContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health").WithPort("15672"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	pgHost, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}
	rabbitHost, err := rabbitContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rabbitPort, err := rabbitContainer.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatal(err)
	}

	fakeGw := newFakeGateway()
	gwServer := httptest.NewServer(fakeGw.handler())
	defer gwServer.Close()

	cfg := &config.Config{
		PostgresDSN:      "postgres://postgres:test@" + pgHost + ":" + pgPort.Port() + "/stay?sslmode=disable",
		MongoURI:         "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:        redisHost + ":" + redisPort.Port(),
		RabbitURL:        "amqp://guest:guest@" + rabbitHost + ":" + rabbitPort.Port() + "/",
		GatewayBaseURL:   gwServer.URL,
		GatewayKeyID:     "key_test",
		GatewayKeySecret: gatewaySecret,
		Currency:         "INR",
		DraftTTL:         30 * time.Minute,
		OTLPEndpoint:     "", // Skip otel for test
	}

	// Setup dependencies
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	ledger := postgres.NewLedger(pool)
	if err := ledger.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database("stayhaven")
	logger := observability.NewLogger()
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
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}
	consumer, err := rabbit.NewConsumer(rabbitConn, "it-booking-events", []string{"booking.#"})
	if err != nil {
		t.Fatal(err)
	}
	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	waitForEvent := func(key string) {
		t.Helper()
		deadline := time.After(30 * time.Second)
		for {
			select {
			case d := <-deliveries:
				d.Ack(false)
				if d.RoutingKey == key {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %s event", key)
			}
		}
	}

	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, logger)
	svc := reservation.NewService(ledger, catalog, drafts, gw, audit, logger, cfg.DraftTTL, cfg.Currency)
	verifier := reservation.NewVerifier(cfg.GatewayKeySecret, gw, ledger, drafts, audit, logger)

	handlers := httphandler.NewHandlers(cfg, svc, verifier, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	pubCtx, pubCancel := context.WithCancel(ctx)
	defer pubCancel()
	go outbox.NewPublisher(ledger, rabbitPub, logger).Run(pubCtx, time.Second)

	// Start server
	srv := &http.Server{Addr: ":8086", Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Error(err)
		}
	}()
	defer srv.Shutdown(ctx)
	base := "http://localhost:8086"

	guestID := "guest-" + uuid.New().String()
	hostID := "host-" + uuid.New().String()

	err = catalog.CreateListing(ctx, mongoadapter.ListingDoc{
		ID:            "listing-integration",
		Title:         "Canal House",
		PricePerNight: 2000,
		RoomPlans: []mongoadapter.RoomPlanDoc{
			{Name: "Standard", ExtraPrice: 0},
			{Name: "Deluxe", ExtraPrice: 500},
		},
		OwnerID:  hostID,
		Capacity: 4,
	})
	if err != nil {
		t.Fatal(err)
	}

	do := func(method, path, principal string, body interface{}, idempKey string) *http.Response {
		t.Helper()
		var reader *bytes.Reader
		if body != nil {
			data, _ := json.Marshal(body)
			reader = bytes.NewReader(data)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequest(method, base+path, reader)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if principal != "" {
			req.Header.Set("X-User-ID", principal)
		}
		if idempKey != "" {
			req.Header.Set("Idempotency-Key", idempKey)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	// Quote
	quoteReq := map[string]interface{}{
		"from_date": "2026-09-10",
		"to_date":   "2026-09-13",
		"guests":    2,
		"room_plan": "deluxe",
	}
	resp := do("POST", "/v1/listings/listing-integration/quote", guestID, quoteReq, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("quote failed: status %d", resp.StatusCode)
	}
	var quoteResp struct {
		TotalPrice int64 `json:"total_price"`
	}
	json.NewDecoder(resp.Body).Decode(&quoteResp)
	resp.Body.Close()
	if quoteResp.TotalPrice != 9293 {
		t.Fatalf("expected total 9293, got %d", quoteResp.TotalPrice)
	}

	// Order
	resp = do("POST", "/v1/orders", guestID, nil, uuid.New().String())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("order failed: status %d", resp.StatusCode)
	}
	var orderResp struct {
		OrderID string `json:"order_id"`
		Amount  int64  `json:"amount"`
	}
	json.NewDecoder(resp.Body).Decode(&orderResp)
	resp.Body.Close()
	if orderResp.Amount != 929300 {
		t.Fatalf("expected minor-unit amount 929300, got %d", orderResp.Amount)
	}

	// Verify with a bad signature first: must be rejected
	badVerify := map[string]string{
		"gateway_order_id":   orderResp.OrderID,
		"gateway_payment_id": "pay_it_1",
		"gateway_signature":  "deadbeef",
	}
	resp = do("POST", "/v1/payments/verify", "", badVerify, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("forged signature accepted: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Verify with the real signature
	verifyReq := map[string]string{
		"gateway_order_id":   orderResp.OrderID,
		"gateway_payment_id": "pay_it_1",
		"gateway_signature":  gateway.Sign(gatewaySecret, orderResp.OrderID, "pay_it_1"),
	}
	resp = do("POST", "/v1/payments/verify", "", verifyReq, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify failed: status %d", resp.StatusCode)
	}
	var verifyResp struct {
		BookingID  uuid.UUID `json:"booking_id"`
		Status     string    `json:"status"`
		TotalPrice int64     `json:"total_price"`
	}
	json.NewDecoder(resp.Body).Decode(&verifyResp)
	resp.Body.Close()
	if verifyResp.Status != "Confirmed" || verifyResp.TotalPrice != 9293 {
		t.Fatalf("unexpected booking: %+v", verifyResp)
	}

	// The outbox publisher drains the confirmation to the broker
	waitForEvent("booking.confirmed")

	// Replayed callback settles to the same booking
	resp = do("POST", "/v1/payments/verify", "", verifyReq, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay verify failed: status %d", resp.StatusCode)
	}
	var replayResp struct {
		BookingID uuid.UUID `json:"booking_id"`
	}
	json.NewDecoder(resp.Body).Decode(&replayResp)
	resp.Body.Close()
	if replayResp.BookingID != verifyResp.BookingID {
		t.Fatalf("replay created a second booking: %s vs %s", replayResp.BookingID, verifyResp.BookingID)
	}

	// Second guest over the same dates loses at settlement
	resp = do("POST", "/v1/listings/listing-integration/quote", "rival-"+uuid.New().String(), map[string]interface{}{
		"from_date": "2026-09-11",
		"to_date":   "2026-09-14",
		"guests":    1,
		"room_plan": "Standard",
	}, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected quote conflict against confirmed booking, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Guest sees the booking
	resp = do("GET", "/v1/bookings", guestID, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("my bookings failed: status %d", resp.StatusCode)
	}
	var listResp struct {
		Bookings []struct {
			BookingID uuid.UUID `json:"booking_id"`
		} `json:"bookings"`
	}
	json.NewDecoder(resp.Body).Decode(&listResp)
	resp.Body.Close()
	if len(listResp.Bookings) != 1 || listResp.Bookings[0].BookingID != verifyResp.BookingID {
		t.Fatalf("unexpected bookings: %+v", listResp)
	}

	// Host sees it on the listing view; a stranger does not
	resp = do("GET", "/v1/listings/listing-integration/bookings", hostID, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("host listing bookings failed: status %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = do("GET", "/v1/listings/listing-integration/bookings", "stranger-"+uuid.New().String(), nil, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger reached host view: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Cancel frees the dates
	resp = do("DELETE", "/v1/bookings/"+verifyResp.BookingID.String(), guestID, nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel failed: status %d", resp.StatusCode)
	}
	resp.Body.Close()
	waitForEvent("booking.cancelled")

	resp = do("POST", "/v1/listings/listing-integration/quote", guestID, quoteReq, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("dates still blocked after cancel: status %d", resp.StatusCode)
	}
	resp.Body.Close()
}
