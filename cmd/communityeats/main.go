package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"communityeats/internal/app/dto"
	chatservice "communityeats/internal/app/services/chat"
	listingsservice "communityeats/internal/app/services/listings"
	"communityeats/internal/app/uow"
	"communityeats/internal/infra/auth"
	"communityeats/internal/infra/broker/kafka"
	"communityeats/internal/infra/config"
	mongodb "communityeats/internal/infra/db/mongo"
	ginserver "communityeats/internal/infra/http/gin"
	"communityeats/internal/infra/obs"
	"communityeats/internal/infra/storage/memory"
	"communityeats/internal/infra/storage/s3"
	"communityeats/internal/infra/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	gate := auth.NewAdminGate(verifier, cfg.AdminEmails)

	uowFactory, ready := buildStorage(ctx, cfg, logger)
	imageStore, resolve := buildImageStore(cfg, logger)

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	chatEvents, listingEvents, closeBroker := buildBroker(ctx, cfg, hub, logger)
	defer closeBroker()

	chatSvc := &chatservice.Service{
		UoW:    uowFactory,
		Events: chatEvents,
		Logger: logger,
	}
	listingSvc := &listingsservice.Service{
		UoW:    uowFactory,
		Images: imageStore,
		Events: listingEvents,
		Logger: logger,
	}

	handlers := ginserver.Handlers{
		Listing: ginserver.ListingHandler{
			Listings: listingSvc,
			Resolve:  resolve,
			Logger:   logger,
		},
		Conversation: ginserver.ConversationHandler{
			Chat:   chatSvc,
			Logger: logger,
		},
		Admin: ginserver.AdminHandler{
			Listings: listingSvc,
			Resolve:  resolve,
			Logger:   logger,
		},
		Image: ginserver.ImageHandler{
			Store:  imageStore,
			Logger: logger,
		},
		Feed: &ginserver.FeedHandler{
			Hub:      hub,
			Verifier: verifier,
			Chat:     chatSvc,
			Logger:   logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{
			Verifier: verifier,
			Gate:     gate,
			Logger:   logger,
		}.Handle,
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: ready,
	}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// buildStorage prefers Mongo when configured, falling back to the in-memory
// stores for local development.
func buildStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (uow.UoWFactory, func() error) {
	if cfg.MongoURI == "" {
		logger.Warn("MONGO_URI not set, using in-memory storage")
		return memory.NewFactory(), func() error { return nil }
	}

	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connect failed, using in-memory storage", "error", err)
		return memory.NewFactory(), func() error { return nil }
	}

	conversations := mongodb.NewConversationRepository(client.DB)
	messages := mongodb.NewMessageRepository(client.DB)
	indexCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := conversations.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("conversation index creation failed", "error", err)
	}
	if err := messages.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("message index creation failed", "error", err)
	}

	factory := mongodb.Factory{
		DB:                client.DB,
		ListingsRepo:      mongodb.NewListingRepository(client.DB),
		ConversationsRepo: conversations,
		MessagesRepo:      messages,
		ProfilesRepo:      mongodb.NewProfileRepository(client.DB),
	}
	ready := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx)
	}
	logger.Info("mongo storage configured", "database", cfg.MongoDB)
	return factory, ready
}

func buildImageStore(cfg config.Config, logger *slog.Logger) (s3.ImageStore, dto.ImageURLResolver) {
	if cfg.S3Endpoint == "" {
		logger.Warn("S3_ENDPOINT not set, image storage disabled")
		return s3.NoopStore{}, nil
	}
	store, err := s3.NewStore(s3.Options{
		Endpoint:      cfg.S3Endpoint,
		PublicBaseURL: cfg.S3PublicEndpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		UseSSL:        cfg.S3UseSSL,
		PresignTTL:    cfg.PresignTTL,
	})
	if err != nil {
		logger.Error("image store init failed, image storage disabled", "error", err)
		return s3.NoopStore{}, nil
	}
	logger.Info("image storage configured", "bucket", cfg.S3Bucket)
	return store, store.ObjectURL
}

// buildBroker wires the Kafka producer used after commits and the consumer
// group that feeds the websocket hub. Without brokers both sides are no-ops
// and realtime delivery is disabled.
func buildBroker(ctx context.Context, cfg config.Config, hub *ws.Hub, logger *slog.Logger) (chatservice.EventPublisher, listingsservice.EventPublisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, event fanout disabled")
		return kafka.NoopEvents{}, kafka.NoopEvents{}, func() {}
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Error("kafka producer init failed, event fanout disabled", "error", err)
		return kafka.NoopEvents{}, kafka.NoopEvents{}, func() {}
	}
	events := &kafka.EventPublisher{
		Producer:    producer,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Logger:      logger,
	}

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "communityeats-ws", nil, &ws.Feed{Hub: hub, Logger: logger})
	if err != nil {
		logger.Error("kafka consumer init failed, realtime delivery disabled", "error", err)
		return events, events, func() { _ = producer.Close() }
	}
	go func() {
		topic := cfg.KafkaTopicPrefix + kafka.ChatMessagesTopic
		if err := consumer.Run(ctx, []string{topic}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("kafka consumer stopped", "error", err)
		}
	}()

	logger.Info("kafka broker configured", "brokers", cfg.KafkaBrokers)
	return events, events, func() {
		_ = consumer.Close()
		_ = producer.Close()
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
