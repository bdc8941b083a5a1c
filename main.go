package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"kiochat-ws/internal/auth"
	"kiochat-ws/internal/db"
	"kiochat-ws/internal/handlers"
	"kiochat-ws/internal/hub"
	"kiochat-ws/internal/middleware"
	"kiochat-ws/internal/notifications"
	"kiochat-ws/internal/observability"
	"kiochat-ws/internal/rabbitmq"
	"kiochat-ws/internal/repositories"
	"kiochat-ws/internal/telemetry"
	"kiochat-ws/internal/ws"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, os.Getenv("OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	var lastSeen hub.LastSeenStore = hub.NewMemoryLastSeen()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable, keeping last-seen in memory: %v", err)
		} else {
			lastSeen = repositories.NewLastSeenRepo(rdb)
		}
	}

	amqpURL := os.Getenv("AMQP_URL")
	exchange := getEnv("AMQP_EXCHANGE", "kiochat.events")
	publisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer publisher.Close()
	log.Printf("notification publisher mode=%s", rabbitmq.PublisherMode(publisher))

	if obsPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(obsPublisher)
		defer obsPublisher.Close()
	}

	registry := hub.NewRegistry()
	rooms := hub.NewRoomRouter()
	presence := hub.NewPresenceTracker(rooms, lastSeen)
	registry.OnTransition(presence.HandleTransition)

	typing := hub.NewTypingCoordinator(rooms, durationEnv("TYPING_TIMEOUT", hub.DefaultTypingTimeout))
	status := hub.NewStatusTracker(registry, messageRepo, chatRepo)
	dispatcher := notifications.NewDispatcher(presence, chatRepo, publisher)
	relay := hub.NewRelay(rooms, typing, status, messageRepo, dispatcher)
	relay.SetPersistTimeout(durationEnv("PERSIST_TIMEOUT", hub.DefaultPersistTimeout))

	validator := auth.NewJWTValidator(getEnv("JWT_SECRET", "dev-secret"))
	gateway := ws.NewGateway(registry, rooms, presence, typing, relay, status, validator)
	messageHandler := handlers.NewMessageHandler(chatRepo, messageRepo, status)
	presenceHandler := handlers.NewPresenceHandler(presence)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("kiochat-ws"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(validator)

	router.GET("/healthz", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/chats/:chat_id/messages", authMiddleware, messageHandler.GetChatMessages)
	router.POST("/chats/:chat_id/read", authMiddleware, messageHandler.MarkChatRead)
	router.GET("/presence/:user_id", authMiddleware, presenceHandler.GetPresence)

	router.GET("/ws", gateway.Handle)

	port := getEnv("PORT", "8090")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}
