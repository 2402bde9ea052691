package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
	"messaging-service/internal/stream"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), "messaging-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s noop_reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))

	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit_log.messaging", "messaging-service", cfg.Env)

	messageRepo := repositories.NewMessageRepo(database)
	rosterRepo := repositories.NewRosterRepo(database)
	userRepo := repositories.NewUserRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)

	broker := stream.NewBroker(messageRepo)
	rosterFeed := stream.NewRosterFeed(rosterRepo)
	hub := ws.NewHub()

	chatService := service.NewChatService(messageRepo, rosterRepo, userRepo, broker, rosterFeed)
	unseenService := service.NewUnseenService(messageRepo, rosterRepo, broker, rosterFeed)
	notifierService := service.NewNotifierService(notificationRepo, broker, rosterFeed, hub)

	verifier := auth.NewVerifier(cfg.JWTSecret)

	chatHandler := handlers.NewChatHandler(chatService, unseenService)
	friendsHandler := handlers.NewFriendsHandler(chatService, userRepo)

	chatSocket := ws.NewChatSocketHandler(hub, broker, chatService, verifier)
	notificationSocket := ws.NewNotificationSocketHandler(hub, unseenService, notifierService, verifier)

	router := gin.Default()
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.POST("/users/sync", authMiddleware, friendsHandler.SyncProfile)
	router.GET("/friends", authMiddleware, friendsHandler.ListFriends)
	router.POST("/friends/details", authMiddleware, friendsHandler.FriendDetails)

	router.GET("/conversations/:friend_id/messages", authMiddleware, chatHandler.GetMessages)
	router.POST("/conversations/:friend_id/messages", authMiddleware, chatHandler.PostMessage)
	router.DELETE("/conversations/:friend_id/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)
	router.GET("/me/unseen-count", authMiddleware, chatHandler.GetUnseenCount)

	router.GET("/ws/conversations/:friend_id", chatSocket.Handle)
	router.GET("/ws/notifications", notificationSocket.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
