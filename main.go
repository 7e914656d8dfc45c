package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"classchat-service/internal/auth"
	"classchat-service/internal/chat"
	"classchat-service/internal/config"
	"classchat-service/internal/db"
	"classchat-service/internal/handlers"
	"classchat-service/internal/middleware"
	"classchat-service/internal/observability"
	"classchat-service/internal/rabbitmq"
	"classchat-service/internal/repositories"
	"classchat-service/internal/roster"
	"classchat-service/internal/storage"
	"classchat-service/internal/telemetry"
	"classchat-service/internal/ws"
)

const serviceName = "classchat-service"

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	shutdownTracing, err := telemetry.InitTracing(context.Background(), cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange+".ops"); err != nil {
		log.Printf("operational events disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	audit := telemetry.NewAuditEmitter(publisher, "audit_log.chat", serviceName, cfg.Environment)

	memberRepo := repositories.NewMemberRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	rosterRepo := repositories.NewRosterRepo(database)

	blobs, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}
	signer := storage.NewDownloadSigner(cfg.JWTSecret, 15*time.Minute)

	resolver := auth.NewResolver(cfg.JWTSecret)
	hub := ws.NewHub()
	service := chat.NewService(memberRepo, messageRepo, rosterRepo, hub, blobs, signer, publisher)
	synchronizer := roster.NewSynchronizer(rosterRepo, memberRepo)

	roomHandler := handlers.NewRoomHandler(service, synchronizer, audit)
	messageHandler := handlers.NewMessageHandler(service)
	wsHandler := ws.NewHandler(hub, resolver, service)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(resolver)

	router.GET("/chat/rooms", authMiddleware, roomHandler.ListRooms)
	router.GET("/chat/rooms/:class_id/messages", authMiddleware, messageHandler.GetMessages)
	router.POST("/chat/rooms/:class_id/messages", authMiddleware, messageHandler.PostMessage)
	router.GET("/chat/rooms/:class_id/members", authMiddleware, roomHandler.ListMembers)
	router.POST("/chat/rooms/:class_id/upload", authMiddleware, messageHandler.Upload)
	router.POST("/chat/rooms/:class_id/sync", authMiddleware, roomHandler.SyncClass)
	router.GET("/chat/file/:stored_name", authMiddleware, messageHandler.FileURL)

	// The signed token in the query string is the credential for raw
	// downloads, so the route sits outside the bearer-auth group.
	router.GET("/chat/file/:stored_name/raw", messageHandler.Download)

	router.GET("/ws/chat", wsHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, audit, hub, cfg.DebugRoutes)

	log.Printf("classchat service listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
