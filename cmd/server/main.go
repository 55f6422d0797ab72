package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment-service/config"
	"fulfillment-service/internal/api"
	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/lifecycle"
	"fulfillment-service/internal/mailer"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/notifier"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"
	"fulfillment-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting fulfillment service")

	tp, err := util.InitTracer("fulfillment-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	hub := notifier.NewHub()

	db, err := store.NewPostgres(cfg.Database.URL, hub)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	delivery := mailer.NewProvider(
		cfg.Mail.APIURL, cfg.Mail.APIToken, cfg.Mail.FromEmail, cfg.Mail.FromName)

	engine := lifecycle.NewEngine(db, db.Subscriptions(), lifecycle.Options{
		Events:              eventPublisher,
		Locker:              redisClient,
		Delivery:            delivery,
		DefaultRefundMethod: cfg.Business.DefaultRefundMethod,
		InvoicePrefix:       cfg.Business.InvoicePrefix,
		LockTTL:             time.Duration(cfg.Business.MaterializeLockTTLSec) * time.Second,
	})

	bridgeCtx, bridgeCancel := context.WithCancel(context.Background())
	defer bridgeCancel()

	// Local commits go out to sibling replicas; their commits come back in
	// through the hub so every admin view converges without polling.
	unsubscribeTap := hub.SubscribeAll(func(order models.Order) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.PublishOrderChange(ctx, order); err != nil {
			log.Printf("Failed to publish order change: %v", err)
		}
	})
	defer unsubscribeTap()

	go func() {
		if err := redisClient.SubscribeOrderChanges(bridgeCtx, hub.Broadcast); err != nil && bridgeCtx.Err() == nil {
			log.Printf("Order change bridge error: %v", err)
		}
	}()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	invoiceConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	invoiceWorker := worker.NewInvoiceWorker(invoiceConsumer, engine)
	go func() {
		if err := invoiceWorker.Start(workerCtx); err != nil {
			log.Printf("Invoice worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(db)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	bridgeCancel()
	workerCancel()
	invoiceWorker.Stop()

	log.Println("Server exited")
}
