package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/sebvill/go-delivery-claims/internal/aws"
	"github.com/sebvill/go-delivery-claims/internal/deliveries"
	"github.com/sebvill/go-delivery-claims/internal/handlers"
	"github.com/sebvill/go-delivery-claims/internal/kvstore"
	"github.com/sebvill/go-delivery-claims/internal/logger"
	"github.com/sebvill/go-delivery-claims/internal/report"
	"go.uber.org/zap"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterDeliveryRoutes(r, cfg)

	return r
}

func main() {
	zlog, err := logger.New()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		zlog.Fatal("failed to init aws clients", zap.Error(err))
	}

	blobs := kvstore.NewStore(clients.DynamoDB, os.Getenv("BLOBS_TABLE"))
	store := deliveries.NewStore(blobs, zlog)

	var publisher deliveries.ConfirmationPublisher
	if queueURL := os.Getenv("CONFIRMATIONS_QUEUE_URL"); queueURL != "" {
		publisher = aws.NewPublisher(clients.SQS, queueURL)
	}
	svc := deliveries.NewService(store, publisher, zlog)

	cfg := handlers.HandlerConfig{
		Service:   svc,
		Renderer:  &report.ChromiumRenderer{ExecPath: os.Getenv("CHROMIUM_PATH")},
		Log:       zlog,
		DeployURL: os.Getenv("DEPLOY_URL"),
		StaticDir: os.Getenv("STATIC_DIR"),
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
			interval, perr := time.ParseDuration(raw)
			if perr != nil {
				zlog.Fatal("invalid SWEEP_INTERVAL", zap.String("value", raw), zap.Error(perr))
			}
			go svc.RunSweeper(ctx, interval)
		}

		addr := ":8080"
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		}
		zlog.Info("running local server", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			zlog.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
