package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/sebvill/go-delivery-claims/internal/aws"
	"github.com/sebvill/go-delivery-claims/internal/logger"
	"go.uber.org/zap"
)

func main() {
	zlog, err := logger.New()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		zlog.Fatal("failed to init aws clients", zap.Error(err))
	}
	processor := NewProcessor(clients.CloudWatch, zlog)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"token":"local-token-1","cliente":"Cliente Test","ruta":"Ruta Test","llegada":"2025-01-01T12:00:00Z"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{Body: testBody},
			},
		}
		if err := processor.Handle(context.Background(), event); err != nil {
			zlog.Fatal("local handler error", zap.Error(err))
		}
		return
	}

	lambda.Start(processor.Handle)
}
