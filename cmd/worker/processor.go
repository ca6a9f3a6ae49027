package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/sebvill/go-delivery-claims/internal/aws"
)

// metricNamespace groups the worker's CloudWatch metrics.
const metricNamespace = "DeliveryClaims"

// Processor consumes confirmation events: it writes a human-readable audit
// line and emits a ConfirmedDeliveries metric per event. The audit log is an
// additional write path next to the structured store, never a read path.
type Processor struct {
	cloudwatch aws.CloudWatchAPI
	log        *zap.Logger
	nowFunc    func() time.Time
}

// NewProcessor creates a worker processor with the CloudWatch client injected.
func NewProcessor(cw aws.CloudWatchAPI, log *zap.Logger) *Processor {
	return &Processor{
		cloudwatch: cw,
		log:        log,
		nowFunc:    time.Now,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry, and repeated failures land in the DLQ.
			p.log.Error("worker error", zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg ConfirmationMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	// audit line
	p.log.Info("delivery confirmed",
		zap.String("token", msg.Token),
		zap.String("cliente", msg.Cliente),
		zap.String("ruta", msg.Ruta),
		zap.String("llegada", msg.Llegada),
		zap.String("correlation_id", msg.CorrelationID))

	input := &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(metricNamespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String("ConfirmedDeliveries"),
				Value:      sdkaws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  sdkaws.Time(p.nowFunc().UTC()),
				Dimensions: []cwtypes.Dimension{
					{Name: sdkaws.String("Ruta"), Value: sdkaws.String(msg.Ruta)},
				},
			},
		},
	}
	if _, err := p.cloudwatch.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
