// Package listener adapts message handlers to SQS-triggered Lambda
// functions with partial batch failure reporting.
package listener

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appctx "compact-connect-backend/internal/context"
	"compact-connect-backend/internal/observability"
)

// DefaultConcurrency bounds how many messages of one batch run at once.
const DefaultConcurrency = 4

// MessageHandler processes one message body.
type MessageHandler func(ctx context.Context, body string) error

// SQSBatch runs a handler over every record of a batch. Each record is
// isolated: an error or panic fails only that record.
type SQSBatch struct {
	name        string
	handle      MessageHandler
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
}

func NewSQSBatch(name string, handle MessageHandler, logger *zap.Logger, metrics *observability.Metrics) *SQSBatch {
	return &SQSBatch{
		name:        name,
		handle:      handle,
		logger:      logger.Named("listener").With(zap.String("listener", name)),
		metrics:     metrics,
		concurrency: DefaultConcurrency,
	}
}

// WithConcurrency sets how many records run at once. One processes the
// batch in order.
func (b *SQSBatch) WithConcurrency(n int) *SQSBatch {
	if n > 0 {
		b.concurrency = n
	}
	return b
}

// Handle is the Lambda handler. It never returns an error: failed records
// are listed in the response so only they are redelivered.
func (b *SQSBatch) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	failed := make([]bool, len(event.Records))

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i := range event.Records {
		i := i
		g.Go(func() error {
			err := b.process(ctx, event.Records[i])
			b.metrics.ObserveMessage(b.name, err)
			if err != nil {
				failed[i] = true
				b.logger.Error("Failed to process message",
					zap.String("messageId", event.Records[i].MessageId),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	response := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	for i, f := range failed {
		if f {
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: event.Records[i].MessageId})
		}
	}

	b.logger.Info("Processed batch",
		zap.Int("records", len(event.Records)),
		zap.Int("failures", len(response.BatchItemFailures)),
	)
	return response, nil
}

func (b *SQSBatch) process(ctx context.Context, record events.SQSMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic while processing message",
				zap.String("messageId", record.MessageId),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("panic processing message %s: %v", record.MessageId, r)
		}
	}()
	return b.handle(appctx.WithMessageID(ctx, record.MessageId), record.Body)
}
