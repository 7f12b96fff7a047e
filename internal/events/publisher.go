package events

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	apperrors "compact-connect-backend/internal/errors"
)

// maxEntriesPerCall is the PutEvents entry limit.
const maxEntriesPerCall = 10

// PutEventsAPI is the part of the EventBridge client the publisher uses.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends events to one event bus.
type Publisher struct {
	client       PutEventsAPI
	eventBusName string
	logger       *zap.Logger
}

func NewPublisher(client PutEventsAPI, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Publish sends events in batches of ten. It stops at the first failed batch.
func (p *Publisher) Publish(ctx context.Context, events ...Event) error {
	for i := 0; i < len(events); i += maxEntriesPerCall {
		end := i + maxEntriesPerCall
		if end > len(events) {
			end = len(events)
		}
		if err := p.publishBatch(ctx, events[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, batch []Event) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	for _, event := range batch {
		detail, err := json.Marshal(event.Detail)
		if err != nil {
			return apperrors.Internal(apperrors.CodeSerialization, "failed to marshal event detail").
				WithResource(string(event.DetailType)).
				WithCause(err).
				Build()
		}
		entry := types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(string(event.DetailType)),
			Detail:       aws.String(string(detail)),
			Resources:    event.Resources,
		}
		if !event.Time.IsZero() {
			entry.Time = aws.Time(event.Time)
		}
		entries = append(entries, entry)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return apperrors.FromAWS(err, apperrors.CodeEventPublishFailed, "PutEvents")
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(batch) {
				p.logger.Error("Failed to publish event",
					zap.String("detailType", string(batch[i].DetailType)),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return apperrors.External(apperrors.CodeEventPublishFailed, "failed to publish events").
			WithOperation("PutEvents").
			WithDetailsf("%d of %d entries failed", result.FailedEntryCount, len(entries)).
			WithRetryable(true).
			Build()
	}

	p.logger.Debug("Events published",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}
