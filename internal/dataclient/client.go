// Package dataclient is the only component that reads or writes the provider
// and SSN tables. Every item leaving the table passes the strict decoders in
// package schema; every item entering it is produced by a record's ToItem.
package dataclient

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"compact-connect-backend/internal/config"
	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/events"
	"compact-connect-backend/internal/observability"
	"compact-connect-backend/internal/schema"
)

// DynamoDBAPI is the subset of the DynamoDB client the data client uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// EventPublisher emits data events after a write commits.
type EventPublisher interface {
	Publish(ctx context.Context, evts ...events.Event) error
}

// Client is safe for concurrent use.
type Client struct {
	db      DynamoDBAPI
	cfg     *config.Config
	logger  *zap.Logger
	events  EventPublisher
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// Option configures optional collaborators.
type Option func(*Client)

func WithEventPublisher(p EventPublisher) Option {
	return func(c *Client) { c.events = p }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(db DynamoDBAPI, cfg *config.Config, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		db:     db,
		cfg:    cfg,
		logger: logger.Named("dataclient"),
		tracer: observability.Tracer("dataclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) providerTable() *string { return aws.String(c.cfg.Tables.ProviderTableName) }

func (c *Client) ssnTable() *string { return aws.String(c.cfg.Tables.SSNTableName) }

func (c *Client) startSpan(ctx context.Context, operation, compact string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "dataclient."+operation,
		trace.WithAttributes(attribute.String("compact", compact)))
}

// finish ends a span, marking it failed when err is set.
func finish(span trace.Span, err error) {
	observability.RecordError(span, err)
	span.End()
}

func (c *Client) checkCompact(compact string) error {
	if !c.cfg.IsCompact(compact) {
		return apperrors.Validation(apperrors.CodeInvalidRequest, "invalid compact").
			WithDetailsf("unknown compact %q", compact).
			Build()
	}
	return nil
}

// integrityFailure logs a stored record that failed strict decoding. Only the
// record type and the failing attribute names are logged.
func (c *Client) integrityFailure(operation string, err error) error {
	var ue *apperrors.UnifiedError
	if errors.As(err, &ue) {
		c.logger.Error("Stored record failed validation",
			zap.String("operation", operation),
			zap.String("recordType", ue.Resource),
			zap.String("details", ue.Details),
		)
	}
	return err
}

// publish emits events once a write has committed. The write is not undone
// on failure, so the error is logged rather than returned.
func (c *Client) publish(ctx context.Context, evts ...events.Event) {
	if c.events == nil || len(evts) == 0 {
		return
	}
	if err := c.events.Publish(ctx, evts...); err != nil {
		c.logger.Error("Failed to publish data events",
			zap.Int("count", len(evts)),
			zap.String("detailType", string(evts[0].DetailType)),
			zap.Error(err),
		)
	}
}

func (c *Client) getItem(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	started := time.Now()
	out, err := c.db.GetItem(ctx, in)
	c.metrics.ObserveDB("GetItem", started, err)
	return out, err
}

func (c *Client) putItem(ctx context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
	started := time.Now()
	out, err := c.db.PutItem(ctx, in)
	c.metrics.ObserveDB("PutItem", started, err)
	return out, err
}

func (c *Client) query(ctx context.Context, in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
	started := time.Now()
	out, err := c.db.Query(ctx, in)
	c.metrics.ObserveDB("Query", started, err)
	return out, err
}

func (c *Client) updateItem(ctx context.Context, in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
	started := time.Now()
	out, err := c.db.UpdateItem(ctx, in)
	c.metrics.ObserveDB("UpdateItem", started, err)
	return out, err
}

func (c *Client) transactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput) error {
	started := time.Now()
	_, err := c.db.TransactWriteItems(ctx, in)
	c.metrics.ObserveDB("TransactWriteItems", started, err)
	return err
}

// queryAll follows LastEvaluatedKey until the query is exhausted.
func (c *Client) queryAll(ctx context.Context, operation string, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	page := *in
	for {
		out, err := c.query(ctx, &page)
		if err != nil {
			return nil, apperrors.FromAWS(err, apperrors.CodeStorageFailure, operation)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		page.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// decodeRecords strictly decodes a partition's items.
func (c *Client) decodeRecords(operation string, items []map[string]types.AttributeValue) ([]schema.Record, error) {
	records := make([]schema.Record, 0, len(items))
	for _, item := range items {
		record, err := schema.FromItem(item)
		if err != nil {
			return nil, c.integrityFailure(operation, err)
		}
		records = append(records, record)
	}
	return records, nil
}
