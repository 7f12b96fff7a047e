package dataclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/schema"
)

// GetProviderID looks up the provider ID for an SSN.
func (c *Client) GetProviderID(ctx context.Context, compact, ssn string) (providerID string, err error) {
	ctx, span := c.startSpan(ctx, "GetProviderID", compact)
	defer func() { finish(span, err) }()

	if err := c.checkCompact(compact); err != nil {
		return "", err
	}

	out, err := c.getItem(ctx, &dynamodb.GetItemInput{
		TableName:      c.ssnTable(),
		Key:            itemKey(schema.SSNKey(compact, ssn), schema.SSNKey(compact, ssn)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", apperrors.FromAWS(err, apperrors.CodeStorageFailure, "GetProviderID")
	}
	if len(out.Item) == 0 {
		return "", apperrors.NotFound(apperrors.CodeSSNNotFound, "no provider found for SSN").
			WithOperation("GetProviderID").
			Build()
	}

	record, err := schema.SSNRecordFromItem(out.Item)
	if err != nil {
		return "", c.integrityFailure("GetProviderID", err)
	}
	return record.ProviderID, nil
}

// GetOrCreateProviderID returns the provider ID for an SSN, assigning a new
// one when the SSN is unknown. Concurrent callers for the same SSN all get
// the ID of whichever write landed first.
func (c *Client) GetOrCreateProviderID(ctx context.Context, compact, ssn string) (providerID string, err error) {
	ctx, span := c.startSpan(ctx, "GetOrCreateProviderID", compact)
	defer func() { finish(span, err) }()

	if err := c.checkCompact(compact); err != nil {
		return "", err
	}

	record := &schema.SSNRecord{
		Compact:    compact,
		SSN:        ssn,
		ProviderID: uuid.NewString(),
	}
	item, err := record.ToItem()
	if err != nil {
		return "", err
	}

	cond := expression.Name(schema.AttrPK).AttributeNotExists()
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return "", expressionError(err)
	}

	_, err = c.putItem(ctx, &dynamodb.PutItemInput{
		TableName:                 c.ssnTable(),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err == nil {
		c.logger.Info("Created provider id", zap.String("compact", compact), zap.String("providerId", record.ProviderID))
		return record.ProviderID, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return "", apperrors.FromAWS(err, apperrors.CodeStorageFailure, "GetOrCreateProviderID")
	}
	return c.GetProviderID(ctx, compact, ssn)
}
