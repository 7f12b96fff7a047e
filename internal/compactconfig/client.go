// Package compactconfig reads jurisdiction settings from the compact
// configuration table.
package compactconfig

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/observability"
)

// GetItemAPI is the part of the DynamoDB client this package uses.
type GetItemAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Jurisdiction is one jurisdiction's configuration within a compact.
type Jurisdiction struct {
	Compact            string `dynamodbav:"compact"`
	PostalAbbreviation string `dynamodbav:"postalAbbreviation"`
	JurisdictionName   string `dynamodbav:"jurisdictionName"`

	JurisdictionOperationsTeamEmails             []string `dynamodbav:"jurisdictionOperationsTeamEmails,stringset"`
	JurisdictionAdverseActionsNotificationEmails []string `dynamodbav:"jurisdictionAdverseActionsNotificationEmails,stringset"`
	JurisdictionSummaryReportNotificationEmails  []string `dynamodbav:"jurisdictionSummaryReportNotificationEmails,stringset"`

	LicenseeRegistrationEnabled bool `dynamodbav:"licenseeRegistrationEnabled"`
}

func JurisdictionPK(compact string) string {
	return compact + "#CONFIGURATION"
}

func JurisdictionSK(compact, jurisdiction string) string {
	return compact + "#JURISDICTION#" + jurisdiction
}

type Client struct {
	db        GetItemAPI
	tableName string
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewClient(db GetItemAPI, tableName string, logger *zap.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		db:        db,
		tableName: tableName,
		logger:    logger.Named("compactconfig"),
		metrics:   metrics,
	}
}

// GetJurisdiction returns a jurisdiction's configuration. A jurisdiction
// that has not been configured is NOT_FOUND.
func (c *Client) GetJurisdiction(ctx context.Context, compact, jurisdiction string) (*Jurisdiction, error) {
	started := time.Now()
	out, err := c.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: JurisdictionPK(compact)},
			"sk": &types.AttributeValueMemberS{Value: JurisdictionSK(compact, jurisdiction)},
		},
	})
	c.metrics.ObserveDB("GetItem", started, err)
	if err != nil {
		return nil, apperrors.FromAWS(err, apperrors.CodeStorageFailure, "GetJurisdiction")
	}
	if len(out.Item) == 0 {
		return nil, apperrors.NotFound(apperrors.CodeJurisdictionNotFound, "jurisdiction configuration not found").
			WithResource(compact + "/" + jurisdiction).
			WithOperation("GetJurisdiction").
			Build()
	}

	var j Jurisdiction
	if err := attributevalue.UnmarshalMap(out.Item, &j); err != nil {
		c.logger.Error("Jurisdiction configuration failed to decode",
			zap.String("compact", compact),
			zap.String("jurisdiction", jurisdiction),
			zap.Error(err),
		)
		return nil, apperrors.Internal(apperrors.CodeDataIntegrity, "invalid jurisdiction configuration").
			WithResource(compact + "/" + jurisdiction).
			WithCause(err).
			Build()
	}
	return &j, nil
}
