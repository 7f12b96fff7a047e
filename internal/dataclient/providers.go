package dataclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/otel/attribute"

	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/schema"
)

// ProviderName narrows a family-name listing to a name prefix.
type ProviderName struct {
	FamilyName string
	// GivenName is optional.
	GivenName string
}

// GetProvider returns the records of one provider. With detail unset only
// the provider record is read; otherwise the licenses, privileges and
// adverse actions are included too. Privilege update records are read and
// validated but not returned; GetProviderUserRecords carries the history.
func (c *Client) GetProvider(ctx context.Context, compact, providerID string, detail bool) (records []schema.Record, err error) {
	ctx, span := c.startSpan(ctx, "GetProvider", compact)
	defer func() { finish(span, err) }()
	span.SetAttributes(attribute.Bool("detail", detail))

	all, err := c.readProviderPartition(ctx, "GetProvider", compact, providerID, detail)
	if err != nil {
		return nil, err
	}

	records = make([]schema.Record, 0, len(all))
	for _, record := range all {
		if record.RecordType() == schema.RecordTypePrivilegeUpdate {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// GetProviderUserRecords returns every record of one provider, privilege
// history included, as a typed aggregate.
func (c *Client) GetProviderUserRecords(ctx context.Context, compact, providerID string) (agg *schema.ProviderUserRecords, err error) {
	ctx, span := c.startSpan(ctx, "GetProviderUserRecords", compact)
	defer func() { finish(span, err) }()

	records, err := c.readProviderPartition(ctx, "GetProviderUserRecords", compact, providerID, true)
	if err != nil {
		return nil, err
	}
	agg, err = schema.NewProviderUserRecords(records)
	if err != nil {
		return nil, c.integrityFailure("GetProviderUserRecords", err)
	}
	return agg, nil
}

func (c *Client) readProviderPartition(ctx context.Context, operation, compact, providerID string, detail bool) ([]schema.Record, error) {
	if err := c.checkCompact(compact); err != nil {
		return nil, err
	}

	keyCond := expression.Key(schema.AttrPK).Equal(expression.Value(schema.ProviderPK(compact, providerID)))
	if detail {
		keyCond = keyCond.And(expression.Key(schema.AttrSK).BeginsWith(schema.ProviderSK(compact)))
	} else {
		keyCond = keyCond.And(expression.Key(schema.AttrSK).Equal(expression.Value(schema.ProviderSK(compact))))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, expressionError(err)
	}

	items, err := c.queryAll(ctx, operation, &dynamodb.QueryInput{
		TableName:                 c.providerTable(),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.NotFound(apperrors.CodeProviderNotFound, "provider not found").
			WithOperation(operation).
			Build()
	}
	return c.decodeRecords(operation, items)
}

// GetProvidersSortedByFamilyName lists a compact's providers in family,
// given, middle name order. A non-empty jurisdiction keeps providers
// licensed in it or holding a privilege there.
func (c *Client) GetProvidersSortedByFamilyName(
	ctx context.Context,
	compact, jurisdiction string,
	pagination Pagination,
	name *ProviderName,
	scanForward bool,
) (page *Page[*schema.Provider], err error) {
	ctx, span := c.startSpan(ctx, "GetProvidersSortedByFamilyName", compact)
	defer func() { finish(span, err) }()

	keyCond := expression.Key(schema.AttrSK).Equal(expression.Value(schema.ProviderSK(compact)))
	if name != nil {
		if name.FamilyName == "" {
			return nil, apperrors.Validation(apperrors.CodeInvalidRequest, "invalid name filter").
				WithDetails("familyName is required when filtering by name").
				Build()
		}
		keyCond = keyCond.And(expression.Key(schema.AttrProviderFamGivMid).
			BeginsWith(schema.FamGivMidPrefix(name.FamilyName, name.GivenName)))
	}

	return c.sortedProviders(ctx, "GetProvidersSortedByFamilyName", compact, jurisdiction, pagination, sortedIndex{
		name:     c.cfg.Tables.FamGivMidIndexName,
		rangeKey: schema.AttrProviderFamGivMid,
	}, keyCond, scanForward)
}

// GetProvidersSortedByUpdated lists a compact's providers by the time of
// their last update.
func (c *Client) GetProvidersSortedByUpdated(
	ctx context.Context,
	compact, jurisdiction string,
	pagination Pagination,
	scanForward bool,
) (page *Page[*schema.Provider], err error) {
	ctx, span := c.startSpan(ctx, "GetProvidersSortedByUpdated", compact)
	defer func() { finish(span, err) }()

	keyCond := expression.Key(schema.AttrSK).Equal(expression.Value(schema.ProviderSK(compact)))
	return c.sortedProviders(ctx, "GetProvidersSortedByUpdated", compact, jurisdiction, pagination, sortedIndex{
		name:     c.cfg.Tables.DateOfUpdateIndexName,
		rangeKey: schema.AttrProviderDateOfUpdate,
	}, keyCond, scanForward)
}

type sortedIndex struct {
	name     string
	rangeKey string
}

func (c *Client) sortedProviders(
	ctx context.Context,
	operation, compact, jurisdiction string,
	pagination Pagination,
	index sortedIndex,
	keyCond expression.KeyConditionBuilder,
	scanForward bool,
) (*Page[*schema.Provider], error) {
	if err := c.checkCompact(compact); err != nil {
		return nil, err
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if jurisdiction != "" {
		builder = builder.WithFilter(jurisdictionFilter(jurisdiction))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, expressionError(err)
	}

	items, lastKey, err := c.collectPage(ctx, pageQuery{
		operation: operation,
		input: &dynamodb.QueryInput{
			TableName:                 c.providerTable(),
			IndexName:                 aws.String(index.name),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(scanForward),
		},
		keyAttrs:   []string{schema.AttrPK, schema.AttrSK, index.rangeKey},
		pagination: pagination,
	})
	if err != nil {
		return nil, err
	}

	providers := make([]*schema.Provider, 0, len(items))
	for _, item := range items {
		provider, err := schema.ProviderFromItem(item)
		if err != nil {
			return nil, c.integrityFailure(operation, err)
		}
		providers = append(providers, provider)
	}
	return &Page[*schema.Provider]{
		Items:    providers,
		LastKey:  lastKey,
		PageSize: pagination.GetEffectiveLimit(),
	}, nil
}

func jurisdictionFilter(jurisdiction string) expression.ConditionBuilder {
	return expression.Name("licenseJurisdiction").Equal(expression.Value(jurisdiction)).
		Or(expression.Name("privilegeJurisdictions").Contains(jurisdiction))
}
