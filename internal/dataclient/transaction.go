package dataclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/schema"
)

// maxTransactionItems is the TransactWriteItems item limit.
const maxTransactionItems = 100

// transaction collects the writes of one TransactWriteItems call. The first
// build error is kept and reported by commit.
type transaction struct {
	table *string
	items []types.TransactWriteItem
	err   error
}

func newTransaction(table *string) *transaction {
	return &transaction{table: table}
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		schema.AttrPK: &types.AttributeValueMemberS{Value: pk},
		schema.AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// put adds a Put of a record, optionally conditioned.
func (t *transaction) put(record schema.Record, cond *expression.ConditionBuilder) {
	if t.err != nil {
		return
	}
	item, err := record.ToItem()
	if err != nil {
		t.err = err
		return
	}
	p := &types.Put{TableName: t.table, Item: item}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			t.err = expressionError(err)
			return
		}
		p.ConditionExpression = expr.Condition()
		p.ExpressionAttributeNames = expr.Names()
		p.ExpressionAttributeValues = expr.Values()
	}
	t.items = append(t.items, types.TransactWriteItem{Put: p})
}

// update adds an Update of the item at key, optionally conditioned.
func (t *transaction) update(key map[string]types.AttributeValue, upd expression.UpdateBuilder, cond *expression.ConditionBuilder) {
	if t.err != nil {
		return
	}
	builder := expression.NewBuilder().WithUpdate(upd)
	if cond != nil {
		builder = builder.WithCondition(*cond)
	}
	expr, err := builder.Build()
	if err != nil {
		t.err = expressionError(err)
		return
	}
	t.items = append(t.items, types.TransactWriteItem{Update: &types.Update{
		TableName:                 t.table,
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}})
}

// conditionCheck adds a ConditionCheck on the item at key. It writes nothing
// but cancels the transaction when cond does not hold.
func (t *transaction) conditionCheck(key map[string]types.AttributeValue, cond expression.ConditionBuilder) {
	if t.err != nil {
		return
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		t.err = expressionError(err)
		return
	}
	t.items = append(t.items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:                 t.table,
		Key:                       key,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}})
}

func (t *transaction) len() int { return len(t.items) }

// commit writes every collected item atomically.
func (c *Client) commit(ctx context.Context, operation string, t *transaction) error {
	if t.err != nil {
		return t.err
	}
	if len(t.items) > maxTransactionItems {
		return apperrors.Validation(apperrors.CodeInvalidRequest, "too many writes for one transaction").
			WithOperation(operation).
			WithDetailsf("%d items exceeds the limit of %d", len(t.items), maxTransactionItems).
			Build()
	}
	err := c.transactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: t.items})
	if err != nil {
		return apperrors.FromAWS(err, apperrors.CodeTransactionFailed, operation)
	}
	return nil
}

// conditionFailedAt reports whether a cancelled transaction failed on the
// condition of the item at index.
func conditionFailedAt(err error, index int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || index >= len(tce.CancellationReasons) {
		return false
	}
	return aws.ToString(tce.CancellationReasons[index].Code) == "ConditionalCheckFailed"
}

func expressionError(err error) error {
	return apperrors.Internal(apperrors.CodeSerialization, "failed to build expression").
		WithCause(err).
		Build()
}

// stringSet marshals as a DynamoDB string set, which ADD needs to union
// rather than append.
type stringSet []string

func (s stringSet) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberSS{Value: s}, nil
}

// rawValue passes a stored attribute value through unchanged, so a condition
// compares against exactly what was read.
type rawValue struct {
	av types.AttributeValue
}

func (r rawValue) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return r.av, nil
}
