package dynamofake

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tableName = "provider-table"

func newDB() *DB {
	return New(TableSchema{
		Name:     tableName,
		HashKey:  "pk",
		RangeKey: "sk",
		Indexes: []Index{
			{Name: "byName", HashKey: "sk", RangeKey: "name"},
		},
	})
}

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func row(pk, sk, name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": s(pk), "sk": s(sk), "name": s(name)}
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": s(pk), "sk": s(sk)}
}

func TestTokenize(t *testing.T) {
	toks, err := tokenize("begins_with (#1, :1) AND #0 <= :0")
	require.NoError(t, err)

	var texts []string
	for _, tok := range toks {
		texts = append(texts, tok.text)
	}
	assert.Equal(t, []string{"begins_with", "(", "#1", ",", ":1", ")", "AND", "#0", "<=", ":0", ""}, texts)

	_, err = tokenize("#0 = :0 ;")
	assert.Error(t, err)
}

func TestParseCondition(t *testing.T) {
	it := item{
		"a":    s("apple"),
		"b":    n("10"),
		"tags": &types.AttributeValueMemberSS{Value: []string{"x", "y"}},
	}
	names := map[string]string{"#a": "a", "#b": "b", "#t": "tags", "#z": "missing"}
	values := map[string]types.AttributeValue{":a": s("app"), ":n": n("9"), ":m": n("11"), ":x": s("x")}

	tests := []struct {
		expr string
		want bool
	}{
		{"begins_with(#a, :a)", true},
		{"#b > :n", true},
		{"#b BETWEEN :n AND :m", true},
		{"#b IN (:n, :m)", false},
		{"contains(#t, :x)", true},
		{"attribute_exists(#z)", false},
		{"attribute_not_exists(#z) AND #b < :m", true},
		{"NOT (#b = :n) OR #a = :a", true},
		{"(#b = :n) OR (#a = :a)", false},
		{"size(#t) = :n", false},
		{"#z <> :a", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			cond, err := parseCondition(tt.expr, names, values)
			require.NoError(t, err)
			got, err := cond(it)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseCondition("#a = :undefined", names, values)
	assert.Error(t, err)
}

func TestPutItemCondition(t *testing.T) {
	db := newDB()
	ctx := context.Background()

	cond, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("pk"))).
		Build()
	require.NoError(t, err)

	put := func() error {
		_, err := db.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(tableName),
			Item:                      row("p1", "s1", "first"),
			ConditionExpression:       cond.Condition(),
			ExpressionAttributeNames:  cond.Names(),
			ExpressionAttributeValues: cond.Values(),
		})
		return err
	}

	require.NoError(t, put())
	err = put()
	var ccf *types.ConditionalCheckFailedException
	assert.True(t, errors.As(err, &ccf))
	assert.Equal(t, 2, db.Calls("PutItem"))
}

func TestUpdateItemCounter(t *testing.T) {
	db := newDB()
	ctx := context.Background()

	update, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name("count"), expression.Value(1)).
			Set(expression.Name("label"), expression.Value("counter"))).
		Build()
	require.NoError(t, err)

	var last string
	for i := 0; i < 3; i++ {
		out, err := db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(tableName),
			Key:                       key("counter", "counter"),
			UpdateExpression:          update.Update(),
			ExpressionAttributeNames:  update.Names(),
			ExpressionAttributeValues: update.Values(),
			ReturnValues:              types.ReturnValueUpdatedNew,
		})
		require.NoError(t, err)
		last = out.Attributes["count"].(*types.AttributeValueMemberN).Value
		assert.NotContains(t, out.Attributes, "pk")
	}
	assert.Equal(t, "3", last)

	stored := db.Item(tableName, key("counter", "counter"))
	assert.Equal(t, s("counter"), stored["label"])
}

func TestUpdateItemSetOperations(t *testing.T) {
	db := newDB()
	ctx := context.Background()
	db.Seed(tableName, map[string]types.AttributeValue{
		"pk":   s("p1"),
		"sk":   s("s1"),
		"jurs": &types.AttributeValueMemberSS{Value: []string{"ne"}},
		"old":  s("gone"),
	})

	_, err := db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       key("p1", "s1"),
		UpdateExpression:          aws.String("ADD #j :add REMOVE #o"),
		ExpressionAttributeNames:  map[string]string{"#j": "jurs", "#o": "old"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":add": &types.AttributeValueMemberSS{Value: []string{"ky", "ne"}}},
	})
	require.NoError(t, err)

	stored := db.Item(tableName, key("p1", "s1"))
	assert.ElementsMatch(t, []string{"ne", "ky"}, stored["jurs"].(*types.AttributeValueMemberSS).Value)
	assert.NotContains(t, stored, "old")

	_, err = db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       key("p1", "s1"),
		UpdateExpression:          aws.String("SET pk = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": s("other")},
	})
	assert.Error(t, err, "key attributes are immutable")
}

func TestQueryIndexPagination(t *testing.T) {
	db := newDB()
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		db.Seed(tableName, row(fmt.Sprintf("p%d", i), "PROVIDER", fmt.Sprintf("name-%d", 6-i)))
	}
	db.Seed(tableName, map[string]types.AttributeValue{"pk": s("x"), "sk": s("PROVIDER")})

	keyCond, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("sk").Equal(expression.Value("PROVIDER"))).
		Build()
	require.NoError(t, err)

	var names []string
	var start map[string]types.AttributeValue
	pages := 0
	for {
		out, err := db.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(tableName),
			IndexName:                 aws.String("byName"),
			KeyConditionExpression:    keyCond.KeyCondition(),
			ExpressionAttributeNames:  keyCond.Names(),
			ExpressionAttributeValues: keyCond.Values(),
			Limit:                     aws.Int32(3),
			ExclusiveStartKey:         start,
		})
		require.NoError(t, err)
		pages++
		for _, it := range out.Items {
			names = append(names, it["name"].(*types.AttributeValueMemberS).Value)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		assert.Contains(t, out.LastEvaluatedKey, "name")
		start = out.LastEvaluatedKey
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"name-0", "name-1", "name-2", "name-3", "name-4", "name-5", "name-6"}, names,
		"items without the index range key are not in the index")
}

func TestQueryDescendingWithFilter(t *testing.T) {
	db := newDB()
	ctx := context.Background()
	db.Seed(tableName,
		row("p", "a#1", "keep"),
		row("p", "a#2", "drop"),
		row("p", "a#3", "keep"),
		row("p", "b#1", "keep"),
	)

	built, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("pk").Equal(expression.Value("p")).
			And(expression.Key("sk").BeginsWith("a#"))).
		WithFilter(expression.Name("name").Equal(expression.Value("keep"))).
		Build()
	require.NoError(t, err)

	out, err := db.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    built.KeyCondition(),
		FilterExpression:          built.Filter(),
		ExpressionAttributeNames:  built.Names(),
		ExpressionAttributeValues: built.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, s("a#3"), out.Items[0]["sk"])
	assert.Equal(t, s("a#1"), out.Items[1]["sk"])
	assert.Equal(t, int32(3), out.ScannedCount)
}

func TestTransactWriteItemsIsAtomic(t *testing.T) {
	db := newDB()
	ctx := context.Background()
	db.Seed(tableName, row("taken", "s", "existing"))

	notExists := aws.String("attribute_not_exists(pk)")
	_, err := db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(tableName), Item: row("new", "s", "fresh")}},
			{Put: &types.Put{TableName: aws.String(tableName), Item: row("taken", "s", "clobber"), ConditionExpression: notExists}},
		},
	})

	var cancelled *types.TransactionCanceledException
	require.True(t, errors.As(err, &cancelled))
	require.Len(t, cancelled.CancellationReasons, 2)
	assert.Equal(t, "None", aws.ToString(cancelled.CancellationReasons[0].Code))
	assert.Equal(t, "ConditionalCheckFailed", aws.ToString(cancelled.CancellationReasons[1].Code))

	assert.Nil(t, db.Item(tableName, key("new", "s")))
	assert.Equal(t, s("existing"), db.Item(tableName, key("taken", "s"))["name"])

	_, err = db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(tableName), Item: row("new", "s", "fresh")}},
			{Update: &types.Update{
				TableName:                 aws.String(tableName),
				Key:                       key("taken", "s"),
				UpdateExpression:          aws.String("SET #n = :n"),
				ExpressionAttributeNames:  map[string]string{"#n": "name"},
				ExpressionAttributeValues: map[string]types.AttributeValue{":n": s("renamed")},
			}},
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, db.Item(tableName, key("new", "s")))
	assert.Equal(t, s("renamed"), db.Item(tableName, key("taken", "s"))["name"])
}

func TestTransactWriteItemsLimits(t *testing.T) {
	db := newDB()
	ctx := context.Background()

	items := make([]types.TransactWriteItem, MaxTransactItems+1)
	for i := range items {
		items[i] = types.TransactWriteItem{Put: &types.Put{TableName: aws.String(tableName), Item: row(fmt.Sprint(i), "s", "x")}}
	}
	_, err := db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	assert.Error(t, err)

	_, err = db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(tableName), Item: row("dup", "s", "1")}},
			{Put: &types.Put{TableName: aws.String(tableName), Item: row("dup", "s", "2")}},
		},
	})
	assert.Error(t, err)
	assert.Empty(t, db.Items(tableName))
}

func TestFailNextAndHooks(t *testing.T) {
	db := newDB()
	ctx := context.Background()
	boom := errors.New("boom")
	db.FailNext("GetItem", boom)

	_, err := db.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(tableName), Key: key("a", "b")})
	assert.ErrorIs(t, err, boom)

	out, err := db.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(tableName), Key: key("a", "b")})
	require.NoError(t, err)
	assert.Nil(t, out.Item)

	var seen []string
	db.BeforeWrite(func(op string) { seen = append(seen, op) })
	_, err = db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(tableName), Item: row("a", "b", "c")})
	require.NoError(t, err)
	assert.Equal(t, []string{"PutItem"}, seen)

	_, err = db.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String("nope"), Key: key("a", "b")})
	var rnf *types.ResourceNotFoundException
	assert.True(t, errors.As(err, &rnf))
}
