// Package dynamofake is an in-memory DynamoDB used by tests in place of the
// real service. It understands the condition, key condition, filter and
// update expressions produced by the SDK expression builder, global
// secondary indexes, paginated queries and atomic transactions.
package dynamofake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// MaxTransactItems mirrors the service limit on TransactWriteItems.
const MaxTransactItems = 100

// Index describes a global secondary index projecting all attributes.
type Index struct {
	Name     string
	HashKey  string
	RangeKey string
}

// TableSchema describes one table and its indexes.
type TableSchema struct {
	Name     string
	HashKey  string
	RangeKey string
	Indexes  []Index
}

type table struct {
	schema TableSchema
	items  map[string]item
}

func (t *table) index(name string) (Index, bool) {
	for _, idx := range t.schema.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// DB is safe for concurrent use.
type DB struct {
	mu          sync.Mutex
	tables      map[string]*table
	failures    map[string][]error
	calls       map[string]int
	beforeWrite func(op string)
}

// New creates an empty database with the given tables.
func New(schemas ...TableSchema) *DB {
	db := &DB{
		tables:   make(map[string]*table, len(schemas)),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
	for _, s := range schemas {
		db.tables[s.Name] = &table{schema: s, items: make(map[string]item)}
	}
	return db
}

// Seed stores items directly, bypassing conditions. It panics on an unknown
// table or an item without its key attributes.
func (db *DB) Seed(tableName string, items ...map[string]types.AttributeValue) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok {
		panic("dynamofake: unknown table " + tableName)
	}
	for _, it := range items {
		key, err := t.keyOf(it)
		if err != nil {
			panic("dynamofake: " + err.Error())
		}
		t.items[key] = copyItem(it)
	}
}

// Item returns a copy of the stored item with the given key, or nil.
func (db *DB) Item(tableName string, key map[string]types.AttributeValue) map[string]types.AttributeValue {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok {
		return nil
	}
	k, err := t.keyOf(key)
	if err != nil {
		return nil
	}
	if it, ok := t.items[k]; ok {
		return copyItem(it)
	}
	return nil
}

// Items returns copies of every item in a table in key order.
func (db *DB) Items(tableName string) []map[string]types.AttributeValue {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, copyItem(it))
	}
	hk, rk := t.schema.HashKey, t.schema.RangeKey
	sort.Slice(out, func(i, j int) bool {
		return compareItems(out[i], out[j], []string{hk, rk}) < 0
	})
	return out
}

// FailNext makes the next call to op return err without touching any data.
// Calls queue in order.
func (db *DB) FailNext(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures[op] = append(db.failures[op], err)
}

// Calls reports how many times op has been invoked.
func (db *DB) Calls(op string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.calls[op]
}

// BeforeWrite registers a hook run at the start of every write, before its
// conditions are evaluated. Tests use it to interleave a competing writer.
func (db *DB) BeforeWrite(hook func(op string)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.beforeWrite = hook
}

var writeOps = map[string]bool{
	"PutItem":            true,
	"UpdateItem":         true,
	"DeleteItem":         true,
	"TransactWriteItems": true,
}

func (db *DB) begin(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	db.calls[op]++
	var injected error
	if queue := db.failures[op]; len(queue) > 0 {
		injected = queue[0]
		db.failures[op] = queue[1:]
	}
	hook := db.beforeWrite
	db.mu.Unlock()

	if injected != nil {
		return injected
	}
	if hook != nil && writeOps[op] {
		hook(op)
	}
	return nil
}

func validationError(format string, args ...any) error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: fmt.Sprintf(format, args...),
		Fault:   smithy.FaultClient,
	}
}

// conditionFailed optionally carries the current item, as requested by
// ReturnValuesOnConditionCheckFailure.
func conditionFailed(rv types.ReturnValuesOnConditionCheckFailure, current item) error {
	err := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	if rv == types.ReturnValuesOnConditionCheckFailureAllOld && current != nil {
		err.Item = copyItem(current)
	}
	return err
}

func (db *DB) table(name *string) (*table, error) {
	t, ok := db.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: " + aws.ToString(name))}
	}
	return t, nil
}

func (t *table) keyOf(it item) (string, error) {
	hash, ok := scalarKey(it[t.schema.HashKey])
	if !ok {
		return "", fmt.Errorf("missing key attribute %s", t.schema.HashKey)
	}
	if t.schema.RangeKey == "" {
		return hash, nil
	}
	rng, ok := scalarKey(it[t.schema.RangeKey])
	if !ok {
		return "", fmt.Errorf("missing key attribute %s", t.schema.RangeKey)
	}
	return hash + "\x00" + rng, nil
}

func scalarKey(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return "S" + v.Value, true
	case *types.AttributeValueMemberN:
		return "N" + v.Value, true
	case *types.AttributeValueMemberB:
		return "B" + string(v.Value), true
	}
	return "", false
}

func (t *table) keyAttributes(it item, idx *Index) item {
	names := []string{t.schema.HashKey, t.schema.RangeKey}
	if idx != nil {
		names = append(names, idx.HashKey, idx.RangeKey)
	}
	out := make(item, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if v, ok := it[n]; ok {
			out[n] = copyValue(v)
		}
	}
	return out
}

func (t *table) condition(expr *string, names map[string]string, values map[string]types.AttributeValue, current item) (bool, error) {
	if expr == nil {
		return true, nil
	}
	cond, err := parseCondition(*expr, names, values)
	if err != nil {
		return false, validationError("Invalid ConditionExpression: %v", err)
	}
	if current == nil {
		current = item{}
	}
	return cond(current)
}

func (db *DB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := db.begin(ctx, "GetItem"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(in.Key)
	if err != nil {
		return nil, validationError("The provided key element does not match the schema")
	}
	out := &dynamodb.GetItemOutput{}
	if it, ok := t.items[key]; ok {
		out.Item = copyItem(it)
	}
	return out, nil
}

func (db *DB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := db.begin(ctx, "PutItem"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(in.Item)
	if err != nil {
		return nil, validationError("One or more parameter values were invalid: %v", err)
	}
	existing := t.items[key]
	ok, err := t.condition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(in.ReturnValuesOnConditionCheckFailure, existing)
	}

	t.items[key] = copyItem(in.Item)
	out := &dynamodb.PutItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && existing != nil {
		out.Attributes = existing
	}
	return out, nil
}

func (db *DB) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := db.begin(ctx, "DeleteItem"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(in.Key)
	if err != nil {
		return nil, validationError("The provided key element does not match the schema")
	}
	existing := t.items[key]
	ok, err := t.condition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(in.ReturnValuesOnConditionCheckFailure, existing)
	}
	delete(t.items, key)
	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && existing != nil {
		out.Attributes = existing
	}
	return out, nil
}

// applyUpdate returns the updated copy of current, creating the item from
// its key when it does not exist yet.
func (t *table) applyUpdate(key item, current item, expr *string, names map[string]string, values map[string]types.AttributeValue) (item, *updateExpression, error) {
	if expr == nil {
		return nil, nil, validationError("UpdateExpression is required")
	}
	u, err := parseUpdate(*expr, names, values)
	if err != nil {
		return nil, nil, validationError("Invalid UpdateExpression: %v", err)
	}
	snapshot := copyItem(current)
	if current == nil {
		snapshot = copyItem(key)
	}
	next := copyItem(snapshot)
	for _, action := range u.actions {
		if err := action(snapshot, next); err != nil {
			return nil, nil, validationError("Invalid UpdateExpression: %v", err)
		}
	}
	for _, k := range []string{t.schema.HashKey, t.schema.RangeKey} {
		if k != "" && !compareOp("=", next[k], key[k]) {
			return nil, nil, validationError("Cannot update attribute %s. This attribute is part of the key", k)
		}
	}
	return next, u, nil
}

func (db *DB) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if err := db.begin(ctx, "UpdateItem"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(in.Key)
	if err != nil {
		return nil, validationError("The provided key element does not match the schema")
	}
	existing := t.items[key]
	ok, err := t.condition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(in.ReturnValuesOnConditionCheckFailure, existing)
	}
	next, u, err := t.applyUpdate(in.Key, existing, in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	t.items[key] = next

	out := &dynamodb.UpdateItemOutput{}
	switch in.ReturnValues {
	case types.ReturnValueAllNew:
		out.Attributes = copyItem(next)
	case types.ReturnValueAllOld:
		out.Attributes = copyItem(existing)
	case types.ReturnValueUpdatedNew:
		out.Attributes = pick(next, u.touched)
	case types.ReturnValueUpdatedOld:
		out.Attributes = pick(existing, u.touched)
	}
	return out, nil
}

func (db *DB) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := db.begin(ctx, "Query"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}

	var idx *Index
	order := []string{t.schema.RangeKey, t.schema.HashKey}
	if in.IndexName != nil {
		found, ok := t.index(*in.IndexName)
		if !ok {
			return nil, validationError("The table does not have the specified index: %s", *in.IndexName)
		}
		idx = &found
		order = []string{found.RangeKey, t.schema.HashKey, t.schema.RangeKey}
	}

	if in.KeyConditionExpression == nil {
		return nil, validationError("KeyConditionExpression is required")
	}
	keyCond, err := parseCondition(*in.KeyConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, validationError("Invalid KeyConditionExpression: %v", err)
	}
	var filter condition
	if in.FilterExpression != nil {
		if filter, err = parseCondition(*in.FilterExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
			return nil, validationError("Invalid FilterExpression: %v", err)
		}
	}

	var candidates []item
	for _, it := range t.items {
		if idx != nil && (it[idx.HashKey] == nil || (idx.RangeKey != "" && it[idx.RangeKey] == nil)) {
			continue
		}
		ok, err := keyCond(it)
		if err != nil {
			return nil, validationError("Invalid KeyConditionExpression: %v", err)
		}
		if ok {
			candidates = append(candidates, it)
		}
	}

	forward := in.ScanIndexForward == nil || *in.ScanIndexForward
	sort.Slice(candidates, func(i, j int) bool {
		c := compareItems(candidates[i], candidates[j], order)
		if forward {
			return c < 0
		}
		return c > 0
	})

	if in.ExclusiveStartKey != nil {
		start := len(candidates)
		for i, it := range candidates {
			c := compareItems(it, in.ExclusiveStartKey, order)
			if (forward && c > 0) || (!forward && c < 0) {
				start = i
				break
			}
		}
		candidates = candidates[start:]
	}

	out := &dynamodb.QueryOutput{}
	evaluated := candidates
	if limit := int(aws.ToInt32(in.Limit)); limit > 0 && len(candidates) >= limit {
		evaluated = candidates[:limit]
		out.LastEvaluatedKey = t.keyAttributes(evaluated[limit-1], idx)
	}

	for _, it := range evaluated {
		if filter != nil {
			ok, err := filter(it)
			if err != nil {
				return nil, validationError("Invalid FilterExpression: %v", err)
			}
			if !ok {
				continue
			}
		}
		out.Items = append(out.Items, copyItem(it))
	}
	out.Count = int32(len(out.Items))
	out.ScannedCount = int32(len(evaluated))
	return out, nil
}

type stagedWrite struct {
	t    *table
	key  string
	next item // nil deletes the item
	skip bool // condition checks write nothing
}

func (db *DB) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if err := db.begin(ctx, "TransactWriteItems"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	n := len(in.TransactItems)
	if n == 0 || n > MaxTransactItems {
		return nil, validationError("Member must have length less than or equal to %d and greater than 0", MaxTransactItems)
	}

	staged := make([]stagedWrite, n)
	reasons := make([]types.CancellationReason, n)
	touched := make(map[string]bool, n)
	cancelled := false

	for i, ti := range in.TransactItems {
		var (
			t       *table
			keySrc  item
			cond    *string
			names   map[string]string
			values  map[string]types.AttributeValue
			err     error
			operate func(current item) (item, error)
			skip    bool
		)
		switch {
		case ti.Put != nil:
			p := ti.Put
			t, err = db.table(p.TableName)
			keySrc, cond, names, values = p.Item, p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues
			operate = func(item) (item, error) { return copyItem(p.Item), nil }
		case ti.Update != nil:
			u := ti.Update
			t, err = db.table(u.TableName)
			keySrc, cond, names, values = u.Key, u.ConditionExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues
			operate = func(current item) (item, error) {
				next, _, err := t.applyUpdate(u.Key, current, u.UpdateExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues)
				return next, err
			}
		case ti.Delete != nil:
			d := ti.Delete
			t, err = db.table(d.TableName)
			keySrc, cond, names, values = d.Key, d.ConditionExpression, d.ExpressionAttributeNames, d.ExpressionAttributeValues
			operate = func(item) (item, error) { return nil, nil }
		case ti.ConditionCheck != nil:
			c := ti.ConditionCheck
			t, err = db.table(c.TableName)
			keySrc, cond, names, values = c.Key, c.ConditionExpression, c.ExpressionAttributeNames, c.ExpressionAttributeValues
			operate = func(item) (item, error) { return nil, nil }
			skip = true
		default:
			return nil, validationError("TransactItems[%d] has no operation", i)
		}
		if err != nil {
			return nil, err
		}

		key, err := t.keyOf(keySrc)
		if err != nil {
			return nil, validationError("TransactItems[%d]: %v", i, err)
		}
		if touched[t.schema.Name+"\x01"+key] {
			return nil, validationError("Transaction request cannot include multiple operations on one item")
		}
		touched[t.schema.Name+"\x01"+key] = true

		current := t.items[key]
		ok, err := t.condition(cond, names, values, current)
		if err != nil {
			return nil, err
		}
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		if !ok {
			reasons[i] = types.CancellationReason{
				Code:    aws.String("ConditionalCheckFailed"),
				Message: aws.String("The conditional request failed"),
			}
			cancelled = true
			continue
		}

		next, err := operate(current)
		if err != nil {
			return nil, err
		}
		staged[i] = stagedWrite{t: t, key: key, next: next, skip: skip}
	}

	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range staged {
		switch {
		case w.skip:
		case w.next == nil:
			delete(w.t.items, w.key)
		default:
			w.t.items[w.key] = w.next
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// compareItems orders items by the named attributes in turn.
func compareItems(a, b item, attrs []string) int {
	for _, name := range attrs {
		if name == "" {
			continue
		}
		av, bv := a[name], b[name]
		if av == nil || bv == nil {
			continue
		}
		if c, ok := compareAttributes(av, bv); ok && c != 0 {
			return c
		}
	}
	return 0
}

func pick(it item, names []string) item {
	if it == nil {
		return nil
	}
	out := make(item, len(names))
	for _, n := range names {
		if v, ok := it[n]; ok {
			out[n] = copyValue(v)
		}
	}
	return out
}

func copyItem(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(av types.AttributeValue) types.AttributeValue {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: v.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: v.Value}
	case *types.AttributeValueMemberB:
		return &types.AttributeValueMemberB{Value: append([]byte(nil), v.Value...)}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: v.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: v.Value}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), v.Value...)}
	case *types.AttributeValueMemberNS:
		return &types.AttributeValueMemberNS{Value: append([]string(nil), v.Value...)}
	case *types.AttributeValueMemberBS:
		bs := make([][]byte, len(v.Value))
		for i, b := range v.Value {
			bs[i] = append([]byte(nil), b...)
		}
		return &types.AttributeValueMemberBS{Value: bs}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(v.Value))
		for i, e := range v.Value {
			l[i] = copyValue(e)
		}
		return &types.AttributeValueMemberL{Value: l}
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: copyItem(v.Value)}
	}
	return av
}
