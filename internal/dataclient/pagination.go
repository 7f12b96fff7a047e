package dataclient

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	json "github.com/goccy/go-json"

	apperrors "compact-connect-backend/internal/errors"
)

// Constants for pagination
const (
	DefaultPageSize = 100
	MaxPageSize     = 100
)

// Pagination selects one page of a sorted listing.
type Pagination struct {
	// PageSize of zero selects DefaultPageSize.
	PageSize int `json:"pageSize,omitempty"`
	// LastKey is the token returned with the previous page.
	LastKey string `json:"lastKey,omitempty"`
}

// Validate checks the page size bounds.
func (p Pagination) Validate() error {
	if p.PageSize < 0 || p.PageSize > MaxPageSize {
		return apperrors.Validation(apperrors.CodeInvalidPagination, "invalid page size").
			WithDetailsf("pageSize must be between 1 and %d, or 0 for the default of %d", MaxPageSize, DefaultPageSize).
			Build()
	}
	return nil
}

// GetEffectiveLimit returns the page size to use.
func (p Pagination) GetEffectiveLimit() int {
	if p.PageSize == 0 {
		return DefaultPageSize
	}
	return p.PageSize
}

// Page is one page of a listing. LastKey is empty on the final page.
type Page[T any] struct {
	Items    []T    `json:"items"`
	LastKey  string `json:"lastKey,omitempty"`
	PageSize int    `json:"pageSize"`
}

// HasMore reports whether another page follows.
func (p *Page[T]) HasMore() bool {
	return p.LastKey != ""
}

// EncodeLastKey renders the key attributes of an item as an opaque token:
// base64 of a JSON object of string attributes.
func EncodeLastKey(item map[string]types.AttributeValue, keyAttrs []string) (string, error) {
	flat := make(map[string]string, len(keyAttrs))
	for _, name := range keyAttrs {
		s, ok := item[name].(*types.AttributeValueMemberS)
		if !ok {
			return "", apperrors.Internal(apperrors.CodeSerialization, "failed to encode pagination key").
				WithDetailsf("key attribute %s is not a string", name).
				Build()
		}
		flat[name] = s.Value
	}
	data, err := json.Marshal(flat)
	if err != nil {
		return "", apperrors.Internal(apperrors.CodeSerialization, "failed to encode pagination key").
			WithCause(err).
			Build()
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeLastKey parses a token into an ExclusiveStartKey. Every key
// attribute must be present; any other content is dropped.
func DecodeLastKey(token string, keyAttrs []string) (map[string]types.AttributeValue, error) {
	invalid := func(details string, cause error) error {
		return apperrors.Validation(apperrors.CodeInvalidLastKey, "invalid lastKey").
			WithDetails(details).
			WithCause(cause).
			Build()
	}

	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, invalid("lastKey is not base64", err)
	}
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, invalid("lastKey is not a JSON object of strings", err)
	}

	key := make(map[string]types.AttributeValue, len(keyAttrs))
	for _, name := range keyAttrs {
		v, ok := flat[name]
		if !ok || v == "" {
			return nil, invalid("lastKey is missing "+name, nil)
		}
		key[name] = &types.AttributeValueMemberS{Value: v}
	}
	return key, nil
}

// pageQuery is one sorted listing over an index.
type pageQuery struct {
	operation  string
	input      *dynamodb.QueryInput
	keyAttrs   []string
	pagination Pagination
}

// collectPage reads until it holds one more match than the page size or the
// index is exhausted. The extra match only proves another page exists; the
// token points at the last item returned, so the next page starts with it.
func (c *Client) collectPage(ctx context.Context, q pageQuery) ([]map[string]types.AttributeValue, string, error) {
	if err := q.pagination.Validate(); err != nil {
		return nil, "", err
	}
	pageSize := q.pagination.GetEffectiveLimit()

	in := *q.input
	in.Limit = aws.Int32(int32(pageSize))
	if q.pagination.LastKey != "" {
		startKey, err := DecodeLastKey(q.pagination.LastKey, q.keyAttrs)
		if err != nil {
			return nil, "", err
		}
		in.ExclusiveStartKey = startKey
	}

	var matched []map[string]types.AttributeValue
	for {
		out, err := c.query(ctx, &in)
		if err != nil {
			return nil, "", apperrors.FromAWS(err, apperrors.CodeStorageFailure, q.operation)
		}
		matched = append(matched, out.Items...)
		if len(matched) > pageSize || len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if len(matched) <= pageSize {
		return matched, "", nil
	}
	matched = matched[:pageSize]
	lastKey, err := EncodeLastKey(matched[pageSize-1], q.keyAttrs)
	if err != nil {
		return nil, "", err
	}
	return matched, lastKey, nil
}
