package listener

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appctx "compact-connect-backend/internal/context"
	"compact-connect-backend/internal/observability"
)

func batch(bodies ...string) events.SQSEvent {
	var event events.SQSEvent
	for i, body := range bodies {
		event.Records = append(event.Records, events.SQSMessage{
			MessageId: string(rune('a' + i)),
			Body:      body,
		})
	}
	return event
}

func TestSQSBatch_ReportsOnlyFailedRecords(t *testing.T) {
	var handled atomic.Int32
	handler := func(_ context.Context, body string) error {
		handled.Add(1)
		switch body {
		case "fail":
			return errors.New("provider not found")
		case "panic":
			panic("unexpected nil record")
		}
		return nil
	}

	core, logs := observer.New(zap.ErrorLevel)
	b := NewSQSBatch("test-listener", handler, zap.New(core), observability.NewTestMetrics())

	response, err := b.Handle(context.Background(), batch("ok", "fail", "ok", "panic", "ok"))
	require.NoError(t, err)

	assert.Equal(t, int32(5), handled.Load())
	assert.Equal(t, []events.SQSBatchItemFailure{
		{ItemIdentifier: "b"},
		{ItemIdentifier: "d"},
	}, response.BatchItemFailures)
	assert.Equal(t, 1, logs.FilterMessage("Recovered from panic while processing message").Len())
}

func TestSQSBatch_AllSucceed(t *testing.T) {
	b := NewSQSBatch("test-listener", func(context.Context, string) error { return nil }, zap.NewNop(), nil).
		WithConcurrency(1)

	response, err := b.Handle(context.Background(), batch("ok", "ok"))
	require.NoError(t, err)
	assert.NotNil(t, response.BatchItemFailures)
	assert.Empty(t, response.BatchItemFailures)
}

func TestSQSBatch_PassesMessageID(t *testing.T) {
	var seen []string
	handler := func(ctx context.Context, _ string) error {
		id, _ := appctx.GetMessageIDFromContext(ctx)
		seen = append(seen, id)
		return nil
	}

	b := NewSQSBatch("test-listener", handler, zap.NewNop(), nil).WithConcurrency(1)
	_, err := b.Handle(context.Background(), batch("ok", "ok", "ok"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}
