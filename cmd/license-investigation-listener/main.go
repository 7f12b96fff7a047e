// Package main is the Lambda handler for license investigation events delivered through SQS.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"compact-connect-backend/internal/di"
	"compact-connect-backend/internal/email"
	"compact-connect-backend/internal/listener"
)

var (
	container *di.Container
	batch     *listener.SQSBatch
)

func init() {
	var err error
	container, err = di.InitializeContainer()
	if err != nil {
		log.Fatalf("Failed to initialize DI container: %v", err)
	}
	if err := container.Validate(); err != nil {
		log.Fatalf("Container validation failed: %v", err)
	}

	batch, err = container.Listener(email.LicenseInvestigation)
	if err != nil {
		log.Fatalf("Failed to get listener: %v", err)
	}
}

func handleRequest(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	defer container.Flush(ctx)
	return batch.Handle(ctx, event)
}

func main() {
	lambda.Start(handleRequest)
}
