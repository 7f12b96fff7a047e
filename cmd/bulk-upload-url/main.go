// Package main is the API Lambda that hands a jurisdiction a presigned URL
// for uploading a license file to the bulk bucket.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"compact-connect-backend/internal/di"
)

var container *di.Container

func init() {
	var err error
	container, err = di.InitializeContainer()
	if err != nil {
		log.Fatalf("Failed to initialize DI container: %v", err)
	}
	if container.Presigner == nil {
		log.Fatal("Failed to initialize bulk upload presigner")
	}
}

func handleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	defer container.Flush(ctx)
	return container.Presigner.HandleAPIRequest(ctx, req)
}

func main() {
	lambda.Start(handleRequest)
}
