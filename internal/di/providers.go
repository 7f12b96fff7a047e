// Package di wires the backend's components with Google Wire.
package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/wire"
	"go.uber.org/zap"

	"compact-connect-backend/internal/bulkupload"
	"compact-connect-backend/internal/compactconfig"
	"compact-connect-backend/internal/config"
	"compact-connect-backend/internal/dataclient"
	"compact-connect-backend/internal/email"
	"compact-connect-backend/internal/events"
	"compact-connect-backend/internal/infrastructure/awsclients"
	"compact-connect-backend/internal/investigation"
	"compact-connect-backend/internal/listener"
	"compact-connect-backend/internal/observability"
)

// SuperSet is every provider needed to build a Container.
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	ServiceProviders,
	NewContainer,
)

var ConfigProviders = wire.NewSet(
	provideContext,
	provideConfig,
	provideLogger,
	provideMetrics,
	provideTracing,
)

// InfrastructureProviders are the AWS clients.
var InfrastructureProviders = wire.NewSet(
	awsclients.LoadConfig,
	awsclients.NewHTTPClient,
	awsclients.NewDynamoDB,
	awsclients.NewEventBridge,
	awsclients.NewSES,
	awsclients.NewS3Presign,
)

var ServiceProviders = wire.NewSet(
	provideEventPublisher,
	provideDataClient,
	provideCompactConfig,
	provideTemplates,
	provideSender,
	provideInvestigationService,
	providePresigner,
	provideListeners,
)

func provideContext() context.Context {
	return context.Background()
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// provideMetrics returns nil when metrics are disabled; a nil *Metrics
// records nothing.
func provideMetrics(cfg *config.Config) *observability.Metrics {
	if !cfg.Observability.EnableMetrics {
		return nil
	}
	return observability.NewMetrics("compact_connect")
}

func provideTracing(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, error) {
	tp, err := observability.InitTracing(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return tp, nil
}

func provideEventPublisher(client *eventbridge.Client, cfg *config.Config, logger *zap.Logger) *events.Publisher {
	return events.NewPublisher(client, cfg.EventBusName, logger)
}

func provideDataClient(
	db *dynamodb.Client,
	cfg *config.Config,
	logger *zap.Logger,
	publisher *events.Publisher,
	metrics *observability.Metrics,
) *dataclient.Client {
	return dataclient.NewClient(db, cfg, logger,
		dataclient.WithEventPublisher(publisher),
		dataclient.WithMetrics(metrics),
	)
}

func provideCompactConfig(db *dynamodb.Client, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) *compactconfig.Client {
	return compactconfig.NewClient(db, cfg.Tables.CompactConfigurationTableName, logger, metrics)
}

func provideTemplates(cfg *config.Config) (*email.Templates, error) {
	templates, err := email.NewTemplates(cfg.Email.UIBasePathURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile email templates: %w", err)
	}
	return templates, nil
}

// provideSender wraps SES in a circuit breaker so a throttled or failing SES
// fails the remaining sends fast and the messages are redelivered later.
func provideSender(client *sesv2.Client, cfg *config.Config, logger *zap.Logger) email.Sender {
	return email.NewBreakerSender(
		email.NewSESSender(client, cfg.Email.FromAddress, logger),
		email.DefaultBreakerConfig(),
		logger,
	)
}

func provideInvestigationService(
	sender email.Sender,
	jurisdictions *compactconfig.Client,
	templates *email.Templates,
	logger *zap.Logger,
) *email.InvestigationService {
	return email.NewInvestigationService(sender, jurisdictions, templates, logger)
}

func providePresigner(client *s3.PresignClient, cfg *config.Config, logger *zap.Logger) *bulkupload.Presigner {
	return bulkupload.NewPresigner(client, cfg, logger)
}

// Listeners maps each investigation event kind to its SQS batch handler.
type Listeners map[email.Kind]*listener.SQSBatch

func provideListeners(
	records *dataclient.Client,
	notifier *email.InvestigationService,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) Listeners {
	return newListeners(records, notifier, cfg, logger, metrics)
}

func newListeners(
	records investigation.ProviderRecordsReader,
	notifier email.InvestigationNotifier,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) Listeners {
	listeners := make(Listeners, len(email.Kinds))
	for _, kind := range email.Kinds {
		d := investigation.NewDispatcher(kind, records, notifier, cfg, logger, metrics)
		listeners[kind] = listener.NewSQSBatch(string(kind)+"-listener", d.HandleMessage, logger, metrics)
	}
	return listeners
}
