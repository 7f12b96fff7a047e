package di

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"compact-connect-backend/internal/bulkupload"
	"compact-connect-backend/internal/config"
	"compact-connect-backend/internal/dataclient"
	"compact-connect-backend/internal/email"
	"compact-connect-backend/internal/listener"
	"compact-connect-backend/internal/observability"
)

// Container holds the components a Lambda entry point needs. It is built
// once per cold start.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Tracing    *observability.TracerProvider
	DataClient *dataclient.Client
	Notifier   *email.InvestigationService
	Presigner  *bulkupload.Presigner
	Listeners  Listeners

	ColdStart time.Time
}

func NewContainer(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
	tracing *observability.TracerProvider,
	dataClient *dataclient.Client,
	notifier *email.InvestigationService,
	presigner *bulkupload.Presigner,
	listeners Listeners,
) *Container {
	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Tracing:    tracing,
		DataClient: dataClient,
		Notifier:   notifier,
		Presigner:  presigner,
		Listeners:  listeners,
		ColdStart:  time.Now(),
	}
	logger.Info("Container initialized",
		zap.String("environment", string(cfg.Environment)),
		zap.Bool("metrics", metrics != nil),
		zap.Bool("tracing", tracing != nil),
	)
	return c
}

// Validate checks that the components every entry point relies on are set.
func (c *Container) Validate() error {
	switch {
	case c.Config == nil:
		return fmt.Errorf("config not loaded")
	case c.Logger == nil:
		return fmt.Errorf("logger not initialized")
	case c.DataClient == nil:
		return fmt.Errorf("data client not initialized")
	case c.Notifier == nil:
		return fmt.Errorf("investigation notifier not initialized")
	}
	for _, kind := range email.Kinds {
		if c.Listeners[kind] == nil {
			return fmt.Errorf("no listener for %s", kind)
		}
	}
	return nil
}

// Listener returns the SQS batch handler for an investigation event kind.
func (c *Container) Listener(kind email.Kind) (*listener.SQSBatch, error) {
	l, ok := c.Listeners[kind]
	if !ok {
		return nil, fmt.Errorf("no listener for %s", kind)
	}
	return l, nil
}

// Flush exports buffered spans and log entries at the end of an invocation.
func (c *Container) Flush(ctx context.Context) {
	if err := c.Tracing.ForceFlush(ctx); err != nil {
		c.Logger.Warn("Failed to flush traces", zap.Error(err))
	}
	_ = c.Logger.Sync()
}

func (c *Container) Shutdown(ctx context.Context) error {
	c.Logger.Info("Shutting down container", zap.Duration("uptime", time.Since(c.ColdStart)))
	_ = c.Logger.Sync()
	return c.Tracing.Shutdown(ctx)
}
