// Package investigation notifies providers and jurisdictions when an
// investigation on a license or privilege is opened or closed.
package investigation

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"compact-connect-backend/internal/config"
	appctx "compact-connect-backend/internal/context"
	"compact-connect-backend/internal/email"
	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/events"
	"compact-connect-backend/internal/observability"
	"compact-connect-backend/internal/schema"
)

// ProviderRecordsReader loads every record in a provider's partition.
type ProviderRecordsReader interface {
	GetProviderUserRecords(ctx context.Context, compact, providerID string) (*schema.ProviderUserRecords, error)
}

// Event is a parsed investigation event.
type Event struct {
	Compact                 string
	ProviderID              string
	Jurisdiction            string
	LicenseTypeAbbreviation string
	LicenseType             string
	InvestigationAgainst    schema.InvestigationAgainst
	InvestigationID         string
	EventTime               string
}

var detailTypes = map[email.Kind]events.DetailType{
	email.LicenseInvestigation:         events.LicenseInvestigation,
	email.LicenseInvestigationClosed:   events.LicenseInvestigationClosed,
	email.PrivilegeInvestigation:       events.PrivilegeInvestigation,
	email.PrivilegeInvestigationClosed: events.PrivilegeInvestigationClosed,
}

var detailValidator = validator.New()

// Dispatcher handles one kind of investigation event.
type Dispatcher struct {
	kind     email.Kind
	records  ProviderRecordsReader
	notifier email.InvestigationNotifier
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

func NewDispatcher(kind email.Kind, records ProviderRecordsReader, notifier email.InvestigationNotifier, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		kind:     kind,
		records:  records,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.Named("investigation").With(zap.String("kind", string(kind))),
		metrics:  metrics,
		tracer:   observability.Tracer("investigation"),
	}
}

func (d *Dispatcher) Kind() email.Kind { return d.kind }

// Parse decodes an SQS message body holding an EventBridge envelope.
func (d *Dispatcher) Parse(body string) (*Event, error) {
	var envelope events.Envelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, invalidEvent("message body is not an event envelope", err.Error())
	}
	if envelope.DetailType != "" && envelope.DetailType != string(detailTypes[d.kind]) {
		return nil, invalidEvent("unexpected detail type", envelope.DetailType)
	}

	var detail events.InvestigationDetail
	if err := json.Unmarshal(envelope.Detail, &detail); err != nil {
		return nil, invalidEvent("event detail is malformed", err.Error())
	}
	if err := detailValidator.Struct(detail); err != nil {
		return nil, invalidEvent("event detail is incomplete", err.Error())
	}
	if !d.cfg.IsCompact(detail.Compact) {
		return nil, invalidEvent("unknown compact", detail.Compact)
	}
	if !d.cfg.IsJurisdiction(detail.Jurisdiction) {
		return nil, invalidEvent("unknown jurisdiction", detail.Jurisdiction)
	}
	against, err := schema.ParseInvestigationAgainst(detail.InvestigationAgainst)
	if err != nil {
		return nil, invalidEvent("invalid investigationAgainst", err.Error())
	}
	if string(against) != d.kind.Noun() {
		return nil, invalidEvent("investigationAgainst does not match the event", detail.InvestigationAgainst)
	}
	licenseType, ok := d.cfg.LicenseTypeByAbbreviation(detail.Compact, detail.LicenseTypeAbbreviation)
	if !ok {
		return nil, invalidEvent("unknown license type", detail.LicenseTypeAbbreviation)
	}

	return &Event{
		Compact:                 detail.Compact,
		ProviderID:              detail.ProviderID,
		Jurisdiction:            detail.Jurisdiction,
		LicenseTypeAbbreviation: licenseType.Abbreviation,
		LicenseType:             licenseType.Name,
		InvestigationAgainst:    against,
		InvestigationID:         detail.InvestigationID,
		EventTime:               detail.EventTime,
	}, nil
}

func invalidEvent(message, details string) error {
	return apperrors.Validation(apperrors.CodeInvalidEvent, message).
		WithDetails(details).
		WithOperation("ParseInvestigationEvent").
		Build()
}

// HandleMessage parses a message body and dispatches its notifications.
func (d *Dispatcher) HandleMessage(ctx context.Context, body string) error {
	event, err := d.Parse(body)
	if err != nil {
		return err
	}
	return d.Dispatch(ctx, event)
}

// Dispatch sends the provider notification, when the provider is registered,
// and one notification per audience jurisdiction. Every send is attempted;
// the returned error reports the ones that failed.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) (err error) {
	ctx, span := d.tracer.Start(ctx, "investigation.Dispatch", trace.WithAttributes(
		attribute.String("kind", string(d.kind)),
		attribute.String("compact", event.Compact),
		attribute.String("jurisdiction", event.Jurisdiction),
	))
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	logger := d.logger.With(
		zap.String("compact", event.Compact),
		zap.String("providerId", event.ProviderID),
		zap.String("jurisdiction", event.Jurisdiction),
		zap.String("investigationId", event.InvestigationID),
	)
	if messageID, ok := appctx.GetMessageIDFromContext(ctx); ok {
		logger = logger.With(zap.String("messageId", messageID))
	}

	records, err := d.records.GetProviderUserRecords(ctx, event.Compact, event.ProviderID)
	if err != nil {
		logger.Error("Failed to load provider records", zap.Error(err))
		return err
	}
	provider := records.Provider()
	audience := Audience(event.Jurisdiction, records, d.cfg.Now())

	vars := email.Variables{
		ProviderFirstName:         provider.GivenName,
		ProviderLastName:          provider.FamilyName,
		InvestigationJurisdiction: event.Jurisdiction,
		LicenseType:               event.LicenseType,
	}

	var failures error
	attempted := len(audience)
	if provider.IsRegistered() {
		attempted++
		sendErr := d.notifier.SendProviderNotification(ctx, d.kind, event.Compact,
			[]string{provider.CompactConnectRegisteredEmailAddress}, vars)
		d.metrics.ObserveNotification(string(d.kind), "provider", sendErr)
		if sendErr != nil {
			logger.Error("Failed to send provider notification", zap.Error(sendErr))
			failures = multierr.Append(failures, sendErr)
		}
	} else {
		logger.Info("Provider is not registered, skipping provider notification")
	}

	stateVars := vars
	stateVars.ProviderID = event.ProviderID
	for _, jurisdiction := range audience {
		sendErr := d.notifier.SendStateNotification(ctx, d.kind, event.Compact, jurisdiction, stateVars)
		d.metrics.ObserveNotification(string(d.kind), "state", sendErr)
		if sendErr != nil {
			logger.Error("Failed to send state notification",
				zap.String("notifiedJurisdiction", jurisdiction),
				zap.Error(sendErr),
			)
			failures = multierr.Append(failures, sendErr)
		}
	}

	if failures != nil {
		return apperrors.External(apperrors.CodeEmailSendFailed, "one or more notifications failed").
			WithOperation("Dispatch").
			WithDetailsf("%d of %d sends failed", len(multierr.Errors(failures)), attempted).
			WithRetryable(true).
			WithCause(failures).
			Build()
	}

	logger.Info("Investigation notifications sent", zap.Strings("jurisdictions", audience))
	return nil
}

// Audience is every jurisdiction to notify: the investigation jurisdiction
// first, then each other jurisdiction where the provider holds an active
// license or privilege, in sorted order.
func Audience(investigationJurisdiction string, records *schema.ProviderUserRecords, now time.Time) []string {
	others := map[string]struct{}{}
	for _, l := range records.ActiveLicenses() {
		others[l.Jurisdiction] = struct{}{}
	}
	for _, p := range records.ActivePrivileges(now) {
		others[p.Jurisdiction] = struct{}{}
	}
	delete(others, investigationJurisdiction)

	rest := make([]string, 0, len(others))
	for j := range others {
		rest = append(rest, j)
	}
	sort.Strings(rest)
	return append([]string{investigationJurisdiction}, rest...)
}
