package investigation_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compact-connect-backend/internal/config"
	"compact-connect-backend/internal/dataclient"
	"compact-connect-backend/internal/email"
	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/events"
	"compact-connect-backend/internal/investigation"
	"compact-connect-backend/internal/listener"
	"compact-connect-backend/internal/observability"
	"compact-connect-backend/internal/schema"
	"compact-connect-backend/internal/testutil/dynamofake"
	"compact-connect-backend/internal/testutil/fixtures"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendProviderNotification(ctx context.Context, kind email.Kind, compact string, recipients []string, vars email.Variables) error {
	return m.Called(ctx, kind, compact, recipients, vars).Error(0)
}

func (m *mockNotifier) SendStateNotification(ctx context.Context, kind email.Kind, compact, jurisdiction string, vars email.Variables) error {
	return m.Called(ctx, kind, compact, jurisdiction, vars).Error(0)
}

type harness struct {
	cfg      *config.Config
	db       *dynamofake.DB
	notifier *mockNotifier
}

func newHarness() *harness {
	cfg := fixtures.Config()
	return &harness{
		cfg:      cfg,
		db:       dynamofake.New(fixtures.TableSchemas(cfg)...),
		notifier: &mockNotifier{},
	}
}

func (h *harness) seed(records ...schema.Record) {
	for _, r := range records {
		h.db.Seed(h.cfg.Tables.ProviderTableName, fixtures.MustItem(r))
	}
}

func (h *harness) dispatcher(kind email.Kind) *investigation.Dispatcher {
	client := dataclient.NewClient(h.db, h.cfg, zap.NewNop())
	return investigation.NewDispatcher(kind, client, h.notifier, h.cfg, zap.NewNop(), observability.NewTestMetrics())
}

func detail(providerID, jurisdiction string, against schema.InvestigationAgainst) events.InvestigationDetail {
	return events.InvestigationDetail{
		Compact:                 "aslp",
		ProviderID:              providerID,
		Jurisdiction:            jurisdiction,
		LicenseTypeAbbreviation: "slp",
		EventTime:               "2024-11-08T23:59:59Z",
		InvestigationAgainst:    string(against),
		InvestigationID:         "5b1a9c36-0c6e-4a9f-9e53-3c64a1e6e2d1",
	}
}

func body(t *testing.T, detailType events.DetailType, d any) string {
	t.Helper()
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	envelope, err := json.Marshal(events.Envelope{
		Version:    "0",
		ID:         "b5bb5e6c-bf2b-4f1e-9d6c-0a7bbd1c0f6e",
		DetailType: string(detailType),
		Source:     events.Source,
		Time:       "2024-11-08T23:59:59Z",
		Region:     "us-east-1",
		Detail:     raw,
	})
	require.NoError(t, err)
	return string(envelope)
}

// seedProvider stores a registered provider with an active home license in
// oh, an inactive license in ky, an active privilege in ne and an expired
// privilege in al.
func (h *harness) seedProvider(registered bool) *schema.Provider {
	builder := fixtures.NewProviderBuilder().WithPrivilegeJurisdictions("ne", "al")
	if !registered {
		builder = builder.Unregistered()
	}
	provider := builder.Build()
	h.seed(
		provider,
		fixtures.NewLicenseBuilder().ForProvider(provider).Build(),
		fixtures.NewLicenseBuilder().ForProvider(provider).WithJurisdiction("ky").WithStatus(schema.StatusInactive).Build(),
		fixtures.NewPrivilegeBuilder().ForProvider(provider).Build(),
		fixtures.NewPrivilegeBuilder().ForProvider(provider).WithJurisdiction("al").WithExpiration("2024-01-01").Build(),
	)
	return provider
}

func TestDispatch_NotifiesProviderAndAudience(t *testing.T) {
	h := newHarness()
	provider := h.seedProvider(true)

	vars := email.Variables{
		ProviderFirstName:         provider.GivenName,
		ProviderLastName:          provider.FamilyName,
		InvestigationJurisdiction: "ky",
		LicenseType:               fixtures.DefaultLicenseType,
	}
	stateVars := vars
	stateVars.ProviderID = provider.ProviderID

	var notified []string
	h.notifier.On("SendProviderNotification", mock.Anything, email.LicenseInvestigation, "aslp",
		[]string{fixtures.DefaultRegisteredEmail}, vars).Return(nil).Once()
	h.notifier.On("SendStateNotification", mock.Anything, email.LicenseInvestigation, "aslp", mock.Anything, stateVars).
		Run(func(args mock.Arguments) { notified = append(notified, args.String(3)) }).
		Return(nil)

	err := h.dispatcher(email.LicenseInvestigation).
		HandleMessage(context.Background(), body(t, events.LicenseInvestigation, detail(provider.ProviderID, "ky", schema.InvestigationAgainstLicense)))
	require.NoError(t, err)

	assert.Equal(t, []string{"ky", "ne", "oh"}, notified)
	h.notifier.AssertExpectations(t)
}

func TestDispatch_InvestigationJurisdictionIsNotRepeated(t *testing.T) {
	h := newHarness()
	provider := h.seedProvider(true)

	var notified []string
	h.notifier.On("SendProviderNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.notifier.On("SendStateNotification", mock.Anything, email.PrivilegeInvestigationClosed, "aslp", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { notified = append(notified, args.String(3)) }).
		Return(nil)

	err := h.dispatcher(email.PrivilegeInvestigationClosed).
		HandleMessage(context.Background(), body(t, events.PrivilegeInvestigationClosed, detail(provider.ProviderID, "ne", schema.InvestigationAgainstPrivilege)))
	require.NoError(t, err)
	assert.Equal(t, []string{"ne", "oh"}, notified)
}

func TestDispatch_UnregisteredProvider(t *testing.T) {
	h := newHarness()
	provider := h.seedProvider(false)

	h.notifier.On("SendStateNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := h.dispatcher(email.LicenseInvestigationClosed).
		HandleMessage(context.Background(), body(t, events.LicenseInvestigationClosed, detail(provider.ProviderID, "oh", schema.InvestigationAgainstLicense)))
	require.NoError(t, err)

	h.notifier.AssertNotCalled(t, "SendProviderNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	h.notifier.AssertNumberOfCalls(t, "SendStateNotification", 2)
}

func TestDispatch_SendFailureDoesNotStopOtherSends(t *testing.T) {
	h := newHarness()
	provider := h.seedProvider(true)

	h.notifier.On("SendProviderNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("SES service error"))
	h.notifier.On("SendStateNotification", mock.Anything, mock.Anything, mock.Anything, "ne", mock.Anything).
		Return(errors.New("SES service error"))
	h.notifier.On("SendStateNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := h.dispatcher(email.LicenseInvestigation).
		HandleMessage(context.Background(), body(t, events.LicenseInvestigation, detail(provider.ProviderID, "ky", schema.InvestigationAgainstLicense)))
	require.Error(t, err)
	assert.True(t, apperrors.IsExternal(err))
	assert.Equal(t, apperrors.CodeEmailSendFailed, apperrors.Code(err))

	h.notifier.AssertNumberOfCalls(t, "SendProviderNotification", 1)
	h.notifier.AssertNumberOfCalls(t, "SendStateNotification", 3)
}

func TestDispatch_MissingProvider(t *testing.T) {
	h := newHarness()

	err := h.dispatcher(email.LicenseInvestigation).
		HandleMessage(context.Background(), body(t, events.LicenseInvestigation, detail(fixtures.DefaultProviderID, "oh", schema.InvestigationAgainstLicense)))
	assert.True(t, apperrors.IsNotFound(err))
	h.notifier.AssertNotCalled(t, "SendStateNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestParse_RejectsMalformedEvents(t *testing.T) {
	h := newHarness()
	d := h.dispatcher(email.LicenseInvestigation)

	valid := detail(fixtures.DefaultProviderID, "oh", schema.InvestigationAgainstLicense)
	mutate := func(f func(*events.InvestigationDetail)) events.InvestigationDetail {
		d := valid
		f(&d)
		return d
	}

	tests := []struct {
		name string
		body string
	}{
		{name: "not JSON", body: "{"},
		{name: "detail is not an object", body: body(t, events.LicenseInvestigation, []string{"oh"})},
		{name: "wrong detail type", body: body(t, events.PrivilegeInvestigation, valid)},
		{name: "missing provider id", body: body(t, events.LicenseInvestigation, mutate(func(d *events.InvestigationDetail) { d.ProviderID = "" }))},
		{name: "bad event time", body: body(t, events.LicenseInvestigation, mutate(func(d *events.InvestigationDetail) { d.EventTime = "yesterday" }))},
		{name: "unknown compact", body: body(t, events.LicenseInvestigation, mutate(func(d *events.InvestigationDetail) { d.Compact = "nope" }))},
		{name: "unknown jurisdiction", body: body(t, events.LicenseInvestigation, mutate(func(d *events.InvestigationDetail) { d.Jurisdiction = "zz" }))},
		{name: "bad investigationAgainst", body: body(t, events.LicenseInvestigation, mutate(func(d *events.InvestigationDetail) { d.InvestigationAgainst = "provider" }))},
		{name: "privilege event on license listener", body: body(t, events.LicenseInvestigation, mutate(func(d *events.InvestigationDetail) {
			d.InvestigationAgainst = string(schema.InvestigationAgainstPrivilege)
		}))},
		{name: "unknown license type", body: body(t, events.LicenseInvestigation, mutate(func(d *events.InvestigationDetail) { d.LicenseTypeAbbreviation = "ot" }))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Parse(tt.body)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
			assert.Equal(t, apperrors.CodeInvalidEvent, apperrors.Code(err))
		})
	}

	t.Run("valid", func(t *testing.T) {
		event, err := d.Parse(body(t, events.LicenseInvestigation, valid))
		require.NoError(t, err)
		assert.Equal(t, fixtures.DefaultLicenseType, event.LicenseType)
		assert.Equal(t, schema.InvestigationAgainstLicense, event.InvestigationAgainst)
	})

	// Messages sent straight to the queue carry only the detail.
	t.Run("missing detail type", func(t *testing.T) {
		event, err := d.Parse(body(t, "", valid))
		require.NoError(t, err)
		assert.Equal(t, fixtures.DefaultProviderID, event.ProviderID)

		raw, err := json.Marshal(map[string]any{"detail": valid})
		require.NoError(t, err)
		_, err = d.Parse(string(raw))
		require.NoError(t, err)

		privilege := mutate(func(d *events.InvestigationDetail) {
			d.InvestigationAgainst = string(schema.InvestigationAgainstPrivilege)
		})
		_, err = d.Parse(body(t, "", privilege))
		assert.Equal(t, apperrors.CodeInvalidEvent, apperrors.Code(err), "investigationAgainst still selects the listener")
	})
}

func TestListener_IsolatesFailedMessages(t *testing.T) {
	h := newHarness()
	provider := h.seedProvider(true)
	h.notifier.On("SendProviderNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.notifier.On("SendStateNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	d := h.dispatcher(email.LicenseInvestigation)
	batch := listener.NewSQSBatch("license-investigation", d.HandleMessage, zap.NewNop(), nil)

	missing := detail("0b6c2a4e-7d1f-4c3b-8a5e-9f2d1c0b3a4e", "oh", schema.InvestigationAgainstLicense)
	response, err := batch.Handle(context.Background(), lambdaevents.SQSEvent{Records: []lambdaevents.SQSMessage{
		{MessageId: "missing-provider", Body: body(t, events.LicenseInvestigation, missing)},
		{MessageId: "ok", Body: body(t, events.LicenseInvestigation, detail(provider.ProviderID, "oh", schema.InvestigationAgainstLicense))},
		{MessageId: "garbage", Body: "not json"},
	}})
	require.NoError(t, err)

	assert.ElementsMatch(t, []lambdaevents.SQSBatchItemFailure{
		{ItemIdentifier: "missing-provider"},
		{ItemIdentifier: "garbage"},
	}, response.BatchItemFailures)
	h.notifier.AssertNumberOfCalls(t, "SendProviderNotification", 1)
}

func TestAudience(t *testing.T) {
	provider := fixtures.NewProviderBuilder().Build()
	records, err := schema.NewProviderUserRecords([]schema.Record{
		provider,
		fixtures.NewLicenseBuilder().ForProvider(provider).Build(),
		fixtures.NewPrivilegeBuilder().ForProvider(provider).WithJurisdiction("co").Build(),
		fixtures.NewPrivilegeBuilder().ForProvider(provider).WithJurisdiction("al").Build(),
		fixtures.NewPrivilegeBuilder().ForProvider(provider).WithJurisdiction("ky").
			WithAdministratorSetStatus(schema.StatusInactive).Build(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ne", "al", "co", "oh"}, investigation.Audience("ne", records, fixtures.DefaultNow))
	assert.Equal(t, []string{"oh", "al", "co"}, investigation.Audience("oh", records, fixtures.DefaultNow))
}
