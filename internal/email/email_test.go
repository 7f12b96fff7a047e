package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compact-connect-backend/internal/compactconfig"
	apperrors "compact-connect-backend/internal/errors"
)

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sesv2.SendEmailOutput)
	return out, args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

type stubJurisdictions map[string]*compactconfig.Jurisdiction

func (s stubJurisdictions) GetJurisdiction(_ context.Context, compact, jurisdiction string) (*compactconfig.Jurisdiction, error) {
	if j, ok := s[compact+"/"+jurisdiction]; ok {
		return j, nil
	}
	return nil, apperrors.NotFound(apperrors.CodeJurisdictionNotFound, "jurisdiction configuration not found").Build()
}

var johnDoe = Variables{
	ProviderFirstName:         "John",
	ProviderLastName:          "Doe",
	InvestigationJurisdiction: "oh",
	LicenseType:               "Audiologist",
}

func newService(t *testing.T, sender Sender) *InvestigationService {
	t.Helper()
	templates, err := NewTemplates("https://app.test.compactconnect.org")
	require.NoError(t, err)
	jurisdictions := stubJurisdictions{
		"aslp/oh": {Compact: "aslp", PostalAbbreviation: "oh", JurisdictionAdverseActionsNotificationEmails: []string{"oh-adverse@example.com"}},
		"aslp/ne": {Compact: "aslp", PostalAbbreviation: "ne"},
	}
	return NewInvestigationService(sender, jurisdictions, templates, zap.NewNop())
}

func TestSESSender(t *testing.T) {
	client := &mockSES{}
	var captured *sesv2.SendEmailInput
	client.On("SendEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*sesv2.SendEmailInput) }).
		Return(&sesv2.SendEmailOutput{MessageId: aws.String("message-id-123")}, nil)

	sender := NewSESSender(client, "noreply@example.org", zap.NewNop())
	err := sender.Send(context.Background(), Message{
		To:       []string{"provider@example.com"},
		Subject:  "Subject",
		HTMLBody: "<p>Body</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "Compact Connect <noreply@example.org>", aws.ToString(captured.FromEmailAddress))
	assert.Equal(t, []string{"provider@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "Subject", aws.ToString(captured.Content.Simple.Subject.Data))
	assert.Equal(t, "UTF-8", aws.ToString(captured.Content.Simple.Body.Html.Charset))

	t.Run("SES failure", func(t *testing.T) {
		failing := &mockSES{}
		failing.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("SES service error"))
		err := NewSESSender(failing, "noreply@example.org", zap.NewNop()).
			Send(context.Background(), Message{To: []string{"a@example.com"}})
		assert.True(t, apperrors.IsExternal(err))
		assert.Equal(t, apperrors.CodeEmailSendFailed, apperrors.Code(err))
	})
}

func TestSendProviderNotification(t *testing.T) {
	subjects := map[Kind]string{
		LicenseInvestigation:         "Your Audiologist license in Ohio is under investigation",
		LicenseInvestigationClosed:   "The investigation on your Audiologist license in Ohio has been closed",
		PrivilegeInvestigation:       "Your Audiologist privilege in Ohio is under investigation",
		PrivilegeInvestigationClosed: "The investigation on your Audiologist privilege in Ohio has been closed",
	}
	for kind, subject := range subjects {
		t.Run(string(kind), func(t *testing.T) {
			sender := &mockSender{}
			sender.On("Send", mock.Anything, mock.MatchedBy(func(msg Message) bool {
				return msg.Subject == subject &&
					assert.ObjectsAreEqual([]string{"provider@example.com"}, msg.To) &&
					strings.Contains(msg.HTMLBody, subject)
			})).Return(nil).Once()

			err := newService(t, sender).SendProviderNotification(context.Background(), kind, "aslp", []string{"provider@example.com"}, johnDoe)
			require.NoError(t, err)
			sender.AssertExpectations(t)
		})
	}

	t.Run("no recipients", func(t *testing.T) {
		sender := &mockSender{}
		svc := newService(t, sender)

		err := svc.SendProviderNotification(context.Background(), LicenseInvestigation, "aslp", nil, johnDoe)
		require.Error(t, err)
		assert.Equal(t, "No recipients specified for provider license investigation notification email", apperrors.PublicMessage(err))

		err = svc.SendProviderNotification(context.Background(), PrivilegeInvestigationClosed, "aslp", nil, johnDoe)
		assert.Equal(t, "No recipients specified for provider privilege investigation closed notification email", apperrors.PublicMessage(err))
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}

func TestSendStateNotification(t *testing.T) {
	vars := johnDoe
	vars.ProviderID = "89a6377e-c3a5-40e5-bca5-317ec854c570"

	tests := []struct {
		kind    Kind
		subject string
		body    string
	}{
		{LicenseInvestigation, "John Doe holding Audiologist license in Ohio is under investigation", "holding a <em>Audiologist</em> license in Ohio is under investigation"},
		{LicenseInvestigationClosed, "Investigation on John Doe's Audiologist license in Ohio has been closed", "holding a <em>Audiologist</em> license in Ohio has been closed"},
		{PrivilegeInvestigation, "John Doe holding Audiologist privilege in Ohio is under investigation", "holding a <em>Audiologist</em> privilege in Ohio is under investigation"},
		{PrivilegeInvestigationClosed, "Investigation on John Doe's Audiologist privilege in Ohio has been closed", "holding a <em>Audiologist</em> privilege in Ohio has been closed"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			sender := &mockSender{}
			var sent Message
			sender.On("Send", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { sent = args.Get(1).(Message) }).
				Return(nil).Once()

			err := newService(t, sender).SendStateNotification(context.Background(), tt.kind, "aslp", "oh", vars)
			require.NoError(t, err)

			assert.Equal(t, []string{"oh-adverse@example.com"}, sent.To)
			assert.Equal(t, tt.subject, sent.Subject)
			assert.Contains(t, sent.HTMLBody, tt.body)
			assert.Contains(t, sent.HTMLBody, "https://app.test.compactconnect.org/aslp/Licensing/"+vars.ProviderID)
		})
	}

	t.Run("jurisdiction without contacts is skipped", func(t *testing.T) {
		sender := &mockSender{}
		err := newService(t, sender).SendStateNotification(context.Background(), LicenseInvestigation, "aslp", "ne", vars)
		require.NoError(t, err)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("unconfigured jurisdiction is skipped", func(t *testing.T) {
		sender := &mockSender{}
		err := newService(t, sender).SendStateNotification(context.Background(), LicenseInvestigation, "aslp", "ky", vars)
		require.NoError(t, err)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("send failure is returned", func(t *testing.T) {
		sender := &mockSender{}
		sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("SES service error"))
		err := newService(t, sender).SendStateNotification(context.Background(), LicenseInvestigation, "aslp", "oh", vars)
		assert.EqualError(t, err, "SES service error")
	})
}

func TestTemplates_EscapeNames(t *testing.T) {
	templates, err := NewTemplates("")
	require.NoError(t, err)

	msg, err := templates.render(LicenseInvestigation, toState, "aslp", Variables{
		ProviderFirstName:         "<script>",
		ProviderLastName:          "Doe",
		InvestigationJurisdiction: "oh",
		LicenseType:               "Audiologist",
		ProviderID:                "89a6377e-c3a5-40e5-bca5-317ec854c570",
	})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.NotContains(t, msg.HTMLBody, "Licensing/")
}

func TestBreakerSender(t *testing.T) {
	next := &mockSender{}
	next.On("Send", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	cfg := DefaultBreakerConfig()
	b := NewBreakerSender(next, cfg, zap.NewNop())
	msg := Message{To: []string{"a@example.com"}}

	for i := 0; i < int(cfg.MinRequests); i++ {
		assert.EqualError(t, b.Send(context.Background(), msg), "throttled")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Send(context.Background(), msg)
	assert.True(t, apperrors.IsExternal(err))
	assert.True(t, apperrors.IsRetryable(err))
	next.AssertNumberOfCalls(t, "Send", int(cfg.MinRequests))
}

func TestBreakerSender_NoRecipientsDoesNotTrip(t *testing.T) {
	next := &mockSender{}
	next.On("Send", mock.Anything, mock.Anything).
		Return(apperrors.Validation(apperrors.CodeEmailNoRecipients, "no recipients specified").Build())

	b := NewBreakerSender(next, DefaultBreakerConfig(), zap.NewNop())
	for i := 0; i < 10; i++ {
		assert.True(t, apperrors.IsValidation(b.Send(context.Background(), Message{})))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
