package di

import (
	"context"
	"testing"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compact-connect-backend/internal/compactconfig"
	"compact-connect-backend/internal/dataclient"
	"compact-connect-backend/internal/email"
	"compact-connect-backend/internal/testutil/dynamofake"
	"compact-connect-backend/internal/testutil/fixtures"
)

type nopSender struct{}

func (nopSender) Send(context.Context, email.Message) error { return nil }

func setEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT_NAME", "test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("PROVIDER_TABLE_NAME", "provider-table")
	t.Setenv("SSN_TABLE_NAME", "ssn-table")
	t.Setenv("COMPACT_CONFIGURATION_TABLE_NAME", "compact-configuration-table")
	t.Setenv("FROM_ADDRESS", "noreply@compactconnect.org")
	t.Setenv("UI_BASE_PATH_URL", "https://app.test.compactconnect.org")
	t.Setenv("COMPACTS", `["aslp"]`)
	t.Setenv("JURISDICTIONS", `["oh","ne","ky"]`)
	t.Setenv("LICENSE_TYPES", `{"aslp":[{"name":"audiologist","abbreviation":"aud"}]}`)
	t.Setenv("ENABLE_TRACING", "false")
	t.Setenv("ENABLE_METRICS", "false")
}

func TestInitializeContainer(t *testing.T) {
	setEnvironment(t)

	container, err := InitializeContainer()
	require.NoError(t, err)
	require.NoError(t, container.Validate())

	for _, kind := range email.Kinds {
		l, err := container.Listener(kind)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
	assert.Nil(t, container.Metrics)
	assert.Nil(t, container.Tracing)
	assert.NoError(t, container.Shutdown(context.Background()))
}

func TestInitializeContainer_InvalidConfig(t *testing.T) {
	setEnvironment(t)
	t.Setenv("JURISDICTIONS", `["ohio"]`)

	_, err := InitializeContainer()
	assert.ErrorContains(t, err, "failed to load config")
}

func TestListeners_RouteEachKind(t *testing.T) {
	cfg := fixtures.Config()
	db := dynamofake.New(fixtures.TableSchemas(cfg)...)
	templates, err := email.NewTemplates(cfg.Email.UIBasePathURL)
	require.NoError(t, err)

	notifier := email.NewInvestigationService(nopSender{},
		compactconfig.NewClient(db, cfg.Tables.CompactConfigurationTableName, zap.NewNop(), nil),
		templates, zap.NewNop())
	listeners := newListeners(dataclient.NewClient(db, cfg, zap.NewNop()), notifier, cfg, zap.NewNop(), nil)
	require.Len(t, listeners, len(email.Kinds))

	// A license event sent to the privilege listener is rejected before any
	// provider lookup.
	body := `{"detail-type":"license.investigation","detail":{}}`
	response, err := listeners[email.PrivilegeInvestigation].Handle(context.Background(), lambdaevents.SQSEvent{
		Records: []lambdaevents.SQSMessage{{MessageId: "m-1", Body: body}},
	})
	require.NoError(t, err)
	assert.Equal(t, []lambdaevents.SQSBatchItemFailure{{ItemIdentifier: "m-1"}}, response.BatchItemFailures)
	assert.Zero(t, db.Calls("Query"))
}
