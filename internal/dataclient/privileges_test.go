package dataclient_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compact-connect-backend/internal/dataclient"
	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/events"
	"compact-connect-backend/internal/schema"
	"compact-connect-backend/internal/testutil/fixtures"
)

func purchase(provider *schema.Provider, jurisdictions ...string) dataclient.PrivilegePurchase {
	return dataclient.PrivilegePurchase{
		Compact:               provider.Compact,
		ProviderID:            provider.ProviderID,
		Provider:              provider,
		Jurisdictions:         jurisdictions,
		LicenseExpirationDate: "2026-04-04",
		CompactTransactionID:  "txn-0987654321",
		LicenseType:           fixtures.DefaultLicenseType,
		Attestations: []schema.Attestation{
			{AttestationID: "jurisprudence-confirmation", Version: "2"},
		},
	}
}

func TestCreateProviderPrivileges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	provider := fixtures.NewProviderBuilder().WithPrivilegeJurisdictions("ne").Build()
	existing := fixtures.NewPrivilegeBuilder().ForProvider(provider).Build()
	h.seed(provider, fixtures.NewLicenseBuilder().ForProvider(provider).Build(), existing)

	p := purchase(provider, "ne", "ky", "co")
	p.ExistingPrivileges = []*schema.Privilege{existing}
	created, err := h.client.CreateProviderPrivileges(ctx, p)
	require.NoError(t, err)
	require.Len(t, created, 3)

	records, err := h.client.GetProviderUserRecords(ctx, "aslp", provider.ProviderID)
	require.NoError(t, err)

	t.Run("renewal keeps identity", func(t *testing.T) {
		renewed, ok := records.Privilege("ne", "slp")
		require.True(t, ok)
		assert.Equal(t, existing.PrivilegeID, renewed.PrivilegeID)
		assert.True(t, existing.DateOfIssuance.Equal(renewed.DateOfIssuance))
		assert.True(t, fixtures.DefaultNow.Equal(renewed.DateOfRenewal))
		assert.Equal(t, schema.Date("2026-04-04"), renewed.DateOfExpiration)

		history := records.PrivilegeUpdates("ne", "slp")
		require.Len(t, history, 1)
		assert.Equal(t, schema.UpdateTypeRenewal, history[0].UpdateType)
		assert.Equal(t, "2025-04-04", history[0].Previous["dateOfExpiration"])
		assert.Equal(t, "2026-04-04", history[0].UpdatedValues["dateOfExpiration"])
	})

	t.Run("new privileges are numbered", func(t *testing.T) {
		ky, ok := records.Privilege("ky", "slp")
		require.True(t, ok)
		co, ok := records.Privilege("co", "slp")
		require.True(t, ok)
		assert.Equal(t, "SLP-KY-1", ky.PrivilegeID)
		assert.Equal(t, "SLP-CO-2", co.PrivilegeID)
		assert.Equal(t, "oh", ky.LicenseJurisdiction)
		assert.Equal(t, schema.StatusActive, ky.Status(fixtures.DefaultNow))

		history := records.PrivilegeUpdates("ky", "slp")
		require.Len(t, history, 1)
		assert.Equal(t, schema.UpdateTypeIssuance, history[0].UpdateType)
	})

	t.Run("provider gains jurisdictions", func(t *testing.T) {
		updated := records.Provider()
		assert.ElementsMatch(t, []string{"ne", "ky", "co"}, updated.PrivilegeJurisdictions)
		assert.True(t, fixtures.DefaultNow.Equal(updated.DateOfUpdate))
	})

	t.Run("events are published", func(t *testing.T) {
		published := h.publisher.published()
		require.Len(t, published, 3)
		for _, e := range published {
			assert.Equal(t, events.PrivilegePurchase, e.DetailType)
		}
	})

	t.Run("numbers continue across purchases", func(t *testing.T) {
		again, err := h.client.CreateProviderPrivileges(ctx, purchase(provider, "al"))
		require.NoError(t, err)
		assert.Equal(t, "SLP-AL-3", again[0].PrivilegeID)
	})
}

func TestCreateProviderPrivileges_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	provider := fixtures.NewProviderBuilder().Build()
	h.seed(provider)

	tests := []struct {
		name   string
		mutate func(p *dataclient.PrivilegePurchase)
	}{
		{name: "no jurisdictions", mutate: func(p *dataclient.PrivilegePurchase) { p.Jurisdictions = nil }},
		{name: "duplicate jurisdictions", mutate: func(p *dataclient.PrivilegePurchase) { p.Jurisdictions = []string{"ne", "ne"} }},
		{name: "home jurisdiction", mutate: func(p *dataclient.PrivilegePurchase) { p.Jurisdictions = []string{"oh"} }},
		{name: "unknown jurisdiction", mutate: func(p *dataclient.PrivilegePurchase) { p.Jurisdictions = []string{"zz"} }},
		{name: "unknown license type", mutate: func(p *dataclient.PrivilegePurchase) { p.LicenseType = "astronaut" }},
		{name: "missing provider", mutate: func(p *dataclient.PrivilegePurchase) { p.Provider = nil }},
		{name: "bad expiration", mutate: func(p *dataclient.PrivilegePurchase) { p.LicenseExpirationDate = "04/04/2026" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := purchase(provider, "ne")
			tt.mutate(&p)
			_, err := h.client.CreateProviderPrivileges(ctx, p)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}

	assert.Zero(t, h.db.Calls("UpdateItem"), "no privilege numbers are claimed for an invalid purchase")
	assert.Zero(t, h.db.Calls("TransactWriteItems"))
}

func TestCreateProviderPrivileges_AllOrNothing(t *testing.T) {
	ctx := context.Background()

	t.Run("missing provider record", func(t *testing.T) {
		h := newHarness(t)
		provider := fixtures.NewProviderBuilder().Build()
		h.seed(fixtures.NewLicenseBuilder().ForProvider(provider).Build())

		_, err := h.client.CreateProviderPrivileges(ctx, purchase(provider, "ne", "ky"))
		require.Error(t, err)
		assert.True(t, apperrors.IsExternal(err))
		assert.Equal(t, apperrors.CodeTransactionFailed, apperrors.Code(err))

		for _, item := range h.db.Items(h.cfg.Tables.ProviderTableName) {
			if rt, ok := item[schema.AttrType].(*types.AttributeValueMemberS); ok {
				assert.NotEqual(t, string(schema.RecordTypePrivilege), rt.Value)
			}
		}
		assert.Empty(t, h.publisher.published())
	})

	t.Run("missing home license", func(t *testing.T) {
		h := newHarness(t)
		provider := fixtures.NewProviderBuilder().Build()
		h.seed(provider)

		_, err := h.client.CreateProviderPrivileges(ctx, purchase(provider, "ky"))
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err), "got %v", err)
		assert.Equal(t, apperrors.CodeInvalidPurchase, apperrors.Code(err))

		records, err := h.client.GetProviderUserRecords(ctx, "aslp", provider.ProviderID)
		require.NoError(t, err)
		assert.Empty(t, records.Licenses())
		assert.Empty(t, records.Privileges())
		assert.Empty(t, records.PrivilegeUpdates("ky", "slp"))
		assert.Equal(t, []string{"ne"}, records.Provider().PrivilegeJurisdictions)
		assert.Empty(t, h.publisher.published())
	})

	t.Run("license of another type", func(t *testing.T) {
		h := newHarness(t)
		provider := fixtures.NewProviderBuilder().Build()
		h.seed(provider, fixtures.NewLicenseBuilder().ForProvider(provider).WithLicenseType("audiologist", "aud").Build())

		_, err := h.client.CreateProviderPrivileges(ctx, purchase(provider, "ky"))
		assert.True(t, apperrors.IsValidation(err), "got %v", err)
		assert.Equal(t, apperrors.CodeInvalidPurchase, apperrors.Code(err))
	})

	t.Run("transaction failure", func(t *testing.T) {
		h := newHarness(t)
		provider := fixtures.NewProviderBuilder().Build()
		h.seed(provider)
		h.db.FailNext("TransactWriteItems", errors.New("connection reset"))

		_, err := h.client.CreateProviderPrivileges(ctx, purchase(provider, "ne"))
		assert.True(t, apperrors.IsExternal(err))

		records, err := h.client.GetProviderUserRecords(ctx, "aslp", provider.ProviderID)
		require.NoError(t, err)
		assert.Empty(t, records.Privileges())
		assert.Equal(t, []string{"ne"}, records.Provider().PrivilegeJurisdictions)
	})

	t.Run("counter failure", func(t *testing.T) {
		h := newHarness(t)
		provider := fixtures.NewProviderBuilder().Build()
		h.seed(provider)
		h.db.FailNext("UpdateItem", errors.New("throttled"))

		_, err := h.client.CreateProviderPrivileges(ctx, purchase(provider, "ne"))
		assert.True(t, apperrors.IsExternal(err))
		assert.Zero(t, h.db.Calls("TransactWriteItems"))
	})
}

func TestDeactivatePrivilege(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	provider := fixtures.NewProviderBuilder().Build()
	h.seed(provider, fixtures.NewPrivilegeBuilder().ForProvider(provider).Build())

	deactivation := dataclient.PrivilegeDeactivation{
		Compact:                 "aslp",
		ProviderID:              provider.ProviderID,
		Jurisdiction:            "ne",
		LicenseTypeAbbreviation: "slp",
		Details: schema.DeactivationDetails{
			Note:                       "Board order 2024-17",
			DeactivatedByStaffUserID:   "a4182428-d061-701c-82e5-a3d1d547d797",
			DeactivatedByStaffUserName: "Joe Dokes",
		},
	}
	require.NoError(t, h.client.DeactivatePrivilege(ctx, deactivation))

	records, err := h.client.GetProviderUserRecords(ctx, "aslp", provider.ProviderID)
	require.NoError(t, err)
	privilege, ok := records.Privilege("ne", "slp")
	require.True(t, ok)
	assert.Equal(t, schema.StatusInactive, privilege.AdministratorSetStatus)
	assert.Equal(t, schema.StatusInactive, privilege.Status(fixtures.DefaultNow))

	history := records.PrivilegeUpdates("ne", "slp")
	require.Len(t, history, 1)
	assert.Equal(t, schema.UpdateTypeDeactivation, history[0].UpdateType)
	require.NotNil(t, history[0].DeactivationDetails)
	assert.Equal(t, "Joe Dokes", history[0].DeactivationDetails.DeactivatedByStaffUserName)

	published := h.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.PrivilegeDeactivation, published[0].DetailType)

	t.Run("already inactive", func(t *testing.T) {
		err := h.client.DeactivatePrivilege(ctx, deactivation)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, apperrors.CodePrivilegeInactive, apperrors.Code(err))
	})

	t.Run("no such privilege", func(t *testing.T) {
		missing := deactivation
		missing.Jurisdiction = "ky"
		err := h.client.DeactivatePrivilege(ctx, missing)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, apperrors.CodePrivilegeNotFound, apperrors.Code(err))
	})
}
