package compactconfig_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compact-connect-backend/internal/compactconfig"
	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/testutil/dynamofake"
	"compact-connect-backend/internal/testutil/fixtures"
)

func TestGetJurisdiction(t *testing.T) {
	cfg := fixtures.Config()
	db := dynamofake.New(fixtures.TableSchemas(cfg)...)
	db.Seed(cfg.Tables.CompactConfigurationTableName, map[string]types.AttributeValue{
		"pk":                 &types.AttributeValueMemberS{Value: compactconfig.JurisdictionPK("aslp")},
		"sk":                 &types.AttributeValueMemberS{Value: compactconfig.JurisdictionSK("aslp", "oh")},
		"type":               &types.AttributeValueMemberS{Value: "jurisdiction"},
		"compact":            &types.AttributeValueMemberS{Value: "aslp"},
		"postalAbbreviation": &types.AttributeValueMemberS{Value: "oh"},
		"jurisdictionName":   &types.AttributeValueMemberS{Value: "Ohio"},
		"jurisdictionAdverseActionsNotificationEmails": &types.AttributeValueMemberSS{
			Value: []string{"oh-adverse@example.com"},
		},
		"licenseeRegistrationEnabled": &types.AttributeValueMemberBOOL{Value: true},
	})
	client := compactconfig.NewClient(db, cfg.Tables.CompactConfigurationTableName, zap.NewNop(), nil)
	ctx := context.Background()

	t.Run("configured", func(t *testing.T) {
		j, err := client.GetJurisdiction(ctx, "aslp", "oh")
		require.NoError(t, err)
		assert.Equal(t, "Ohio", j.JurisdictionName)
		assert.Equal(t, []string{"oh-adverse@example.com"}, j.JurisdictionAdverseActionsNotificationEmails)
		assert.Empty(t, j.JurisdictionOperationsTeamEmails)
		assert.True(t, j.LicenseeRegistrationEnabled)
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := client.GetJurisdiction(ctx, "aslp", "ky")
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, apperrors.CodeJurisdictionNotFound, apperrors.Code(err))
	})

	t.Run("storage failure", func(t *testing.T) {
		db.FailNext("GetItem", errors.New("connection reset"))
		_, err := client.GetJurisdiction(ctx, "aslp", "oh")
		assert.True(t, apperrors.IsExternal(err))
	})
}
