package fixtures

import (
	"compact-connect-backend/internal/config"
	"compact-connect-backend/internal/schema"
	"compact-connect-backend/internal/testutil/dynamofake"
)

// Config returns a test configuration with the pinned clock.
func Config() *config.Config {
	return &config.Config{
		Environment: config.Test,
		ServiceName: "compact-connect-test",
		Region:      "us-east-1",
		Tables: config.Tables{
			ProviderTableName:             "provider-table",
			SSNTableName:                  "ssn-table",
			SSNIndexName:                  "ssnIndex",
			CompactConfigurationTableName: "compact-configuration-table",
			FamGivMidIndexName:            "providerFamGivMid",
			DateOfUpdateIndexName:         "providerDateOfUpdate",
			LicenseGSIName:                "licenseGSI",
		},
		BulkBucketName: "bulk-bucket",
		EventBusName:   "data-event-bus",
		Email: config.Email{
			FromAddress:   "noreply@compactconnect.org",
			UIBasePathURL: "https://app.test.compactconnect.org",
		},
		Compacts:      []string{"aslp", "octp", "coun"},
		Jurisdictions: []string{"al", "co", "ky", "ne", "oh"},
		LicenseTypes: map[string][]config.LicenseType{
			"aslp": {
				{Name: "audiologist", Abbreviation: "aud"},
				{Name: DefaultLicenseType, Abbreviation: DefaultLicenseTypeAbbr},
			},
			"octp": {
				{Name: "occupational therapist", Abbreviation: "ot"},
			},
		},
		Clock: Clock(),
	}
}

// TableSchemas describes the provider, SSN and compact configuration tables
// for the in-memory DynamoDB.
func TableSchemas(cfg *config.Config) []dynamofake.TableSchema {
	return []dynamofake.TableSchema{
		{
			Name:     cfg.Tables.ProviderTableName,
			HashKey:  schema.AttrPK,
			RangeKey: schema.AttrSK,
			Indexes: []dynamofake.Index{
				{Name: cfg.Tables.FamGivMidIndexName, HashKey: schema.AttrSK, RangeKey: schema.AttrProviderFamGivMid},
				{Name: cfg.Tables.DateOfUpdateIndexName, HashKey: schema.AttrSK, RangeKey: schema.AttrProviderDateOfUpdate},
				{Name: cfg.Tables.LicenseGSIName, HashKey: schema.AttrLicenseGSIPK, RangeKey: schema.AttrLicenseGSISK},
			},
		},
		{
			Name:     cfg.Tables.SSNTableName,
			HashKey:  schema.AttrPK,
			RangeKey: schema.AttrSK,
			Indexes: []dynamofake.Index{
				{Name: cfg.Tables.SSNIndexName, HashKey: schema.AttrProviderIDGSIPK, RangeKey: schema.AttrSK},
			},
		},
		{
			Name:     cfg.Tables.CompactConfigurationTableName,
			HashKey:  schema.AttrPK,
			RangeKey: schema.AttrSK,
		},
	}
}
