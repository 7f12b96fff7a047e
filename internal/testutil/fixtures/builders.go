// Package fixtures provides builders for provider-table records with
// realistic defaults for tests.
package fixtures

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"compact-connect-backend/internal/schema"
)

const (
	DefaultCompact          = "aslp"
	DefaultProviderID       = "89a6377e-c3a5-40e5-bca5-317ec854c570"
	DefaultLicenseType      = "speech-language pathologist"
	DefaultLicenseTypeAbbr  = "slp"
	DefaultHomeJurisdiction = "oh"
	DefaultRegisteredEmail  = "bjork@example.com"
)

// DefaultNow is the pinned clock used across tests.
var DefaultNow = time.Date(2024, 11, 8, 23, 59, 59, 0, time.UTC)

// Clock returns a function that always reports DefaultNow.
func Clock() func() time.Time {
	return func() time.Time { return DefaultNow }
}

// MustItem marshals a record or panics.
func MustItem(record schema.Record) map[string]types.AttributeValue {
	item, err := record.ToItem()
	if err != nil {
		panic(fmt.Sprintf("fixture %s does not marshal: %v", record.RecordType(), err))
	}
	return item
}

// ProviderBuilder helps create provider records with default values
type ProviderBuilder struct {
	provider schema.Provider
}

func NewProviderBuilder() *ProviderBuilder {
	return &ProviderBuilder{provider: schema.Provider{
		Compact:                              DefaultCompact,
		ProviderID:                           DefaultProviderID,
		FamilyName:                           "Guðmundsdóttir",
		GivenName:                            "Björk",
		MiddleName:                           "Gunnar",
		LicenseJurisdiction:                  DefaultHomeJurisdiction,
		LicenseType:                          DefaultLicenseType,
		JurisdictionUploadedLicenseStatus:    schema.StatusActive,
		DateOfExpiration:                     "2025-04-04",
		CompactConnectRegisteredEmailAddress: DefaultRegisteredEmail,
		PrivilegeJurisdictions:               []string{"ne"},
		DateOfUpdate:                         DefaultNow.Add(-24 * time.Hour),
	}}
}

func (b *ProviderBuilder) WithProviderID(id string) *ProviderBuilder {
	b.provider.ProviderID = id
	return b
}

func (b *ProviderBuilder) WithCompact(compact string) *ProviderBuilder {
	b.provider.Compact = compact
	return b
}

func (b *ProviderBuilder) WithName(familyName, givenName string) *ProviderBuilder {
	b.provider.FamilyName = familyName
	b.provider.GivenName = givenName
	return b
}

func (b *ProviderBuilder) WithMiddleName(middleName string) *ProviderBuilder {
	b.provider.MiddleName = middleName
	return b
}

func (b *ProviderBuilder) WithLicenseJurisdiction(jurisdiction string) *ProviderBuilder {
	b.provider.LicenseJurisdiction = jurisdiction
	return b
}

func (b *ProviderBuilder) WithPrivilegeJurisdictions(jurisdictions ...string) *ProviderBuilder {
	b.provider.PrivilegeJurisdictions = jurisdictions
	return b
}

func (b *ProviderBuilder) WithRegisteredEmail(email string) *ProviderBuilder {
	b.provider.CompactConnectRegisteredEmailAddress = email
	return b
}

// Unregistered removes the registered email address.
func (b *ProviderBuilder) Unregistered() *ProviderBuilder {
	b.provider.CompactConnectRegisteredEmailAddress = ""
	return b
}

func (b *ProviderBuilder) WithDateOfUpdate(t time.Time) *ProviderBuilder {
	b.provider.DateOfUpdate = t
	return b
}

func (b *ProviderBuilder) Build() *schema.Provider {
	p := b.provider
	p.PrivilegeJurisdictions = append([]string(nil), b.provider.PrivilegeJurisdictions...)
	return &p
}

// LicenseBuilder helps create license records with default values
type LicenseBuilder struct {
	license schema.License
}

func NewLicenseBuilder() *LicenseBuilder {
	return &LicenseBuilder{license: schema.License{
		Compact:                           DefaultCompact,
		ProviderID:                        DefaultProviderID,
		Jurisdiction:                      DefaultHomeJurisdiction,
		LicenseType:                       DefaultLicenseType,
		LicenseTypeAbbreviation:           DefaultLicenseTypeAbbr,
		FamilyName:                        "Guðmundsdóttir",
		GivenName:                         "Björk",
		MiddleName:                        "Gunnar",
		NPI:                               "0608337260",
		LicenseNumber:                     "A0608337260",
		DateOfIssuance:                    "2010-06-06",
		DateOfRenewal:                     "2020-04-04",
		DateOfExpiration:                  "2025-04-04",
		JurisdictionUploadedLicenseStatus: schema.StatusActive,
		DateOfUpdate:                      DefaultNow.Add(-24 * time.Hour),
	}}
}

// ForProvider copies identity and name fields from a provider record.
func (b *LicenseBuilder) ForProvider(p *schema.Provider) *LicenseBuilder {
	b.license.Compact = p.Compact
	b.license.ProviderID = p.ProviderID
	b.license.FamilyName = p.FamilyName
	b.license.GivenName = p.GivenName
	b.license.MiddleName = p.MiddleName
	return b
}

func (b *LicenseBuilder) WithJurisdiction(jurisdiction string) *LicenseBuilder {
	b.license.Jurisdiction = jurisdiction
	return b
}

func (b *LicenseBuilder) WithLicenseType(name, abbreviation string) *LicenseBuilder {
	b.license.LicenseType = name
	b.license.LicenseTypeAbbreviation = abbreviation
	return b
}

func (b *LicenseBuilder) WithStatus(status schema.ActiveInactiveStatus) *LicenseBuilder {
	b.license.JurisdictionUploadedLicenseStatus = status
	return b
}

func (b *LicenseBuilder) WithExpiration(date schema.Date) *LicenseBuilder {
	b.license.DateOfExpiration = date
	return b
}

func (b *LicenseBuilder) Build() *schema.License {
	l := b.license
	return &l
}

// PrivilegeBuilder helps create privilege records with default values
type PrivilegeBuilder struct {
	privilege schema.Privilege
}

func NewPrivilegeBuilder() *PrivilegeBuilder {
	return &PrivilegeBuilder{privilege: schema.Privilege{
		Compact:                 DefaultCompact,
		ProviderID:              DefaultProviderID,
		Jurisdiction:            "ne",
		LicenseJurisdiction:     DefaultHomeJurisdiction,
		LicenseType:             DefaultLicenseType,
		LicenseTypeAbbreviation: DefaultLicenseTypeAbbr,
		DateOfIssuance:          time.Date(2016, 5, 5, 12, 59, 59, 0, time.UTC),
		DateOfRenewal:           time.Date(2020, 5, 5, 12, 59, 59, 0, time.UTC),
		DateOfExpiration:        "2025-04-04",
		CompactTransactionID:    "1234567890",
		Attestations: []schema.Attestation{
			{AttestationID: "jurisprudence-confirmation", Version: "1"},
		},
		PrivilegeID:            "SLP-NE-1",
		AdministratorSetStatus: schema.StatusActive,
		DateOfUpdate:           DefaultNow.Add(-24 * time.Hour),
	}}
}

func (b *PrivilegeBuilder) ForProvider(p *schema.Provider) *PrivilegeBuilder {
	b.privilege.Compact = p.Compact
	b.privilege.ProviderID = p.ProviderID
	b.privilege.LicenseJurisdiction = p.LicenseJurisdiction
	return b
}

// WithJurisdiction also renumbers the privilege ID for the jurisdiction.
func (b *PrivilegeBuilder) WithJurisdiction(jurisdiction string) *PrivilegeBuilder {
	b.privilege.Jurisdiction = jurisdiction
	b.privilege.PrivilegeID = schema.PrivilegeID(b.privilege.LicenseTypeAbbreviation, jurisdiction, 1)
	return b
}

func (b *PrivilegeBuilder) WithLicenseJurisdiction(jurisdiction string) *PrivilegeBuilder {
	b.privilege.LicenseJurisdiction = jurisdiction
	return b
}

func (b *PrivilegeBuilder) WithExpiration(date schema.Date) *PrivilegeBuilder {
	b.privilege.DateOfExpiration = date
	return b
}

func (b *PrivilegeBuilder) WithAdministratorSetStatus(status schema.ActiveInactiveStatus) *PrivilegeBuilder {
	b.privilege.AdministratorSetStatus = status
	return b
}

func (b *PrivilegeBuilder) WithPrivilegeID(id string) *PrivilegeBuilder {
	b.privilege.PrivilegeID = id
	return b
}

func (b *PrivilegeBuilder) Build() *schema.Privilege {
	p := b.privilege
	p.Attestations = append([]schema.Attestation(nil), b.privilege.Attestations...)
	return &p
}

// AdverseActionBuilder helps create adverse action records with default values
type AdverseActionBuilder struct {
	action *schema.AdverseAction
}

func NewAdverseActionBuilder() *AdverseActionBuilder {
	a := schema.NewAdverseAction()
	a.Compact = DefaultCompact
	a.ProviderID = DefaultProviderID
	a.Jurisdiction = DefaultHomeJurisdiction
	a.LicenseTypeAbbreviation = DefaultLicenseTypeAbbr
	a.LicenseType = DefaultLicenseType
	a.ActionAgainst = schema.ActionAgainstLicense
	a.BlocksFuturePrivileges = true
	a.ClinicalPrivilegeActionCategory = schema.CategoryUnsafePractice
	a.CreationEffectiveDate = "2024-02-15"
	a.SubmittingUser = "a4182428-d061-701c-82e5-a3d1d547d797"
	a.CreationDate = time.Date(2024, 2, 15, 23, 59, 59, 0, time.UTC)
	a.DateOfUpdate = a.CreationDate
	return &AdverseActionBuilder{action: a}
}

func (b *AdverseActionBuilder) ForProvider(p *schema.Provider) *AdverseActionBuilder {
	b.action.Compact = p.Compact
	b.action.ProviderID = p.ProviderID
	return b
}

func (b *AdverseActionBuilder) Against(against schema.ActionAgainst, jurisdiction string) *AdverseActionBuilder {
	b.action.ActionAgainst = against
	b.action.Jurisdiction = jurisdiction
	return b
}

func (b *AdverseActionBuilder) WithBlocksFuturePrivileges(blocks bool) *AdverseActionBuilder {
	b.action.BlocksFuturePrivileges = blocks
	return b
}

func (b *AdverseActionBuilder) Lifted(on schema.Date, liftingUser string) *AdverseActionBuilder {
	b.action.EffectiveLiftDate = on
	b.action.LiftingUser = liftingUser
	return b
}

func (b *AdverseActionBuilder) Build() *schema.AdverseAction {
	return b.action
}
