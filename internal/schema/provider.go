package schema

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Provider is the aggregate root record of one licensed individual in a compact.
// It never carries an SSN; that mapping lives in the SSN table.
type Provider struct {
	Compact    string `dynamodbav:"compact" validate:"required"`
	ProviderID string `dynamodbav:"providerId" validate:"required,uuid"`

	FamilyName string `dynamodbav:"familyName" validate:"required,max=100"`
	GivenName  string `dynamodbav:"givenName" validate:"required,max=100"`
	MiddleName string `dynamodbav:"middleName,omitempty" validate:"max=100"`
	Suffix     string `dynamodbav:"suffix,omitempty" validate:"max=100"`
	NPI        string `dynamodbav:"npi,omitempty" validate:"omitempty,len=10,numeric"`

	LicenseJurisdiction               string               `dynamodbav:"licenseJurisdiction" validate:"required,len=2"`
	LicenseType                       string               `dynamodbav:"licenseType" validate:"required"`
	JurisdictionUploadedLicenseStatus ActiveInactiveStatus `dynamodbav:"jurisdictionUploadedLicenseStatus" validate:"enum"`
	DateOfExpiration                  Date                 `dynamodbav:"dateOfExpiration" validate:"required,datetime=2006-01-02"`

	CompactConnectRegisteredEmailAddress string   `dynamodbav:"compactConnectRegisteredEmailAddress,omitempty" validate:"omitempty,email"`
	PrivilegeJurisdictions               []string `dynamodbav:"privilegeJurisdictions,omitempty,stringset" validate:"dive,len=2"`

	DateOfUpdate time.Time `dynamodbav:"dateOfUpdate" validate:"required"`
}

var providerLayout = recordLayout{
	recordType: RecordTypeProvider,
	keys:       []string{AttrPK, AttrSK, AttrProviderFamGivMid, AttrProviderDateOfUpdate},
}

func (p *Provider) RecordType() RecordType { return RecordTypeProvider }

func (p *Provider) PK() string { return ProviderPK(p.Compact, p.ProviderID) }

func (p *Provider) SK() string { return ProviderSK(p.Compact) }

// IsRegistered reports whether the provider has registered a contact email.
func (p *Provider) IsRegistered() bool {
	return p.CompactConnectRegisteredEmailAddress != ""
}

// HasPrivilegeIn reports whether jurisdiction is in the provider's privilege set.
func (p *Provider) HasPrivilegeIn(jurisdiction string) bool {
	for _, j := range p.PrivilegeJurisdictions {
		if j == jurisdiction {
			return true
		}
	}
	return false
}

// ToItem marshals the provider. The sorted-index attributes are always
// recomputed from the name and update date.
func (p *Provider) ToItem() (map[string]types.AttributeValue, error) {
	return encodeRecord(RecordTypeProvider, p, map[string]string{
		AttrPK:                   p.PK(),
		AttrSK:                   p.SK(),
		AttrProviderFamGivMid:    FamGivMid(p.FamilyName, p.GivenName, p.MiddleName),
		AttrProviderDateOfUpdate: DateOfUpdateKey(p.DateOfUpdate),
	})
}

// ProviderFromItem strictly decodes a provider item.
func ProviderFromItem(item map[string]types.AttributeValue) (*Provider, error) {
	var p Provider
	if err := decodeRecord(item, providerLayout, &p); err != nil {
		return nil, err
	}
	if err := checkDecoded(RecordTypeProvider, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
