package schema

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// License is a jurisdiction-uploaded license for one license type.
type License struct {
	Compact      string `dynamodbav:"compact" validate:"required"`
	ProviderID   string `dynamodbav:"providerId" validate:"required,uuid"`
	Jurisdiction string `dynamodbav:"jurisdiction" validate:"required,len=2"`
	LicenseType  string `dynamodbav:"licenseType" validate:"required"`
	// LicenseTypeAbbreviation is carried in the sort key rather than as an attribute.
	LicenseTypeAbbreviation string `dynamodbav:"-" validate:"required"`

	FamilyName    string `dynamodbav:"familyName" validate:"required,max=100"`
	GivenName     string `dynamodbav:"givenName" validate:"required,max=100"`
	MiddleName    string `dynamodbav:"middleName,omitempty" validate:"max=100"`
	Suffix        string `dynamodbav:"suffix,omitempty" validate:"max=100"`
	NPI           string `dynamodbav:"npi,omitempty" validate:"omitempty,len=10,numeric"`
	LicenseNumber string `dynamodbav:"licenseNumber,omitempty" validate:"max=100"`
	EmailAddress  string `dynamodbav:"emailAddress,omitempty" validate:"omitempty,email"`

	DateOfIssuance   Date `dynamodbav:"dateOfIssuance" validate:"required,datetime=2006-01-02"`
	DateOfRenewal    Date `dynamodbav:"dateOfRenewal" validate:"required,datetime=2006-01-02"`
	DateOfExpiration Date `dynamodbav:"dateOfExpiration" validate:"required,datetime=2006-01-02"`

	JurisdictionUploadedLicenseStatus ActiveInactiveStatus `dynamodbav:"jurisdictionUploadedLicenseStatus" validate:"enum"`

	DateOfUpdate time.Time `dynamodbav:"dateOfUpdate" validate:"required"`
}

var licenseLayout = recordLayout{
	recordType: RecordTypeLicense,
	keys:       []string{AttrPK, AttrSK, AttrLicenseGSIPK, AttrLicenseGSISK},
}

func (l *License) RecordType() RecordType { return RecordTypeLicense }

func (l *License) PK() string { return ProviderPK(l.Compact, l.ProviderID) }

func (l *License) SK() string {
	return LicenseSK(l.Compact, l.Jurisdiction, l.LicenseTypeAbbreviation)
}

// IsActive reports the jurisdiction-uploaded status. Expiry is the uploading
// jurisdiction's concern and is already reflected in that status.
func (l *License) IsActive() bool {
	return l.JurisdictionUploadedLicenseStatus == StatusActive
}

func (l *License) ToItem() (map[string]types.AttributeValue, error) {
	return encodeRecord(RecordTypeLicense, l, map[string]string{
		AttrPK:           l.PK(),
		AttrSK:           l.SK(),
		AttrLicenseGSIPK: LicenseGSIPK(l.Compact, l.Jurisdiction),
		AttrLicenseGSISK: LicenseGSISK(l.FamilyName, l.GivenName),
	})
}

// LicenseFromItem strictly decodes a license item.
func LicenseFromItem(item map[string]types.AttributeValue) (*License, error) {
	var l License
	if err := decodeRecord(item, licenseLayout, &l); err != nil {
		return nil, err
	}
	kind, _, abbr, err := recordSegments(stringAttr(item, AttrSK))
	if err != nil || kind != string(ActionAgainstLicense) {
		return nil, integrityError(RecordTypeLicense, "malformed sort key", err)
	}
	l.LicenseTypeAbbreviation = abbr
	if err := checkDecoded(RecordTypeLicense, &l); err != nil {
		return nil, err
	}
	return &l, nil
}
