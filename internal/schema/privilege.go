package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attestation records which version of an attestation a provider accepted.
type Attestation struct {
	AttestationID string `dynamodbav:"attestationId" json:"attestationId" validate:"required"`
	Version       string `dynamodbav:"version" json:"version" validate:"required"`
}

// Privilege is a compact-derived authorization to practice in a jurisdiction
// other than the provider's home license jurisdiction.
type Privilege struct {
	Compact                 string `dynamodbav:"compact" validate:"required"`
	ProviderID              string `dynamodbav:"providerId" validate:"required,uuid"`
	Jurisdiction            string `dynamodbav:"jurisdiction" validate:"required,len=2"`
	LicenseJurisdiction     string `dynamodbav:"licenseJurisdiction" validate:"required,len=2,nefield=Jurisdiction"`
	LicenseType             string `dynamodbav:"licenseType" validate:"required"`
	LicenseTypeAbbreviation string `dynamodbav:"-" validate:"required"`

	DateOfIssuance   time.Time `dynamodbav:"dateOfIssuance" validate:"required"`
	DateOfRenewal    time.Time `dynamodbav:"dateOfRenewal" validate:"required"`
	DateOfExpiration Date      `dynamodbav:"dateOfExpiration" validate:"required,datetime=2006-01-02"`

	CompactTransactionID string        `dynamodbav:"compactTransactionId,omitempty"`
	Attestations         []Attestation `dynamodbav:"attestations" validate:"required,dive"`
	PrivilegeID          string        `dynamodbav:"privilegeId" validate:"required"`

	// AdministratorSetStatus is only changed by jurisdiction administrators.
	AdministratorSetStatus ActiveInactiveStatus `dynamodbav:"administratorSetStatus" validate:"enum"`

	DateOfUpdate time.Time `dynamodbav:"dateOfUpdate" validate:"required"`
}

// A stored status is never authoritative. Older writers persisted one, so
// it is tolerated on read and discarded.
var privilegeLayout = recordLayout{
	recordType: RecordTypePrivilege,
	keys:       []string{AttrPK, AttrSK},
	ignored:    []string{"status"},
}

// PrivilegeID formats a privilege number as e.g. "SLP-NE-12".
func PrivilegeID(licenseTypeAbbr, jurisdiction string, number int64) string {
	return fmt.Sprintf("%s-%s-%d", strings.ToUpper(licenseTypeAbbr), strings.ToUpper(jurisdiction), number)
}

func (p *Privilege) RecordType() RecordType { return RecordTypePrivilege }

func (p *Privilege) PK() string { return ProviderPK(p.Compact, p.ProviderID) }

func (p *Privilege) SK() string {
	return PrivilegeSK(p.Compact, p.Jurisdiction, p.LicenseTypeAbbreviation)
}

// Status is derived: active iff the privilege has not expired as of now and
// no administrator has deactivated it.
func (p *Privilege) Status(now time.Time) ActiveInactiveStatus {
	if p.AdministratorSetStatus != StatusActive {
		return StatusInactive
	}
	if p.DateOfExpiration.Before(ExpirationResolutionDate(now)) {
		return StatusInactive
	}
	return StatusActive
}

func (p *Privilege) ToItem() (map[string]types.AttributeValue, error) {
	return encodeRecord(RecordTypePrivilege, p, map[string]string{
		AttrPK: p.PK(),
		AttrSK: p.SK(),
	})
}

// PrivilegeFromItem strictly decodes a privilege item.
func PrivilegeFromItem(item map[string]types.AttributeValue) (*Privilege, error) {
	var p Privilege
	if err := decodeRecord(item, privilegeLayout, &p); err != nil {
		return nil, err
	}
	kind, _, abbr, err := recordSegments(stringAttr(item, AttrSK))
	if err != nil || kind != string(ActionAgainstPrivilege) {
		return nil, integrityError(RecordTypePrivilege, "malformed sort key", err)
	}
	p.LicenseTypeAbbreviation = abbr
	if err := checkDecoded(RecordTypePrivilege, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
