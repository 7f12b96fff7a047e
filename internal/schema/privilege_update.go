package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DeactivationDetails records who deactivated a privilege and why.
type DeactivationDetails struct {
	Note                       string `dynamodbav:"note,omitempty" json:"note,omitempty" validate:"max=256"`
	DeactivatedByStaffUserID   string `dynamodbav:"deactivatedByStaffUserId" json:"deactivatedByStaffUserId" validate:"required"`
	DeactivatedByStaffUserName string `dynamodbav:"deactivatedByStaffUserName" json:"deactivatedByStaffUserName" validate:"required"`
}

// PrivilegeUpdate is an append-only audit entry for one privilege mutation.
type PrivilegeUpdate struct {
	UpdateType              UpdateType `dynamodbav:"updateType" validate:"enum"`
	ProviderID              string     `dynamodbav:"providerId" validate:"required,uuid"`
	Compact                 string     `dynamodbav:"compact" validate:"required"`
	Jurisdiction            string     `dynamodbav:"jurisdiction" validate:"required,len=2"`
	LicenseType             string     `dynamodbav:"licenseType" validate:"required"`
	LicenseTypeAbbreviation string     `dynamodbav:"-" validate:"required"`

	Previous      map[string]any `dynamodbav:"previous" validate:"required"`
	UpdatedValues map[string]any `dynamodbav:"updatedValues" validate:"required"`

	DeactivationDetails *DeactivationDetails `dynamodbav:"deactivationDetails,omitempty" validate:"required_if=UpdateType deactivation"`

	DateOfUpdate time.Time `dynamodbav:"dateOfUpdate" validate:"required"`

	// sk is kept from the stored item so a decoded update keeps its identity.
	sk string
}

var privilegeUpdateLayout = recordLayout{
	recordType: RecordTypePrivilegeUpdate,
	keys:       []string{AttrPK, AttrSK},
}

func (u *PrivilegeUpdate) RecordType() RecordType { return RecordTypePrivilegeUpdate }

func (u *PrivilegeUpdate) PK() string { return ProviderPK(u.Compact, u.ProviderID) }

// SK orders updates by time under their privilege. The suffix is a hash of
// the change so two updates in the same second do not collide.
func (u *PrivilegeUpdate) SK() string {
	if u.sk != "" {
		return u.sk
	}
	return PrivilegeUpdateSK(u.Compact, u.Jurisdiction, u.LicenseTypeAbbreviation, u.DateOfUpdate, u.changeHash())
}

func (u *PrivilegeUpdate) changeHash() string {
	payload, _ := json.Marshal(struct {
		Type     UpdateType     `json:"t"`
		Previous map[string]any `json:"p"`
		Updated  map[string]any `json:"u"`
	}{u.UpdateType, u.Previous, u.UpdatedValues})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func (u *PrivilegeUpdate) ToItem() (map[string]types.AttributeValue, error) {
	return encodeRecord(RecordTypePrivilegeUpdate, u, map[string]string{
		AttrPK: u.PK(),
		AttrSK: u.SK(),
	})
}

// PrivilegeUpdateFromItem strictly decodes a privilege update item.
func PrivilegeUpdateFromItem(item map[string]types.AttributeValue) (*PrivilegeUpdate, error) {
	var u PrivilegeUpdate
	if err := decodeRecord(item, privilegeUpdateLayout, &u); err != nil {
		return nil, err
	}
	sk := stringAttr(item, AttrSK)
	kind, _, abbr, err := recordSegments(sk)
	if err != nil || kind != string(ActionAgainstPrivilege) {
		return nil, integrityError(RecordTypePrivilegeUpdate, "malformed sort key", err)
	}
	u.LicenseTypeAbbreviation = abbr
	u.sk = sk
	if err := checkDecoded(RecordTypePrivilegeUpdate, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
