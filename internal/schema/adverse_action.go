package schema

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// AttrAdverseActionID is assigned once and stored outside the struct fields.
const AttrAdverseActionID = "adverseActionId"

// AdverseAction is a disciplinary action against a license or privilege.
// Its identifier is fixed at creation; the lift fields are the only part
// that changes afterwards.
type AdverseAction struct {
	Compact                 string        `dynamodbav:"compact" validate:"required"`
	ProviderID              string        `dynamodbav:"providerId" validate:"required,uuid"`
	Jurisdiction            string        `dynamodbav:"jurisdiction" validate:"required,len=2"`
	LicenseTypeAbbreviation string        `dynamodbav:"licenseTypeAbbreviation" validate:"required"`
	LicenseType             string        `dynamodbav:"licenseType" validate:"required"`
	ActionAgainst           ActionAgainst `dynamodbav:"actionAgainst" validate:"enum"`

	BlocksFuturePrivileges          bool                            `dynamodbav:"blocksFuturePrivileges"`
	ClinicalPrivilegeActionCategory ClinicalPrivilegeActionCategory `dynamodbav:"clinicalPrivilegeActionCategory" validate:"enum"`

	CreationEffectiveDate Date      `dynamodbav:"creationEffectiveDate" validate:"required,datetime=2006-01-02"`
	SubmittingUser        string    `dynamodbav:"submittingUser" validate:"required"`
	CreationDate          time.Time `dynamodbav:"creationDate" validate:"required"`

	EffectiveLiftDate Date   `dynamodbav:"effectiveLiftDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	LiftingUser       string `dynamodbav:"liftingUser,omitempty" validate:"required_with=EffectiveLiftDate"`

	DateOfUpdate time.Time `dynamodbav:"dateOfUpdate" validate:"required"`

	id string
}

var adverseActionLayout = recordLayout{
	recordType: RecordTypeAdverseAction,
	keys:       []string{AttrPK, AttrSK, AttrAdverseActionID},
}

// NewAdverseAction returns an action with a freshly assigned identifier.
func NewAdverseAction() *AdverseAction {
	return &AdverseAction{id: uuid.NewString()}
}

// ID is the immutable adverse action identifier.
func (a *AdverseAction) ID() string { return a.id }

func (a *AdverseAction) RecordType() RecordType { return RecordTypeAdverseAction }

func (a *AdverseAction) PK() string { return ProviderPK(a.Compact, a.ProviderID) }

func (a *AdverseAction) SK() string {
	return AdverseActionSK(a.Compact, a.ActionAgainst, a.Jurisdiction, a.LicenseTypeAbbreviation, a.id)
}

// IsLifted reports whether a lift has been recorded.
func (a *AdverseAction) IsLifted() bool {
	return a.EffectiveLiftDate != ""
}

// IsActive reports whether the action is in effect on the given date.
func (a *AdverseAction) IsActive(on Date) bool {
	if a.CreationEffectiveDate > on {
		return false
	}
	return !a.IsLifted() || on.Before(a.EffectiveLiftDate)
}

func (a *AdverseAction) ToItem() (map[string]types.AttributeValue, error) {
	keys := map[string]string{
		AttrPK:              a.PK(),
		AttrSK:              a.SK(),
		AttrAdverseActionID: a.id,
	}
	if _, err := uuid.Parse(a.id); err != nil {
		return nil, integrityError(RecordTypeAdverseAction, "adverse action has no identifier", err)
	}
	return encodeRecord(RecordTypeAdverseAction, a, keys)
}

// AdverseActionFromItem strictly decodes an adverse action item.
func AdverseActionFromItem(item map[string]types.AttributeValue) (*AdverseAction, error) {
	var a AdverseAction
	if err := decodeRecord(item, adverseActionLayout, &a); err != nil {
		return nil, err
	}
	a.id = stringAttr(item, AttrAdverseActionID)
	if _, err := uuid.Parse(a.id); err != nil {
		return nil, integrityError(RecordTypeAdverseAction, "invalid attributes: adverseActionId", nil)
	}
	if err := checkDecoded(RecordTypeAdverseAction, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
