// Package schema maps provider-table and SSN-table records to and from
// DynamoDB items.
//
// Writes always recompute key and index attributes from the record's
// canonical fields. Reads are strict: an item with an unexpected attribute,
// a missing required attribute, a wrongly typed attribute or an invalid
// value fails with an INTERNAL data integrity error rather than being
// passed through, since decoded records are served to API consumers.
package schema

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Record is implemented by every stored record type.
type Record interface {
	RecordType() RecordType
	PK() string
	SK() string
	ToItem() (map[string]types.AttributeValue, error)
}

var (
	_ Record = (*Provider)(nil)
	_ Record = (*License)(nil)
	_ Record = (*Privilege)(nil)
	_ Record = (*PrivilegeUpdate)(nil)
	_ Record = (*AdverseAction)(nil)
	_ Record = (*SSNRecord)(nil)
)

// FromItem decodes an item of any record type, dispatching on its type attribute.
func FromItem(item map[string]types.AttributeValue) (Record, error) {
	rt, err := ParseRecordType(stringAttr(item, AttrType))
	if err != nil {
		return nil, integrityError("", "unknown record type", nil)
	}

	switch rt {
	case RecordTypeProvider:
		return decoded(ProviderFromItem(item))
	case RecordTypeLicense:
		return decoded(LicenseFromItem(item))
	case RecordTypePrivilege:
		return decoded(PrivilegeFromItem(item))
	case RecordTypePrivilegeUpdate:
		return decoded(PrivilegeUpdateFromItem(item))
	case RecordTypeAdverseAction:
		return decoded(AdverseActionFromItem(item))
	default:
		return decoded(SSNRecordFromItem(item))
	}
}

// decoded keeps a failed decode from producing a non-nil Record holding a nil pointer.
func decoded[T Record](record T, err error) (Record, error) {
	if err != nil {
		return nil, err
	}
	return record, nil
}
