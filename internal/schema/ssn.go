package schema

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SSNRecord maps an SSN to a provider ID. It is stored in its own table so
// that queries over the provider table can never return an SSN.
type SSNRecord struct {
	Compact    string `dynamodbav:"compact" validate:"required"`
	SSN        string `dynamodbav:"ssn" validate:"required,ssn"`
	ProviderID string `dynamodbav:"providerId" validate:"required,uuid"`
}

var ssnLayout = recordLayout{
	recordType: RecordTypeSSN,
	keys:       []string{AttrPK, AttrSK, AttrProviderIDGSIPK},
}

func (s *SSNRecord) RecordType() RecordType { return RecordTypeSSN }

func (s *SSNRecord) PK() string { return SSNKey(s.Compact, s.SSN) }

func (s *SSNRecord) SK() string { return SSNKey(s.Compact, s.SSN) }

func (s *SSNRecord) ToItem() (map[string]types.AttributeValue, error) {
	return encodeRecord(RecordTypeSSN, s, map[string]string{
		AttrPK:              s.PK(),
		AttrSK:              s.SK(),
		AttrProviderIDGSIPK: ProviderPK(s.Compact, s.ProviderID),
	})
}

// SSNRecordFromItem strictly decodes an SSN item.
func SSNRecordFromItem(item map[string]types.AttributeValue) (*SSNRecord, error) {
	var s SSNRecord
	if err := decodeRecord(item, ssnLayout, &s); err != nil {
		return nil, err
	}
	if err := checkDecoded(RecordTypeSSN, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
