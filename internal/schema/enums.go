package schema

import (
	"fmt"
	"strings"
)

// RecordType discriminates items stored under one provider partition.
type RecordType string

const (
	RecordTypeProvider        RecordType = "provider"
	RecordTypeLicense         RecordType = "license"
	RecordTypePrivilege       RecordType = "privilege"
	RecordTypePrivilegeUpdate RecordType = "privilegeUpdate"
	RecordTypeAdverseAction   RecordType = "adverseAction"
	RecordTypeSSN             RecordType = "ssn"
)

// ParseRecordType converts a stored `type` attribute.
func ParseRecordType(s string) (RecordType, error) {
	switch rt := RecordType(s); rt {
	case RecordTypeProvider, RecordTypeLicense, RecordTypePrivilege,
		RecordTypePrivilegeUpdate, RecordTypeAdverseAction, RecordTypeSSN:
		return rt, nil
	}
	return "", fmt.Errorf("unknown record type %q", s)
}

// ActiveInactiveStatus is used for jurisdiction-uploaded and administrator-set statuses.
type ActiveInactiveStatus string

const (
	StatusActive   ActiveInactiveStatus = "active"
	StatusInactive ActiveInactiveStatus = "inactive"
)

// ParseActiveInactiveStatus accepts "active" or "inactive" in any case.
func ParseActiveInactiveStatus(s string) (ActiveInactiveStatus, error) {
	switch st := ActiveInactiveStatus(strings.ToLower(s)); st {
	case StatusActive, StatusInactive:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// ActionAgainst names the kind of record an adverse action targets.
type ActionAgainst string

const (
	ActionAgainstLicense   ActionAgainst = "license"
	ActionAgainstPrivilege ActionAgainst = "privilege"
)

func ParseActionAgainst(s string) (ActionAgainst, error) {
	switch a := ActionAgainst(s); a {
	case ActionAgainstLicense, ActionAgainstPrivilege:
		return a, nil
	}
	return "", fmt.Errorf("invalid actionAgainst %q", s)
}

// InvestigationAgainst names the kind of record under investigation.
type InvestigationAgainst string

const (
	InvestigationAgainstLicense   InvestigationAgainst = "license"
	InvestigationAgainstPrivilege InvestigationAgainst = "privilege"
)

func ParseInvestigationAgainst(s string) (InvestigationAgainst, error) {
	switch a := InvestigationAgainst(s); a {
	case InvestigationAgainstLicense, InvestigationAgainstPrivilege:
		return a, nil
	}
	return "", fmt.Errorf("invalid investigationAgainst %q", s)
}

// UpdateType tags a PrivilegeUpdate.
type UpdateType string

const (
	UpdateTypeIssuance     UpdateType = "issuance"
	UpdateTypeRenewal      UpdateType = "renewal"
	UpdateTypeDeactivation UpdateType = "deactivation"
	UpdateTypeOther        UpdateType = "other"
)

func ParseUpdateType(s string) (UpdateType, error) {
	switch u := UpdateType(s); u {
	case UpdateTypeIssuance, UpdateTypeRenewal, UpdateTypeDeactivation, UpdateTypeOther:
		return u, nil
	}
	return "", fmt.Errorf("invalid updateType %q", s)
}

// ClinicalPrivilegeActionCategory is the category recorded on an adverse action.
type ClinicalPrivilegeActionCategory string

const (
	CategoryFraud               ClinicalPrivilegeActionCategory = "Fraud, Deception, or Misrepresentation"
	CategoryUnsafePractice      ClinicalPrivilegeActionCategory = "Unsafe Practice or Substandard Care"
	CategoryImproperSupervision ClinicalPrivilegeActionCategory = "Improper Supervision or Allowing Unlicensed Practice"
	CategoryOther               ClinicalPrivilegeActionCategory = "Other"
)

func ParseClinicalPrivilegeActionCategory(s string) (ClinicalPrivilegeActionCategory, error) {
	switch c := ClinicalPrivilegeActionCategory(s); c {
	case CategoryFraud, CategoryUnsafePractice, CategoryImproperSupervision, CategoryOther:
		return c, nil
	}
	return "", fmt.Errorf("invalid clinicalPrivilegeActionCategory %q", s)
}

func (s ActiveInactiveStatus) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

func (a ActionAgainst) IsValid() bool {
	return a == ActionAgainstLicense || a == ActionAgainstPrivilege
}

func (a InvestigationAgainst) IsValid() bool {
	return a == InvestigationAgainstLicense || a == InvestigationAgainstPrivilege
}

func (u UpdateType) IsValid() bool {
	_, err := ParseUpdateType(string(u))
	return err == nil
}

func (c ClinicalPrivilegeActionCategory) IsValid() bool {
	_, err := ParseClinicalPrivilegeActionCategory(string(c))
	return err == nil
}
