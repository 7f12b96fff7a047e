package schema

import (
	"sort"
	"time"
)

// ProviderUserRecords is a typed view over every record in one provider partition.
type ProviderUserRecords struct {
	provider       *Provider
	licenses       []*License
	privileges     []*Privilege
	updates        []*PrivilegeUpdate
	adverseActions []*AdverseAction
}

// NewProviderUserRecords groups decoded records. Exactly one provider record
// must be present.
func NewProviderUserRecords(records []Record) (*ProviderUserRecords, error) {
	agg := &ProviderUserRecords{}
	for _, record := range records {
		switch r := record.(type) {
		case *Provider:
			if agg.provider != nil {
				return nil, integrityError(RecordTypeProvider, "more than one provider record in partition", nil)
			}
			agg.provider = r
		case *License:
			agg.licenses = append(agg.licenses, r)
		case *Privilege:
			agg.privileges = append(agg.privileges, r)
		case *PrivilegeUpdate:
			agg.updates = append(agg.updates, r)
		case *AdverseAction:
			agg.adverseActions = append(agg.adverseActions, r)
		default:
			return nil, integrityError(record.RecordType(), "record type does not belong in a provider partition", nil)
		}
	}
	if agg.provider == nil {
		return nil, integrityError(RecordTypeProvider, "provider partition has no provider record", nil)
	}
	return agg, nil
}

func (r *ProviderUserRecords) Provider() *Provider { return r.provider }

func (r *ProviderUserRecords) Licenses() []*License { return r.licenses }

func (r *ProviderUserRecords) Privileges() []*Privilege { return r.privileges }

func (r *ProviderUserRecords) AdverseActions() []*AdverseAction { return r.adverseActions }

// License returns the license for a jurisdiction and license type, if held.
func (r *ProviderUserRecords) License(jurisdiction, licenseTypeAbbr string) (*License, bool) {
	for _, l := range r.licenses {
		if l.Jurisdiction == jurisdiction && l.LicenseTypeAbbreviation == licenseTypeAbbr {
			return l, true
		}
	}
	return nil, false
}

// Privilege returns the privilege for a jurisdiction and license type, if held.
func (r *ProviderUserRecords) Privilege(jurisdiction, licenseTypeAbbr string) (*Privilege, bool) {
	for _, p := range r.privileges {
		if p.Jurisdiction == jurisdiction && p.LicenseTypeAbbreviation == licenseTypeAbbr {
			return p, true
		}
	}
	return nil, false
}

// PrivilegesForLicenseType returns every privilege held for one license type.
func (r *ProviderUserRecords) PrivilegesForLicenseType(licenseTypeAbbr string) []*Privilege {
	var out []*Privilege
	for _, p := range r.privileges {
		if p.LicenseTypeAbbreviation == licenseTypeAbbr {
			out = append(out, p)
		}
	}
	return out
}

// PrivilegeUpdates returns the history of one privilege, oldest first.
func (r *ProviderUserRecords) PrivilegeUpdates(jurisdiction, licenseTypeAbbr string) []*PrivilegeUpdate {
	var out []*PrivilegeUpdate
	for _, u := range r.updates {
		if u.Jurisdiction == jurisdiction && u.LicenseTypeAbbreviation == licenseTypeAbbr {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DateOfUpdate.Before(out[j].DateOfUpdate) })
	return out
}

// AdverseActionsAgainst returns the actions recorded against one license or privilege.
func (r *ProviderUserRecords) AdverseActionsAgainst(against ActionAgainst, jurisdiction, licenseTypeAbbr string) []*AdverseAction {
	var out []*AdverseAction
	for _, a := range r.adverseActions {
		if a.ActionAgainst == against && a.Jurisdiction == jurisdiction && a.LicenseTypeAbbreviation == licenseTypeAbbr {
			out = append(out, a)
		}
	}
	return out
}

// ActiveLicenses returns licenses whose jurisdiction-uploaded status is active.
func (r *ProviderUserRecords) ActiveLicenses() []*License {
	var out []*License
	for _, l := range r.licenses {
		if l.IsActive() {
			out = append(out, l)
		}
	}
	return out
}

// ActivePrivileges returns privileges whose derived status is active at now.
func (r *ProviderUserRecords) ActivePrivileges(now time.Time) []*Privilege {
	var out []*Privilege
	for _, p := range r.privileges {
		if p.Status(now) == StatusActive {
			out = append(out, p)
		}
	}
	return out
}

// BlocksFuturePrivileges reports whether any action in effect on the given
// date bars new privileges for a license type.
func (r *ProviderUserRecords) BlocksFuturePrivileges(licenseTypeAbbr string, on Date) bool {
	for _, a := range r.adverseActions {
		if a.LicenseTypeAbbreviation == licenseTypeAbbr && a.BlocksFuturePrivileges && a.IsActive(on) {
			return true
		}
	}
	return false
}
