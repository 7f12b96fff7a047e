package dataclient

import (
	"context"
	"time"

	"compact-connect-backend/internal/schema"
)

// LicenseInformation is a license with the adverse actions against it.
type LicenseInformation struct {
	*schema.License
	AdverseActions []*schema.AdverseAction
}

// PrivilegeInformation is a privilege with its derived status, its history
// and the adverse actions against it.
type PrivilegeInformation struct {
	*schema.Privilege
	Status         schema.ActiveInactiveStatus
	History        []*schema.PrivilegeUpdate
	AdverseActions []*schema.AdverseAction
}

// ProviderInformation is the nested view of a provider served to staff users.
type ProviderInformation struct {
	*schema.Provider
	Licenses   []LicenseInformation
	Privileges []PrivilegeInformation
}

// NewProviderInformation nests a provider's records, deriving privilege
// status as of now.
func NewProviderInformation(records *schema.ProviderUserRecords, now time.Time) *ProviderInformation {
	info := &ProviderInformation{Provider: records.Provider()}
	for _, l := range records.Licenses() {
		info.Licenses = append(info.Licenses, LicenseInformation{
			License:        l,
			AdverseActions: records.AdverseActionsAgainst(schema.ActionAgainstLicense, l.Jurisdiction, l.LicenseTypeAbbreviation),
		})
	}
	for _, p := range records.Privileges() {
		info.Privileges = append(info.Privileges, PrivilegeInformation{
			Privilege:      p,
			Status:         p.Status(now),
			History:        records.PrivilegeUpdates(p.Jurisdiction, p.LicenseTypeAbbreviation),
			AdverseActions: records.AdverseActionsAgainst(schema.ActionAgainstPrivilege, p.Jurisdiction, p.LicenseTypeAbbreviation),
		})
	}
	return info
}

// GetProviderInformation reads a provider partition and nests it.
func (c *Client) GetProviderInformation(ctx context.Context, compact, providerID string) (*ProviderInformation, error) {
	records, err := c.GetProviderUserRecords(ctx, compact, providerID)
	if err != nil {
		return nil, err
	}
	return NewProviderInformation(records, c.cfg.Now()), nil
}
