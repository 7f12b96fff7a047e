package schema

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Key attribute names shared by the provider and SSN tables.
const (
	AttrPK                   = "pk"
	AttrSK                   = "sk"
	AttrType                 = "type"
	AttrProviderFamGivMid    = "providerFamGivMid"
	AttrProviderDateOfUpdate = "providerDateOfUpdate"
	AttrLicenseGSIPK         = "licenseGSIPK"
	AttrLicenseGSISK         = "licenseGSISK"
	AttrProviderIDGSIPK      = "providerIdGSIpk"
)

// ProviderPK is the partition shared by every record of one provider.
func ProviderPK(compact, providerID string) string {
	return compact + "#PROVIDER#" + providerID
}

// ProviderSK is the sort key of the provider record itself. It is also the
// hash key of the sorted provider indexes.
func ProviderSK(compact string) string {
	return compact + "#PROVIDER"
}

func LicenseSK(compact, jurisdiction, licenseTypeAbbr string) string {
	return fmt.Sprintf("%s#PROVIDER#license/%s/%s#", compact, jurisdiction, licenseTypeAbbr)
}

// LicenseSKPrefix matches every license of a provider.
func LicenseSKPrefix(compact string) string {
	return compact + "#PROVIDER#license/"
}

func PrivilegeSK(compact, jurisdiction, licenseTypeAbbr string) string {
	return fmt.Sprintf("%s#PROVIDER#privilege/%s/%s#", compact, jurisdiction, licenseTypeAbbr)
}

// PrivilegeUpdateSKPrefix matches every update recorded against one privilege.
func PrivilegeUpdateSKPrefix(compact, jurisdiction, licenseTypeAbbr string) string {
	return PrivilegeSK(compact, jurisdiction, licenseTypeAbbr) + "UPDATE#"
}

func PrivilegeUpdateSK(compact, jurisdiction, licenseTypeAbbr string, at time.Time, changeHash string) string {
	return fmt.Sprintf("%s%d/%s", PrivilegeUpdateSKPrefix(compact, jurisdiction, licenseTypeAbbr), at.Unix(), changeHash)
}

func AdverseActionSK(compact string, against ActionAgainst, jurisdiction, licenseTypeAbbr, adverseActionID string) string {
	return fmt.Sprintf("%s#PROVIDER#%s/%s/%s#ADVERSE_ACTION#%s", compact, against, jurisdiction, licenseTypeAbbr, adverseActionID)
}

// SSNKey is both the partition and sort key of an SSN record.
func SSNKey(compact, ssn string) string {
	return compact + "#SSN#" + ssn
}

// PrivilegeCountKey addresses the per-compact privilege number counter.
func PrivilegeCountKey(compact string) string {
	return compact + "#PRIVILEGE_COUNT"
}

// quote escapes a name segment so '#' inside a name cannot collide with the
// key separator. Index ordering follows the escaped form.
func quote(s string) string {
	return url.PathEscape(s)
}

// FamGivMid builds the providerFamGivMid index sort key.
func FamGivMid(familyName, givenName, middleName string) string {
	return quote(familyName) + "#" + quote(givenName) + "#" + quote(middleName)
}

// FamGivMidPrefix builds the begins_with prefix for a name search. An empty
// given name matches every provider with the family name.
func FamGivMidPrefix(familyName, givenName string) string {
	prefix := quote(familyName) + "#"
	if givenName != "" {
		prefix += quote(givenName) + "#"
	}
	return prefix
}

func LicenseGSIPK(compact, jurisdiction string) string {
	return fmt.Sprintf("C#%s#J#%s", compact, jurisdiction)
}

func LicenseGSISK(familyName, givenName string) string {
	return fmt.Sprintf("FN#%s#GN#%s", quote(strings.ToLower(familyName)), quote(strings.ToLower(givenName)))
}

// DateOfUpdateKey renders a timestamp for the providerDateOfUpdate index.
// Second precision keeps the rendering fixed-width so string order is time order.
func DateOfUpdateKey(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// recordSegments splits "{compact}#PROVIDER#{kind}/{jurisdiction}/{abbr}#..."
// into its kind, jurisdiction and license type abbreviation.
func recordSegments(sk string) (kind, jurisdiction, licenseTypeAbbr string, err error) {
	parts := strings.Split(sk, "#")
	if len(parts) < 4 || parts[1] != "PROVIDER" {
		return "", "", "", fmt.Errorf("malformed sort key")
	}
	segments := strings.Split(parts[2], "/")
	if len(segments) != 3 || segments[1] == "" || segments[2] == "" {
		return "", "", "", fmt.Errorf("malformed sort key")
	}
	return segments[0], segments[1], segments[2], nil
}
