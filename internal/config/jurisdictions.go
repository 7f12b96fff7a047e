package config

import "strings"

var jurisdictionNames = map[string]string{
	"al": "Alabama", "ak": "Alaska", "az": "Arizona", "ar": "Arkansas", "ca": "California",
	"co": "Colorado", "ct": "Connecticut", "de": "Delaware", "dc": "District of Columbia",
	"fl": "Florida", "ga": "Georgia", "hi": "Hawaii", "id": "Idaho", "il": "Illinois",
	"in": "Indiana", "ia": "Iowa", "ks": "Kansas", "ky": "Kentucky", "la": "Louisiana",
	"me": "Maine", "md": "Maryland", "ma": "Massachusetts", "mi": "Michigan", "mn": "Minnesota",
	"ms": "Mississippi", "mo": "Missouri", "mt": "Montana", "ne": "Nebraska", "nv": "Nevada",
	"nh": "New Hampshire", "nj": "New Jersey", "nm": "New Mexico", "ny": "New York",
	"nc": "North Carolina", "nd": "North Dakota", "oh": "Ohio", "ok": "Oklahoma", "or": "Oregon",
	"pa": "Pennsylvania", "pr": "Puerto Rico", "ri": "Rhode Island", "sc": "South Carolina",
	"sd": "South Dakota", "tn": "Tennessee", "tx": "Texas", "ut": "Utah", "vt": "Vermont",
	"va": "Virginia", "vi": "Virgin Islands", "wa": "Washington", "wv": "West Virginia",
	"wi": "Wisconsin", "wy": "Wyoming", "gu": "Guam", "as": "American Samoa",
	"mp": "Northern Mariana Islands",
}

// JurisdictionName returns the display name for a postal abbreviation,
// falling back to the upper-cased abbreviation when it is unknown.
func JurisdictionName(postal string) string {
	if name, ok := jurisdictionNames[strings.ToLower(postal)]; ok {
		return name
	}
	return strings.ToUpper(postal)
}
