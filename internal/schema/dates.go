package schema

import "time"

// DateLayout is the stored form of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date stored as YYYY-MM-DD. The layout is fixed width,
// so string comparison is chronological comparison.
type Date string

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s against DateLayout.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", err
	}
	return Date(s), nil
}

// Time returns midnight UTC of the date, or the zero time if it is malformed.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) Before(other Date) bool { return d < other }

func (d Date) String() string { return string(d) }

// expirationZone is the fixed offset in which expiration dates roll over.
var expirationZone = time.FixedZone("UTC-4", -4*60*60)

// ExpirationResolutionDate is "today" for expiry comparisons.
func ExpirationResolutionDate(now time.Time) Date {
	return DateOf(now.In(expirationZone))
}
