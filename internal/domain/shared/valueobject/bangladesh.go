package valueobject

import (
	"regexp"
	"strings"
)

// bdMobilePattern accepts 01[3-9]XXXXXXXX with an optional 88 or +88 country prefix
var bdMobilePattern = regexp.MustCompile(`^(?:\+?88)?01[3-9]\d{8}$`)

// IsBangladeshMobile reports whether number is a valid Bangladesh mobile number.
// Spaces and hyphens are ignored.
func IsBangladeshMobile(number string) bool {
	return bdMobilePattern.MatchString(NormalizeMobile(number))
}

// NormalizeMobile strips spaces and hyphens
func NormalizeMobile(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(number))
}

var (
	tinPattern = regexp.MustCompile(`^\d{12}$`)
	binPattern = regexp.MustCompile(`^\d{9}(?:\d{4})?$`)
)

// IsValidTIN checks the 12-digit e-TIN format
func IsValidTIN(tin string) bool {
	return tinPattern.MatchString(strings.TrimSpace(tin))
}

// IsValidBIN checks the 9 or 13 digit VAT business identification number
func IsValidBIN(bin string) bool {
	return binPattern.MatchString(strings.TrimSpace(bin))
}
