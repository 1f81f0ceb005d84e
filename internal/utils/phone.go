package utils

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizePhone returns the E.164 form of a valid number and the trimmed
// input otherwise. region is the ISO country used for numbers without a +.
func NormalizePhone(raw, region string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	p, err := libphonenumber.Parse(trimmed, region)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return trimmed
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

// ValidPhone reports whether raw parses to a valid number in region.
func ValidPhone(raw, region string) bool {
	p, err := libphonenumber.Parse(strings.TrimSpace(raw), region)
	return err == nil && libphonenumber.IsValidNumber(p)
}
