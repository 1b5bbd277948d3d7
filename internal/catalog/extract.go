package catalog

import (
	"regexp"
	"strings"
)

var (
	dimensionPattern = regexp.MustCompile(`(\d+[×x]\d+\s?cm)|(\d+\s?cm)`)
	pricePattern     = regexp.MustCompile(`(\d+[.,]\d+)\s?(€|\$|Dhs|DH|MAD)`)
)

// ExtractDimensions returns every dimension found in desc ("30x40 cm",
// "12 cm"), comma-separated in order of appearance, or fallback if none.
func ExtractDimensions(desc, fallback string) string {
	matches := dimensionPattern.FindAllString(desc, -1)
	if len(matches) == 0 {
		return fallback
	}
	return strings.Join(matches, ", ")
}

// ExtractPrice returns the first "<amount> <currency>" found in desc, or
// fallback if none.
func ExtractPrice(desc, fallback string) string {
	m := pricePattern.FindStringSubmatch(desc)
	if m == nil {
		return fallback
	}
	return m[1] + " " + m[2]
}
