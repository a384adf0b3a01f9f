package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var thousandsCommaRe = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+$`)

// parseDecimal handles the number shapes vintage drawings and OCR backends
// produce: "1920", "1,234.56" (comma thousands), "1.234,56" and "12,5"
// (decimal comma). Returns false when the string is not a number at all.
func parseDecimal(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")

	switch {
	case hasDot && hasComma:
		// The separator appearing last is the decimal mark.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if thousandsCommaRe.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		} else if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			return decimal.Zero, false
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
