package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// French-locale building blocks shared by every field pattern. Kept in one
// place so the formats are testable on their own instead of re-spelled per
// extractor.
const (
	datePattern   = `\d{2}/\d{2}/\d{4}`
	amountPattern = `-?\d[\d ]*,\d{2}`
)

var reCleanAmount = regexp.MustCompile(`^-?\d+,\d{2}$`)

// ParseAmount converts a French-formatted amount string ("1 234,56 €") into a
// float64. The currency symbol and all space variants are stripped and the
// decimal comma becomes a decimal point. Strings without a decimal comma fail.
func ParseAmount(s string) (float64, error) {
	cleaned := Normalize(s)
	cleaned = strings.ReplaceAll(cleaned, "€", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	if !reCleanAmount.MatchString(cleaned) {
		return 0, eris.Errorf("parse: invalid amount %q", s)
	}

	v, err := strconv.ParseFloat(strings.Replace(cleaned, ",", ".", 1), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse: invalid amount %q", s)
	}
	return v, nil
}

// ParseDate parses a DD/MM/YYYY date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse: invalid date %q", s)
	}
	return t, nil
}
