package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Field-level errors. The assembler folds them into the document failure
// reason, so each one names the field it belongs to.
var (
	ErrPaymentDateMissing = eris.New("payment date not found (no \"Journée du\" anchor)")
	ErrBeneficiaryMissing = eris.New("beneficiary not found (no \"Détail des prestations pour\" or \"Bénéficiaire :\" anchor)")
	ErrNetTotalMissing    = eris.New("net total not found (no \"Total\" line)")
	ErrNoBenefitLines     = eris.New("no benefit line matched")
)

var (
	rePaymentDate = regexp.MustCompile(`Journée du\s+(` + datePattern + `)`)

	// Two beneficiary anchors exist across statement layouts.
	reBeneficiary    = regexp.MustCompile(`Détail des prestations pour\s+([^\n]+)`)
	reBeneficiaryAlt = regexp.MustCompile(`Bénéficiaire\s*:\s*([^\n]+)`)

	reMatricule = regexp.MustCompile(`Matricule\s*:\s*(\S+)`)

	reNetTotal = regexp.MustCompile(`(?m)^[ \t]*Total\s*:?\s*(` + amountPattern + `)\s*€`)

	// Standard benefit line: period, label, quantity, unit amount, reimbursed
	// amount. Unit amounts can be negative on correction statements.
	reBenefitLine = regexp.MustCompile(
		`(` + datePattern + `)\s+au\s+(` + datePattern + `)\s+` +
			`([A-ZÀ-ÖØ-Þ][A-ZÀ-ÖØ-Þ\.\s]*?)\s+(\d+)\s+` +
			`(` + amountPattern + `)\s*€\s+(` + amountPattern + `)\s*€`)

	reDate      = regexp.MustCompile(datePattern)
	reAmountEUR = regexp.MustCompile(`(` + amountPattern + `)\s*€`)
	reLooseHead = regexp.MustCompile(`(.+?)\s+(\d+)\s+` + amountPattern + `\s*€`)
)

// BenefitLine is one reimbursement period row of a statement.
type BenefitLine struct {
	Start      time.Time
	End        time.Time
	Type       string
	Quantity   int
	UnitAmount float64
	Gross      float64
}

// ExtractPaymentDate returns the statement issuance date that follows the
// "Journée du" anchor.
func ExtractPaymentDate(text string) (time.Time, error) {
	m := rePaymentDate.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, ErrPaymentDateMissing
	}
	return ParseDate(m[1])
}

// ExtractBeneficiary returns the beneficiary name from the document heading.
func ExtractBeneficiary(text string) (string, error) {
	if m := reBeneficiary.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if m := reBeneficiaryAlt.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return "", ErrBeneficiaryMissing
}

// ExtractMatricule returns the employee registration number. Not all
// statement layouts carry one, so absence is not an error.
func ExtractMatricule(text string) string {
	if m := reMatricule.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractNetTotal returns the statement-level total from the "Total" line.
func ExtractNetTotal(text string) (float64, error) {
	m := reNetTotal.FindStringSubmatch(text)
	if m == nil {
		return 0, ErrNetTotalMissing
	}
	return ParseAmount(m[1])
}

// extractStandardLines matches the strict five-column benefit line pattern
// against the full document text.
func extractStandardLines(text string) ([]BenefitLine, error) {
	var lines []BenefitLine
	for _, m := range reBenefitLine.FindAllStringSubmatch(text, -1) {
		line, err := buildBenefitLine(m[1], m[2], m[3], m[4], m[5], m[6])
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// extractLooseLines scans line by line for a period followed by a label, a
// quantity and at least one amount. Some statements collapse the unit and
// reimbursed columns into a single amount, which the strict pattern misses.
func extractLooseLines(text string) ([]BenefitLine, error) {
	var lines []BenefitLine
	for _, raw := range NormalizeLines(text) {
		if !strings.Contains(raw, " au ") {
			continue
		}
		dates := reDate.FindAllStringIndex(raw, -1)
		if len(dates) < 2 {
			continue
		}
		after := raw[dates[1][1]:]

		head := reLooseHead.FindStringSubmatchIndex(after)
		if head == nil {
			continue
		}
		label := after[head[2]:head[3]]
		qtyStr := after[head[4]:head[5]]

		// Amounts are scanned after the quantity. The quantity and a
		// space-grouped amount would otherwise run together ("3 450,00 €"
		// is quantity 3, amount 450,00 — not 3 450,00).
		amounts := reAmountEUR.FindAllStringSubmatch(after[head[5]:], -1)
		if len(amounts) == 0 {
			continue
		}

		gross, err := ParseAmount(amounts[len(amounts)-1][1])
		if err != nil {
			return nil, err
		}
		qty, err := strconv.Atoi(qtyStr)
		if err != nil {
			return nil, eris.Wrapf(err, "parse: invalid quantity %q", qtyStr)
		}
		start, err := ParseDate(raw[dates[0][0]:dates[0][1]])
		if err != nil {
			return nil, err
		}
		end, err := ParseDate(raw[dates[1][0]:dates[1][1]])
		if err != nil {
			return nil, err
		}

		lines = append(lines, BenefitLine{
			Start:    start,
			End:      end,
			Type:     strings.TrimSpace(label),
			Quantity: qty,
			Gross:    gross,
		})
	}
	return lines, nil
}

func buildBenefitLine(start, end, label, qty, unit, gross string) (BenefitLine, error) {
	var line BenefitLine
	var err error

	if line.Start, err = ParseDate(start); err != nil {
		return line, err
	}
	if line.End, err = ParseDate(end); err != nil {
		return line, err
	}
	if line.Quantity, err = strconv.Atoi(qty); err != nil {
		return line, eris.Wrapf(err, "parse: invalid quantity %q", qty)
	}
	if line.UnitAmount, err = ParseAmount(unit); err != nil {
		return line, err
	}
	if line.Gross, err = ParseAmount(gross); err != nil {
		return line, err
	}
	line.Type = strings.TrimSpace(label)
	return line, nil
}
