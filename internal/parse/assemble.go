package parse

import (
	"github.com/rotisserie/eris"

	"github.com/exec-relocations/ijss-cli/internal/model"
)

// ZeroLinePolicy decides what happens to a document whose header fields parse
// but where no benefit line matches any pattern.
type ZeroLinePolicy string

const (
	// PolicyPlaceholder emits a single record with empty period fields and
	// the document net total, so the document still shows up in the export.
	PolicyPlaceholder ZeroLinePolicy = "placeholder"
	// PolicyFail records the document as an extraction failure instead.
	PolicyFail ZeroLinePolicy = "fail"
)

// Valid reports whether the policy is one of the known values.
func (p ZeroLinePolicy) Valid() bool {
	return p == PolicyPlaceholder || p == PolicyFail
}

// lineExtractor is one benefit-line matching pass over the document text.
type lineExtractor func(text string) ([]BenefitLine, error)

// Strategy is an ordered list of benefit-line patterns. Later entries are
// tried only when every earlier one finds nothing.
type Strategy struct {
	name       string
	extractors []lineExtractor
}

// StandardStrategy matches only the strict five-column benefit line.
func StandardStrategy() Strategy {
	return Strategy{name: "standard", extractors: []lineExtractor{extractStandardLines}}
}

// FallbackStrategy tries the strict pattern first, then the loose line scan
// for statements that collapse the amount columns.
func FallbackStrategy() Strategy {
	return Strategy{
		name:       "standard+loose",
		extractors: []lineExtractor{extractStandardLines, extractLooseLines},
	}
}

// Name returns the strategy name for logging.
func (s Strategy) Name() string { return s.name }

// Lines runs the patterns in order and returns the first non-empty match set.
func (s Strategy) Lines(text string) ([]BenefitLine, error) {
	for _, extract := range s.extractors {
		lines, err := extract(text)
		if err != nil {
			return nil, err
		}
		if len(lines) > 0 {
			return lines, nil
		}
	}
	return nil, nil
}

// Assemble extracts every record from one document's raw text. Document-level
// fields are extracted once and repeated on each benefit line's record. The
// first missing or unparsable field aborts the document with an error naming
// that field; the batch driver turns it into an ExtractionFailure.
func Assemble(sourceFile, rawText string, strategy Strategy, policy ZeroLinePolicy) ([]model.ExtractedRecord, error) {
	text := Normalize(rawText)

	paymentDate, err := ExtractPaymentDate(text)
	if err != nil {
		return nil, err
	}
	beneficiary, err := ExtractBeneficiary(text)
	if err != nil {
		return nil, err
	}
	matricule := ExtractMatricule(text)
	netTotal, err := ExtractNetTotal(text)
	if err != nil {
		return nil, err
	}

	lines, err := strategy.Lines(text)
	if err != nil {
		return nil, err
	}

	base := model.ExtractedRecord{
		SourceFile:  sourceFile,
		PaymentDate: paymentDate,
		Matricule:   matricule,
		Beneficiary: beneficiary,
		NetAmount:   netTotal,
	}

	if len(lines) == 0 {
		if policy == PolicyFail {
			return nil, ErrNoBenefitLines
		}
		return []model.ExtractedRecord{base}, nil
	}

	records := make([]model.ExtractedRecord, 0, len(lines))
	for _, line := range lines {
		if line.End.Before(line.Start) {
			return nil, eris.Errorf("benefit period ends before it starts (%s au %s)",
				line.Start.Format("02/01/2006"), line.End.Format("02/01/2006"))
		}
		rec := base
		rec.BenefitType = line.Type
		rec.PeriodStart = line.Start
		rec.PeriodEnd = line.End
		rec.Quantity = line.Quantity
		rec.GrossAmount = line.Gross
		records = append(records, rec)
	}
	return records, nil
}
