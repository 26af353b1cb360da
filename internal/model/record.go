package model

import "time"

// ExtractedRecord is one benefit-period line taken from one IJSS statement.
// Document-level fields (PaymentDate, Matricule, Beneficiary, NetAmount,
// SourceFile) are repeated on every record produced from the same document.
type ExtractedRecord struct {
	SourceFile  string    `json:"source_file"`
	PaymentDate time.Time `json:"payment_date"`
	Matricule   string    `json:"matricule,omitempty"`
	Beneficiary string    `json:"beneficiary"`
	BenefitType string    `json:"benefit_type"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Quantity    int       `json:"quantity"`
	GrossAmount float64   `json:"gross_amount"`
	NetAmount   float64   `json:"net_amount"`

	// TotalRow marks a per-document summary row rather than a benefit line.
	// The exporter shades these rows.
	TotalRow bool `json:"total_row,omitempty"`
}

// HasPeriod reports whether the record carries a benefit period. Placeholder
// records emitted for documents without any matching benefit line do not.
func (r ExtractedRecord) HasPeriod() bool {
	return !r.PeriodStart.IsZero() && !r.PeriodEnd.IsZero()
}

// ExtractionFailure records one document that could not be parsed.
type ExtractionFailure struct {
	SourceFile string `json:"source_file"`
	Reason     string `json:"reason"`
}

// BatchResult is the outcome of one batch run over a ZIP archive. Records and
// failures keep archive iteration order (entries sorted by path). The result
// is a plain value: callers hold it for display/export and drop it to reset.
type BatchResult struct {
	RunID    string              `json:"run_id"`
	Records  []ExtractedRecord   `json:"records"`
	Failures []ExtractionFailure `json:"failures"`
	PDFCount int                 `json:"pdf_count"`
	Skipped  []string            `json:"skipped,omitempty"` // non-PDF entries
	Elapsed  time.Duration       `json:"elapsed"`
}

// Summary aggregates display metrics over a batch result.
type Summary struct {
	Rows          int     `json:"rows"`
	Documents     int     `json:"documents"`
	Beneficiaries int     `json:"beneficiaries"`
	NetTotal      float64 `json:"net_total"`
	Failed        int     `json:"failed"`
}

// Summarize computes the metrics shown after a run. NetTotal sums each
// document's net amount once, since the net amount is a document total
// repeated across that document's records.
func (b *BatchResult) Summarize() Summary {
	s := Summary{
		Rows:   len(b.Records),
		Failed: len(b.Failures),
	}

	beneficiaries := make(map[string]struct{})
	perDoc := make(map[string]float64)
	for _, r := range b.Records {
		if r.TotalRow {
			s.Rows--
			continue
		}
		if r.Beneficiary != "" {
			beneficiaries[r.Beneficiary] = struct{}{}
		}
		perDoc[r.SourceFile] = r.NetAmount
	}

	s.Documents = len(perDoc)
	s.Beneficiaries = len(beneficiaries)
	for _, net := range perDoc {
		s.NetTotal += net
	}

	return s
}
