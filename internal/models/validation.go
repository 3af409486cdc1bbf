package models

// Severity grades a validation issue
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Penalty returns the quality-score deduction for one issue of this severity.
func (s Severity) Penalty() float64 {
	switch s {
	case SeverityInfo:
		return 0.05
	case SeverityWarning:
		return 0.15
	case SeverityError:
		return 0.30
	case SeverityCritical:
		return 0.50
	}
	return 0
}

// ValidationIssue is one rule violation found on a job record.
type ValidationIssue struct {
	Rule       string   `json:"rule"`
	Severity   Severity `json:"severity"`
	Field      string   `json:"field,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// ValidationResult aggregates all issues for a record plus its quality score.
// IsValid is true iff no issue is critical.
type ValidationResult struct {
	JobID        string            `json:"job_id"`
	IsValid      bool              `json:"is_valid"`
	QualityScore float64           `json:"quality_score"` // [0,1], rounded to 3 decimals
	Issues       []ValidationIssue `json:"issues,omitempty"`
}

// CountBySeverity tallies issues per severity level.
func (r *ValidationResult) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, issue := range r.Issues {
		counts[issue.Severity]++
	}
	return counts
}
