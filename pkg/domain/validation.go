package domain

// LogicalType identifies which validation rules apply to a document.
type LogicalType string

const (
	TypeToken      LogicalType = "token"
	TypeCollection LogicalType = "token-collection"
	TypeDimension  LogicalType = "dimension"
	TypePlatform   LogicalType = "platform"
	TypeTheme      LogicalType = "theme"
)

// ValidationIssue describes a single problem found in a candidate document.
type ValidationIssue struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating a candidate document against
// its logical type. Warnings do not affect IsValid.
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Validator checks candidate documents against the rules for a logical type.
// Implementations must be pure: no state, no side effects.
type Validator interface {
	Validate(candidate Document, logicalType LogicalType) ValidationResult
}
