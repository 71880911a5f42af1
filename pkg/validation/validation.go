// Package validation implements the validation contract for the token
// system's logical types. All checks are pure functions over the candidate
// document; the Engine owns no state and is safe to share.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tokenlab/tokencore/pkg/domain"
)

// TokenValueTypes are the value types a design token may declare.
var TokenValueTypes = []string{
	"color", "dimension", "typography", "shadow", "border", "opacity",
	"spacing", "radius", "duration", "string", "number", "boolean",
}

var (
	hexColorPattern  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	dimensionPattern = regexp.MustCompile(`^-?\d+(\.\d+)?(px|rem|em|pt|dp|sp|%)?$`)
	namePattern      = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9 ._\-/]*$`)
)

// Engine implements domain.Validator by dispatching to the per-type
// validation functions.
type Engine struct{}

// NewEngine creates a validation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Validate checks a candidate document against the rules for its logical
// type. Unknown logical types pass with a warning so new entity kinds do not
// block edits.
func (e *Engine) Validate(candidate domain.Document, logicalType domain.LogicalType) domain.ValidationResult {
	switch logicalType {
	case domain.TypeToken:
		return ValidateToken(candidate)
	case domain.TypeCollection:
		return ValidateCollection(candidate)
	case domain.TypeDimension:
		return ValidateDimension(candidate)
	case domain.TypePlatform:
		return ValidatePlatform(candidate)
	case domain.TypeTheme:
		return ValidateTheme(candidate)
	default:
		return domain.ValidationResult{
			IsValid: true,
			Warnings: []domain.ValidationIssue{{
				Code:    "UNKNOWN_LOGICAL_TYPE",
				Message: fmt.Sprintf("no validation rules for logical type %q", logicalType),
			}},
		}
	}
}

// ValidateToken checks a single design token: it must carry a name, a value
// type from TokenValueTypes, and a value matching that type.
func ValidateToken(doc domain.Document) domain.ValidationResult {
	var errors, warnings []domain.ValidationIssue

	name := requireName(doc, &errors)
	if name != "" && !namePattern.MatchString(name) {
		errors = append(errors, domain.ValidationIssue{
			Field:   "name",
			Code:    "INVALID_NAME",
			Message: fmt.Sprintf("token name %q contains invalid characters", name),
		})
	}

	valueType, _ := doc["type"].(string)
	if valueType == "" {
		errors = append(errors, domain.ValidationIssue{
			Field:   "type",
			Code:    "MISSING_TYPE",
			Message: "token requires a value type",
		})
	} else if !containsString(TokenValueTypes, valueType) {
		errors = append(errors, domain.ValidationIssue{
			Field:   "type",
			Code:    "UNKNOWN_TYPE",
			Message: fmt.Sprintf("unknown token value type %q", valueType),
		})
	}

	value, hasValue := doc["value"]
	if !hasValue || value == nil {
		errors = append(errors, domain.ValidationIssue{
			Field:   "value",
			Code:    "MISSING_VALUE",
			Message: "token requires a value",
		})
	} else {
		errors = append(errors, checkTokenValue(valueType, value)...)
	}

	if _, ok := doc["description"]; !ok {
		warnings = append(warnings, domain.ValidationIssue{
			Field:   "description",
			Code:    "MISSING_DESCRIPTION",
			Message: "token has no description",
		})
	}

	return result(errors, warnings)
}

// checkTokenValue applies the value-format rules for the declared type.
// Alias references ("{collection.token}") are accepted for any type.
func checkTokenValue(valueType string, value interface{}) []domain.ValidationIssue {
	if s, ok := value.(string); ok && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return nil
	}

	switch valueType {
	case "color":
		s, ok := value.(string)
		if !ok || !hexColorPattern.MatchString(s) {
			return []domain.ValidationIssue{{
				Field:   "value",
				Code:    "INVALID_COLOR",
				Message: fmt.Sprintf("%v is not a valid hex color", value),
			}}
		}
	case "dimension", "spacing", "radius":
		switch v := value.(type) {
		case string:
			if !dimensionPattern.MatchString(v) {
				return []domain.ValidationIssue{{
					Field:   "value",
					Code:    "INVALID_DIMENSION",
					Message: fmt.Sprintf("%q is not a valid dimension value", v),
				}}
			}
		case float64, int, int64:
			// bare numbers are allowed, unit defaults to px
		default:
			return []domain.ValidationIssue{{
				Field:   "value",
				Code:    "INVALID_DIMENSION",
				Message: fmt.Sprintf("%v is not a valid dimension value", value),
			}}
		}
	case "number", "opacity", "duration":
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return []domain.ValidationIssue{{
				Field:   "value",
				Code:    "INVALID_NUMBER",
				Message: fmt.Sprintf("%v is not numeric", value),
			}}
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return []domain.ValidationIssue{{
				Field:   "value",
				Code:    "INVALID_BOOLEAN",
				Message: fmt.Sprintf("%v is not a boolean", value),
			}}
		}
	}
	return nil
}

// ValidateCollection checks a token collection: name plus at least one mode.
func ValidateCollection(doc domain.Document) domain.ValidationResult {
	var errors, warnings []domain.ValidationIssue

	requireName(doc, &errors)

	modes := stringList(doc["modes"])
	if len(modes) == 0 {
		errors = append(errors, domain.ValidationIssue{
			Field:   "modes",
			Code:    "MISSING_MODES",
			Message: "collection requires at least one mode",
		})
	} else if dup := firstDuplicate(modes); dup != "" {
		errors = append(errors, domain.ValidationIssue{
			Field:   "modes",
			Code:    "DUPLICATE_MODE",
			Message: fmt.Sprintf("duplicate mode %q", dup),
		})
	}

	if _, ok := doc["description"]; !ok {
		warnings = append(warnings, domain.ValidationIssue{
			Field:   "description",
			Code:    "MISSING_DESCRIPTION",
			Message: "collection has no description",
		})
	}

	return result(errors, warnings)
}

// ValidateDimension checks a dimension (a named axis of variation, e.g.
// "density" or "color-scheme") and its modes.
func ValidateDimension(doc domain.Document) domain.ValidationResult {
	var errors, warnings []domain.ValidationIssue

	requireName(doc, &errors)

	modes := stringList(doc["modes"])
	if len(modes) < 2 {
		errors = append(errors, domain.ValidationIssue{
			Field:   "modes",
			Code:    "INSUFFICIENT_MODES",
			Message: "dimension requires at least two modes",
		})
	}

	if def, ok := doc["defaultMode"].(string); ok && def != "" && !containsString(modes, def) {
		errors = append(errors, domain.ValidationIssue{
			Field:   "defaultMode",
			Code:    "UNKNOWN_DEFAULT_MODE",
			Message: fmt.Sprintf("default mode %q is not in the mode list", def),
		})
	}

	return result(errors, warnings)
}

// ValidatePlatform checks a delivery platform (web/ios/android/...) and its
// token-name transform settings.
func ValidatePlatform(doc domain.Document) domain.ValidationResult {
	var errors, warnings []domain.ValidationIssue

	requireName(doc, &errors)

	if format, ok := doc["format"].(string); ok && format != "" {
		known := []string{"css", "scss", "swift", "kotlin", "json", "compose"}
		if !containsString(known, format) {
			warnings = append(warnings, domain.ValidationIssue{
				Field:   "format",
				Code:    "UNKNOWN_FORMAT",
				Message: fmt.Sprintf("output format %q is not a built-in format", format),
			})
		}
	}

	return result(errors, warnings)
}

// ValidateTheme checks a theme: name plus a non-empty override map keyed by
// dimension name.
func ValidateTheme(doc domain.Document) domain.ValidationResult {
	var errors, warnings []domain.ValidationIssue

	requireName(doc, &errors)

	if overrides, ok := doc["overrides"].(map[string]interface{}); ok {
		if len(overrides) == 0 {
			warnings = append(warnings, domain.ValidationIssue{
				Field:   "overrides",
				Code:    "EMPTY_OVERRIDES",
				Message: "theme defines no overrides",
			})
		}
	} else if _, present := doc["overrides"]; present {
		errors = append(errors, domain.ValidationIssue{
			Field:   "overrides",
			Code:    "INVALID_OVERRIDES",
			Message: "theme overrides must be a map of dimension name to mode",
		})
	}

	return result(errors, warnings)
}

func requireName(doc domain.Document, errors *[]domain.ValidationIssue) string {
	name, _ := doc["name"].(string)
	if strings.TrimSpace(name) == "" {
		*errors = append(*errors, domain.ValidationIssue{
			Field:   "name",
			Code:    "MISSING_NAME",
			Message: "name is required",
		})
		return ""
	}
	return name
}

func result(errors, warnings []domain.ValidationIssue) domain.ValidationResult {
	return domain.ValidationResult{
		IsValid:  len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func containsString(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func firstDuplicate(list []string) string {
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		if _, ok := seen[item]; ok {
			return item
		}
		seen[item] = struct{}{}
	}
	return ""
}
