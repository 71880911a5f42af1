package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tokenlab/tokencore/pkg/domain"
)

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name      string
		doc       domain.Document
		wantValid bool
		wantCode  string
	}{
		{
			name:      "valid color token",
			doc:       domain.Document{"name": "primary", "type": "color", "value": "#ff0000", "description": "brand red"},
			wantValid: true,
		},
		{
			name:      "valid dimension token with unit",
			doc:       domain.Document{"name": "spacing-md", "type": "dimension", "value": "16px"},
			wantValid: true,
		},
		{
			name:      "bare number dimension",
			doc:       domain.Document{"name": "spacing-sm", "type": "dimension", "value": 8},
			wantValid: true,
		},
		{
			name:      "alias reference accepted for any type",
			doc:       domain.Document{"name": "accent", "type": "color", "value": "{palette.red}"},
			wantValid: true,
		},
		{
			name:      "missing name",
			doc:       domain.Document{"type": "color", "value": "#fff"},
			wantValid: false,
			wantCode:  "MISSING_NAME",
		},
		{
			name:      "missing value",
			doc:       domain.Document{"name": "primary", "type": "color"},
			wantValid: false,
			wantCode:  "MISSING_VALUE",
		},
		{
			name:      "bad hex color",
			doc:       domain.Document{"name": "primary", "type": "color", "value": "red"},
			wantValid: false,
			wantCode:  "INVALID_COLOR",
		},
		{
			name:      "unknown value type",
			doc:       domain.Document{"name": "primary", "type": "gradient", "value": "x"},
			wantValid: false,
			wantCode:  "UNKNOWN_TYPE",
		},
		{
			name:      "boolean token with non-boolean value",
			doc:       domain.Document{"name": "flag", "type": "boolean", "value": "yes"},
			wantValid: false,
			wantCode:  "INVALID_BOOLEAN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateToken(tt.doc)
			assert.Equal(t, tt.wantValid, result.IsValid)
			if tt.wantCode != "" {
				codes := make([]string, 0, len(result.Errors))
				for _, issue := range result.Errors {
					codes = append(codes, issue.Code)
				}
				assert.Contains(t, codes, tt.wantCode)
			}
		})
	}
}

func TestValidateToken_MissingDescriptionWarns(t *testing.T) {
	result := ValidateToken(domain.Document{"name": "primary", "type": "color", "value": "#fff"})
	assert.True(t, result.IsValid)
	assert.NotEmpty(t, result.Warnings)
	assert.Equal(t, "MISSING_DESCRIPTION", result.Warnings[0].Code)
}

func TestValidateCollection(t *testing.T) {
	valid := ValidateCollection(domain.Document{
		"name":  "colors",
		"modes": []interface{}{"light", "dark"},
	})
	assert.True(t, valid.IsValid)

	noModes := ValidateCollection(domain.Document{"name": "colors"})
	assert.False(t, noModes.IsValid)

	duplicate := ValidateCollection(domain.Document{
		"name":  "colors",
		"modes": []string{"light", "light"},
	})
	assert.False(t, duplicate.IsValid)
	assert.Equal(t, "DUPLICATE_MODE", duplicate.Errors[0].Code)
}

func TestValidateDimension(t *testing.T) {
	valid := ValidateDimension(domain.Document{
		"name":        "density",
		"modes":       []string{"compact", "comfortable"},
		"defaultMode": "compact",
	})
	assert.True(t, valid.IsValid)

	oneMode := ValidateDimension(domain.Document{"name": "density", "modes": []string{"compact"}})
	assert.False(t, oneMode.IsValid)

	badDefault := ValidateDimension(domain.Document{
		"name":        "density",
		"modes":       []string{"compact", "comfortable"},
		"defaultMode": "cozy",
	})
	assert.False(t, badDefault.IsValid)
	assert.Equal(t, "UNKNOWN_DEFAULT_MODE", badDefault.Errors[0].Code)
}

func TestValidatePlatform(t *testing.T) {
	valid := ValidatePlatform(domain.Document{"name": "web", "format": "css"})
	assert.True(t, valid.IsValid)

	unknownFormat := ValidatePlatform(domain.Document{"name": "web", "format": "xaml"})
	assert.True(t, unknownFormat.IsValid)
	assert.Equal(t, "UNKNOWN_FORMAT", unknownFormat.Warnings[0].Code)
}

func TestValidateTheme(t *testing.T) {
	valid := ValidateTheme(domain.Document{
		"name":      "midnight",
		"overrides": map[string]interface{}{"color-scheme": "dark"},
	})
	assert.True(t, valid.IsValid)

	badOverrides := ValidateTheme(domain.Document{"name": "midnight", "overrides": "dark"})
	assert.False(t, badOverrides.IsValid)
}

func TestEngine_UnknownLogicalType(t *testing.T) {
	engine := NewEngine()
	result := engine.Validate(domain.Document{"anything": true}, "widget")
	assert.True(t, result.IsValid)
	assert.Equal(t, "UNKNOWN_LOGICAL_TYPE", result.Warnings[0].Code)
}

func TestEngine_Dispatch(t *testing.T) {
	engine := NewEngine()

	token := engine.Validate(domain.Document{"name": "primary", "type": "color", "value": "#fff"}, domain.TypeToken)
	assert.True(t, token.IsValid)

	theme := engine.Validate(domain.Document{}, domain.TypeTheme)
	assert.False(t, theme.IsValid)
}
