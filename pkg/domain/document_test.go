package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepCopy_Independence(t *testing.T) {
	original := Document{
		"name": "primary",
		"value": map[string]interface{}{
			"light": "#ffffff",
			"dark":  "#000000",
		},
		"tags": []interface{}{"brand", "core"},
	}

	copied := DeepCopy(original)
	assert.Equal(t, original, copied)

	// Mutating the copy must not touch the original.
	copied["name"] = "secondary"
	copied["value"].(map[string]interface{})["light"] = "#eeeeee"
	copied["tags"].([]interface{})[0] = "changed"

	assert.Equal(t, "primary", original["name"])
	assert.Equal(t, "#ffffff", original["value"].(map[string]interface{})["light"])
	assert.Equal(t, "brand", original["tags"].([]interface{})[0])
}

func TestDeepCopy_Nil(t *testing.T) {
	assert.Nil(t, DeepCopy(nil))
}

func TestDeepCopyValue_StringSlice(t *testing.T) {
	modes := []string{"light", "dark"}
	copied := DeepCopyValue(modes).([]string)
	copied[0] = "changed"
	assert.Equal(t, "light", modes[0])
}

func TestDeepCopy_NestedDocument(t *testing.T) {
	inner := Document{"a": 1}
	original := Document{"inner": inner}

	copied := DeepCopy(original)
	copied["inner"].(map[string]interface{})["a"] = 2

	assert.Equal(t, 1, inner["a"])
}
