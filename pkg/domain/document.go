package domain

// Document represents an entity payload in the token system (a token,
// collection, dimension, platform or theme), stored as free-form JSON-shaped
// data.
type Document map[string]interface{}

// DeepCopy returns a structural deep copy of a document. Nested maps and
// slices are copied recursively; scalar values are copied by assignment.
// Non-data values (functions, channels) are carried over as shared
// references rather than silently dropped.
func DeepCopy(doc Document) Document {
	if doc == nil {
		return nil
	}
	copied := make(Document, len(doc))
	for k, v := range doc {
		copied[k] = DeepCopyValue(v)
	}
	return copied
}

// DeepCopyValue deep-copies a single value of the kinds that appear in
// documents: maps, slices, and scalars.
func DeepCopyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		copied := make(map[string]interface{}, len(v))
		for k, inner := range v {
			copied[k] = DeepCopyValue(inner)
		}
		return copied
	case Document:
		return map[string]interface{}(DeepCopy(v))
	case []interface{}:
		copied := make([]interface{}, len(v))
		for i, inner := range v {
			copied[i] = DeepCopyValue(inner)
		}
		return copied
	case []string:
		copied := make([]string, len(v))
		copy(copied, v)
		return copied
	default:
		return v
	}
}
