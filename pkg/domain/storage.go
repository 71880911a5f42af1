package domain

// KVStore is the persistence substrate: a synchronous key-value store
// addressed by string keys. Implementations must be safe for concurrent use.
type KVStore interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}) error
	Delete(key string) error
	Keys() []string
	Clear() error
}

// SaveHandler is the UI-integration collaborator used by the edit-session
// save path. It performs the durable write-through into the broader
// application data model; the core does not know its implementation.
type SaveHandler interface {
	Save(componentType, accessPattern string, payload Document, opts map[string]interface{}) error
}

// SaveHandlerFunc adapts a plain function to the SaveHandler interface.
type SaveHandlerFunc func(componentType, accessPattern string, payload Document, opts map[string]interface{}) error

// Save implements SaveHandler.
func (f SaveHandlerFunc) Save(componentType, accessPattern string, payload Document, opts map[string]interface{}) error {
	return f(componentType, accessPattern, payload, opts)
}
