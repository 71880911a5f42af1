package changelog

import "github.com/tokenlab/tokencore/pkg/domain"

// entityIndex maps entities and entity types to change IDs so per-entity
// queries avoid scanning the whole history. Not safe for concurrent use on
// its own; the tracker's lock covers it.
type entityIndex struct {
	byEntity     map[string][]string // entityType/entityID -> change IDs
	byEntityType map[domain.LogicalType][]string
}

func newEntityIndex() *entityIndex {
	return &entityIndex{
		byEntity:     make(map[string][]string),
		byEntityType: make(map[domain.LogicalType][]string),
	}
}

func entityKey(entityType domain.LogicalType, entityID string) string {
	return string(entityType) + "/" + entityID
}

func (idx *entityIndex) add(entry *ChangeEntry) {
	key := entityKey(entry.EntityType, entry.EntityID)
	idx.byEntity[key] = append(idx.byEntity[key], entry.ID)
	idx.byEntityType[entry.EntityType] = append(idx.byEntityType[entry.EntityType], entry.ID)
}

func (idx *entityIndex) remove(entry *ChangeEntry) {
	key := entityKey(entry.EntityType, entry.EntityID)
	idx.byEntity[key] = removeID(idx.byEntity[key], entry.ID)
	if len(idx.byEntity[key]) == 0 {
		delete(idx.byEntity, key)
	}
	idx.byEntityType[entry.EntityType] = removeID(idx.byEntityType[entry.EntityType], entry.ID)
	if len(idx.byEntityType[entry.EntityType]) == 0 {
		delete(idx.byEntityType, entry.EntityType)
	}
}

func (idx *entityIndex) entity(entityType domain.LogicalType, entityID string) []string {
	return idx.byEntity[entityKey(entityType, entityID)]
}

func (idx *entityIndex) entityType(entityType domain.LogicalType) []string {
	return idx.byEntityType[entityType]
}

// rebuild reindexes from scratch, used after loading persisted history.
func (idx *entityIndex) rebuild(entries []*ChangeEntry) {
	idx.byEntity = make(map[string][]string)
	idx.byEntityType = make(map[domain.LogicalType][]string)
	for _, entry := range entries {
		idx.add(entry)
	}
}

func removeID(ids []string, target string) []string {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
