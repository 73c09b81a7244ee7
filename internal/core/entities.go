package core

// Entities is the structured schema definition being versioned: a map of
// entity name to its definition (table name, fields, and so on). The value
// is produced by an external schema loader; this subsystem only stores,
// hashes, and diffs it.
type Entities map[string]any

// Names returns the entity names present in e. A nil map yields nil.
func (e Entities) Names() []string {
	if len(e) == 0 {
		return nil
	}
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	return names
}
