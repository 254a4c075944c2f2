package schema

// ComponentID identifies a component type within a schema. Zero is
// reserved and never a valid component id.
type ComponentID uint16

// NewComponentID validates and returns a ComponentID. Zero is rejected.
func NewComponentID(raw uint16) (ComponentID, error) {
	if raw == 0 {
		return 0, &InvalidComponentIDError{Raw: raw}
	}

	return ComponentID(raw), nil
}

// Raw returns the underlying uint16 value.
func (c ComponentID) Raw() uint16 { return uint16(c) }

// ComponentDef is a component type: an ordered list of fields, each with
// its own wire codec and change policy.
type ComponentDef struct {
	ID     ComponentID
	Fields []FieldDef
}

// NewComponentDef returns a ComponentDef over the given fields, in the
// order they appear on the wire.
func NewComponentDef(id ComponentID, fields ...FieldDef) ComponentDef {
	return ComponentDef{ID: id, Fields: fields}
}

// FieldByID returns the field with the given id and whether it was found.
func (c ComponentDef) FieldByID(id FieldID) (FieldDef, bool) {
	for _, f := range c.Fields {
		if f.ID == id {
			return f, true
		}
	}

	return FieldDef{}, false
}
