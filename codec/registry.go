package codec

import "github.com/ticksync/sdec/schema"

// SchemaRegistry tracks the set of schema hashes a server has seen across
// the sessions it is juggling, detecting the case where two structurally
// different schema.Schema values happen to hash to the same fingerprint.
type SchemaRegistry struct {
	hashes       map[uint64]*schema.Schema
	hasCollision bool
}

// NewSchemaRegistry returns an empty SchemaRegistry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{hashes: make(map[uint64]*schema.Schema)}
}

// Register records s under its schema.Hash fingerprint. It returns an
// error only if s itself is invalid; a hash collision against a
// structurally different schema sets HasCollision instead of failing,
// since the registry's job is to surface the condition, not prevent it.
func (r *SchemaRegistry) Register(s *schema.Schema) (uint64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	h := schema.Hash(s)
	if existing, ok := r.hashes[h]; ok {
		if !sameSchema(existing, s) {
			r.hasCollision = true
		}

		return h, nil
	}

	r.hashes[h] = s

	return h, nil
}

// Lookup returns the schema registered under hash h, if any.
func (r *SchemaRegistry) Lookup(h uint64) (*schema.Schema, bool) {
	s, ok := r.hashes[h]
	return s, ok
}

// HasCollision reports whether two structurally distinct schemas have
// hashed to the same fingerprint.
func (r *SchemaRegistry) HasCollision() bool { return r.hasCollision }

// Count returns the number of distinct schema hashes registered.
func (r *SchemaRegistry) Count() int { return len(r.hashes) }

func sameSchema(a, b *schema.Schema) bool {
	if len(a.Components) != len(b.Components) {
		return false
	}
	for i := range a.Components {
		if !sameComponent(a.Components[i], b.Components[i]) {
			return false
		}
	}

	return true
}

func sameComponent(a, b schema.ComponentDef) bool {
	if a.ID != b.ID || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}

	return true
}
