package schema

import "math/bits"

// Schema is the full set of component definitions both peers of a
// replication session must agree on. A Schema's Hash fingerprint gates
// compatibility between an encoder and a decoder.
type Schema struct {
	Components []ComponentDef
}

// New validates and returns a Schema over the given components.
func New(components []ComponentDef) (*Schema, error) {
	s := &Schema{Components: components}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks for duplicate component/field ids and out-of-range
// codec parameters.
func (s *Schema) Validate() error {
	seenComponents := make(map[ComponentID]struct{}, len(s.Components))
	for _, c := range s.Components {
		if _, dup := seenComponents[c.ID]; dup {
			return &DuplicateComponentIDError{ID: c.ID}
		}
		seenComponents[c.ID] = struct{}{}

		seenFields := make(map[FieldID]struct{}, len(c.Fields))
		for _, f := range c.Fields {
			if _, dup := seenFields[f.ID]; dup {
				return &DuplicateFieldIDError{Component: c.ID, Field: f.ID}
			}
			seenFields[f.ID] = struct{}{}

			if err := validateFieldCodec(c.ID, f); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateFieldCodec(component ComponentID, f FieldDef) error {
	switch f.Codec.Kind {
	case KindUInt, KindSInt:
		if f.Codec.Bits == 0 || f.Codec.Bits > 64 {
			return &InvalidBitWidthError{Component: component, Field: f.ID, Bits: f.Codec.Bits}
		}
	case KindFixedPoint:
		fp := f.Codec.FixedPoint
		if fp.Scale == 0 {
			return &InvalidFixedPointScaleError{Component: component, Field: f.ID}
		}
		if fp.MinQ > fp.MaxQ {
			return &InvalidFixedPointRangeError{Component: component, Field: f.ID, MinQ: fp.MinQ, MaxQ: fp.MaxQ}
		}
	}

	return nil
}

// ComponentByID returns the component with the given id and whether it
// was found.
func (s *Schema) ComponentByID(id ComponentID) (ComponentDef, bool) {
	for _, c := range s.Components {
		if c.ID == id {
			return c, true
		}
	}

	return ComponentDef{}, false
}

// RequiredBits returns the minimal number of bits needed to represent the
// inclusive range [0, rangeMax]. Returns 0 when rangeMax is 0 (a field
// whose min equals its max carries no bits on the wire).
func RequiredBits(rangeMax uint64) int {
	if rangeMax == 0 {
		return 0
	}

	return bits.Len64(rangeMax)
}
