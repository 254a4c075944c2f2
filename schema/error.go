package schema

import "fmt"

// InvalidComponentIDError reports a zero or otherwise invalid component id.
type InvalidComponentIDError struct{ Raw uint16 }

func (e *InvalidComponentIDError) Error() string {
	return fmt.Sprintf("schema: invalid component id %d", e.Raw)
}

// InvalidFieldIDError reports a zero or otherwise invalid field id.
type InvalidFieldIDError struct{ Raw uint16 }

func (e *InvalidFieldIDError) Error() string {
	return fmt.Sprintf("schema: invalid field id %d", e.Raw)
}

// DuplicateComponentIDError reports two components sharing an id.
type DuplicateComponentIDError struct{ ID ComponentID }

func (e *DuplicateComponentIDError) Error() string {
	return fmt.Sprintf("schema: duplicate component id %d", e.ID)
}

// DuplicateFieldIDError reports two fields of the same component sharing an id.
type DuplicateFieldIDError struct {
	Component ComponentID
	Field     FieldID
}

func (e *DuplicateFieldIDError) Error() string {
	return fmt.Sprintf("schema: duplicate field id %d in component %d", e.Field, e.Component)
}

// InvalidBitWidthError reports a UInt/SInt field whose bit width is 0 or > 64.
type InvalidBitWidthError struct {
	Component ComponentID
	Field     FieldID
	Bits      uint8
}

func (e *InvalidBitWidthError) Error() string {
	return fmt.Sprintf("schema: invalid bit width %d for field %d of component %d", e.Bits, e.Field, e.Component)
}

// InvalidFixedPointScaleError reports a FixedPoint field with Scale == 0.
type InvalidFixedPointScaleError struct {
	Component ComponentID
	Field     FieldID
}

func (e *InvalidFixedPointScaleError) Error() string {
	return fmt.Sprintf("schema: invalid fixed-point scale (zero) for field %d of component %d", e.Field, e.Component)
}

// InvalidFixedPointRangeError reports a FixedPoint field with MinQ > MaxQ.
type InvalidFixedPointRangeError struct {
	Component  ComponentID
	Field      FieldID
	MinQ, MaxQ int64
}

func (e *InvalidFixedPointRangeError) Error() string {
	return fmt.Sprintf("schema: invalid fixed-point range [%d, %d] for field %d of component %d",
		e.MinQ, e.MaxQ, e.Field, e.Component)
}
