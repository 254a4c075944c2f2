package codec

import "github.com/ticksync/sdec/internal/pool"

// Scratch holds grow-only reusable bitmaps for a single encoder or
// decoder instance, avoiding a fresh allocation per tick on the hot
// diff/encode path. Call Release when the owning encoder/decoder is
// discarded to return the backing slices to the pool.
type Scratch struct {
	componentChanged    []bool
	componentChangedRel func()
	fieldMask           []bool
	fieldMaskRel        func()
}

// NewScratch returns an empty Scratch. Its backing slices are allocated
// lazily on first use via ComponentChanged/FieldMask.
func NewScratch() *Scratch {
	return &Scratch{}
}

// ComponentChanged returns a zeroed []bool of length n, reusing and
// growing the scratch's pooled backing slice as needed.
func (s *Scratch) ComponentChanged(n int) []bool {
	if s.componentChangedRel != nil {
		s.componentChangedRel()
	}
	s.componentChanged, s.componentChangedRel = pool.GetBoolSlice(n)

	return s.componentChanged
}

// FieldMask returns a zeroed []bool of length n, reusing and growing the
// scratch's pooled backing slice as needed.
func (s *Scratch) FieldMask(n int) []bool {
	if s.fieldMaskRel != nil {
		s.fieldMaskRel()
	}
	s.fieldMask, s.fieldMaskRel = pool.GetBoolSlice(n)

	return s.fieldMask
}

// Release returns the scratch's backing slices to their pools. The
// Scratch must not be used afterward.
func (s *Scratch) Release() {
	if s.componentChangedRel != nil {
		s.componentChangedRel()
		s.componentChangedRel = nil
		s.componentChanged = nil
	}
	if s.fieldMaskRel != nil {
		s.fieldMaskRel()
		s.fieldMaskRel = nil
		s.fieldMask = nil
	}
}
