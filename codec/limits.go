package codec

import "math"

// Limits bounds the schema-level shape of a snapshot or delta that a
// decoder will accept, independent of the wire.Limits enforced on the
// raw packet/section framing underneath it.
type Limits struct {
	MaxEntitiesCreate          int
	MaxEntitiesUpdate          int
	MaxEntitiesDestroy         int
	MaxTotalEntitiesAfterApply int
	MaxComponentsPerEntity     int
	MaxFieldsPerComponent      int
	MaxSectionBytes            int
}

// DefaultLimits returns production-sized limits.
func DefaultLimits() Limits {
	return Limits{
		MaxEntitiesCreate:          4096,
		MaxEntitiesUpdate:          16384,
		MaxEntitiesDestroy:         4096,
		MaxTotalEntitiesAfterApply: 65536,
		MaxComponentsPerEntity:     64,
		MaxFieldsPerComponent:      64,
		MaxSectionBytes:            32768,
	}
}

// TestingLimits returns small limits convenient for exercising limit
// rejection paths in tests.
func TestingLimits() Limits {
	return Limits{
		MaxEntitiesCreate:          8,
		MaxEntitiesUpdate:          8,
		MaxEntitiesDestroy:         8,
		MaxTotalEntitiesAfterApply: 32,
		MaxComponentsPerEntity:     4,
		MaxFieldsPerComponent:      8,
		MaxSectionBytes:            1024,
	}
}

// UnlimitedLimits returns limits that will not reject any well-formed snapshot or delta.
func UnlimitedLimits() Limits {
	return Limits{
		MaxEntitiesCreate:          math.MaxInt32,
		MaxEntitiesUpdate:          math.MaxInt32,
		MaxEntitiesDestroy:         math.MaxInt32,
		MaxTotalEntitiesAfterApply: math.MaxInt32,
		MaxComponentsPerEntity:     math.MaxInt32,
		MaxFieldsPerComponent:      math.MaxInt32,
		MaxSectionBytes:            math.MaxInt32,
	}
}
