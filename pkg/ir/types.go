package ir

import "fmt"

// Base identifies the base of a declared type.
type Base string

const (
	BaseString    Base = "String"
	BaseInt       Base = "Int"
	BaseFloat     Base = "Float"
	BaseBoolean   Base = "Boolean"
	BaseFile      Base = "File"
	BaseDirectory Base = "Directory"
	BaseArray     Base = "Array"
	BaseMap       Base = "Map"
)

// TypeSpec is the declared type of an input or output. Array and Map are
// parametric; Optional composes with any base. The zero value is not a
// valid type.
type TypeSpec struct {
	Base     Base
	Item     *TypeSpec // Array element type
	Key      *TypeSpec // Map key type
	Value    *TypeSpec // Map value type
	Optional bool
}

// String renders the type in WDL surface form, e.g. "Array[File]" or
// "Int?". Used for diagnostics as well as by the WDL writer.
func (t TypeSpec) String() string {
	var s string
	switch t.Base {
	case BaseArray:
		s = fmt.Sprintf("Array[%s]", t.Item)
	case BaseMap:
		s = fmt.Sprintf("Map[%s, %s]", t.Key, t.Value)
	default:
		s = string(t.Base)
	}
	if t.Optional {
		s += "?"
	}
	return s
}

// Primitive reports whether the type is a non-parametric base type.
func (t TypeSpec) Primitive() bool {
	return t.Base != BaseArray && t.Base != BaseMap
}
