package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNone   Kind = iota // no operand (instructions only)
	KindNull               // the null sentinel
	KindInt                // int64
	KindDouble             // float64
	KindBool               // bool
	KindString             // string
	KindStruct             // heap struct object id
	KindArray              // heap array object id
)

var kindNames = [...]string{
	KindNone:   "none",
	KindNull:   "null",
	KindInt:    "int",
	KindDouble: "double",
	KindBool:   "bool",
	KindString: "string",
	KindStruct: "struct",
	KindArray:  "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a runtime value and also the operand slot of an Instruction.
// Object ids of structs and arrays live in Int.
type Value struct {
	Kind   Kind
	Int    int64
	Double float64
	Bool   bool
	Str    string
}

var (
	None = Value{}
	Null = Value{Kind: KindNull}
)

func Int(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func Double(d float64) Value { return Value{Kind: KindDouble, Double: d} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func String(s string) Value  { return Value{Kind: KindString, Str: s} }

func structRef(id int64) Value { return Value{Kind: KindStruct, Int: id} }
func arrayRef(id int64) Value  { return Value{Kind: KindArray, Int: id} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) isNumeric() bool { return v.Kind == KindInt || v.Kind == KindDouble }

func (v Value) asDouble() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Double
}

// truthy follows the source language's loose boolean coercion used by
// and/or/not. Null never reaches it.
func (v Value) truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindDouble:
		return v.Double != 0
	case KindString:
		return v.Str != ""
	}
	return true
}

// Equal compares two values the way CMPEQ does: null equals only null,
// ints and doubles compare numerically, everything else by kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind == KindNull || o.Kind == KindNull {
		return v.Kind == o.Kind
	}
	if v.isNumeric() && o.isNumeric() {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.Int == o.Int
		}
		return v.asDouble() == o.asDouble()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	case KindStruct, KindArray:
		return v.Int == o.Int
	}
	return true
}

// Display renders the value the way WRITE prints it.
func (v Value) Display() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt, KindStruct, KindArray:
		return strconv.FormatInt(v.Int, 10)
	case KindDouble:
		return formatDouble(v.Double)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindString:
		return v.Str
	}
	return ""
}

// String renders the value as an instruction operand.
func (v Value) String() string {
	switch v.Kind {
	case KindNone:
		return ""
	case KindString:
		return strconv.Quote(v.Str)
	case KindStruct:
		return fmt.Sprintf("struct#%d", v.Int)
	case KindArray:
		return fmt.Sprintf("array#%d", v.Int)
	}
	return v.Display()
}

func formatDouble(d float64) string {
	var s string
	if abs := math.Abs(d); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		s = strconv.FormatFloat(d, 'g', -1, 64)
	} else {
		s = strconv.FormatFloat(d, 'f', -1, 64)
	}
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}
